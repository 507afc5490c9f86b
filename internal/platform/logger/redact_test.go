package logger

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/yungbote/itvault-backend/internal/platform/ctxutil"
)

func TestRedactorScrubsSecretsAndDigestsContent(t *testing.T) {
	r := &redactor{enabled: true, salt: "s"}
	out := r.kvs([]interface{}{
		"embeddings_api_key", "sk-live",
		"searchable_text", "router admin notes",
		"entity_type", "password",
		"headers", map[string]interface{}{"Authorization": "Bearer x"},
		"dangling",
	})
	if out[1] != redacted {
		t.Fatalf("api key: want=%q got=%v", redacted, out[1])
	}
	if s, _ := out[3].(string); !strings.HasPrefix(s, "hash:") || len(s) != len("hash:")+12 {
		t.Fatalf("searchable_text digest: got=%v", out[3])
	}
	if out[5] != "password" {
		t.Fatalf("entity_type value must pass through, got=%v", out[5])
	}
	if m := out[7].(map[string]interface{}); m["Authorization"] != redacted {
		t.Fatalf("nested authorization: got=%v", m)
	}
	if out[8] != "dangling" {
		t.Fatalf("odd trailing key should be kept, got=%v", out[8])
	}
}

func TestRedactorDisabled(t *testing.T) {
	r := &redactor{}
	in := []interface{}{"token", "abc"}
	if out := r.kvs(in); out[1] != "abc" {
		t.Fatalf("disabled redactor changed value: %v", out)
	}
}

func TestWithContextAddsTraceFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar(), scrub: &redactor{}}
	ctx := ctxutil.WithTraceData(context.Background(), &ctxutil.TraceData{TraceID: "t1", RequestID: "r1"})

	l.WithContext(ctx).Info("hello")
	l.WithContext(context.Background()).Info("bare")

	entries := logs.AllUntimed()
	if len(entries) != 2 {
		t.Fatalf("entries: want=2 got=%d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["trace_id"] != "t1" || fields["request_id"] != "r1" {
		t.Fatalf("trace fields: got=%v", fields)
	}
	if len(entries[1].ContextMap()) != 0 {
		t.Fatalf("bare context should add nothing: %v", entries[1].ContextMap())
	}
}
