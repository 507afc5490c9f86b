package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

const redacted = "[REDACTED]"

// redactor scrubs log fields. Secrets are replaced; identifiers and indexed
// text are replaced by a short salted digest so lines stay correlatable.
type redactor struct {
	enabled bool
	salt    string
}

func redactorFromEnv() *redactor {
	r := &redactor{enabled: true, salt: strings.TrimSpace(os.Getenv("LOG_HASH_SALT"))}
	switch strings.ToLower(strings.TrimSpace(os.Getenv("LOG_REDACTION_ENABLED"))) {
	case "0", "false", "no", "off":
		r.enabled = false
	}
	return r
}

var secretKeyParts = []string{"token", "authorization", "password", "secret", "api_key", "apikey"}

var digestKeyParts = []string{"user_id", "searchable_text", "query"}

func (r *redactor) kvs(kv []interface{}) []interface{} {
	if r == nil || !r.enabled || len(kv) == 0 {
		return kv
	}
	out := make([]interface{}, len(kv))
	copy(out, kv)
	for i := 0; i+1 < len(out); i += 2 {
		out[i+1] = r.value(strings.ToLower(strings.TrimSpace(asString(out[i]))), out[i+1])
	}
	return out
}

func (r *redactor) value(key string, v interface{}) interface{} {
	switch {
	case key == "":
	case containsAny(key, secretKeyParts):
		return redacted
	case containsAny(key, digestKeyParts):
		return r.digest(v)
	}
	switch t := v.(type) {
	case map[string]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, inner := range t {
			m[k] = r.value(strings.ToLower(k), inner)
		}
		return m
	case string:
		if looksLikeJWT(t) {
			return redacted
		}
	}
	return v
}

func (r *redactor) digest(v interface{}) string {
	s := asString(v)
	if s == "" {
		return ""
	}
	h := sha256.New()
	h.Write([]byte(r.salt))
	h.Write([]byte(s))
	return "hash:" + hex.EncodeToString(h.Sum(nil))[:12]
}

func containsAny(key string, parts []string) bool {
	for _, p := range parts {
		if strings.Contains(key, p) {
			return true
		}
	}
	return false
}

// looksLikeJWT matches three dot-separated base64url segments with a JOSE header.
func looksLikeJWT(s string) bool {
	parts := strings.Split(s, ".")
	return len(parts) == 3 && strings.HasPrefix(parts[0], "eyJ") && len(parts[1]) > 10
}

func asString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}
