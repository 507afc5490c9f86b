package indexing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/yungbote/itvault-backend/internal/domain/assets"
	"github.com/yungbote/itvault-backend/internal/domain/search"
)

// TextExtractor projects one entity kind onto the text that gets embedded.
// Implementations must be pure: equal field values give byte-identical output.
type TextExtractor interface {
	ExtractSearchableText(e assets.Entity) (string, error)
}

type extractorFunc[T assets.Entity] func(T) string

func (f extractorFunc[T]) ExtractSearchableText(e assets.Entity) (string, error) {
	v, ok := e.(T)
	if !ok {
		return "", fmt.Errorf("%w: got %T", ErrExtractorTypeMismatch, e)
	}
	return f(v), nil
}

type customAssetExtractor struct{}

func (customAssetExtractor) ExtractSearchableText(e assets.Entity) (string, error) {
	ca, ok := e.(*assets.CustomAsset)
	if !ok {
		return "", fmt.Errorf("%w: got %T", ErrExtractorTypeMismatch, e)
	}
	lines, err := flattenFields(ca.Fields)
	if err != nil {
		return "", fmt.Errorf("custom asset %s fields: %w", ca.ID, err)
	}
	return joinParts(append([]string{ca.Name}, lines...)...), nil
}

var extractors = map[search.EntityType]TextExtractor{
	search.EntityPassword: extractorFunc[*assets.Password](func(p *assets.Password) string {
		return joinParts(p.Name, p.Username, p.URL, p.Notes)
	}),
	search.EntityConfiguration: extractorFunc[*assets.Configuration](func(c *assets.Configuration) string {
		return joinParts(c.Name, c.SerialNumber, c.Manufacturer, c.Model, c.Notes)
	}),
	search.EntityLocation: extractorFunc[*assets.Location](func(l *assets.Location) string {
		return joinParts(l.Name, l.AddressLine1, l.AddressLine2, l.City, l.Notes)
	}),
	search.EntityDocument: extractorFunc[*assets.Document](func(d *assets.Document) string {
		return joinParts(d.Name, d.Content)
	}),
	search.EntityCustomAsset: customAssetExtractor{},
}

// ExtractSearchableText dispatches on the entity's kind.
func ExtractSearchableText(e assets.Entity) (string, error) {
	if e == nil {
		return "", fmt.Errorf("nil entity")
	}
	t := e.SearchEntityType()
	ex, ok := extractors[t]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoExtractor, t)
	}
	return ex.ExtractSearchableText(e)
}

func RegisteredTypes() []search.EntityType {
	out := make([]search.EntityType, 0, len(extractors))
	for t := range extractors {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ValidateRegistry fails if any entity kind lacks an extractor. Called at startup.
func ValidateRegistry() error {
	var missing []string
	for _, t := range search.AllEntityTypes {
		if _, ok := extractors[t]; !ok {
			missing = append(missing, string(t))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrNoExtractor, strings.Join(missing, ","))
	}
	return nil
}

func joinParts(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}

// flattenFields renders a JSON object as "key: value" lines sorted by key.
// Null and blank values are dropped.
func flattenFields(raw []byte) ([]string, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		v := fieldValue(fields[k])
		key := strings.TrimSpace(k)
		if v == "" || key == "" {
			continue
		}
		lines = append(lines, key+": "+v)
	}
	return lines, nil
}

func fieldValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	case []any:
		vals := make([]string, 0, len(t))
		for _, item := range t {
			if s := fieldValue(item); s != "" {
				vals = append(vals, s)
			}
		}
		return strings.Join(vals, ", ")
	default:
		// Nested objects: encoding/json sorts map keys, so this is stable.
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
