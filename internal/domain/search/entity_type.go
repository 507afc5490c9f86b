package search

import (
	"fmt"
	"strings"
)

// EntityType is the closed set of searchable kinds.
type EntityType string

const (
	EntityPassword      EntityType = "password"
	EntityConfiguration EntityType = "configuration"
	EntityLocation      EntityType = "location"
	EntityDocument      EntityType = "document"
	EntityCustomAsset   EntityType = "custom_asset"
)

var AllEntityTypes = []EntityType{
	EntityPassword,
	EntityConfiguration,
	EntityLocation,
	EntityDocument,
	EntityCustomAsset,
}

func (t EntityType) Valid() bool {
	for _, v := range AllEntityTypes {
		if t == v {
			return true
		}
	}
	return false
}

func (t EntityType) String() string { return string(t) }

func ParseEntityType(raw string) (EntityType, error) {
	t := EntityType(strings.ToLower(strings.TrimSpace(raw)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown entity type %q", raw)
	}
	return t, nil
}

// ParseEntityTypes parses a comma separated list. Empty input means every type.
func ParseEntityTypes(raw string) ([]EntityType, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return append([]EntityType(nil), AllEntityTypes...), nil
	}
	var out []EntityType
	seen := map[EntityType]bool{}
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		t, err := ParseEntityType(part)
		if err != nil {
			return nil, err
		}
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out, nil
}
