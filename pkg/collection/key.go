package collection

import (
	"fmt"
	"sort"
	"strings"

	"github.com/taskboard/taskboard.go/pkg/constants"
)

// DeriveKey returns the identity of an entity from its wire fields: the
// "id" field when present and non-empty, otherwise the values of every
// "*_id" foreign-key field sorted by field name and joined with "-".
// A join-table row like {"issue_id": "X", "tag_id": "Y"} therefore keys
// as "X-Y". An entity with neither an id nor any foreign keys yields
// constants.ErrNoKey.
func DeriveKey(fields map[string]any) (string, error) {
	if id, ok := fields["id"]; ok {
		if s := keyString(id); s != "" {
			return s, nil
		}
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		if strings.HasSuffix(name, "_id") {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "", constants.ErrNoKey
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = keyString(fields[name])
	}
	return strings.Join(parts, "-"), nil
}

func keyString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}
