package rbac

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// The backend payload shape has varied historically: roles and permissions
// arrive as arrays of numbers, strings, or objects, depending on the
// backend version. The decoders below classify the shape once at the
// boundary and normalize to the canonical model; nothing deeper in the
// system inspects raw payloads.

// RoleSets carries both representations of a decoded role payload. IDs
// take precedence over names when both are present; the caller derives
// whichever side is missing.
type RoleSets struct {
	Names []Role
	IDs   []int
}

// DecodeRoles normalizes a raw roles payload. Unknown and malformed
// entries are dropped; a nil or non-array payload yields the zero value.
func DecodeRoles(raw json.RawMessage) RoleSets {
	elems, ok := decodeArray(raw)
	if !ok {
		return RoleSets{}
	}
	var names []string
	var ids []int
	for _, e := range elems {
		switch v := e.(type) {
		case json.Number:
			if id, err := strconv.Atoi(v.String()); err == nil {
				ids = append(ids, id)
			}
		case string:
			if id, err := strconv.Atoi(v); err == nil {
				ids = append(ids, id)
				continue
			}
			names = append(names, v)
		case map[string]any:
			if id, ok := objectInt(v, "id", "role_id"); ok {
				ids = append(ids, id)
				continue
			}
			if name, ok := objectString(v, "name", "role", "code"); ok {
				names = append(names, name)
			}
		}
	}
	return RoleSets{
		Names: NormalizeRoles(names),
		IDs:   dedupeKnownRoleIDs(ids),
	}
}

// DecodePermissions normalizes a raw permissions payload to the closed
// permission set.
func DecodePermissions(raw json.RawMessage) []Permission {
	elems, ok := decodeArray(raw)
	if !ok {
		return nil
	}
	var values []int
	for _, e := range elems {
		switch v := e.(type) {
		case json.Number:
			if n, err := strconv.Atoi(v.String()); err == nil {
				values = append(values, n)
			}
		case string:
			if n, err := strconv.Atoi(v); err == nil {
				values = append(values, n)
			}
		case map[string]any:
			if n, ok := objectInt(v, "id", "permission_id"); ok {
				values = append(values, n)
			}
		}
	}
	return NormalizePermissions(values)
}

func decodeArray(raw json.RawMessage) ([]any, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var elems []any
	if err := dec.Decode(&elems); err != nil {
		return nil, false
	}
	return elems, true
}

func objectInt(obj map[string]any, keys ...string) (int, bool) {
	for _, k := range keys {
		v, ok := obj[k]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case json.Number:
			if n, err := strconv.Atoi(t.String()); err == nil {
				return n, true
			}
		case string:
			if n, err := strconv.Atoi(t); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

func objectString(obj map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := obj[k].(string); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

func dedupeKnownRoleIDs(ids []int) []int {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int]struct{}, len(ids))
	var out []int
	for _, id := range ids {
		if _, ok := idToRole[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
