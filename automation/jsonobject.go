package automation

import (
	"bytes"
	"encoding/json"
)

// The agent owns keys this tool knows nothing about. Every type in this package
// therefore remembers the members it did not decode and writes them back unchanged.

func decodeObject(data []byte) (map[string]json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		obj = make(map[string]json.RawMessage)
	}
	return obj, nil
}

// unknownMembers returns the members of obj whose keys are not in known.
func unknownMembers(obj map[string]json.RawMessage, known ...string) map[string]json.RawMessage {
	extra := make(map[string]json.RawMessage, len(obj))
	for k, v := range obj {
		extra[k] = v
	}
	for _, k := range known {
		delete(extra, k)
	}
	return extra
}

// encodeWithExtra marshals fields (a struct) and adds the extra members
// that fields does not set itself.
func encodeWithExtra(fields interface{}, extra map[string]json.RawMessage) ([]byte, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return data, nil
	}
	obj, err := decodeObject(data)
	if err != nil {
		return nil, err
	}
	for k, v := range extra {
		if _, set := obj[k]; !set {
			obj[k] = v
		}
	}
	return json.Marshal(obj)
}

// decodeGeneric decodes data into plain maps and slices keeping numbers as json.Number.
func decodeGeneric(data []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]interface{}
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	if m == nil {
		m = make(map[string]interface{})
	}
	return m, nil
}

func deepCopyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return DeepCopyMap(t)
	case []interface{}:
		c := make([]interface{}, len(t))
		for i := range t {
			c[i] = deepCopyValue(t[i])
		}
		return c
	default:
		return t
	}
}

// DeepCopyMap copies m and every map or slice nested in it.
func DeepCopyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	c := make(map[string]interface{}, len(m))
	for k, v := range m {
		c[k] = deepCopyValue(v)
	}
	return c
}

// MergeMissing adds every key of src that dst lacks. Where both hold a map
// the merge recurses; otherwise the value already in dst wins.
func MergeMissing(dst, src map[string]interface{}) {
	for k, sv := range src {
		dv, present := dst[k]
		if !present {
			dst[k] = deepCopyValue(sv)
			continue
		}
		dm, dIsMap := dv.(map[string]interface{})
		sm, sIsMap := sv.(map[string]interface{})
		if dIsMap && sIsMap {
			MergeMissing(dm, sm)
		}
	}
}

func intValue(v interface{}) (int, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	}
	return 0, false
}
