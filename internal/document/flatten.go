package document

import (
	"fmt"
	"sort"
	"strconv"
)

// FlatEntry is one leaf of a flattened document
type FlatEntry struct {
	Key   string
	Value string
}

// Flatten turns nested maps and slices into dotted and bracketed key paths
// such as "shipment.date" or "pages[0].markdown". Map keys are visited in
// sorted order. Every leaf produces exactly one entry; empty maps and
// slices produce none.
func Flatten(m map[string]interface{}) []FlatEntry {
	var out []FlatEntry
	flattenMap(m, "", &out)
	return out
}

func flattenMap(m map[string]interface{}, prefix string, out *[]FlatEntry) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		flattenValue(m[k], path, out)
	}
}

func flattenValue(v interface{}, path string, out *[]FlatEntry) {
	switch val := v.(type) {
	case map[string]interface{}:
		flattenMap(val, path, out)
	case GenericDocument:
		flattenMap(val, path, out)
	case []interface{}:
		for i, item := range val {
			flattenValue(item, fmt.Sprintf("%s[%d]", path, i), out)
		}
	default:
		*out = append(*out, FlatEntry{Key: path, Value: stringify(val)})
	}
}

func stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return fmt.Sprint(val)
	}
}
