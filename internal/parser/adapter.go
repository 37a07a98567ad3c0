package parser

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// NormalizeMetadata coerces rich parser metadata into the string/string form
// the store persists: strings pass through, numbers and booleans stringify,
// timestamps become ISO-8601, lists and maps become JSON. Nils are dropped.
func NormalizeMetadata(metadata map[string]any) map[string]string {
	if len(metadata) == 0 {
		return nil
	}
	out := make(map[string]string, len(metadata))
	for key, value := range metadata {
		if value == nil {
			continue
		}
		out[key] = stringifyValue(value)
	}
	return out
}

func stringifyValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}
