package vector

import "encoding/json"

// FlattenMetadata converts metadata into the primitive-only form vector
// stores accept. Strings, bools and numbers pass through; nil becomes
// the string "none"; everything else (slices, maps, structs) is
// JSON-serialized into a string. Callers can therefore attach arbitrary
// metadata without caring about the index's type restrictions.
func FlattenMetadata(metadata map[string]any) map[string]any {
	if metadata == nil {
		return map[string]any{}
	}

	flat := make(map[string]any, len(metadata))
	for k, v := range metadata {
		switch val := v.(type) {
		case nil:
			flat[k] = "none"
		case string, bool,
			int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64:
			flat[k] = val
		default:
			encoded, err := json.Marshal(val)
			if err != nil {
				flat[k] = "none"
				continue
			}
			flat[k] = string(encoded)
		}
	}
	return flat
}
