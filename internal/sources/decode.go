package sources

import "encoding/json"

// decodeViaJSON round-trips a map[string]any through JSON into dst, the
// simplest way to turn configuration.json's untyped per-source "options"
// map into each kind's own Config struct.
func decodeViaJSON(options map[string]any, dst any) error {
	data, err := json.Marshal(options)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}
