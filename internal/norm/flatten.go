// internal/norm/flatten.go
package norm

// Flatten turns one raw inbound message into the list of trade-record
// candidates, tried in order, first match wins:
//
//  1. the message itself is an array → each element is a candidate;
//  2. the message has a "data" field → its elements if an array,
//     otherwise the field itself;
//  3. the message has a "trades" array → its elements;
//  4. fallback: the message itself is the sole candidate.
//
// Candidates are produced eagerly; frames are small and bounded by the
// transport frame size.
func Flatten(v interface{}) []interface{} {
	if arr, ok := v.([]interface{}); ok {
		return arr
	}
	if obj, ok := v.(map[string]interface{}); ok {
		if data, ok := obj["data"]; ok {
			if arr, ok := data.([]interface{}); ok {
				return arr
			}
			return []interface{}{data}
		}
		if trades, ok := obj["trades"]; ok {
			if arr, ok := trades.([]interface{}); ok {
				return arr
			}
		}
	}
	return []interface{}{v}
}
