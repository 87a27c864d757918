package formatting

import (
	"encoding/json"
	"fmt"
)

// PrettyJSON indents v as JSON, or falls back to %v when v cannot be encoded.
func PrettyJSON(v interface{}) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
