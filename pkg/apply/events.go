package apply

import (
	"fmt"
	"strconv"

	"github.com/saludstaffing/applykit/pkg/forms"
)

// stringValue reads a payload value as a string. Numbers are formatted so
// decoded JSON and MessagePack payloads behave the same.
func stringValue(payload map[string]any, key string) string {
	switch v := payload[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(v)
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}

func boolValue(payload map[string]any, key string) bool {
	switch v := payload[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

// kindOf maps the event target of a keydown. An empty tag is not a control.
func kindOf(tag, typ string) forms.Kind {
	if tag == "" {
		return ""
	}
	return forms.KindOf(tag, typ)
}
