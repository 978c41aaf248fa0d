package app

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cast"
)

// NullText is how a database NULL is displayed.
const NullText = "NULL"

var jsonStd = jsoniter.ConfigCompatibleWithStandardLibrary

// FormatValue renders a column value for display.
func FormatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return NullText
	case string:
		return v
	case []byte:
		return `\x` + hex.EncodeToString(v)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return cast.ToString(v)
	case fmt.Stringer:
		return v.String()
	}
	if data, err := jsonStd.Marshal(v); err == nil {
		return strings.Trim(string(data), `"`)
	}
	return fmt.Sprintf("%v", v)
}
