package query

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// Layouts used to render driver time values. They match the text SQLite
// stores for date and time columns, so a value read back prints as written.
const (
	dateLayout     = "2006-01-02"
	clockLayout    = "15:04:05.999999999"
	datetimeLayout = dateLayout + " " + clockLayout
)

// Normalize maps a driver value onto the closed result value set: nil,
// int64, float64 or string.
func Normalize(v any) any {
	return NormalizeColumn(v, "")
}

// NormalizeColumn is Normalize for a value read from a column whose declared
// database type is dbType. The type only affects how times are rendered.
func NormalizeColumn(v any, dbType string) any {
	switch x := v.(type) {
	case nil:
		return nil
	case int64:
		return x
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint:
		return normalizeUint(uint64(x))
	case uint64:
		return normalizeUint(x)
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	case float32:
		return float64(x)
	case float64:
		return x
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return formatTime(x, dbType)
	case *big.Int:
		if x.IsInt64() {
			return x.Int64()
		}
		return x.String()
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func normalizeUint(u uint64) any {
	if u <= math.MaxInt64 {
		return int64(u)
	}
	return strconv.FormatUint(u, 10)
}

func formatTime(t time.Time, dbType string) string {
	typ := strings.ToUpper(dbType)
	midnight := t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
	switch {
	case typ == "DATE" && midnight:
		return t.Format(dateLayout)
	case strings.HasPrefix(typ, "TIME") && !strings.HasPrefix(typ, "TIMESTAMP"):
		return t.Format(clockLayout)
	}
	_, offset := t.Zone()
	if offset != 0 || strings.Contains(typ, "TZ") || strings.Contains(typ, "TIME ZONE") {
		return t.Format(datetimeLayout + "-07:00")
	}
	return t.Format(datetimeLayout)
}
