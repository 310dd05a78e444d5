package colmap

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// layouts tried for date columns a driver hands back as text
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	time.DateOnly,
}

// ConvertValue : converts a value scanned from the source driver into the bson form of kind k
func ConvertValue(k Kind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch k {
	case KindInt:
		return toInt(v)
	case KindDouble:
		return toDouble(v)
	case KindDecimal:
		return toDecimal(v)
	case KindBool:
		return toBool(v)
	case KindString:
		return toString(v), nil
	case KindDate:
		return toDate(v)
	case KindBinary:
		return toBinary(v)
	case KindJSON:
		return toJSON(v)
	case KindUUID:
		return toUUID(v)
	case KindBit:
		return toBit(v)
	}
	return nil, fmt.Errorf("unsupported kind %s", k)
}

func toInt(v any) (any, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case int32:
		return int64(t), nil
	case int16:
		return int64(t), nil
	case int8:
		return int64(t), nil
	case int:
		return int64(t), nil
	case uint64:
		if t > math.MaxInt64 {
			return primitive.ParseDecimal128(strconv.FormatUint(t, 10))
		}
		return int64(t), nil
	case uint32:
		return int64(t), nil
	case uint8:
		return int64(t), nil
	case bool:
		if t {
			return int64(1), nil
		}
		return int64(0), nil
	case float64:
		if t != math.Trunc(t) {
			return nil, fmt.Errorf("%v is not a whole number", t)
		}
		// float64(math.MaxInt64) rounds up to 2^63 , which int64 cannot hold
		if t < math.MinInt64 || t >= math.MaxInt64 {
			return primitive.ParseDecimal128(strconv.FormatFloat(t, 'f', -1, 64))
		}
		return int64(t), nil
	case []byte:
		return parseInt(string(t))
	case string:
		return parseInt(t)
	}
	return nil, fmt.Errorf("cannot convert %T to int", v)
}

func parseInt(s string) (any, error) {
	i, err := strconv.ParseInt(s, 10, 64)
	if err == nil {
		return i, nil
	}
	if u, uerr := strconv.ParseUint(s, 10, 64); uerr == nil {
		return primitive.ParseDecimal128(strconv.FormatUint(u, 10))
	}
	return nil, fmt.Errorf("%q is not an integer", s)
}

// toBit : the driver hands BIT(n) back as ceil(n/8) big endian bytes
func toBit(v any) (any, error) {
	switch t := v.(type) {
	case []byte:
		if len(t) == 0 || len(t) > 8 {
			return nil, fmt.Errorf("bit value of %d bytes", len(t))
		}
		var buf [8]byte
		copy(buf[8-len(t):], t)
		u := binary.BigEndian.Uint64(buf[:])
		if u > math.MaxInt64 {
			return primitive.ParseDecimal128(strconv.FormatUint(u, 10))
		}
		return int64(u), nil
	case int64:
		return t, nil
	case uint64:
		return toInt(t)
	}
	return nil, fmt.Errorf("cannot convert %T to bit", v)
}

func toDouble(v any) (any, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case int32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case []byte:
		return strconv.ParseFloat(string(t), 64)
	case string:
		return strconv.ParseFloat(t, 64)
	}
	return nil, fmt.Errorf("cannot convert %T to double", v)
}

func toDecimal(v any) (any, error) {
	switch t := v.(type) {
	case primitive.Decimal128:
		return t, nil
	case []byte:
		return primitive.ParseDecimal128(string(t))
	case string:
		return primitive.ParseDecimal128(t)
	case float64:
		return primitive.ParseDecimal128(strconv.FormatFloat(t, 'f', -1, 64))
	case int64:
		return primitive.ParseDecimal128(strconv.FormatInt(t, 10))
	case int:
		return primitive.ParseDecimal128(strconv.Itoa(t))
	}
	return nil, fmt.Errorf("cannot convert %T to decimal", v)
}

func toBool(v any) (any, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case int64:
		return t != 0, nil
	case int:
		return t != 0, nil
	case []byte:
		// bit(1)
		if len(t) == 1 && t[0] <= 1 {
			return t[0] == 1, nil
		}
		return strconv.ParseBool(string(t))
	case string:
		return strconv.ParseBool(t)
	}
	return nil, fmt.Errorf("cannot convert %T to bool", v)
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(time.RFC3339Nano)
	}
	return fmt.Sprint(v)
}

func toDate(v any) (any, error) {
	switch t := v.(type) {
	case time.Time:
		return primitive.NewDateTimeFromTime(t), nil
	case int64:
		return primitive.NewDateTimeFromTime(time.Unix(t, 0)), nil
	case []byte:
		return parseDate(string(t))
	case string:
		return parseDate(t)
	}
	return nil, fmt.Errorf("cannot convert %T to date", v)
}

func parseDate(s string) (any, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return primitive.NewDateTimeFromTime(ts), nil
		}
	}
	return nil, fmt.Errorf("%q is not a recognised date", s)
}

func toBinary(v any) (any, error) {
	switch t := v.(type) {
	case []byte:
		return primitive.Binary{Subtype: 0x00, Data: t}, nil
	case string:
		return primitive.Binary{Subtype: 0x00, Data: []byte(t)}, nil
	}
	return nil, fmt.Errorf("cannot convert %T to binary", v)
}

// toJSON : objects keep their key order as a bson.D , anything else goes through encoding/json
func toJSON(v any) (any, error) {
	var raw []byte
	switch t := v.(type) {
	case []byte:
		raw = t
	case string:
		raw = []byte(t)
	case map[string]any, []any:
		return t, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to json", v)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		var d bson.D
		if err := bson.UnmarshalExtJSON(raw, false, &d); err != nil {
			return nil, fmt.Errorf("invalid json document : %w", err)
		}
		return d, nil
	}
	var res any
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("invalid json value : %w", err)
	}
	return res, nil
}

func toUUID(v any) (any, error) {
	var (
		id  uuid.UUID
		err error
	)
	switch t := v.(type) {
	case [16]byte:
		id = uuid.UUID(t)
	case []byte:
		if len(t) == uuid.Size {
			id, err = uuid.FromBytes(t)
		} else {
			id, err = uuid.FromString(string(t))
		}
	case string:
		id, err = uuid.FromString(t)
	default:
		return nil, fmt.Errorf("cannot convert %T to uuid", v)
	}
	if err != nil {
		return nil, err
	}
	return id.String(), nil
}
