// package colmap
//
// maps source column types to the bson kind their values are stored as
package colmap

import (
	"fmt"
	"strings"
)

// Type : column mapping type
type Type string

const (
	// PostgresToMongo : postgres udt names -> bson kinds
	PostgresToMongo Type = "POSTGRES_MONGO"
	// MysqlToMongo : mysql data types -> bson kinds
	MysqlToMongo Type = "MYSQL_MONGO"
	// SqliteToMongo : sqlite declared types -> bson kinds
	SqliteToMongo Type = "SQLITE_MONGO"
)

// Kind : bson representation a column value is converted to
type Kind string

const (
	KindInt     Kind = "int"
	KindDouble  Kind = "double"
	KindDecimal Kind = "decimal"
	KindBool    Kind = "bool"
	KindString  Kind = "string"
	KindDate    Kind = "date"
	KindBinary  Kind = "binary"
	KindJSON    Kind = "json"
	KindUUID    Kind = "uuid"
	// KindBit : mysql BIT(n) , raw big endian bytes read as an unsigned integer
	KindBit Kind = "bit"
)

var allKinds = []Kind{KindInt, KindDouble, KindDecimal, KindBool, KindString, KindDate, KindBinary, KindJSON, KindUUID, KindBit}

var (
	postgresToMongoMap = map[string]Kind{
		"INT2":        KindInt,
		"INT4":        KindInt,
		"INT8":        KindInt,
		"SMALLINT":    KindInt,
		"INTEGER":     KindInt,
		"BIGINT":      KindInt,
		"OID":         KindInt,
		"FLOAT4":      KindDouble,
		"FLOAT8":      KindDouble,
		"REAL":        KindDouble,
		"NUMERIC":     KindDecimal,
		"MONEY":       KindString,
		"BOOL":        KindBool,
		"BOOLEAN":     KindBool,
		"CHAR":        KindString,
		"BPCHAR":      KindString,
		"VARCHAR":     KindString,
		"TEXT":        KindString,
		"NAME":        KindString,
		"CITEXT":      KindString,
		"INET":        KindString,
		"CIDR":        KindString,
		"MACADDR":     KindString,
		"INTERVAL":    KindString,
		"TIME":        KindString,
		"TIMETZ":      KindString,
		"XML":         KindString,
		"DATE":        KindDate,
		"TIMESTAMP":   KindDate,
		"TIMESTAMPTZ": KindDate,
		"BYTEA":       KindBinary,
		"JSON":        KindJSON,
		"JSONB":       KindJSON,
		"UUID":        KindUUID,
	}
	mysqlToMongoMap = map[string]Kind{
		"TINYINT":            KindInt,
		"SMALLINT":           KindInt,
		"MEDIUMINT":          KindInt,
		"INT":                KindInt,
		"INTEGER":            KindInt,
		"BIGINT":             KindInt,
		"YEAR":               KindInt,
		"BIT":                KindBit,
		"SERIAL":             KindInt,
		"FLOAT":              KindDouble,
		"DOUBLE":             KindDouble,
		"DECIMAL":            KindDecimal,
		"DATE":               KindDate,
		"DATETIME":           KindDate,
		"TIMESTAMP":          KindDate,
		"TIME":               KindString,
		"CHAR":               KindString,
		"VARCHAR":            KindString,
		"TINYTEXT":           KindString,
		"TEXT":               KindString,
		"MEDIUMTEXT":         KindString,
		"LONGTEXT":           KindString,
		"ENUM":               KindString,
		"SET":                KindString,
		"BINARY":             KindBinary,
		"VARBINARY":          KindBinary,
		"TINYBLOB":           KindBinary,
		"BLOB":               KindBinary,
		"MEDIUMBLOB":         KindBinary,
		"LONGBLOB":           KindBinary,
		"JSON":               KindJSON,
		"GEOMETRY":           KindBinary,
		"POINT":              KindBinary,
		"LINESTRING":         KindBinary,
		"POLYGON":            KindBinary,
		"GEOMETRYCOLLECTION": KindBinary,
		"MULTIPOLYGON":       KindBinary,
		"MULTIPOINT":         KindBinary,
		"MULTILINESTRING":    KindBinary,
		"BOOLEAN":            KindBool,
		"BOOL":               KindBool,
	}
	// sqlite declared types are free text , these are the ones orms emit
	sqliteToMongoMap = map[string]Kind{
		"INTEGER":           KindInt,
		"INT":               KindInt,
		"BIGINT":            KindInt,
		"SMALLINT":          KindInt,
		"SMALLINT UNSIGNED": KindInt,
		"INTEGER UNSIGNED":  KindInt,
		"BIGINT UNSIGNED":   KindInt,
		"REAL":              KindDouble,
		"FLOAT":             KindDouble,
		"DOUBLE":            KindDouble,
		"DECIMAL":           KindDecimal,
		"NUMERIC":           KindDecimal,
		"BOOL":              KindBool,
		"BOOLEAN":           KindBool,
		"TEXT":              KindString,
		"VARCHAR":           KindString,
		"CHAR":              KindString,
		"TIME":              KindString,
		"DATE":              KindDate,
		"DATETIME":          KindDate,
		"TIMESTAMP":         KindDate,
		"BLOB":              KindBinary,
		"JSON":              KindJSON,
		"UUID":              KindUUID,
	}
)

// Normalize : upper cased type with any (length) suffix removed
func Normalize(colTypeSource string) string {
	return strings.TrimSpace(strings.ToUpper(strings.Split(colTypeSource, "(")[0]))
}

// ParseKind : kind from its config spelling
func ParseKind(s string) (Kind, error) {
	for _, k := range allKinds {
		if string(k) == strings.ToLower(s) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown kind %q", s)
}

// Convert : converts types to the target kind if it cannot then it will error out
func Convert(t Type, colTypeSource string) (Kind, error) {
	norm := Normalize(colTypeSource)
	var m map[string]Kind
	switch t {
	case PostgresToMongo:
		// array udt names are prefixed with an underscore , kept as their text literal
		if strings.HasPrefix(norm, "_") {
			return KindString, nil
		}
		m = postgresToMongoMap
	case MysqlToMongo:
		m = mysqlToMongoMap
	case SqliteToMongo:
		m = sqliteToMongoMap
	default:
		return "", fmt.Errorf("Unsupported type %s", t)
	}
	itm, ok := m[norm]
	if !ok {
		return "", fmt.Errorf("This col type %s does not have a mongo mapping", norm)
	}
	return itm, nil
}
