// Copyright 2020 PingCAP, Inc. Licensed under Apache-2.0.

package export

import (
	"encoding/hex"
	"math"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/encoding/wkb"
)

var colTypeKindMap = map[string]Kind{}

// rangeElemKindMap maps range column types to the kind of their endpoints.
var rangeElemKindMap = map[string]Kind{
	"INT4RANGE": KindInteger,
	"INT8RANGE": KindInteger,
	"NUMRANGE":  KindDecimal,
	"DATERANGE": KindDate,
	"TSRANGE":   KindTimestamp,
	"TSTZRANGE": KindTimestamp,
}

func init() {
	initColTypeKindMap()
}

func initColTypeKindMap() {
	for _, s := range dataTypeString {
		colTypeKindMap[s] = KindString
	}
	for _, s := range dataTypeInt {
		colTypeKindMap[s] = KindInteger
	}
	for _, s := range dataTypeFloat {
		colTypeKindMap[s] = KindFloat
	}
	for _, s := range dataTypeDecimal {
		colTypeKindMap[s] = KindDecimal
	}
	for _, s := range dataTypeBool {
		colTypeKindMap[s] = KindBoolean
	}
	for _, s := range dataTypeDate {
		colTypeKindMap[s] = KindDate
	}
	for _, s := range dataTypeTime {
		colTypeKindMap[s] = KindTime
	}
	for _, s := range dataTypeTimestamp {
		colTypeKindMap[s] = KindTimestamp
	}
	for _, s := range dataTypeBin {
		colTypeKindMap[s] = KindBinary
	}
	for _, s := range dataTypeGeometry {
		colTypeKindMap[s] = KindGeometry
	}
	for _, s := range dataTypeIP {
		colTypeKindMap[s] = KindIP
	}
	for s := range rangeElemKindMap {
		colTypeKindMap[s] = KindRange
	}
}

var dataTypeString = []string{
	"CHAR", "NCHAR", "VARCHAR", "NVARCHAR", "CHARACTER", "VARCHARACTER",
	"CHARACTER VARYING", "BPCHAR", "CITEXT", "NAME",
	"TEXT", "TINYTEXT", "MEDIUMTEXT", "LONGTEXT", "CLOB",
	"ENUM", "SET", "JSON", "JSONB", "UUID", "XML", "YEAR", "SQL_TSI_YEAR",
}

var dataTypeInt = []string{
	"INTEGER", "BIGINT", "TINYINT", "SMALLINT", "MEDIUMINT",
	"INT", "INT1", "INT2", "INT3", "INT4", "INT8",
	"SERIAL", "BIGSERIAL", "SMALLSERIAL",
}

var dataTypeFloat = []string{
	"FLOAT", "REAL", "DOUBLE", "DOUBLE PRECISION", "FLOAT4", "FLOAT8",
}

var dataTypeDecimal = []string{
	"DECIMAL", "NUMERIC", "FIXED", "DEC",
}

var dataTypeBool = []string{
	"BOOL", "BOOLEAN",
}

var dataTypeDate = []string{
	"DATE",
}

var dataTypeTime = []string{
	"TIME", "TIMETZ", "TIME WITHOUT TIME ZONE", "TIME WITH TIME ZONE",
}

var dataTypeTimestamp = []string{
	"TIMESTAMP", "DATETIME", "TIMESTAMPTZ",
	"TIMESTAMP WITHOUT TIME ZONE", "TIMESTAMP WITH TIME ZONE",
}

var dataTypeBin = []string{
	"BLOB", "TINYBLOB", "MEDIUMBLOB", "LONGBLOB", "LONG",
	"BINARY", "VARBINARY", "BYTEA",
	"BIT",
}

var dataTypeGeometry = []string{
	"GEOMETRY", "POINT", "LINESTRING", "POLYGON",
	"MULTIPOINT", "MULTILINESTRING", "MULTIPOLYGON", "GEOMETRYCOLLECTION",
	"GEOGRAPHY",
}

var dataTypeIP = []string{
	"INET", "CIDR",
}

// columnInfo describes how the values of one result column are decoded.
type columnInfo struct {
	name   string
	dbType string
	kind   Kind
	// elemKind is the endpoint kind of range columns.
	elemKind Kind
}

func newColumnInfo(name, dbType string) *columnInfo {
	t := normalizeColumnType(dbType)
	kind, ok := colTypeKindMap[t]
	if !ok {
		kind = KindString
	}
	return &columnInfo{
		name:     name,
		dbType:   t,
		kind:     kind,
		elemKind: rangeElemKindMap[t],
	}
}

// normalizeColumnType turns a declared type such as `int(11) unsigned` or
// `VARCHAR(255)` into its bare upper case name.
func normalizeColumnType(t string) string {
	t = strings.ToUpper(strings.TrimSpace(t))
	// TINYINT(1) is the MySQL boolean
	if strings.HasPrefix(t, "TINYINT(1)") && !strings.Contains(t, "UNSIGNED") {
		return "BOOLEAN"
	}
	if idx := strings.IndexByte(t, '('); idx >= 0 {
		rest := ""
		if end := strings.IndexByte(t[idx:], ')'); end >= 0 {
			rest = t[idx+end+1:]
		}
		t = strings.TrimSpace(t[:idx]) + rest
	}
	t = strings.TrimPrefix(t, "UNSIGNED ")
	t = strings.TrimSuffix(t, " UNSIGNED")
	t = strings.TrimSuffix(t, " ZEROFILL")
	return strings.TrimSpace(t)
}

// decodeValue converts a scanned driver value to a typed Value. Values which
// do not parse as their column kind are kept as strings.
func decodeValue(col *columnInfo, raw interface{}) Value {
	if raw == nil {
		return NullValue()
	}
	switch col.kind {
	case KindInteger:
		return decodeInteger(raw)
	case KindFloat:
		return decodeFloat(raw)
	case KindDecimal:
		return decodeDecimal(raw)
	case KindBoolean:
		return decodeBool(raw)
	case KindDate, KindTime, KindTimestamp:
		return decodeTime(col.kind, raw)
	case KindBinary:
		if b, ok := raw.([]byte); ok {
			return BinaryValue(b)
		}
	case KindGeometry:
		return decodeGeometry(raw)
	case KindIP:
		return decodeIP(rawText(raw))
	case KindRange:
		return decodeRange(col.elemKind, rawText(raw))
	}
	switch v := raw.(type) {
	case []byte:
		return StringValue(string(v))
	case time.Time:
		return TimestampValue(v)
	default:
		return ValueOf(v)
	}
}

func rawText(raw interface{}) string {
	switch v := raw.(type) {
	case []byte:
		return string(v)
	case string:
		return v
	default:
		return valueText(ValueOf(v))
	}
}

func decodeInteger(raw interface{}) Value {
	switch v := raw.(type) {
	case int64:
		return IntValue(v)
	case float64:
		if v == math.Trunc(v) && v >= math.MinInt64 && v < math.MaxInt64 {
			return IntValue(int64(v))
		}
		return FloatValue(v)
	case bool:
		if v {
			return IntValue(1)
		}
		return IntValue(0)
	}
	s := rawText(raw)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return IntValue(i)
	}
	if u, err := strconv.ParseUint(s, 10, 64); err == nil {
		return UintValue(u)
	}
	return StringValue(s)
}

func decodeFloat(raw interface{}) Value {
	switch v := raw.(type) {
	case float64:
		return FloatValue(v)
	case float32:
		return FloatValue(float64(v))
	case int64:
		return FloatValue(float64(v))
	}
	s := rawText(raw)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return FloatValue(f)
	}
	return StringValue(s)
}

func decodeDecimal(raw interface{}) Value {
	switch v := raw.(type) {
	case float64:
		return DecimalValue(decimal.NewFromFloat(v))
	case int64:
		return DecimalValue(decimal.NewFromInt(v))
	}
	s := rawText(raw)
	if d, err := decimal.NewFromString(s); err == nil {
		return DecimalValue(d)
	}
	return StringValue(s)
}

func decodeBool(raw interface{}) Value {
	switch v := raw.(type) {
	case bool:
		return BoolValue(v)
	case int64:
		return BoolValue(v != 0)
	}
	s := rawText(raw)
	switch strings.ToLower(s) {
	case "1", "t", "true", "y", "yes", "on":
		return BoolValue(true)
	case "0", "f", "false", "n", "no", "off":
		return BoolValue(false)
	}
	return StringValue(s)
}

var (
	dateLayouts = []string{dateLayout}
	timeLayouts = []string{
		"15:04:05.999999999",
		"15:04:05.999999999Z07:00",
		"15:04:05.999999999-07",
	}
	timestampLayouts = []string{
		"2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02T15:04:05.999999999Z07:00",
		"2006-01-02 15:04:05.999999999-07",
		dateLayout,
	}
)

func decodeTime(kind Kind, raw interface{}) Value {
	mk := TimestampValue
	layouts := timestampLayouts
	switch kind {
	case KindDate:
		mk, layouts = DateValue, dateLayouts
	case KindTime:
		mk, layouts = TimeValue, timeLayouts
	}
	if t, ok := raw.(time.Time); ok {
		return mk(t)
	}
	s := rawText(raw)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return mk(t)
		}
	}
	// zero dates and out of range values
	return StringValue(s)
}

// decodeGeometry accepts the MySQL internal format (4 byte SRID followed by
// WKB), plain WKB and hex encoded EWKB as sent by PostGIS.
func decodeGeometry(raw interface{}) Value {
	b, ok := raw.([]byte)
	if !ok {
		s := rawText(raw)
		decoded, err := hex.DecodeString(s)
		if err != nil {
			return StringValue(s)
		}
		b = decoded
	}
	if len(b) > 4 && (b[4] == 0 || b[4] == 1) {
		if g, err := wkb.Unmarshal(b[4:]); err == nil {
			return GeometryValue(g)
		}
	}
	if g, err := ewkb.Unmarshal(b); err == nil {
		return GeometryValue(g)
	}
	if g, err := wkb.Unmarshal(b); err == nil {
		return GeometryValue(g)
	}
	if s, ok := raw.(string); ok {
		return StringValue(s)
	}
	return BinaryValue(b)
}

func decodeIP(s string) Value {
	if strings.Contains(s, "/") {
		if p, err := netip.ParsePrefix(s); err == nil {
			return IPValue(p)
		}
		return StringValue(s)
	}
	if a, err := netip.ParseAddr(s); err == nil {
		return IPValue(netip.PrefixFrom(a, a.BitLen()))
	}
	return StringValue(s)
}

// decodeRange parses the text form of a PostgreSQL range, e.g. `[1,5)`,
// `(,"2020-01-01 00:00:00"]` or `empty`.
func decodeRange(elemKind Kind, s string) Value {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "empty") {
		return RangeValue(Range{Empty: true})
	}
	if len(s) < 3 || !strings.ContainsRune("[(", rune(s[0])) || !strings.ContainsRune("])", rune(s[len(s)-1])) {
		return StringValue(s)
	}
	begin, end, ok := splitRangeBounds(s[1 : len(s)-1])
	if !ok {
		return StringValue(s)
	}
	return RangeValue(Range{
		Begin:        decodeRangeBound(elemKind, begin, -1),
		End:          decodeRangeBound(elemKind, end, 1),
		ExcludeBegin: s[0] == '(',
		ExcludeEnd:   s[len(s)-1] == ')',
	})
}

func splitRangeBounds(s string) (string, string, bool) {
	quoted := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			quoted = !quoted
		case ',':
			if !quoted {
				return unquoteRangeBound(s[:i]), unquoteRangeBound(s[i+1:]), true
			}
		}
	}
	return "", "", false
}

func unquoteRangeBound(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
		s = strings.ReplaceAll(s, `\"`, `"`)
		s = strings.ReplaceAll(s, `\\`, `\`)
	}
	return s
}

func decodeRangeBound(elemKind Kind, s string, sign int) interface{} {
	switch strings.ToLower(s) {
	case "", "infinity", "-infinity":
		return math.Inf(sign)
	}
	return decodeValue(&columnInfo{kind: elemKind}, s)
}
