// Copyright 2021 PingCAP, Inc. Licensed under Apache-2.0.

package export

import (
	"fmt"
	"math"
	"net"
	"net/netip"
	"time"

	"github.com/shopspring/decimal"
	"github.com/twpayne/go-geom"
)

// Kind is the tag of a Value.
type Kind uint8

// Value kinds understood by the encoder.
const (
	KindNull Kind = iota
	KindString
	KindInteger
	KindFloat
	KindDecimal
	KindBoolean
	KindDate
	KindTime
	KindTimestamp
	KindBinary
	KindRange
	KindGeometry
	KindIP
	KindAttachment
	KindAttachments
	KindRichText
	// KindOther holds any Go value the dumper has no dedicated rule for.
	KindOther
)

var kindNames = [...]string{
	KindNull:        "null",
	KindString:      "string",
	KindInteger:     "integer",
	KindFloat:       "float",
	KindDecimal:     "decimal",
	KindBoolean:     "boolean",
	KindDate:        "date",
	KindTime:        "time",
	KindTimestamp:   "timestamp",
	KindBinary:      "binary",
	KindRange:       "range",
	KindGeometry:    "geometry",
	KindIP:          "ip",
	KindAttachment:  "attachment",
	KindAttachments: "attachments",
	KindRichText:    "rich_text",
	KindOther:       "other",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is one typed attribute value of a record.
type Value struct {
	kind Kind
	v    interface{}
}

// Kind returns the tag of the value.
func (v Value) Kind() Kind {
	return v.kind
}

// Interface returns the underlying Go value.
func (v Value) Interface() interface{} {
	return v.v
}

// IsNull reports whether the value is the null value.
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

func (v Value) String() string {
	return fmt.Sprintf("%s(%v)", v.kind, v.v)
}

// NullValue is SQL NULL, rendered as nil.
func NullValue() Value { return Value{kind: KindNull} }

// StringValue wraps text.
func StringValue(s string) Value { return Value{kind: KindString, v: s} }

// IntValue wraps a signed integer.
func IntValue(i int64) Value { return Value{kind: KindInteger, v: i} }

// UintValue wraps an unsigned integer, for columns beyond the int64 range.
func UintValue(u uint64) Value { return Value{kind: KindInteger, v: u} }

// FloatValue wraps a binary floating point number.
func FloatValue(f float64) Value { return Value{kind: KindFloat, v: f} }

// DecimalValue wraps an exact decimal.
func DecimalValue(d decimal.Decimal) Value { return Value{kind: KindDecimal, v: d} }

// BoolValue wraps a boolean.
func BoolValue(b bool) Value { return Value{kind: KindBoolean, v: b} }

// DateValue keeps only the calendar date of t.
func DateValue(t time.Time) Value { return Value{kind: KindDate, v: t} }

// TimeValue keeps only the time of day of t.
func TimeValue(t time.Time) Value { return Value{kind: KindTime, v: t} }

// TimestampValue wraps a point in time, rendered in UTC.
func TimestampValue(t time.Time) Value { return Value{kind: KindTimestamp, v: t} }

// BinaryValue wraps raw bytes.
func BinaryValue(b []byte) Value { return Value{kind: KindBinary, v: b} }

// RangeValue wraps an interval.
func RangeValue(r Range) Value { return Value{kind: KindRange, v: r} }

// GeometryValue wraps a spatial value, rendered as WKT.
func GeometryValue(g geom.T) Value { return Value{kind: KindGeometry, v: g} }

// IPValue wraps an address or a network. A single address prefix renders
// without its length.
func IPValue(p netip.Prefix) Value { return Value{kind: KindIP, v: p} }

// RichTextValue wraps an Action Text body, nil when the record has none.
func RichTextValue(r *RichText) Value { return Value{kind: KindRichText, v: r} }

// AttachmentsValue wraps the attachments of a has_many_attached association.
func AttachmentsValue(as []*Attachment) Value { return Value{kind: KindAttachments, v: as} }

// AttachmentValue wraps a single attachment reference, a nil attachment means
// nothing is attached.
func AttachmentValue(a *Attachment) Value {
	return Value{kind: KindAttachment, v: a}
}

// OtherValue wraps a Go value without a dedicated encoding rule.
func OtherValue(x interface{}) Value {
	return Value{kind: KindOther, v: x}
}

// ValueOf infers the kind of a plain Go value. time.Time is taken as a
// timestamp; use DateValue or TimeValue for the narrower kinds.
func ValueOf(x interface{}) Value {
	switch v := x.(type) {
	case nil:
		return NullValue()
	case Value:
		return v
	case string:
		return StringValue(v)
	case []byte:
		return BinaryValue(v)
	case bool:
		return BoolValue(v)
	case int:
		return IntValue(int64(v))
	case int8:
		return IntValue(int64(v))
	case int16:
		return IntValue(int64(v))
	case int32:
		return IntValue(int64(v))
	case int64:
		return IntValue(v)
	case uint:
		return UintValue(uint64(v))
	case uint8:
		return UintValue(uint64(v))
	case uint16:
		return UintValue(uint64(v))
	case uint32:
		return UintValue(uint64(v))
	case uint64:
		return UintValue(v)
	case float32:
		return FloatValue(float64(v))
	case float64:
		return FloatValue(v)
	case decimal.Decimal:
		return DecimalValue(v)
	case time.Time:
		return TimestampValue(v)
	case netip.Addr:
		return IPValue(netip.PrefixFrom(v, v.BitLen()))
	case netip.Prefix:
		return IPValue(v)
	case net.IP:
		if addr, ok := netip.AddrFromSlice(v); ok {
			addr = addr.Unmap()
			return IPValue(netip.PrefixFrom(addr, addr.BitLen()))
		}
		return OtherValue(v)
	case Range:
		return RangeValue(v)
	case *Range:
		if v == nil {
			return NullValue()
		}
		return RangeValue(*v)
	case geom.T:
		return GeometryValue(v)
	case *Attachment:
		return AttachmentValue(v)
	case []*Attachment:
		return AttachmentsValue(v)
	case *RichText:
		return RichTextValue(v)
	default:
		return OtherValue(v)
	}
}

// Range is an interval value. Begin and End may be any value ValueOf accepts;
// an endpoint that is nil or reports itself infinite is unbounded.
type Range struct {
	Begin        interface{}
	End          interface{}
	ExcludeBegin bool
	ExcludeEnd   bool
	// Empty marks a range that contains no point at all.
	Empty bool
}

// Infiniter is implemented by endpoint values that can be infinite.
type Infiniter interface {
	IsInfinite() bool
}

func isInfinite(x interface{}) bool {
	switch v := x.(type) {
	case float64:
		return math.IsInf(v, 0)
	case float32:
		return math.IsInf(float64(v), 0)
	case Value:
		return isInfinite(v.v)
	case Infiniter:
		return v.IsInfinite()
	}
	return false
}

// RichText is a rendered rich text body (HTML markup).
type RichText struct {
	Body string
}
