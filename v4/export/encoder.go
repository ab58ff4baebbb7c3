// Copyright 2021 PingCAP, Inc. Licensed under Apache-2.0.

package export

import (
	"bytes"
	"fmt"
	"net/netip"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"
)

const (
	dateLayout      = "2006-01-02"
	timeLayout      = "15:04:05"
	timestampLayout = "2006-01-02 15:04:05"
)

// EncodeFunc writes the Ruby literal of v into bf.
type EncodeFunc func(enc *Encoder, bf *bytes.Buffer, v Value) error

var kindEncoderMap = map[Kind]EncodeFunc{}

func init() {
	initKindEncoderMap()
}

func initKindEncoderMap() {
	kindEncoderMap[KindNull] = encodeNull
	kindEncoderMap[KindInteger] = encodeBare
	kindEncoderMap[KindFloat] = encodeBare
	kindEncoderMap[KindBoolean] = encodeBare
	for _, k := range []Kind{
		KindString, KindBinary, KindDecimal, KindIP, KindGeometry,
		KindDate, KindTime, KindTimestamp,
	} {
		kindEncoderMap[k] = encodeQuoted
	}
	kindEncoderMap[KindRange] = encodeRange
	kindEncoderMap[KindAttachment] = encodeAttachment
	kindEncoderMap[KindAttachments] = encodeAttachments
	kindEncoderMap[KindRichText] = encodeRichText
}

// RegisterEncoder replaces the encoding rule of kind. It is not safe to call
// concurrently with a dump.
func RegisterEncoder(kind Kind, fn EncodeFunc) {
	kindEncoderMap[kind] = fn
}

// Encoder renders values as Ruby literals and collects the blobs the
// rendered attachment literals refer to.
type Encoder struct {
	filesDir string
	ops      []materializeOp
}

func newEncoder(filesDir string) *Encoder {
	return &Encoder{filesDir: filesDir}
}

// Encode writes the literal of v into bf. Kinds without a registered rule
// use the generic quoted text rendering.
func (e *Encoder) Encode(bf *bytes.Buffer, v Value) error {
	fn, ok := kindEncoderMap[v.kind]
	if !ok {
		fn = encodeDefault
	}
	return fn(e, bf, v)
}

// takeOps returns the collected blob copies and resets the list.
func (e *Encoder) takeOps() []materializeOp {
	ops := e.ops
	e.ops = nil
	return ops
}

func encodeNull(_ *Encoder, bf *bytes.Buffer, _ Value) error {
	bf.WriteString("nil")
	return nil
}

func encodeBare(_ *Encoder, bf *bytes.Buffer, v Value) error {
	bf.WriteString(valueText(v))
	return nil
}

func encodeQuoted(_ *Encoder, bf *bytes.Buffer, v Value) error {
	if b, ok := v.v.([]byte); ok {
		writeRubyString(bf, b)
		return nil
	}
	writeRubyString(bf, []byte(valueText(v)))
	return nil
}

func encodeDefault(_ *Encoder, bf *bytes.Buffer, v Value) error {
	if v.v == nil {
		bf.WriteString("nil")
		return nil
	}
	writeRubyString(bf, []byte(valueText(v)))
	return nil
}

func encodeRange(_ *Encoder, bf *bytes.Buffer, v Value) error {
	writeRubyString(bf, []byte(rangeText(v.v.(Range))))
	return nil
}

func encodeRichText(_ *Encoder, bf *bytes.Buffer, v Value) error {
	rt, _ := v.v.(*RichText)
	if rt == nil {
		bf.WriteString("nil")
		return nil
	}
	writeRubyString(bf, []byte(rt.Body))
	return nil
}

func encodeAttachment(e *Encoder, bf *bytes.Buffer, v Value) error {
	a, _ := v.v.(*Attachment)
	if a == nil {
		bf.WriteString("nil")
		return nil
	}
	return e.writeAttachment(bf, a)
}

func encodeAttachments(e *Encoder, bf *bytes.Buffer, v Value) error {
	as, _ := v.v.([]*Attachment)
	bf.WriteByte('[')
	n := 0
	for _, a := range as {
		if a == nil {
			continue
		}
		if n > 0 {
			bf.WriteString(", ")
		}
		if err := e.writeAttachment(bf, a); err != nil {
			return err
		}
		n++
	}
	bf.WriteByte(']')
	return nil
}

// writeAttachment writes
// `{io: File.open(Rails.root.join("db/seeds/files", "name")), filename: "name", content_type: "type"}`.
func (e *Encoder) writeAttachment(bf *bytes.Buffer, a *Attachment) error {
	name, err := seedFileName(a.Filename)
	if err != nil {
		return err
	}
	e.ops = append(e.ops, materializeOp{attachment: a, name: name})

	bf.WriteString("{io: File.open(Rails.root.join(")
	writeRubyString(bf, []byte(e.filesDir))
	bf.WriteString(", ")
	writeRubyString(bf, []byte(name))
	bf.WriteString(")), filename: ")
	writeRubyString(bf, []byte(a.Filename))
	bf.WriteString(", content_type: ")
	if a.ContentType == "" {
		bf.WriteString("nil")
	} else {
		writeRubyString(bf, []byte(a.ContentType))
	}
	bf.WriteByte('}')
	return nil
}

// rangeText renders r like `[1,3)`. Unbounded endpoints render empty.
func rangeText(r Range) string {
	if r.Empty {
		return "empty"
	}
	lb, rb := '[', ']'
	if r.ExcludeBegin {
		lb = '('
	}
	if r.ExcludeEnd {
		rb = ')'
	}
	return fmt.Sprintf("%c%s,%s%c", lb, rangeBound(r.Begin), rangeBound(r.End), rb)
}

func rangeBound(x interface{}) string {
	if x == nil || isInfinite(x) {
		return ""
	}
	return valueText(ValueOf(x))
}

// valueText is the unquoted canonical text of a value.
func valueText(v Value) string {
	switch x := v.v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return rubyFloat(x)
	case bool:
		return strconv.FormatBool(x)
	case decimal.Decimal:
		return decimalText(x)
	case time.Time:
		return timeText(v.kind, x)
	case netip.Prefix:
		if x.IsSingleIP() {
			return x.Addr().String()
		}
		return x.String()
	case geom.T:
		s, err := wkt.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return s
	case Range:
		return rangeText(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// decimalText renders d in plain notation with at least one fractional digit,
// like `100.0` and `2.72`.
func decimalText(d decimal.Decimal) string {
	if d.IsInteger() {
		return d.Truncate(0).String() + ".0"
	}
	return d.String()
}

func timeText(kind Kind, t time.Time) string {
	switch kind {
	case KindDate:
		return t.Format(dateLayout)
	case KindTime:
		return t.Format(timeLayout)
	default:
		return t.UTC().Format(timestampLayout)
	}
}
