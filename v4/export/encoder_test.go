// Copyright 2021 PingCAP, Inc. Licensed under Apache-2.0.

package export

import (
	"bytes"
	"math"
	"net/netip"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func encodeToString(t *testing.T, enc *Encoder, v Value) string {
	var bf bytes.Buffer
	require.NoError(t, enc.Encode(&bf, v))
	return bf.String()
}

func TestEncodeScalars(t *testing.T) {
	enc := newEncoder(DefaultFilesDir)
	loc := time.FixedZone("UTC+8", 8*3600)
	cases := []struct {
		v   Value
		exp string
	}{
		{NullValue(), "nil"},
		{StringValue(`say "hi"`), `"say \"hi\""`},
		{IntValue(-42), "-42"},
		{UintValue(math.MaxUint64), "18446744073709551615"},
		{FloatValue(3.5), "3.5"},
		{FloatValue(2), "2.0"},
		{BoolValue(true), "true"},
		{BoolValue(false), "false"},
		{DecimalValue(decimal.RequireFromString("2.72")), `"2.72"`},
		{DecimalValue(decimal.RequireFromString("2.50")), `"2.5"`},
		{DecimalValue(decimal.RequireFromString("100")), `"100.0"`},
		{DecimalValue(decimal.RequireFromString("100.00")), `"100.0"`},
		{DecimalValue(decimal.RequireFromString("-3")), `"-3.0"`},
		{DecimalValue(decimal.New(12, 3)), `"12000.0"`},
		{DateValue(mustParseDate("1863-11-19")), `"1863-11-19"`},
		{TimeValue(time.Date(2000, 1, 1, 9, 30, 5, 0, time.UTC)), `"09:30:05"`},
		{TimestampValue(time.Date(2021, 5, 1, 18, 0, 0, 0, loc)), `"2021-05-01 10:00:00"`},
		{BinaryValue([]byte("a\x00b")), `"a\x00b"`},
		{IPValue(netip.MustParsePrefix("192.168.0.1/32")), `"192.168.0.1"`},
		{IPValue(netip.MustParsePrefix("10.0.0.0/8")), `"10.0.0.0/8"`},
		{ValueOf(netip.MustParseAddr("::1")), `"::1"`},
		{GeometryValue(geom.NewPoint(geom.XY).MustSetCoords(geom.Coord{1, 2})), `"POINT (1 2)"`},
		{ValueOf(int8(7)), "7"},
	}
	for _, c := range cases {
		require.Equal(t, c.exp, encodeToString(t, enc, c.v), "value %s", c.v)
	}
	require.Empty(t, enc.takeOps())
}

func TestEncodeRange(t *testing.T) {
	enc := newEncoder(DefaultFilesDir)
	cases := []struct {
		r   Range
		exp string
	}{
		{Range{Begin: 1, End: 3}, `"[1,3]"`},
		{Range{Begin: 1, End: 3, ExcludeEnd: true}, `"[1,3)"`},
		{Range{Begin: 1, End: math.Inf(1)}, `"[1,]"`},
		{Range{Begin: math.Inf(-1), End: 1}, `"[,1]"`},
		{Range{Begin: math.Inf(-1), End: math.Inf(1)}, `"[,]"`},
		{Range{Begin: nil, End: nil}, `"[,]"`},
		{Range{Begin: 1, End: 3, ExcludeBegin: true}, `"(1,3]"`},
		{Range{Empty: true}, `"empty"`},
		{Range{Begin: 1.5, End: 2.5}, `"[1.5,2.5]"`},
		{Range{Begin: decimal.NewFromInt(1), End: decimal.RequireFromString("2.25")}, `"[1.0,2.25]"`},
		{
			Range{
				Begin:      DateValue(mustParseDate("2020-01-01")),
				End:        DateValue(mustParseDate("2020-02-01")),
				ExcludeEnd: true,
			},
			`"[2020-01-01,2020-02-01)"`,
		},
	}
	for _, c := range cases {
		require.Equal(t, c.exp, encodeToString(t, enc, RangeValue(c.r)))
	}
}

func TestEncodeRichText(t *testing.T) {
	enc := newEncoder(DefaultFilesDir)
	require.Equal(t, `"<div>Hello <strong>world</strong></div>"`,
		encodeToString(t, enc, RichTextValue(&RichText{Body: "<div>Hello <strong>world</strong></div>"})))
	require.Equal(t, "nil", encodeToString(t, enc, RichTextValue(nil)))
}

func TestEncodeAttachments(t *testing.T) {
	enc := newEncoder(DefaultFilesDir)
	blobs := newMockBlobService()

	require.Equal(t, "nil", encodeToString(t, enc, AttachmentValue(nil)))
	require.Equal(t, "[]", encodeToString(t, enc, AttachmentsValue(nil)))
	require.Equal(t, "[]", encodeToString(t, enc, AttachmentsValue([]*Attachment{})))
	require.Empty(t, enc.takeOps())

	icon := &Attachment{Filename: "icon.png", ContentType: "image/png", Key: "abc", Service: blobs}
	require.Equal(t,
		`{io: File.open(Rails.root.join("db/seeds/files", "icon.png")), filename: "icon.png", content_type: "image/png"}`,
		encodeToString(t, enc, AttachmentValue(icon)))
	ops := enc.takeOps()
	require.Len(t, ops, 1)
	require.Equal(t, "icon.png", ops[0].name)
	require.Same(t, icon, ops[0].attachment)

	photos := []*Attachment{
		{Filename: "a.jpg", ContentType: "image/jpeg", Key: "k1", Service: blobs},
		{Filename: "../b.txt", Key: "k2", Service: blobs},
	}
	require.Equal(t,
		`[{io: File.open(Rails.root.join("db/seeds/files", "a.jpg")), filename: "a.jpg", content_type: "image/jpeg"}, `+
			`{io: File.open(Rails.root.join("db/seeds/files", "b.txt")), filename: "../b.txt", content_type: nil}]`,
		encodeToString(t, enc, AttachmentsValue(photos)))
	require.Len(t, enc.takeOps(), 2)

	var bf bytes.Buffer
	require.Error(t, enc.Encode(&bf, AttachmentValue(&Attachment{Filename: "/"})))
}

type point struct{ x, y int }

func (p point) String() string { return "point" }

func TestEncodeDefaultAndRegister(t *testing.T) {
	enc := newEncoder(DefaultFilesDir)
	require.Equal(t, `"point"`, encodeToString(t, enc, ValueOf(point{1, 2})))
	require.Equal(t, `"[1 2]"`, encodeToString(t, enc, ValueOf([]int{1, 2})))
	require.Equal(t, "nil", encodeToString(t, enc, OtherValue(nil)))

	const kindPoint Kind = 200
	RegisterEncoder(kindPoint, func(_ *Encoder, bf *bytes.Buffer, v Value) error {
		p := v.Interface().(point)
		bf.WriteString("[")
		bf.WriteString(valueText(IntValue(int64(p.x))))
		bf.WriteString(", ")
		bf.WriteString(valueText(IntValue(int64(p.y))))
		bf.WriteString("]")
		return nil
	})
	defer delete(kindEncoderMap, kindPoint)
	require.Equal(t, "[1, 2]", encodeToString(t, enc, Value{kind: kindPoint, v: point{1, 2}}))
	require.Equal(t, "kind(200)", kindPoint.String())
}
