// Copyright 2021 PingCAP, Inc. Licensed under Apache-2.0.

package export

import (
	"bytes"
)

// recordFormatter renders one record as a Ruby hash (create mode) or a
// positional array (import mode).
type recordFormatter struct {
	enc     *Encoder
	exclude excludeSet
	// columns is the shared attribute order of import mode, nil otherwise.
	columns []string
}

func newRecordFormatter(enc *Encoder, exclude excludeSet, columns []string) *recordFormatter {
	return &recordFormatter{enc: enc, exclude: exclude, columns: columns}
}

// format writes the literal of r into bf and returns the blob copies the
// literal depends on.
func (f *recordFormatter) format(bf *bytes.Buffer, r Record) ([]materializeOp, error) {
	var err error
	if f.columns != nil {
		err = f.formatPositional(bf, r)
	} else {
		err = f.formatHash(bf, r)
	}
	ops := f.enc.takeOps()
	if err != nil {
		return nil, err
	}
	return ops, nil
}

func (f *recordFormatter) formatHash(bf *bytes.Buffer, r Record) error {
	bf.WriteByte('{')
	for i, a := range filterAttributes(r.Attributes(), f.exclude) {
		if i > 0 {
			bf.WriteString(", ")
		}
		bf.WriteString(rubyHashKey(a.Name))
		bf.WriteByte(' ')
		if err := f.enc.Encode(bf, a.Value); err != nil {
			return err
		}
	}
	bf.WriteByte('}')
	return nil
}

func (f *recordFormatter) formatPositional(bf *bytes.Buffer, r Record) error {
	bf.WriteByte('[')
	for i, name := range f.columns {
		if i > 0 {
			bf.WriteString(", ")
		}
		v, ok := r.Get(name)
		if !ok {
			v = NullValue()
		}
		if err := f.enc.Encode(bf, v); err != nil {
			return err
		}
	}
	bf.WriteByte(']')
	return nil
}
