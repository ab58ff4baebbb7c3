// Copyright 2021 PingCAP, Inc. Licensed under Apache-2.0.

package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	tcontext "github.com/pingcap/seed-dumpling/v4/context"
)

type mockStringWriter struct {
	buf string
}

func (m *mockStringWriter) WriteString(s string) (int, error) {
	if s == "poison" {
		return 0, fmt.Errorf("poison_error")
	}
	m.buf = s
	return len(s), nil
}

type mockStringCollector struct {
	buf string
}

func (m *mockStringCollector) WriteString(s string) (int, error) {
	m.buf += s
	return len(s), nil
}

// mockPagedSource is a PagedSource over records which records its fetches.
type mockPagedSource struct {
	model   string
	names   []string
	records []Record
	ordered bool

	// orderedByPK is set on the source returned by OrderByPrimaryKey.
	orderedByPK bool
	fetches     [][2]int
	fetchErr    error
	countErr    error
}

func newMockPagedSource(model string, records ...Record) *mockPagedSource {
	s := &mockPagedSource{model: model, records: records}
	if len(records) > 0 {
		for _, a := range records[0].Attributes() {
			s.names = append(s.names, a.Name)
		}
	}
	return s
}

func (s *mockPagedSource) ModelName() string        { return s.model }
func (s *mockPagedSource) AttributeNames() []string { return s.names }
func (s *mockPagedSource) Ordered() bool            { return s.ordered || s.orderedByPK }

func (s *mockPagedSource) Count(context.Context) (int, error) {
	if s.countErr != nil {
		return 0, s.countErr
	}
	return len(s.records), nil
}

func (s *mockPagedSource) OrderByPrimaryKey() PagedSource {
	s.orderedByPK = true
	return s
}

func (s *mockPagedSource) Fetch(_ context.Context, offset, limit int) ([]Record, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	s.fetches = append(s.fetches, [2]int{offset, limit})
	end := offset + limit
	if end > len(s.records) {
		end = len(s.records)
	}
	return s.records[offset:end], nil
}

// mockBlobService serves blobs from memory. Blobs in paths are reported as
// locally stored at that path.
type mockBlobService struct {
	mu       sync.Mutex
	blobs    map[string][]byte
	paths    map[string]string
	opens    int
	failures int
	openErr  error
}

func newMockBlobService() *mockBlobService {
	return &mockBlobService{
		blobs: map[string][]byte{},
		paths: map[string]string{},
	}
}

func (s *mockBlobService) PathFor(key string) (string, bool) {
	p, ok := s.paths[key]
	return p, ok
}

func (s *mockBlobService) Open(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opens++
	if s.failures > 0 {
		s.failures--
		return nil, fmt.Errorf("connection reset")
	}
	if s.openErr != nil {
		return nil, s.openErr
	}
	b, ok := s.blobs[key]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func sampleRecord(id int) Record {
	return NewRecord(
		Attr("id", id),
		Attr("string", "string"),
		Attr("decimal", decimal.RequireFromString("2.72")),
		Attr("date", DateValue(mustParseDate("1863-11-19"))),
		Attr("created_at", TimestampValue(mustParseTimestamp("2021-01-01 10:00:00"))),
		Attr("updated_at", TimestampValue(mustParseTimestamp("2021-01-01 10:00:00"))),
	)
}

func testContext() *tcontext.Context {
	return tcontext.Background()
}

func mustParseDate(s string) time.Time {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func mustParseTimestamp(s string) time.Time {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}
