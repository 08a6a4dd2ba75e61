package merge

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"phish-merge/internal/domain"
)

const utf8BOM = "\ufeff"

// LoadSource reads a comma-delimited file with a header row into a
// SourceTable. Any failure is reported as a *domain.LoadError.
func LoadSource(path string) (*domain.SourceTable, error) {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		return nil, &domain.LoadError{Path: path, Err: err}
	}
	defer f.Close() //nolint:errcheck

	src, err := readSource(f)
	if err != nil {
		return nil, &domain.LoadError{Path: path, Err: err}
	}
	src.Path = path
	return src, nil
}

func readSource(r io.Reader) (*domain.SourceTable, error) {
	cr := csv.NewReader(newQuotedCRReader(r))

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty file: no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	unescapeRecord(header)
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if rows == nil {
		rows = [][]string{}
	}
	for _, row := range rows {
		unescapeRecord(row)
	}

	return &domain.SourceTable{
		Columns: header,
		Rows:    rows,
	}, nil
}

const (
	escByte = 0x00
	escCR   = 'r'
)

// quotedCRReader rewrites every CR inside a quoted field as escByte+escCR,
// since csv.Reader drops the CR of a CRLF even within quotes. escByte itself
// is doubled so unescapeField can reverse the mapping. CRs outside quotes
// are record terminators and pass through untouched.
type quotedCRReader struct {
	r          *bufio.Reader
	inQuotes   bool
	pending    byte
	hasPending bool
}

func newQuotedCRReader(r io.Reader) *quotedCRReader {
	return &quotedCRReader{r: bufio.NewReader(r)}
}

func (q *quotedCRReader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if q.hasPending {
			p[n] = q.pending
			q.hasPending = false
			n++
			continue
		}
		b, err := q.r.ReadByte()
		if err != nil {
			if n > 0 {
				return n, nil
			}
			return 0, err
		}
		switch {
		case b == '"':
			q.inQuotes = !q.inQuotes
			p[n] = b
		case b == escByte:
			p[n] = escByte
			q.pending, q.hasPending = escByte, true
		case b == '\r' && q.inQuotes:
			p[n] = escByte
			q.pending, q.hasPending = escCR, true
		default:
			p[n] = b
		}
		n++
	}
	return n, nil
}

func unescapeRecord(fields []string) {
	for i, f := range fields {
		fields[i] = unescapeField(f)
	}
}

func unescapeField(s string) string {
	if strings.IndexByte(s, escByte) < 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == escByte && i+1 < len(s) {
			i++
			if s[i] == escCR {
				b.WriteByte('\r')
			} else {
				b.WriteByte(s[i])
			}
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
