package core

// ingest.go turns a declared source into a RecordCollection.
//
// The pipeline is validate -> read -> parse. Validation looks only at the
// declared name and media type; reading is the one asynchronous step; parsing
// is a pure function over the decoded text.

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
)

// DefaultMaxSourceSize caps how much of a source is read (100MB).
const DefaultMaxSourceSize int64 = 100 * 1024 * 1024

const (
	fieldSeparator = ","
	lineSeparator  = "\n"
	csvExtension   = ".csv"
	csvMediaType   = "text/csv"
)

// Source is a file offered for import.
type Source struct {
	Name      string    // file name as declared by the client
	MediaType string    // declared media type, may be empty
	Reader    io.Reader // content
	Size      int64     // declared size, 0 if unknown
}

// ReadResult is delivered once by ReadSource.
type ReadResult struct {
	Text  string
	Bytes int64
	Err   error
}

// ValidateSource accepts a source whose name ends in .csv (any case) or whose
// media type is text/csv. Either one is enough.
func ValidateSource(name, mediaType string) error {
	if strings.EqualFold(filepath.Ext(name), csvExtension) {
		return nil
	}
	if mt, _, err := mime.ParseMediaType(mediaType); err == nil && mt == csvMediaType {
		return nil
	}
	return fmt.Errorf("%w: %q has type %q", ErrInvalidFormat, name, mediaType)
}

// ReadSource reads r to completion in a separate goroutine and delivers
// exactly one result on the returned channel. A UTF-8 BOM is dropped and
// invalid UTF-8 is replaced on the fly. Content larger than maxBytes,
// I/O failures and cancellation are reported as ErrRead.
func ReadSource(ctx context.Context, r io.Reader, maxBytes int64) <-chan ReadResult {
	out := make(chan ReadResult, 1)
	if maxBytes <= 0 {
		maxBytes = DefaultMaxSourceSize
	}

	go func() {
		defer close(out)

		counted := WrapForStreaming(&contextReader{ctx: ctx, r: r}, 0)
		data, err := io.ReadAll(io.LimitReader(counted, maxBytes+1))
		if err != nil {
			out <- ReadResult{Err: fmt.Errorf("%w: %w", ErrRead, err)}
			return
		}
		if int64(len(data)) > maxBytes {
			out <- ReadResult{Err: fmt.Errorf("%w: content exceeds %d bytes", ErrRead, maxBytes)}
			return
		}
		out <- ReadResult{Text: string(data), Bytes: counted.BytesRead}
	}()

	return out
}

// contextReader stops reading once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// Parse converts delimited text into a RecordCollection.
//
// The first line is the header. Every later line that is not blank becomes a
// record, with values assigned to header names by position: extra values are
// dropped and missing ones become "". Names and values are trimmed. There is
// no quoting, so a comma inside a value splits it. When a header name repeats,
// the last column with that name provides the value.
//
// Parse fails only with ErrInvalidFormat, and only for empty input.
func Parse(raw string) (RecordCollection, error) {
	raw = strings.TrimPrefix(raw, "\ufeff")
	if strings.TrimSpace(raw) == "" {
		return RecordCollection{}, fmt.Errorf("%w: file is empty", ErrInvalidFormat)
	}

	lines := strings.Split(raw, lineSeparator)
	schema := Schema(splitFields(lines[0]))

	records := make([]Record, 0, len(lines)-1)
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		records = append(records, zipRecord(schema, splitFields(line)))
	}

	return RecordCollection{Schema: schema, Records: records}, nil
}

// ParseReader reads and parses r synchronously.
func ParseReader(ctx context.Context, r io.Reader, maxBytes int64) (RecordCollection, error) {
	res := <-ReadSource(ctx, r, maxBytes)
	if res.Err != nil {
		return RecordCollection{}, res.Err
	}
	return Parse(res.Text)
}

func splitFields(line string) []string {
	fields := strings.Split(line, fieldSeparator)
	for i, f := range fields {
		fields[i] = strings.TrimSpace(f)
	}
	return fields
}

func zipRecord(schema Schema, values []string) Record {
	rec := make(Record, len(schema))
	for i, name := range schema {
		if i < len(values) {
			rec[name] = values[i]
		} else {
			rec[name] = ""
		}
	}
	return rec
}
