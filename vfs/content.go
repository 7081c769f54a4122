package vfs

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Document is the persisted form of a file: an ordered line array for
// UTF-8 text, or opaque bytes for binary content. The same JSON payload
// is stored as the S3 object body and as the Postgres content column,
// so a record is portable between stores.
type Document struct {
	Lines  []string `json:"content"`
	Binary bool     `json:"binary,omitempty"`
	Raw    []byte   `json:"raw,omitempty"`
}

// EncodeText builds a Document from UTF-8 text, splitting on newlines.
// Empty text encodes as a single empty line so the round trip is exact.
func EncodeText(text string) Document {
	return Document{Lines: strings.Split(text, "\n")}
}

// EncodeBytes builds a Document from raw bytes. Valid UTF-8 is stored
// line-oriented like text; anything else bypasses line splitting and is
// kept as opaque bytes.
func EncodeBytes(data []byte) Document {
	if utf8.Valid(data) {
		return EncodeText(string(data))
	}
	return Document{Binary: true, Raw: data}
}

// Marshal serializes the document to its persisted JSON payload.
func (d Document) Marshal() ([]byte, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return b, nil
}

// DecodeDocument parses a persisted payload back into a Document.
func DecodeDocument(payload []byte) (Document, error) {
	var d Document
	if err := json.Unmarshal(payload, &d); err != nil {
		return Document{}, fmt.Errorf("decode document: %w", err)
	}
	return d, nil
}

// Text reconstructs the document as a string. For binary documents this
// is the raw bytes reinterpreted, used only for in-place editing.
func (d Document) Text() string {
	if d.Binary {
		return string(d.Raw)
	}
	return strings.Join(d.Lines, "\n")
}

// Bytes reconstructs the document's raw content for download.
func (d Document) Bytes() []byte {
	if d.Binary {
		return d.Raw
	}
	return []byte(strings.Join(d.Lines, "\n"))
}

// ByteLen is the logical content length in bytes.
func (d Document) ByteLen() int64 {
	if d.Binary {
		return int64(len(d.Raw))
	}
	n := 0
	for _, l := range d.Lines {
		n += len(l)
	}
	if len(d.Lines) > 1 {
		n += len(d.Lines) - 1 // newlines
	}
	return int64(n)
}

// RenderNumbered formats a 1-based line window as cat -n style output.
// An offset past the last line yields an empty string. offset<=0 means
// the first line, limit<=0 means no limit.
func (d Document) RenderNumbered(offset, limit int) string {
	if d.Binary {
		// No line structure to number; binary reads hand back the raw
		// content so edits on mixed stores stay possible.
		return string(d.Raw)
	}
	if offset <= 0 {
		offset = 1
	}
	if offset > len(d.Lines) {
		return ""
	}
	end := len(d.Lines)
	if limit > 0 && offset-1+limit < end {
		end = offset - 1 + limit
	}

	var b strings.Builder
	for i := offset - 1; i < end; i++ {
		if i > offset-1 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d\t%s", i+1, d.Lines[i])
	}
	return b.String()
}

// ReplaceText performs the in-place substring edit on a document. With
// replaceAll false the target must occur exactly once. It returns the
// updated document and the number of replacements, or the expected
// condition (NoMatch, AmbiguousMatch) with the document unchanged.
func (d Document) ReplaceText(path, oldText, newText string, replaceAll bool) (Document, int, *OpError) {
	text := d.Text()
	count := strings.Count(text, oldText)
	switch {
	case oldText == "" || count == 0:
		return d, 0, ErrNoMatch(path, oldText)
	case count > 1 && !replaceAll:
		return d, 0, ErrAmbiguousMatch(path, count)
	}

	replaced := strings.ReplaceAll(text, oldText, newText)
	if d.Binary {
		return Document{Binary: true, Raw: []byte(replaced)}, count, nil
	}
	return EncodeText(replaced), count, nil
}
