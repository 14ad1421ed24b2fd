// Package document reads structural information from PDF files.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ledongthuc/pdf"

	"github.com/pdfview/pdfview/internal/protocol"
)

// ErrInvalid is returned when a file is not a complete PDF.
var ErrInvalid = errors.New("document: not a complete PDF")

var (
	header  = []byte("%PDF-")
	trailer = []byte("%%EOF")
)

// TrailerWindow is how many bytes at the end of a file are searched for the
// end-of-file marker.
const TrailerWindow = 1024

// Info describes a parsed document.
type Info struct {
	Pages   int                    `json:"pages"`
	Outline []protocol.OutlineNode `json:"outline,omitempty"`
}

// CheckMarkers reports whether the file starts with the PDF signature and
// carries an end-of-file marker near its end. It does not parse the body.
func CheckMarkers(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("document: opening %s: %w", path, err)
	}
	defer f.Close()

	head := make([]byte, len(header))
	if _, err := io.ReadFull(f, head); err != nil {
		return fmt.Errorf("%w: %s: short header", ErrInvalid, path)
	}
	if !bytes.Equal(head, header) {
		return fmt.Errorf("%w: %s: missing %s signature", ErrInvalid, path, header)
	}

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("document: stat %s: %w", path, err)
	}
	offset := info.Size() - TrailerWindow
	if offset < 0 {
		offset = 0
	}
	tail := make([]byte, info.Size()-offset)
	if _, err := f.ReadAt(tail, offset); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("document: reading %s: %w", path, err)
	}
	if !bytes.Contains(tail, trailer) {
		return fmt.Errorf("%w: %s: missing %s marker", ErrInvalid, path, trailer)
	}
	return nil
}

// Inspect parses the document and returns its page count and outline
// titles. The parser panics on some malformed inputs; those are reported as
// ErrInvalid.
func Inspect(path string) (info *Info, err error) {
	defer func() {
		if r := recover(); r != nil {
			info = nil
			err = fmt.Errorf("%w: %s: %v", ErrInvalid, path, r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, path, err)
	}
	defer f.Close()

	info = &Info{Pages: reader.NumPage()}
	info.Outline = convertOutline(reader.Outline().Child)
	return info, nil
}

// Validate checks markers and, when strict, parses the document as well.
func Validate(path string, strict bool) error {
	if err := CheckMarkers(path); err != nil {
		return err
	}
	if !strict {
		return nil
	}
	info, err := Inspect(path)
	if err != nil {
		return err
	}
	if info.Pages == 0 {
		return fmt.Errorf("%w: %s: no pages", ErrInvalid, path)
	}
	return nil
}

func convertOutline(children []pdf.Outline) []protocol.OutlineNode {
	if len(children) == 0 {
		return nil
	}
	nodes := make([]protocol.OutlineNode, 0, len(children))
	for _, c := range children {
		nodes = append(nodes, protocol.OutlineNode{
			Title: c.Title,
			Items: convertOutline(c.Child),
		})
	}
	return nodes
}
