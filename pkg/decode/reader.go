package decode

import (
	"encoding/xml"
	"errors"
	"io"
	"strings"
)

// reader walks an XML document one start element at a time.
//
// Text and inner spans are sliced out of src using the tokenizer's input
// offsets, so plain character data is handed to setters without copying.
// A reader is scoped to one decode call and is not safe for concurrent use.
type reader struct {
	src string
	dec *xml.Decoder
}

func newReader(src string) *reader {
	return &reader{
		src: src,
		dec: xml.NewDecoder(strings.NewReader(src)),
	}
}

// next advances to the next start element and returns its local name.
// It returns io.EOF once the document is exhausted.
func (r *reader) next() (string, error) {
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return "", err
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se.Name.Local, nil
		}
	}
}

// inner consumes the current element up to and including its end tag and
// returns the raw markup between the start and end tags.
func (r *reader) inner() (string, error) {
	span, _, err := r.consume(false)
	return span, err
}

// text consumes the current element and returns its character data.
//
// When the element holds only plain character data the returned string is a
// substring of the document. Entity references, CDATA sections and nested
// markup force the text to be assembled from decoded tokens.
func (r *reader) text() (string, error) {
	span, decoded, err := r.consume(true)
	if err != nil {
		return "", err
	}
	if !strings.ContainsAny(span, "&<") {
		return span, nil
	}
	return decoded, nil
}

// consume reads tokens until the end tag matching the current start element.
// Character data is only accumulated when collect is set.
func (r *reader) consume(collect bool) (span, decoded string, err error) {
	start := r.dec.InputOffset()
	var b strings.Builder
	depth := 1
	for {
		end := r.dec.InputOffset()
		tok, err := r.dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return "", "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
			if depth == 0 {
				return r.slice(start, end), b.String(), nil
			}
		case xml.CharData:
			if collect {
				b.Write(t)
			}
		}
	}
}

func (r *reader) slice(start, end int64) string {
	if start < 0 || end > int64(len(r.src)) || start > end {
		return ""
	}
	return r.src[start:end]
}

// isSyntaxError reports whether err came from the XML tokenizer.
func isSyntaxError(err error) bool {
	var se *xml.SyntaxError
	return errors.As(err, &se) || errors.Is(err, io.ErrUnexpectedEOF)
}
