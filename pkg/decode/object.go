package decode

import (
	"errors"
	"io"
	"strings"
)

// ObjectDecoder receives the fields of one object record.
//
// Every setter gets the element's text exactly as it appears in the document,
// except SetETag whose value has its surrounding quotes removed. Returning an
// error aborts the decode. Embed NopObject to implement only the setters you
// need.
type ObjectDecoder interface {
	SetKey(key string) error
	SetLastModified(lastModified string) error
	SetETag(etag string) error
	SetType(typ string) error
	SetSize(size string) error
	SetStorageClass(storageClass string) error
}

// NopObject implements ObjectDecoder with setters that accept and discard
// every value.
type NopObject struct{}

func (NopObject) SetKey(string) error          { return nil }
func (NopObject) SetLastModified(string) error { return nil }
func (NopObject) SetETag(string) error         { return nil }
func (NopObject) SetType(string) error         { return nil }
func (NopObject) SetSize(string) error         { return nil }
func (NopObject) SetStorageClass(string) error { return nil }

var _ ObjectDecoder = NopObject{}

// DecodeObject decodes one object record (typically the body of a Contents
// element) into obj.
//
// The document is walked once. Unrecognized elements are ignored but their
// children are still visited. A field that occurs more than once is handed to
// its setter each time.
func DecodeObject(xml string, obj ObjectDecoder) error {
	r := newReader(xml)
	for {
		name, err := r.next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return NewItemError(err)
		}

		var set func(string) error
		switch name {
		case TagKey:
			set = obj.SetKey
		case TagLastModified:
			set = obj.SetLastModified
		case TagETag:
			set = func(v string) error { return obj.SetETag(trimETag(v)) }
		case TagType:
			set = obj.SetType
		case TagSize:
			set = obj.SetSize
		case TagStorageClass:
			set = obj.SetStorageClass
		default:
			continue
		}

		if err := setText(r, set); err != nil {
			return NewItemError(err)
		}
	}
}

// setText reads the current element's text and hands it to set.
func setText(r *reader, set func(string) error) error {
	text, err := r.text()
	if err != nil {
		return err
	}
	return set(text)
}

func trimETag(etag string) string {
	return strings.Trim(etag, `"`)
}
