package decode

import (
	"errors"
	"io"
)

// ObjectListDecoder receives the metadata and items of one object listing
// page (a ListBucketResult document).
//
// T is the item type produced by the factory passed to DecodeObjectList.
// Count fields are reported exactly as the document states them and are never
// checked against the number of items. Embed NopObjectList to implement only
// the setters you need.
type ObjectListDecoder[T ObjectDecoder] interface {
	SetName(name string) error
	SetPrefix(prefix string) error

	// SetCommonPrefix receives every Prefix inside one CommonPrefixes block,
	// in document order, in a single call.
	SetCommonPrefix(prefixes []string) error

	SetMaxKeys(maxKeys string) error
	SetKeyCount(keyCount string) error

	// SetNextContinuationToken receives nil when the token is empty.
	//
	// Deprecated: the pointer is redundant; implement
	// SetNextContinuationTokenStr instead. Both are still called on every
	// decode.
	SetNextContinuationToken(token *string) error

	// SetNextContinuationTokenStr receives the token text, possibly empty.
	SetNextContinuationTokenStr(token string) error

	// SetList receives the decoded items once the document is exhausted.
	SetList(items []T) error
}

// TruncationSetter is implemented by object list holders that want the
// IsTruncated flag. Only the exact text "true" is reported as true.
type TruncationSetter interface {
	SetIsTruncated(truncated bool) error
}

// NopObjectList implements ObjectListDecoder with setters that accept and
// discard every value.
type NopObjectList[T ObjectDecoder] struct{}

func (NopObjectList[T]) SetName(string) error                     { return nil }
func (NopObjectList[T]) SetPrefix(string) error                   { return nil }
func (NopObjectList[T]) SetCommonPrefix([]string) error           { return nil }
func (NopObjectList[T]) SetMaxKeys(string) error                  { return nil }
func (NopObjectList[T]) SetKeyCount(string) error                 { return nil }
func (NopObjectList[T]) SetNextContinuationToken(*string) error   { return nil }
func (NopObjectList[T]) SetNextContinuationTokenStr(string) error { return nil }
func (NopObjectList[T]) SetList([]T) error                        { return nil }

var _ ObjectListDecoder[NopObject] = NopObjectList[NopObject]{}

// DecodeObjectList decodes a ListBucketResult document into list.
//
// newObject is called once per Contents element to obtain a fresh item; it
// may be called any number of times and nothing is done to the items it
// returns beyond running their setters. The decoded items are handed to
// SetList in document order when the document ends, including when there are
// none. The first error from the tokenizer or any setter aborts the decode
// and SetList is not called.
func DecodeObjectList[T ObjectDecoder](xml string, list ObjectListDecoder[T], newObject func() T) error {
	truncation, _ := list.(TruncationSetter)

	var items []T
	r := newReader(xml)
	for {
		name, err := r.next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return listXMLError(err)
		}

		switch name {
		case TagCommonPrefixes:
			block, err := r.inner()
			if err != nil {
				return listXMLError(err)
			}
			prefixes, err := decodeCommonPrefixes(block)
			if err != nil {
				return listXMLError(err)
			}
			if err := list.SetCommonPrefix(prefixes); err != nil {
				return listSetterError(err)
			}
		case TagPrefix:
			if err := listText(r, list.SetPrefix); err != nil {
				return err
			}
		case TagName:
			if err := listText(r, list.SetName); err != nil {
				return err
			}
		case TagMaxKeys:
			if err := listText(r, list.SetMaxKeys); err != nil {
				return err
			}
		case TagKeyCount:
			if err := listText(r, list.SetKeyCount); err != nil {
				return err
			}
		case TagIsTruncated:
			text, err := r.text()
			if err != nil {
				return listXMLError(err)
			}
			if truncation == nil {
				continue
			}
			if err := truncation.SetIsTruncated(text == truthy); err != nil {
				return listSetterError(err)
			}
		case TagNextContinuationToken:
			token, err := r.text()
			if err != nil {
				return listXMLError(err)
			}
			if err := list.SetNextContinuationTokenStr(token); err != nil {
				return listSetterError(err)
			}
			var legacy *string
			if token != "" {
				legacy = &token
			}
			if err := list.SetNextContinuationToken(legacy); err != nil {
				return listSetterError(err)
			}
		case TagContents:
			obj := newObject()
			block, err := r.inner()
			if err != nil {
				return listXMLError(err)
			}
			if err := DecodeObject(block, obj); err != nil {
				return listItemError(err)
			}
			items = append(items, obj)
		}
	}

	if items == nil {
		items = []T{}
	}
	if err := list.SetList(items); err != nil {
		return listSetterError(err)
	}
	return nil
}

// decodeCommonPrefixes collects the text of every Prefix element in block.
func decodeCommonPrefixes(block string) ([]string, error) {
	var prefixes []string
	r := newReader(block)
	for {
		name, err := r.next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return prefixes, nil
			}
			return nil, err
		}
		if name != TagPrefix {
			continue
		}
		text, err := r.text()
		if err != nil {
			return nil, err
		}
		prefixes = append(prefixes, text)
	}
}

// listText reads the current element's text and hands it to a list setter,
// wrapping failures in the matching ListError variant.
func listText(r *reader, set func(string) error) error {
	text, err := r.text()
	if err != nil {
		return listXMLError(err)
	}
	if err := set(text); err != nil {
		return listSetterError(err)
	}
	return nil
}
