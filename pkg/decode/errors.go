package decode

import (
	"errors"
	"fmt"
)

// Failure categories reported by the decoders.
//
// Decode errors keep only the rendered text of whatever caused them, so
// callers match on the category with errors.Is rather than on the original
// typed error.
var (
	// ErrItem marks a failure while decoding a single item.
	ErrItem = errors.New("item decode failed")

	// ErrXML marks a failure reported by the XML tokenizer.
	ErrXML = errors.New("xml syntax error")

	// ErrCustom marks a failure reported by a list setter.
	ErrCustom = errors.New("list setter failed")
)

// Kind identifies the variant carried by a ListError.
type Kind int

const (
	// KindItem means an item block failed to decode.
	KindItem Kind = iota

	// KindXML means the tokenizer rejected the document.
	KindXML

	// KindCustom means a list setter returned an error.
	KindCustom
)

// String returns the variant name.
func (k Kind) String() string {
	switch k {
	case KindItem:
		return "item"
	case KindXML:
		return "xml"
	case KindCustom:
		return "custom"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ItemError is returned when a single item (object or bucket) fails to decode.
type ItemError struct {
	// Info is the rendered text of the underlying failure.
	Info string
}

// NewItemError absorbs any displayable value into an ItemError.
// Errors render through Error, fmt.Stringer values through String and
// everything else through fmt.
func NewItemError(cause any) *ItemError {
	if ie, ok := cause.(*ItemError); ok {
		return ie
	}
	return &ItemError{Info: render(cause)}
}

// Error implements the error interface.
func (e *ItemError) Error() string {
	return "decode xml to object has error, info: " + e.Info
}

// Is reports ErrItem so callers can match the category.
func (e *ItemError) Is(target error) bool {
	return target == ErrItem
}

// ListError is returned when a list document fails to decode.
type ListError struct {
	// Kind is the failure category.
	Kind Kind

	// Info is the rendered text of the underlying failure.
	Info string
}

// NewListError absorbs any displayable value into a ListError.
//
// An *ItemError becomes the item variant and tokenizer errors become the xml
// variant. Every other value is treated as a custom failure raised by a list
// setter.
func NewListError(cause any) *ListError {
	switch c := cause.(type) {
	case *ListError:
		return c
	case *ItemError:
		return &ListError{Kind: KindItem, Info: c.Error()}
	case error:
		if isSyntaxError(c) {
			return &ListError{Kind: KindXML, Info: c.Error()}
		}
	}
	return &ListError{Kind: KindCustom, Info: render(cause)}
}

// Error implements the error interface.
func (e *ListError) Error() string {
	switch e.Kind {
	case KindItem:
		return "decode xml to object list has error, item info: " + e.Info
	case KindXML:
		return "decode xml to object list has error, xml info: " + e.Info
	default:
		return "decode xml to object list has error, info: " + e.Info
	}
}

// Is matches the sentinel for the error's category.
func (e *ListError) Is(target error) bool {
	switch target {
	case ErrItem:
		return e.Kind == KindItem
	case ErrXML:
		return e.Kind == KindXML
	case ErrCustom:
		return e.Kind == KindCustom
	}
	return false
}

// IsItemError reports whether err is, or wraps, an item decode failure.
func IsItemError(err error) bool {
	return errors.Is(err, ErrItem)
}

// IsXMLError reports whether err was raised by the XML tokenizer.
func IsXMLError(err error) bool {
	return errors.Is(err, ErrXML)
}

// IsCustomError reports whether err was raised by a list setter.
func IsCustomError(err error) bool {
	return errors.Is(err, ErrCustom)
}

// listXMLError wraps a tokenizer failure as the xml variant, regardless of
// the concrete error type the tokenizer produced.
func listXMLError(err error) *ListError {
	return &ListError{Kind: KindXML, Info: err.Error()}
}

// listSetterError wraps an error returned by a list setter as the custom
// variant.
func listSetterError(err error) *ListError {
	var le *ListError
	if errors.As(err, &le) {
		return le
	}
	return &ListError{Kind: KindCustom, Info: err.Error()}
}

// listItemError wraps an item decode failure as the item variant.
func listItemError(err error) *ListError {
	return &ListError{Kind: KindItem, Info: NewItemError(err).Error()}
}

func render(cause any) string {
	switch c := cause.(type) {
	case nil:
		return "<nil>"
	case string:
		return c
	case error:
		return c.Error()
	case fmt.Stringer:
		return c.String()
	default:
		return fmt.Sprint(c)
	}
}
