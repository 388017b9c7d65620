// Package decode maps object storage XML responses onto caller-defined types.
//
// The package never sees the caller's types. Instead a caller implements one
// of the setter interfaces (ObjectDecoder, BucketDecoder for single records;
// ObjectListDecoder, BucketListDecoder for paginated listings) and the
// decoders drive those setters while walking the document once with a
// streaming tokenizer. Setter arguments are sliced straight out of the input
// wherever possible.
//
// Listings are built from a factory that produces one fresh item per record,
// which lets callers share context (a bucket handle, a client) with every
// item without the decoder owning any storage:
//
//	type file struct {
//		decode.NopObject
//		key string
//	}
//
//	func (f *file) SetKey(key string) error { f.key = key; return nil }
//
//	type page struct {
//		decode.NopObjectList[*file]
//		files []*file
//	}
//
//	func (p *page) SetList(files []*file) error { p.files = files; return nil }
//
//	var p page
//	err := decode.DecodeObjectList(body, &p, func() *file { return &file{} })
//
// Every failure is reported as an *ItemError or a *ListError carrying the
// rendered text of its cause. Use errors.Is with ErrItem, ErrXML or ErrCustom
// to tell the categories apart.
//
// Decoding performs no I/O and keeps no shared state, so independent decode
// calls may run concurrently.
package decode
