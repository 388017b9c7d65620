package decode

import (
	"errors"
	"io"
)

// BucketDecoder receives the fields of one bucket record, either an entry of
// a bucket listing or the body of a bucket info response.
// Embed NopBucket to implement only the setters you need.
type BucketDecoder interface {
	SetName(name string) error
	SetCreationDate(creationDate string) error
	SetExtranetEndpoint(endpoint string) error
	SetIntranetEndpoint(endpoint string) error
	SetLocation(location string) error
	SetStorageClass(storageClass string) error
}

// NopBucket implements BucketDecoder with setters that accept and discard
// every value.
type NopBucket struct{}

func (NopBucket) SetName(string) error             { return nil }
func (NopBucket) SetCreationDate(string) error     { return nil }
func (NopBucket) SetExtranetEndpoint(string) error { return nil }
func (NopBucket) SetIntranetEndpoint(string) error { return nil }
func (NopBucket) SetLocation(string) error         { return nil }
func (NopBucket) SetStorageClass(string) error     { return nil }

var _ BucketDecoder = NopBucket{}

// BucketListDecoder receives the metadata and items of a bucket listing
// (a ListAllMyBucketsResult document). Owner fields arrive through SetID and
// SetDisplayName.
type BucketListDecoder[T BucketDecoder] interface {
	SetPrefix(prefix string) error
	SetMarker(marker string) error
	SetMaxKeys(maxKeys string) error
	SetIsTruncated(truncated bool) error
	SetNextMarker(nextMarker string) error
	SetID(id string) error
	SetDisplayName(displayName string) error
	SetList(buckets []T) error
}

// NopBucketList implements BucketListDecoder with setters that accept and
// discard every value.
type NopBucketList[T BucketDecoder] struct{}

func (NopBucketList[T]) SetPrefix(string) error      { return nil }
func (NopBucketList[T]) SetMarker(string) error      { return nil }
func (NopBucketList[T]) SetMaxKeys(string) error     { return nil }
func (NopBucketList[T]) SetIsTruncated(bool) error   { return nil }
func (NopBucketList[T]) SetNextMarker(string) error  { return nil }
func (NopBucketList[T]) SetID(string) error          { return nil }
func (NopBucketList[T]) SetDisplayName(string) error { return nil }
func (NopBucketList[T]) SetList([]T) error           { return nil }

var _ BucketListDecoder[NopBucket] = NopBucketList[NopBucket]{}

// DecodeBucket decodes one bucket record into b. It follows the same rules
// as DecodeObject.
func DecodeBucket(xml string, b BucketDecoder) error {
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
		case TagName:
			set = b.SetName
		case TagCreationDate:
			set = b.SetCreationDate
		case TagExtranetEndpoint:
			set = b.SetExtranetEndpoint
		case TagIntranetEndpoint:
			set = b.SetIntranetEndpoint
		case TagLocation:
			set = b.SetLocation
		case TagStorageClass:
			set = b.SetStorageClass
		default:
			continue
		}

		if err := setText(r, set); err != nil {
			return NewItemError(err)
		}
	}
}

// DecodeBucketList decodes a ListAllMyBucketsResult document into list.
//
// newBucket is called once per Bucket element. IsTruncated is true only for
// the exact text "true". Error handling and ordering follow DecodeObjectList.
func DecodeBucketList[T BucketDecoder](xml string, list BucketListDecoder[T], newBucket func() T) error {
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
		case TagPrefix:
			err = listText(r, list.SetPrefix)
		case TagMarker:
			err = listText(r, list.SetMarker)
		case TagMaxKeys:
			err = listText(r, list.SetMaxKeys)
		case TagIsTruncated:
			err = listText(r, func(text string) error {
				return list.SetIsTruncated(text == truthy)
			})
		case TagNextMarker:
			err = listText(r, list.SetNextMarker)
		case TagID:
			err = listText(r, list.SetID)
		case TagDisplayName:
			err = listText(r, list.SetDisplayName)
		case TagBucket:
			bucket := newBucket()
			block, ierr := r.inner()
			if ierr != nil {
				return listXMLError(ierr)
			}
			if ierr := DecodeBucket(block, bucket); ierr != nil {
				return listItemError(ierr)
			}
			items = append(items, bucket)
		}
		if err != nil {
			return err
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
