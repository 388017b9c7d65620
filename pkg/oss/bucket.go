package oss

import (
	"fmt"
	"time"

	"github.com/3leaps/ossxml/pkg/decode"
)

// Bucket describes one bucket, as listed by ListBuckets or returned by
// GetBucketInfo.
type Bucket struct {
	Base             BucketBase
	CreationDate     time.Time
	IntranetEndpoint string
	Location         string
	StorageClass     string
}

var _ decode.BucketDecoder = (*Bucket)(nil)

func (b *Bucket) SetName(name string) error {
	bn, err := ParseBucketName(name)
	if err != nil {
		return err
	}
	b.Base.Name = bn
	return nil
}

func (b *Bucket) SetCreationDate(creationDate string) error {
	t, err := parseTime(creationDate)
	if err != nil {
		return fmt.Errorf("creation date: %w", err)
	}
	b.CreationDate = t
	return nil
}

// SetExtranetEndpoint sets the endpoint of Base.
func (b *Bucket) SetExtranetEndpoint(endpoint string) error {
	ep, err := ParseEndpoint(endpoint)
	if err != nil {
		return err
	}
	b.Base.Endpoint = ep
	return nil
}

func (b *Bucket) SetIntranetEndpoint(endpoint string) error {
	b.IntranetEndpoint = endpoint
	return nil
}

func (b *Bucket) SetLocation(location string) error {
	b.Location = location
	return nil
}

func (b *Bucket) SetStorageClass(storageClass string) error {
	b.StorageClass = storageClass
	return nil
}

// Name returns the bucket name.
func (b *Bucket) Name() BucketName {
	return b.Base.Name
}

// BucketList is one page of the account's bucket listing. Empty text in the
// response leaves the matching field empty.
type BucketList struct {
	Prefix           string
	Marker           string
	MaxKeys          string
	IsTruncated      bool
	NextMarker       string
	OwnerID          string
	OwnerDisplayName string
	Buckets          []*Bucket
}

var _ decode.BucketListDecoder[*Bucket] = (*BucketList)(nil)

func (l *BucketList) SetPrefix(prefix string) error {
	l.Prefix = prefix
	return nil
}

func (l *BucketList) SetMarker(marker string) error {
	l.Marker = marker
	return nil
}

func (l *BucketList) SetMaxKeys(maxKeys string) error {
	l.MaxKeys = maxKeys
	return nil
}

func (l *BucketList) SetIsTruncated(truncated bool) error {
	l.IsTruncated = truncated
	return nil
}

func (l *BucketList) SetNextMarker(nextMarker string) error {
	l.NextMarker = nextMarker
	return nil
}

func (l *BucketList) SetID(id string) error {
	l.OwnerID = id
	return nil
}

func (l *BucketList) SetDisplayName(displayName string) error {
	l.OwnerDisplayName = displayName
	return nil
}

func (l *BucketList) SetList(buckets []*Bucket) error {
	l.Buckets = buckets
	return nil
}

// NextQuery returns the query for the following page. ok is false on the
// last page.
func (l *BucketList) NextQuery(q BucketQuery) (next BucketQuery, ok bool) {
	if !l.IsTruncated || l.NextMarker == "" {
		return BucketQuery{}, false
	}
	q.Marker = l.NextMarker
	return q, true
}
