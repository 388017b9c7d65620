package output

import (
	ossapi "github.com/3leaps/ossxml/pkg/oss"
)

// ObjectListView is the flattened form of one decoded object listing page.
type ObjectListView struct {
	Bucket                string          `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	Name                  string          `json:"name" yaml:"name"`
	Prefix                string          `json:"prefix" yaml:"prefix"`
	MaxKeys               int             `json:"max_keys" yaml:"max_keys"`
	KeyCount              int             `json:"key_count" yaml:"key_count"`
	IsTruncated           bool            `json:"is_truncated" yaml:"is_truncated"`
	NextContinuationToken string          `json:"next_continuation_token,omitempty" yaml:"next_continuation_token,omitempty"`
	CommonPrefixes        []string        `json:"common_prefixes" yaml:"common_prefixes"`
	Objects               []*ObjectRecord `json:"objects" yaml:"objects"`
}

// NewObjectListView flattens list. Bucket is taken from list.Bucket when it
// names a bucket.
func NewObjectListView(list *ossapi.ObjectList) *ObjectListView {
	v := &ObjectListView{
		Name:                  list.Name,
		Prefix:                list.Prefix,
		MaxKeys:               list.MaxKeys,
		KeyCount:              list.KeyCount,
		IsTruncated:           list.IsTruncated,
		NextContinuationToken: list.NextContinuationToken,
		CommonPrefixes:        append(make([]string, 0, len(list.CommonPrefixes)), list.CommonPrefixes...),
		Objects:               make([]*ObjectRecord, 0, len(list.Objects)),
	}
	if list.Bucket.Name != "" {
		v.Bucket = list.Bucket.Name.String()
	}
	for _, obj := range list.Objects {
		v.Objects = append(v.Objects, &ObjectRecord{
			Bucket:       v.Bucket,
			Key:          obj.Key,
			Size:         obj.Size,
			ETag:         obj.ETag,
			LastModified: obj.LastModified,
			StorageClass: obj.StorageClass,
			Type:         obj.Type,
		})
	}
	return v
}

// Owner identifies the account of a bucket listing.
type Owner struct {
	ID          string `json:"id,omitempty" yaml:"id,omitempty"`
	DisplayName string `json:"display_name,omitempty" yaml:"display_name,omitempty"`
}

// BucketListView is the flattened form of one decoded bucket listing page.
type BucketListView struct {
	Prefix      string          `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Marker      string          `json:"marker,omitempty" yaml:"marker,omitempty"`
	MaxKeys     string          `json:"max_keys,omitempty" yaml:"max_keys,omitempty"`
	IsTruncated bool            `json:"is_truncated" yaml:"is_truncated"`
	NextMarker  string          `json:"next_marker,omitempty" yaml:"next_marker,omitempty"`
	Owner       Owner           `json:"owner" yaml:"owner"`
	Buckets     []*BucketRecord `json:"buckets" yaml:"buckets"`
}

func NewBucketListView(list *ossapi.BucketList) *BucketListView {
	v := &BucketListView{
		Prefix:      list.Prefix,
		Marker:      list.Marker,
		MaxKeys:     list.MaxKeys,
		IsTruncated: list.IsTruncated,
		NextMarker:  list.NextMarker,
		Owner:       Owner{ID: list.OwnerID, DisplayName: list.OwnerDisplayName},
		Buckets:     make([]*BucketRecord, 0, len(list.Buckets)),
	}
	for _, b := range list.Buckets {
		v.Buckets = append(v.Buckets, BucketRecordOf(b))
	}
	return v
}

// BucketRecordOf flattens a decoded bucket.
func BucketRecordOf(b *ossapi.Bucket) *BucketRecord {
	return &BucketRecord{
		Name:             b.Name().String(),
		Region:           b.Base.Endpoint.Region(),
		Endpoint:         b.Base.Endpoint.Host(),
		IntranetEndpoint: b.IntranetEndpoint,
		Location:         b.Location,
		StorageClass:     b.StorageClass,
		CreationDate:     b.CreationDate,
	}
}
