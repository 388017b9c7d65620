package oss

import (
	"github.com/3leaps/ossxml/pkg/decode"
)

// DecodeObjectList decodes a ListBucketResult body into a new ObjectList.
// Every object shares a copy of bucket.
func DecodeObjectList(xml string, bucket BucketBase) (*ObjectList, error) {
	list := &ObjectList{Bucket: bucket}
	if err := decode.DecodeObjectList(xml, list, NewObjectFactory(&list.Bucket)); err != nil {
		return nil, err
	}
	return list, nil
}

// DecodeBucketList decodes a ListAllMyBucketsResult body.
func DecodeBucketList(xml string) (*BucketList, error) {
	list := &BucketList{}
	newBucket := func() *Bucket { return &Bucket{} }
	if err := decode.DecodeBucketList(xml, list, newBucket); err != nil {
		return nil, err
	}
	return list, nil
}

// DecodeBucketInfo decodes a BucketInfo body.
func DecodeBucketInfo(xml string) (*Bucket, error) {
	b := &Bucket{}
	if err := decode.DecodeBucket(xml, b); err != nil {
		return nil, err
	}
	return b, nil
}
