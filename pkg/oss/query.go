package oss

import (
	"net/url"
	"strconv"
)

// Query parameter names for ListObjectsV2.
const (
	QueryListType          = "list-type"
	QueryPrefix            = "prefix"
	QueryDelimiter         = "delimiter"
	QueryMaxKeys           = "max-keys"
	QueryContinuationToken = "continuation-token"
	QueryStartAfter        = "start-after"
	QueryEncodingType      = "encoding-type"
	QueryFetchOwner        = "fetch-owner"
	QueryMarker            = "marker"
)

// MaxListKeys is the largest page size the service accepts.
const MaxListKeys = 1000

// Query is a list-objects (v2) request query. Zero fields are omitted.
type Query struct {
	Prefix            string
	Delimiter         string
	MaxKeys           int
	ContinuationToken string
	StartAfter        string
	EncodingType      string
	FetchOwner        bool
}

// Values returns the query as URL values, always including list-type=2.
func (q Query) Values() url.Values {
	v := url.Values{}
	v.Set(QueryListType, "2")
	setIf(v, QueryPrefix, q.Prefix)
	setIf(v, QueryDelimiter, q.Delimiter)
	if q.MaxKeys > 0 {
		v.Set(QueryMaxKeys, strconv.Itoa(min(q.MaxKeys, MaxListKeys)))
	}
	setIf(v, QueryContinuationToken, q.ContinuationToken)
	setIf(v, QueryStartAfter, q.StartAfter)
	setIf(v, QueryEncodingType, q.EncodingType)
	if q.FetchOwner {
		v.Set(QueryFetchOwner, "true")
	}
	return v
}

// Encode returns the query string in key order.
func (q Query) Encode() string {
	return q.Values().Encode()
}

// BucketQuery is a list-buckets request query. Zero fields are omitted.
type BucketQuery struct {
	Prefix  string
	Marker  string
	MaxKeys int
}

// Values returns the query as URL values.
func (q BucketQuery) Values() url.Values {
	v := url.Values{}
	setIf(v, QueryPrefix, q.Prefix)
	setIf(v, QueryMarker, q.Marker)
	if q.MaxKeys > 0 {
		v.Set(QueryMaxKeys, strconv.Itoa(min(q.MaxKeys, MaxListKeys)))
	}
	return v
}

// Encode returns the query string in key order.
func (q BucketQuery) Encode() string {
	return q.Values().Encode()
}

func setIf(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}
