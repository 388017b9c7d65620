package decode

// Element names recognized by the decoders. Producers of XML for this package
// must use exactly these names; anything else is ignored.
const (
	TagPrefix                = "Prefix"
	TagCommonPrefixes        = "CommonPrefixes"
	TagName                  = "Name"
	TagMaxKeys               = "MaxKeys"
	TagKeyCount              = "KeyCount"
	TagIsTruncated           = "IsTruncated"
	TagNextContinuationToken = "NextContinuationToken"
	TagKey                   = "Key"
	TagLastModified          = "LastModified"
	TagETag                  = "ETag"
	TagType                  = "Type"
	TagSize                  = "Size"
	TagStorageClass          = "StorageClass"
	TagBucket                = "Bucket"
	TagCreationDate          = "CreationDate"
	TagExtranetEndpoint      = "ExtranetEndpoint"
	TagIntranetEndpoint      = "IntranetEndpoint"
	TagLocation              = "Location"
	TagMarker                = "Marker"
	TagNextMarker            = "NextMarker"
	TagID                    = "ID"
	TagDisplayName           = "DisplayName"
	TagContents              = "Contents"
)

// truthy is the only IsTruncated text treated as true.
const truthy = "true"

// Vocabulary returns every recognized element name in a stable order.
func Vocabulary() []string {
	return []string{
		TagPrefix, TagCommonPrefixes, TagName, TagMaxKeys, TagKeyCount,
		TagIsTruncated, TagNextContinuationToken, TagKey, TagLastModified,
		TagETag, TagType, TagSize, TagStorageClass, TagBucket, TagCreationDate,
		TagExtranetEndpoint, TagIntranetEndpoint, TagLocation, TagMarker,
		TagNextMarker, TagID, TagDisplayName, TagContents,
	}
}
