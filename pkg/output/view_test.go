package output

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ossapi "github.com/3leaps/ossxml/pkg/oss"
)

const viewObjectsXML = `<ListBucketResult>
  <Name>media</Name>
  <Prefix>img/</Prefix>
  <MaxKeys>50</MaxKeys>
  <IsTruncated>false</IsTruncated>
  <Contents>
    <Key>img/a.png</Key>
    <LastModified>2023-03-01T00:00:00.000Z</LastModified>
    <ETag>"e1"</ETag>
    <Type>Normal</Type>
    <Size>10</Size>
    <StorageClass>Archive</StorageClass>
  </Contents>
  <CommonPrefixes><Prefix>img/raw/</Prefix></CommonPrefixes>
  <KeyCount>2</KeyCount>
</ListBucketResult>`

func TestNewObjectListView(t *testing.T) {
	base, err := ossapi.ParseBucketBase("media.oss-cn-qingdao.aliyuncs.com")
	require.NoError(t, err)
	list, err := ossapi.DecodeObjectList(viewObjectsXML, base)
	require.NoError(t, err)

	v := NewObjectListView(list)
	assert.Equal(t, "media", v.Bucket)
	assert.Equal(t, "img/", v.Prefix)
	assert.Equal(t, 50, v.MaxKeys)
	assert.Equal(t, 2, v.KeyCount)
	assert.False(t, v.IsTruncated)
	assert.Empty(t, v.NextContinuationToken)
	assert.Equal(t, []string{"img/raw/"}, v.CommonPrefixes)
	require.Len(t, v.Objects, 1)
	assert.Equal(t, &ObjectRecord{
		Bucket:       "media",
		Key:          "img/a.png",
		Size:         10,
		ETag:         "e1",
		LastModified: time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC),
		StorageClass: "Archive",
		Type:         "Normal",
	}, v.Objects[0])
}

func TestNewObjectListView_NoBucket(t *testing.T) {
	list, err := ossapi.DecodeObjectList(viewObjectsXML, ossapi.BucketBase{})
	require.NoError(t, err)

	v := NewObjectListView(list)
	assert.Empty(t, v.Bucket)
	assert.Empty(t, v.Objects[0].Bucket)
}

func TestNewBucketListView(t *testing.T) {
	list, err := ossapi.DecodeBucketList(`<ListAllMyBucketsResult>
  <Owner><ID>42</ID><DisplayName>me</DisplayName></Owner>
  <Buckets>
    <Bucket>
      <CreationDate>2014-02-17T18:12:43.000Z</CreationDate>
      <ExtranetEndpoint>oss-cn-shanghai.aliyuncs.com</ExtranetEndpoint>
      <IntranetEndpoint>oss-cn-shanghai-internal.aliyuncs.com</IntranetEndpoint>
      <Location>oss-cn-shanghai</Location>
      <Name>app-base-oss</Name>
      <StorageClass>Standard</StorageClass>
    </Bucket>
  </Buckets>
</ListAllMyBucketsResult>`)
	require.NoError(t, err)

	v := NewBucketListView(list)
	assert.Equal(t, Owner{ID: "42", DisplayName: "me"}, v.Owner)
	require.Len(t, v.Buckets, 1)
	assert.Equal(t, &BucketRecord{
		Name:             "app-base-oss",
		Region:           "cn-shanghai",
		Endpoint:         "oss-cn-shanghai.aliyuncs.com",
		IntranetEndpoint: "oss-cn-shanghai-internal.aliyuncs.com",
		Location:         "oss-cn-shanghai",
		StorageClass:     "Standard",
		CreationDate:     time.Date(2014, 2, 17, 18, 12, 43, 0, time.UTC),
	}, v.Buckets[0])
}
