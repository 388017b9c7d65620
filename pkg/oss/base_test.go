package oss

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBucketName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{name: "simple", input: "abc"},
		{name: "with digits and dash", input: "app-base-oss-01"},
		{name: "max length", input: "a23456789012345678901234567890123456789012345678901234567890123"},
		{name: "too short", input: "ab", wantErr: "length must be between 3 and 63"},
		{name: "too long", input: "a234567890123456789012345678901234567890123456789012345678901234", wantErr: "length"},
		{name: "leading dash", input: "-abc", wantErr: "must not start or end with '-'"},
		{name: "trailing dash", input: "abc-", wantErr: "must not start or end with '-'"},
		{name: "uppercase", input: "Abc", wantErr: "invalid character 'A'"},
		{name: "underscore", input: "foo_bucket", wantErr: "invalid character '_'"},
		{name: "dot", input: "a.bc", wantErr: "invalid character '.'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBucketName(tt.input)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				var invalid *InvalidBucketName
				assert.ErrorAs(t, err, &invalid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.input, got.String())
		})
	}
}

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		input        string
		wantRegion   string
		wantInternal bool
		wantHost     string
	}{
		{"oss-cn-shanghai.aliyuncs.com", "cn-shanghai", false, "oss-cn-shanghai.aliyuncs.com"},
		{"https://oss-cn-shanghai.aliyuncs.com", "cn-shanghai", false, "oss-cn-shanghai.aliyuncs.com"},
		{"https://oss-cn-hangzhou-internal.aliyuncs.com/", "cn-hangzhou", true, "oss-cn-hangzhou-internal.aliyuncs.com"},
		{"oss-us-west-1", "us-west-1", false, "oss-us-west-1.aliyuncs.com"},
		{"ap-southeast-1", "ap-southeast-1", false, "oss-ap-southeast-1.aliyuncs.com"},
		{"OSS-CN-QINGDAO.ALIYUNCS.COM", "cn-qingdao", false, "oss-cn-qingdao.aliyuncs.com"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			ep, err := ParseEndpoint(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.wantRegion, ep.Region())
			assert.Equal(t, tt.wantInternal, ep.IsInternal())
			assert.Equal(t, tt.wantHost, ep.Host())
		})
	}
}

func TestParseEndpoint_Invalid(t *testing.T) {
	for _, input := range []string{"", "oss", "shanghai", "cn--shanghai", "cn_shanghai", "oss-.aliyuncs.com"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseEndpoint(input)
			require.Error(t, err)
			var invalid *InvalidEndpoint
			assert.ErrorAs(t, err, &invalid)
		})
	}
}

func TestEndpoint_ZeroValueIsDefaultRegion(t *testing.T) {
	var ep Endpoint
	assert.Equal(t, "cn-hangzhou", ep.Region())
	assert.Equal(t, DefaultEndpoint.Host(), ep.Host())
	assert.Equal(t, "https://oss-cn-hangzhou.aliyuncs.com/", ep.URL().String())
}

func TestNewEndpoint(t *testing.T) {
	ep, err := NewEndpoint("cn-beijing", true)
	require.NoError(t, err)
	assert.Equal(t, "oss-cn-beijing-internal.aliyuncs.com", ep.String())

	_, err = NewEndpoint("beijing", false)
	assert.Error(t, err)
}

func TestParseBucketBase(t *testing.T) {
	base, err := ParseBucketBase("abc.oss-cn-shanghai.aliyuncs.com")
	require.NoError(t, err)

	assert.Equal(t, BucketName("abc"), base.Name)
	assert.Equal(t, "cn-shanghai", base.Endpoint.Region())
	assert.Equal(t, "https://abc.oss-cn-shanghai.aliyuncs.com/", base.URL().String())

	_, err = ParseBucketBase("abc")
	assert.Error(t, err)

	_, err = ParseBucketBase("a_c.oss-cn-shanghai.aliyuncs.com")
	assert.Error(t, err)
}

func TestObjectPath(t *testing.T) {
	tests := []struct {
		key     string
		wantErr bool
		dir     ObjectDir
		base    string
	}{
		{key: "a.txt", dir: "", base: "a.txt"},
		{key: "photos/2022/a.jpg", dir: "photos/2022/", base: "a.jpg"},
		{key: "", wantErr: true},
		{key: "/abs", wantErr: true},
		{key: `\win`, wantErr: true},
		{key: "dir/", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			p, err := ParseObjectPath(tt.key)
			if tt.wantErr {
				var invalid *InvalidObjectPath
				assert.ErrorAs(t, err, &invalid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.dir, p.Dir())
			assert.Equal(t, tt.base, p.Base())
		})
	}
}

func TestObjectDir(t *testing.T) {
	d, err := ParseObjectDir("photos/")
	require.NoError(t, err)

	p, err := d.Join("a.jpg")
	require.NoError(t, err)
	assert.Equal(t, ObjectPath("photos/a.jpg"), p)

	for _, bad := range []string{"", "photos", "/photos/", `\photos/`} {
		_, err := ParseObjectDir(bad)
		var invalid *InvalidObjectDir
		assert.ErrorAs(t, err, &invalid, "prefix %q", bad)
	}
}

func TestQuery_Encode(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		want  string
	}{
		{"empty", Query{}, "list-type=2"},
		{"max keys", Query{MaxKeys: 5}, "list-type=2&max-keys=5"},
		{"clamped max keys", Query{MaxKeys: 5000}, "list-type=2&max-keys=1000"},
		{
			"all fields",
			Query{Prefix: "a/", Delimiter: "/", ContinuationToken: "tok", StartAfter: "a/b", EncodingType: "url", FetchOwner: true},
			"continuation-token=tok&delimiter=%2F&encoding-type=url&fetch-owner=true&list-type=2&prefix=a%2F&start-after=a%2Fb",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.query.Encode())
		})
	}
}

func TestBucketQuery_Encode(t *testing.T) {
	assert.Equal(t, "", BucketQuery{}.Encode())
	assert.Equal(t, "marker=mb&max-keys=10&prefix=my", BucketQuery{Prefix: "my", Marker: "mb", MaxKeys: 10}.Encode())
}
