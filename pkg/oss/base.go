// Package oss models the resources of an OSS-style object storage service
// (buckets, endpoints, objects and listings) as types that decode themselves
// from the service's XML responses through package decode.
package oss

import (
	"fmt"
	"net/url"
	"strings"
)

// BucketName is a validated bucket name.
type BucketName string

// ParseBucketName validates name.
//
// Names are 3 to 63 characters of lowercase letters, digits and '-', and may
// not start or end with '-'.
func ParseBucketName(name string) (BucketName, error) {
	if len(name) < 3 || len(name) > 63 {
		return "", &InvalidBucketName{Name: name, Reason: "length must be between 3 and 63"}
	}
	if name[0] == '-' || name[len(name)-1] == '-' {
		return "", &InvalidBucketName{Name: name, Reason: "must not start or end with '-'"}
	}
	for _, c := range name {
		if !isLowerAlnum(c) && c != '-' {
			return "", &InvalidBucketName{Name: name, Reason: fmt.Sprintf("invalid character %q", c)}
		}
	}
	return BucketName(name), nil
}

// String returns the name.
func (n BucketName) String() string {
	return string(n)
}

// InvalidBucketName is returned when a bucket name fails validation.
type InvalidBucketName struct {
	Name   string
	Reason string
}

// Error implements the error interface.
func (e *InvalidBucketName) Error() string {
	return fmt.Sprintf("invalid bucket name %q: %s", e.Name, e.Reason)
}

// BucketBase identifies a bucket by name and endpoint.
type BucketBase struct {
	Name     BucketName
	Endpoint Endpoint
}

// ParseBucketBase parses a virtual-hosted bucket host such as
// "abc.oss-cn-shanghai.aliyuncs.com". A scheme and trailing path are allowed.
func ParseBucketBase(host string) (BucketBase, error) {
	host = stripSchemeAndPath(host)
	name, endpoint, ok := strings.Cut(host, ".")
	if !ok {
		return BucketBase{}, fmt.Errorf("bucket host %q: missing endpoint", host)
	}

	bn, err := ParseBucketName(name)
	if err != nil {
		return BucketBase{}, err
	}
	ep, err := ParseEndpoint(endpoint)
	if err != nil {
		return BucketBase{}, err
	}
	return BucketBase{Name: bn, Endpoint: ep}, nil
}

// Host returns the virtual-hosted host name of the bucket.
func (b BucketBase) Host() string {
	return b.Name.String() + "." + b.Endpoint.Host()
}

// URL returns the HTTPS root URL of the bucket.
func (b BucketBase) URL() *url.URL {
	return &url.URL{Scheme: "https", Host: b.Host(), Path: "/"}
}

// String returns the bucket host.
func (b BucketBase) String() string {
	return b.Host()
}

func isLowerAlnum(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}

func stripSchemeAndPath(s string) string {
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	return s
}
