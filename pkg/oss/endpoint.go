package oss

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	endpointPrefix   = "oss-"
	endpointDomain   = ".aliyuncs.com"
	internalSuffix   = "-internal"
	defaultRegionTag = "cn-hangzhou"
)

// Endpoint is a regional service endpoint, public or internal.
type Endpoint struct {
	region   string
	internal bool
}

// DefaultEndpoint is the public endpoint of the default region.
var DefaultEndpoint = Endpoint{region: defaultRegionTag}

// NewEndpoint returns the endpoint for region. region is the bare region id
// ("cn-shanghai").
func NewEndpoint(region string, internal bool) (Endpoint, error) {
	if !validRegion(region) {
		return Endpoint{}, &InvalidEndpoint{Value: region}
	}
	return Endpoint{region: region, internal: internal}, nil
}

// ParseEndpoint accepts a host ("oss-cn-shanghai.aliyuncs.com"), a URL
// ("https://oss-cn-shanghai-internal.aliyuncs.com"), a prefixed region id
// ("oss-cn-shanghai") or a bare region id ("cn-shanghai").
func ParseEndpoint(s string) (Endpoint, error) {
	raw := s
	s = strings.ToLower(strings.TrimSpace(stripSchemeAndPath(s)))
	s = strings.TrimSuffix(s, endpointDomain)
	s = strings.TrimPrefix(s, endpointPrefix)

	internal := false
	if strings.HasSuffix(s, internalSuffix) {
		internal = true
		s = strings.TrimSuffix(s, internalSuffix)
	}

	if !validRegion(s) {
		return Endpoint{}, &InvalidEndpoint{Value: raw}
	}
	return Endpoint{region: s, internal: internal}, nil
}

// Region returns the bare region id.
func (e Endpoint) Region() string {
	if e.region == "" {
		return defaultRegionTag
	}
	return e.region
}

// IsInternal reports whether the endpoint is the in-region internal one.
func (e Endpoint) IsInternal() bool {
	return e.internal
}

// Host returns the endpoint host name.
func (e Endpoint) Host() string {
	host := endpointPrefix + e.Region()
	if e.internal {
		host += internalSuffix
	}
	return host + endpointDomain
}

// URL returns the HTTPS URL of the endpoint.
func (e Endpoint) URL() *url.URL {
	return &url.URL{Scheme: "https", Host: e.Host(), Path: "/"}
}

// String returns the host name.
func (e Endpoint) String() string {
	return e.Host()
}

// InvalidEndpoint is returned when an endpoint cannot be parsed.
type InvalidEndpoint struct {
	Value string
}

// Error implements the error interface.
func (e *InvalidEndpoint) Error() string {
	return fmt.Sprintf("invalid endpoint %q", e.Value)
}

// validRegion accepts ids made of at least two '-'-separated lowercase
// alphanumeric segments, e.g. "cn-hangzhou" or "ap-southeast-1".
func validRegion(region string) bool {
	parts := strings.Split(region, "-")
	if len(parts) < 2 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
		for _, c := range p {
			if !isLowerAlnum(c) {
				return false
			}
		}
	}
	return true
}
