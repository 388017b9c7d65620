// Package oss implements the provider interface for OSS and OSS-compatible
// object storage over its XML REST API.
package oss

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config configures an OSS provider.
//
// Credentials are resolved the AWS SDK v2 way, since OSS accepts S3-style
// V4 signatures:
//  1. Explicit AccessKeyID/SecretAccessKey (if provided)
//  2. Environment variables (AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY)
//  3. Shared credentials/config files with Profile
//
// Set Anonymous to send unsigned requests to public buckets.
type Config struct {
	// Bucket is the bucket name. Required for object operations; bucket
	// listing works without it.
	Bucket string `mapstructure:"bucket" validate:"omitempty,min=3,max=63"`

	// Endpoint is the regional endpoint, e.g. "oss-cn-hangzhou.aliyuncs.com"
	// or "cn-hangzhou". Ignored when EndpointURL is set.
	Endpoint string `mapstructure:"endpoint"`

	// EndpointURL overrides the service URL for OSS-compatible stores and
	// local testing, e.g. "http://127.0.0.1:9000".
	EndpointURL string `mapstructure:"endpoint_url" validate:"omitempty,url"`

	// ForcePathStyle puts the bucket in the path rather than the host.
	// Usually needed together with EndpointURL.
	ForcePathStyle bool `mapstructure:"force_path_style"`

	// Region is the signing region. Defaults to the endpoint's region.
	Region string `mapstructure:"region"`

	Profile string `mapstructure:"profile"`

	AccessKeyID     string `mapstructure:"access_key_id" validate:"required_with=SecretAccessKey"`
	SecretAccessKey string `mapstructure:"secret_access_key" validate:"required_with=AccessKeyID"`

	// Anonymous disables request signing.
	Anonymous bool `mapstructure:"anonymous"`

	// MaxKeys is the default page size for List operations.
	// Zero uses DefaultMaxKeys.
	MaxKeys int `mapstructure:"max_keys" validate:"gte=0,lte=1000"`

	// RateLimit caps requests per second. Zero means unlimited.
	RateLimit float64 `mapstructure:"rate_limit" validate:"gte=0"`

	// Timeout bounds each HTTP request. Zero uses DefaultTimeout.
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

// DefaultMaxKeys is the default page size for List operations.
const DefaultMaxKeys = 1000

// DefaultTimeout bounds each HTTP request when Config.Timeout is zero.
const DefaultTimeout = 30 * time.Second

var validate = validator.New()

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &ConfigError{Field: fe.Field(), Message: describe(fe)}
		}
		return &ConfigError{Field: "Config", Message: err.Error()}
	}
	if c.EndpointURL == "" && c.Endpoint == "" {
		return &ConfigError{Field: "Endpoint", Message: "endpoint or endpoint URL is required"}
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required_with":
		return "access key ID and secret access key must be provided together"
	case "url":
		return "must be an absolute URL"
	case "min", "max":
		return fmt.Sprintf("length must be between 3 and 63, got %q", fe.Value())
	default:
		return fmt.Sprintf("failed %s=%s", fe.Tag(), fe.Param())
	}
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "oss config: " + e.Field + ": " + e.Message
}

// signingRegion returns the region used in V4 signatures.
func (c *Config) signingRegion(endpointRegion string) string {
	if r := strings.TrimSpace(c.Region); r != "" {
		return r
	}
	return endpointRegion
}
