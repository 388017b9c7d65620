package oss

import (
	"context"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// Signer authenticates an outgoing request.
type Signer interface {
	Sign(ctx context.Context, req *http.Request, payloadHash string) error
}

// SignerFunc adapts a function to Signer.
type SignerFunc func(ctx context.Context, req *http.Request, payloadHash string) error

// Sign calls f.
func (f SignerFunc) Sign(ctx context.Context, req *http.Request, payloadHash string) error {
	return f(ctx, req, payloadHash)
}

// Anonymous leaves requests unsigned.
var Anonymous Signer = SignerFunc(func(context.Context, *http.Request, string) error { return nil })

// emptyPayloadHash is the SHA-256 of an empty body, used for GET and HEAD.
const emptyPayloadHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

// signingService is the service name OSS expects in S3-compatible signatures.
const signingService = "s3"

// SigV4Signer signs requests with AWS Signature Version 4.
type SigV4Signer struct {
	creds  aws.CredentialsProvider
	region string
	signer *v4.Signer
	now    func() time.Time
}

// NewSigV4Signer signs for region with credentials from creds.
func NewSigV4Signer(creds aws.CredentialsProvider, region string) *SigV4Signer {
	return &SigV4Signer{
		creds:  creds,
		region: region,
		signer: v4.NewSigner(),
		now:    time.Now,
	}
}

// Sign implements Signer.
func (s *SigV4Signer) Sign(ctx context.Context, req *http.Request, payloadHash string) error {
	creds, err := s.creds.Retrieve(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("X-Amz-Content-Sha256", payloadHash)
	return s.signer.SignHTTP(ctx, creds, req, payloadHash, signingService, s.region, s.now().UTC())
}

// loadCredentials builds the credential provider for cfg.
func loadCredentials(ctx context.Context, cfg Config, region string) (aws.CredentialsProvider, error) {
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		return credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""), nil
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return awsCfg.Credentials, nil
}
