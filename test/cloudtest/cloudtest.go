// Package cloudtest runs integration tests against a local S3-compatible
// emulator (moto). The emulator serves the same ListObjectsV2 and ListBuckets
// XML as OSS, so fixtures are seeded through the S3 SDK and read back through
// the OSS provider. Callers carry the cloudintegration build tag:
//
//	env := cloudtest.Start(t)
//	bucket := env.Bucket(t, map[string]string{"logs/a.xml": "<a/>"})
//	p, err := oss.New(ctx, env.Config(bucket))
package cloudtest

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/errgroup"

	"github.com/3leaps/ossxml/pkg/provider/oss"
)

// DefaultEndpoint avoids port 5000, which macOS AirPlay holds.
const DefaultEndpoint = "http://localhost:5555"

const (
	defaultRegion = "us-east-1"
	accessKey     = "testing"
	secretKey     = "testing"
	seedWorkers   = 8
)

var seq atomic.Int64

// Env is a reachable emulator and an S3 client for seeding it.
type Env struct {
	Endpoint string
	Region   string

	s3 *s3.Client
}

// Start returns the emulator named by OSSXML_CLOUDTEST_ENDPOINT (or
// MOTO_ENDPOINT), skipping t when nothing answers there.
func Start(t *testing.T) *Env {
	t.Helper()
	env := &Env{
		Endpoint: firstEnv(DefaultEndpoint, "OSSXML_CLOUDTEST_ENDPOINT", "MOTO_ENDPOINT"),
		Region:   firstEnv(defaultRegion, "MOTO_REGION"),
	}
	if err := env.ping(context.Background()); err != nil {
		t.Skipf("emulator not reachable at %s (run: moto_server -p 5555): %v", env.Endpoint, err)
	}
	env.s3 = s3.New(s3.Options{
		Region:       env.Region,
		BaseEndpoint: aws.String(env.Endpoint),
		UsePathStyle: true,
		Credentials:  credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
	})
	return env
}

func firstEnv(fallback string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return fallback
}

func (e *Env) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return e.motoAPI(ctx, http.MethodGet, "/moto-api/")
}

// Reset drops every bucket the emulator holds.
func (e *Env) Reset(ctx context.Context) error {
	return e.motoAPI(ctx, http.MethodPost, "/moto-api/reset")
}

func (e *Env) motoAPI(ctx context.Context, method, path string) error {
	req, err := http.NewRequestWithContext(ctx, method, e.Endpoint+path, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	return nil
}

// Config reads bucket from the emulator with path-style signed requests.
func (e *Env) Config(bucket string) oss.Config {
	return oss.Config{
		Bucket:          bucket,
		EndpointURL:     e.Endpoint,
		ForcePathStyle:  true,
		Region:          e.Region,
		AccessKeyID:     accessKey,
		SecretAccessKey: secretKey,
	}
}

// Bucket creates a bucket named after t, fills it with objects (key to
// body) and removes it when t finishes.
func (e *Env) Bucket(t *testing.T, objects map[string]string) string {
	t.Helper()
	ctx := context.Background()
	name := BucketName(t.Name())

	if _, err := e.s3.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(name)}); err != nil {
		t.Fatalf("create bucket %s: %v", name, err)
	}
	t.Cleanup(func() {
		if err := e.drop(context.Background(), name); err != nil {
			t.Logf("cleanup bucket %s: %v", name, err)
		}
	})

	if err := e.Put(ctx, name, objects); err != nil {
		t.Fatalf("seed bucket %s: %v", name, err)
	}
	return name
}

// Put uploads objects concurrently.
func (e *Env) Put(ctx context.Context, bucket string, objects map[string]string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(seedWorkers)
	for key, body := range objects {
		g.Go(func() error {
			_, err := e.s3.PutObject(ctx, &s3.PutObjectInput{
				Bucket: aws.String(bucket),
				Key:    aws.String(key),
				Body:   strings.NewReader(body),
			})
			if err != nil {
				return fmt.Errorf("put %s: %w", key, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (e *Env) drop(ctx context.Context, bucket string) error {
	pages := s3.NewListObjectsV2Paginator(e.s3, &s3.ListObjectsV2Input{Bucket: aws.String(bucket)})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return err
		}
		for _, obj := range page.Contents {
			if _, err := e.s3.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(bucket), Key: obj.Key}); err != nil {
				return err
			}
		}
	}
	_, err := e.s3.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucket)})
	return err
}

// BucketName turns a test name into a unique valid bucket name.
func BucketName(testName string) string {
	name := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return '-'
	}, strings.ToLower(testName))
	name = strings.Trim(name, "-")
	if len(name) > 48 {
		name = strings.TrimRight(name[:48], "-")
	}
	return fmt.Sprintf("%s-%d-%d", name, os.Getpid()%1000, seq.Add(1))
}
