package cmd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/ossxml/pkg/crawler"
	"github.com/3leaps/ossxml/pkg/manifest"
	"github.com/3leaps/ossxml/pkg/match"
	"github.com/3leaps/ossxml/pkg/output"
	"github.com/3leaps/ossxml/pkg/provider"
	"github.com/3leaps/ossxml/pkg/provider/oss"
)

func testManifest(includes ...string) *manifest.Manifest {
	m := &manifest.Manifest{
		Version:    manifest.CurrentVersion,
		Connection: oss.Config{Bucket: "app-logs", Endpoint: "oss-cn-hangzhou.aliyuncs.com"},
		Match:      match.Config{Includes: includes},
		Crawl:      crawler.Config{Concurrency: 2},
	}
	m.ApplyDefaults()
	return m
}

func TestShowCrawlPlan(t *testing.T) {
	tests := []struct {
		name     string
		manifest func() *manifest.Manifest
		contains []string
	}{
		{
			name: "basic manifest",
			manifest: func() *manifest.Manifest {
				return testManifest("**/*")
			},
			contains: []string{
				"Crawl Plan (dry-run)",
				"Bucket:      app-logs",
				"Endpoint:    oss-cn-hangzhou.aliyuncs.com",
				"**/*",
				"(bucket root)",
				"Concurrency: 2",
				"Output:      stdout",
				"Progress:    true",
			},
		},
		{
			name: "with excludes and walk",
			manifest: func() *manifest.Manifest {
				m := testManifest("data/**/*.parquet", "data/raw/*.xml")
				m.Match.Excludes = []string{"**/.DS_Store", "**/tmp/*"}
				m.Crawl.RateLimit = 100
				m.Crawl.Delimiter = "/"
				m.Crawl.MaxDepth = 3
				m.Crawl.Enrich = true
				m.Output.Destination = "results.jsonl"
				return m
			},
			contains: []string{
				"    - data/\n",
				"Exclude:",
				"**/.DS_Store",
				"Rate Limit:  100.0 req/s",
				`Delimiter:   "/" (max depth 3)`,
				"Enrich:",
				"Output:      results.jsonl",
			},
		},
		{
			name: "with filters",
			manifest: func() *manifest.Manifest {
				m := testManifest("data/**")
				m.Filters = match.FilterConfig{MinSize: "1KiB", KeyRegex: `\.parquet$`}
				return m
			},
			contains: []string{
				"Filters:",
				`\.parquet$`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, showCrawlPlan(&buf, tt.manifest()))
			for _, want := range tt.contains {
				assert.Contains(t, buf.String(), want, "output should contain %q", want)
			}
		})
	}
}

func TestShowCrawlPlan_InvalidPattern(t *testing.T) {
	var buf bytes.Buffer
	err := showCrawlPlan(&buf, testManifest("data/[x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid match patterns")
}

func readRecords(t *testing.T, data []byte) []output.Record {
	t.Helper()
	var records []output.Record
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		var rec output.Record
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		records = append(records, rec)
	}
	require.NoError(t, sc.Err())
	return records
}

func countTypes(records []output.Record) map[string]int {
	counts := map[string]int{}
	for _, r := range records {
		counts[r.Type]++
	}
	return counts
}

func TestRunCrawlJob(t *testing.T) {
	prov := newFakeProvider(map[string]int64{
		"app/2024/a.xml":  10,
		"app/2024/b.xml":  20,
		"app/2024/c.json": 30,
		"other/d.xml":     40,
	})
	var buf bytes.Buffer
	w := output.NewJSONLWriter(&buf, "job-1", "oss")

	_, err := runCrawlJob(context.Background(), prov, w, testManifest("app/**/*.xml"), "job-1")
	require.NoError(t, err)

	records := readRecords(t, buf.Bytes())
	counts := countTypes(records)
	assert.Equal(t, 2, counts[output.TypeObject])
	assert.Equal(t, 1, counts[output.TypeSummary])
	assert.Positive(t, counts[output.TypeProgress])

	for _, r := range records {
		assert.Equal(t, "job-1", r.JobID)
		if r.Type != output.TypeObject {
			continue
		}
		var obj output.ObjectRecord
		require.NoError(t, json.Unmarshal(r.Data, &obj))
		assert.Equal(t, "app-logs", obj.Bucket)
		assert.Contains(t, []string{"app/2024/a.xml", "app/2024/b.xml"}, obj.Key)
	}
}

func TestRunCrawlJob_QuietAndFilters(t *testing.T) {
	prov := newFakeProvider(map[string]int64{
		"app/small.xml": 10,
		"app/big.xml":   4096,
	})
	var buf bytes.Buffer
	w := output.NewJSONLWriter(&buf, "job-2", "oss")

	m := testManifest("app/*.xml")
	off := false
	m.Output.Progress = &off
	m.Filters = match.FilterConfig{MinSize: "1KiB"}

	_, err := runCrawlJob(context.Background(), prov, w, m, "job-2")
	require.NoError(t, err)

	counts := countTypes(readRecords(t, buf.Bytes()))
	assert.Equal(t, 1, counts[output.TypeObject])
	assert.Zero(t, counts[output.TypeProgress])
}

func TestRunCrawlJob_Fatal(t *testing.T) {
	prov := newFakeProvider(nil)
	prov.listErr = &provider.ProviderError{Op: "List", Provider: provider.ProviderOSS, Err: provider.ErrAccessDenied}
	var buf bytes.Buffer

	_, err := runCrawlJob(context.Background(), prov, output.NewJSONLWriter(&buf, "job", "oss"), testManifest("**"), "job")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Crawl failed")
	assert.True(t, provider.IsAccessDenied(err))
}

func TestRunCrawlJob_InvalidFilter(t *testing.T) {
	m := testManifest("**")
	m.Filters = match.FilterConfig{MinSize: "lots"}

	_, err := runCrawlJob(context.Background(), newFakeProvider(nil), output.NewJSONLWriter(&bytes.Buffer{}, "job", "oss"), m, "job")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid filters")
}

func TestCreateWriter_Stdout(t *testing.T) {
	m := testManifest("**")

	writer, cleanup, err := createWriter(m, "test-job-id")
	require.NoError(t, err)
	require.NotNil(t, writer)
	require.NotNil(t, cleanup)

	cleanup()
}

func TestCreateWriter_FileDestination(t *testing.T) {
	for _, prefix := range []string{"", "file:"} {
		t.Run("prefix="+prefix, func(t *testing.T) {
			outPath := filepath.Join(t.TempDir(), "output.jsonl")
			m := testManifest("**")
			m.Output.Destination = prefix + outPath

			writer, cleanup, err := createWriter(m, "test-job-id")
			require.NoError(t, err)
			require.NotNil(t, writer)

			_, err = os.Stat(outPath)
			require.NoError(t, err)

			cleanup()
		})
	}
}

func TestCreateWriter_InvalidPath(t *testing.T) {
	m := testManifest("**")
	m.Output.Destination = "/nonexistent/deeply/nested/path/output.jsonl"

	_, _, err := createWriter(m, "test-job-id")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create output file")
}

func TestRunCrawl_MissingManifest(t *testing.T) {
	crawlJobPath = filepath.Join(t.TempDir(), "missing.yaml")
	defer func() { crawlJobPath = "" }()

	err := runCrawl(crawlCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Manifest not found")
}

func TestRunCrawl_DryRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`version: "1.0"
connection:
  bucket: app-logs
  endpoint: cn-hangzhou
match:
  includes: ["app/**"]
`), 0o600))

	crawlJobPath, crawlDryRun = path, true
	defer func() { crawlJobPath, crawlDryRun = "", false }()

	var buf bytes.Buffer
	crawlCmd.SetOut(&buf)
	defer crawlCmd.SetOut(nil)

	require.NoError(t, runCrawl(crawlCmd, nil))
	assert.Contains(t, buf.String(), "Bucket:      app-logs")
	assert.Contains(t, buf.String(), "    - app/\n")
}
