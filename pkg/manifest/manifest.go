// Package manifest loads crawl job manifests.
//
// A manifest is a YAML (or JSON) file describing one crawl: the OSS
// connection, the key patterns, listing filters, crawl tuning and where
// records go. Unknown keys are rejected.
//
//	version: "1.0"
//	connection:
//	  bucket: my-logs
//	  endpoint: oss-cn-hangzhou.aliyuncs.com
//	match:
//	  includes:
//	    - "app/2024/**/*.xml"
//	  excludes:
//	    - "**/tmp/**"
//	filters:
//	  min_size: 1KiB
//	  storage_classes: [Standard]
//	crawl:
//	  concurrency: 8
//	  delimiter: "/"
//	output:
//	  destination: file:/tmp/logs.jsonl
package manifest

import (
	"github.com/3leaps/ossxml/pkg/crawler"
	"github.com/3leaps/ossxml/pkg/match"
	"github.com/3leaps/ossxml/pkg/provider/oss"
)

// Manifest is a loaded crawl job.
type Manifest struct {
	Version    string             `mapstructure:"version" validate:"required,eq=1.0"`
	Connection oss.Config         `mapstructure:"connection"`
	Match      match.Config       `mapstructure:"match"`
	Filters    match.FilterConfig `mapstructure:"filters"`
	Crawl      crawler.Config     `mapstructure:"crawl"`
	Output     OutputConfig       `mapstructure:"output"`
}

// OutputConfig selects where records are written.
type OutputConfig struct {
	// Destination is "stdout" or "file:<path>". A bare path is a file.
	Destination string `mapstructure:"destination"`

	// Progress toggles progress records. Default: true.
	Progress *bool `mapstructure:"progress"`
}

const (
	CurrentVersion     = "1.0"
	DefaultDestination = "stdout"
)

// ApplyDefaults fills optional fields left empty.
func (m *Manifest) ApplyDefaults() {
	def := crawler.DefaultConfig()
	if m.Crawl.Concurrency == 0 {
		m.Crawl.Concurrency = def.Concurrency
	}
	if m.Crawl.ChannelBuffer == 0 {
		m.Crawl.ChannelBuffer = def.ChannelBuffer
	}
	if m.Crawl.ProgressEvery == 0 {
		m.Crawl.ProgressEvery = def.ProgressEvery
	}
	if m.Output.Destination == "" {
		m.Output.Destination = DefaultDestination
	}
	if m.Output.Progress == nil {
		on := true
		m.Output.Progress = &on
	}
}

// ProgressEnabled reports whether progress records are wanted.
func (o *OutputConfig) ProgressEnabled() bool {
	return o.Progress == nil || *o.Progress
}
