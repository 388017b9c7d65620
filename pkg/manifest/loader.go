package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"

	"github.com/3leaps/ossxml/pkg/match"
)

var (
	ErrEmpty = errors.New("manifest is empty")

	// ErrInvalid wraps every validation failure.
	ErrInvalid = errors.New("invalid manifest")
)

var validate = validator.New()

// Load reads, decodes and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		switch {
		case errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("manifest file not found: %s: %w", path, os.ErrNotExist)
		case errors.Is(err, os.ErrPermission):
			return nil, fmt.Errorf("permission denied reading manifest: %s", path)
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromReader reads a manifest from r.
func LoadFromReader(r io.Reader) (*Manifest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes decodes YAML or JSON, applies defaults and validates.
func LoadFromBytes(data []byte) (*Manifest, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmpty
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	var m Manifest
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  mapstructure.StringToTimeDurationHookFunc(),
		ErrorUnused: true,
		Result:      &m,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	m.ApplyDefaults()
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks field constraints, the connection and the patterns.
func (m *Manifest) Validate() error {
	if err := validate.Struct(m); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %s=%s", ErrInvalid, fe.Namespace(), fe.Tag(), fe.Param())
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if m.Connection.Bucket == "" {
		return fmt.Errorf("%w: connection.bucket is required", ErrInvalid)
	}
	if err := m.Connection.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err := match.New(m.Match); err != nil {
		return fmt.Errorf("%w: match: %w", ErrInvalid, err)
	}
	if _, err := match.NewFilter(m.Filters); err != nil {
		return fmt.Errorf("%w: filters: %w", ErrInvalid, err)
	}
	return nil
}
