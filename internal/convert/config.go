// Loads and validates the conversion configuration.

package convert

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/maruel/jsonl2tfrecord/internal/jsonl"
	"github.com/maruel/jsonl2tfrecord/internal/objstore"
	"github.com/maruel/jsonl2tfrecord/internal/tfrecord"
)

// Config describes one conversion run.
type Config struct {
	InputURI     string  `yaml:"input_uri" json:"input_uri" jsonschema:"description=URI prefix of the JSONL objects to convert (gs://bucket/prefix)"`
	OutputPrefix string  `yaml:"output_prefix" json:"output_prefix" jsonschema:"description=URI prefix under which TFRecord objects are written"`
	InputSuffix  string  `yaml:"input_suffix,omitempty" json:"input_suffix,omitempty" jsonschema:"description=Suffix identifying input objects,default=.jsonl"`
	OutputSuffix string  `yaml:"output_suffix,omitempty" json:"output_suffix,omitempty" jsonschema:"description=Suffix replacing the input suffix,default=.tfrecords"`
	Compression  string  `yaml:"compression,omitempty" json:"compression,omitempty" jsonschema:"description=TFRecord compression,enum=none,enum=gzip,enum=zlib"`
	Parallelism  int     `yaml:"parallelism,omitempty" json:"parallelism,omitempty" jsonschema:"description=Objects converted concurrently,minimum=1,default=1"`
	QPS          float64 `yaml:"qps,omitempty" json:"qps,omitempty" jsonschema:"description=Maximum store requests per second (0 = unlimited),minimum=0"`
	PageSize     int     `yaml:"page_size,omitempty" json:"page_size,omitempty" jsonschema:"description=Objects requested per listing page,minimum=0"`
	MaxLineBytes int     `yaml:"max_line_bytes,omitempty" json:"max_line_bytes,omitempty" jsonschema:"description=Longest accepted JSONL line in bytes,minimum=0"`
	DryRun       bool    `yaml:"dry_run,omitempty" json:"dry_run,omitempty" jsonschema:"description=List and derive output paths without converting"`
}

// DefaultConfig returns a Config with every optional field set.
func DefaultConfig() Config {
	return Config{
		InputSuffix:  ".jsonl",
		OutputSuffix: ".tfrecords",
		Compression:  tfrecord.CompressionNone.String(),
		Parallelism:  1,
		PageSize:     objstore.DefaultPageSize,
		MaxLineBytes: jsonl.DefaultMaxLineBytes,
	}
}

// LoadConfig reads a YAML configuration file on top of DefaultConfig.
// The path is provided by the CLI user, so file inclusion is expected.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-specified config path
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML configuration bytes on top of DefaultConfig. Unknown
// keys are rejected. The result is not validated: flags may still override it.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.InputURI == "" {
		return errors.New("input_uri is required")
	}
	if c.OutputPrefix == "" {
		return errors.New("output_prefix is required")
	}
	if _, _, _, err := objstore.SplitURI(c.InputURI); err != nil {
		return fmt.Errorf("input_uri: %w", err)
	}
	if _, _, _, err := objstore.SplitURI(c.OutputPrefix); err != nil {
		return fmt.Errorf("output_prefix: %w", err)
	}
	if !strings.HasPrefix(c.InputSuffix, ".") {
		return fmt.Errorf("input_suffix %q must start with a dot", c.InputSuffix)
	}
	if !strings.HasPrefix(c.OutputSuffix, ".") || strings.Contains(c.OutputSuffix, "/") {
		return fmt.Errorf("output_suffix %q must start with a dot and not contain a slash", c.OutputSuffix)
	}
	if c.InputSuffix == c.OutputSuffix {
		return fmt.Errorf("input_suffix and output_suffix are both %q", c.InputSuffix)
	}
	if _, err := tfrecord.ParseCompression(c.Compression); err != nil {
		return err
	}
	if c.Parallelism < 1 {
		return fmt.Errorf("parallelism must be at least 1, got %d", c.Parallelism)
	}
	if c.QPS < 0 {
		return fmt.Errorf("qps must not be negative, got %g", c.QPS)
	}
	if c.PageSize < 0 || c.MaxLineBytes < 0 {
		return errors.New("page_size and max_line_bytes must not be negative")
	}
	return nil
}

// ConfigSchema returns the JSON Schema of the YAML configuration file, for
// editor validation.
func ConfigSchema() ([]byte, error) {
	r := jsonschema.Reflector{Anonymous: true, DoNotReference: true}
	return json.MarshalIndent(r.Reflect(&Config{}), "", "  ")
}
