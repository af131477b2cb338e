// ===========================================================================
//
// File Name:  config.go
//
// ===========================================================================

package interactome

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/goccy/go-yaml"
	"github.com/komkom/toml"
)

// DefaultMaxLinks caps the number of links kept per organism
const DefaultMaxLinks = 262144

// Config is passed by value into every pipeline component
type Config struct {
	SourceDir string `yaml:"source_dir" json:"source_dir"`
	OutputDir string `yaml:"output_dir" json:"output_dir"`
	Version   string `yaml:"version" json:"version"`

	MaxLinks int `yaml:"max_links" json:"max_links"`
	LastLink int `yaml:"last_link" json:"last_link"`

	LayoutThreshold     float64  `yaml:"layout_threshold" json:"layout_threshold"`
	FunctionalThreshold float64  `yaml:"functional_threshold" json:"functional_threshold"`
	AnnotationThreshold float64  `yaml:"annotation_threshold" json:"annotation_threshold"`
	MaxNumFeatures      int      `yaml:"max_num_features" json:"max_num_features"`
	MaxNumAnnotations   int      `yaml:"max_num_annotations" json:"max_num_annotations"`
	Categories          []string `yaml:"categories" json:"categories"`

	Spring  SpringParams  `yaml:"spring" json:"spring"`
	TSNE    TSNEParams    `yaml:"tsne" json:"tsne"`
	UMAP    UMAPParams    `yaml:"umap" json:"umap"`
	Cluster ClusterParams `yaml:"cluster" json:"cluster"`

	Overwrite          bool `yaml:"overwrite" json:"overwrite"`
	OverwriteLinks     bool `yaml:"overwrite_links" json:"overwrite_links"`
	RebuildAnnotations bool `yaml:"rebuild_annotations" json:"rebuild_annotations"`
	NameClusters       bool `yaml:"name_clusters" json:"name_clusters"`

	Seed      int64 `yaml:"seed" json:"seed"`
	Workers   int   `yaml:"workers" json:"workers"`
	Processes int   `yaml:"processes" json:"processes"`

	MappingBatchSize int    `yaml:"mapping_batch_size" json:"mapping_batch_size"`
	MappingURL       string `yaml:"mapping_url" json:"mapping_url"`
	EnrichmentURL    string `yaml:"enrichment_url" json:"enrichment_url"`
	RemoteTimeout    int    `yaml:"remote_timeout" json:"remote_timeout"`

	LogLevel string `yaml:"log_level" json:"log_level"`
	NoColor  bool   `yaml:"no_color" json:"no_color"`
}

// DefaultConfig returns the settings used to build the published interactomes
func DefaultConfig() Config {

	return Config{
		SourceDir:           filepath.Join(".", "string_interactomes"),
		OutputDir:           filepath.Join(".", "csv", "string_interactomes"),
		Version:             "v11.5",
		MaxLinks:            DefaultMaxLinks,
		LayoutThreshold:     0.4,
		FunctionalThreshold: 0.05,
		AnnotationThreshold: 0.1,
		MaxNumFeatures:      30,
		MaxNumAnnotations:   30,
		Spring:              DefaultSpringParams(),
		TSNE:                DefaultTSNEParams(),
		UMAP:                DefaultUMAPParams(),
		Cluster:             DefaultClusterParams(),
		Seed:                42,
		Processes:           1,
		MappingBatchSize:    500,
		MappingURL:          "https://rest.uniprot.org",
		EnrichmentURL:       "https://version-11-5.string-db.org/api",
		RemoteTimeout:       120,
		LogLevel:            "info",
	}
}

// LoadConfig overlays a YAML, TOML, or JSON file onto the defaults
func LoadConfig(path string) (Config, error) {

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	case ".toml":
		// komkom/toml streams the document as JSON
		rdr := toml.New(bytes.NewReader(data))
		err = json.NewDecoder(rdr).Decode(&cfg)
	case ".json":
		err = json.Unmarshal(data, &cfg)
	default:
		return cfg, fmt.Errorf("%w: unrecognized config extension '%s'", ErrInvalidConfig, filepath.Ext(path))
	}
	if err != nil {
		return cfg, fmt.Errorf("%w: parsing %s: %v", ErrInvalidConfig, path, err)
	}

	return cfg, cfg.Validate()
}

// Validate rejects values that would silently produce a broken interactome
func (c Config) Validate() error {

	bad := func(format string, args ...any) error {
		return fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...)
	}

	if c.MaxLinks < 1 {
		return bad("max_links must be positive, got %d", c.MaxLinks)
	}
	if c.LastLink < 0 {
		return bad("last_link must not be negative, got %d", c.LastLink)
	}
	if c.LayoutThreshold < 0 || c.LayoutThreshold > 1 {
		return bad("layout_threshold must lie in [0,1], got %g", c.LayoutThreshold)
	}
	if c.FunctionalThreshold < 0.01 || c.FunctionalThreshold > 1 {
		return bad("functional_threshold must lie in [0.01,1], got %g", c.FunctionalThreshold)
	}
	if c.AnnotationThreshold < 0.01 || c.AnnotationThreshold > 1 {
		return bad("annotation_threshold must lie in [0.01,1], got %g", c.AnnotationThreshold)
	}
	if c.MaxNumFeatures < 0 || c.MaxNumAnnotations < 0 {
		return bad("feature and annotation limits must not be negative")
	}
	if c.MappingBatchSize < 1 {
		return bad("mapping_batch_size must be positive, got %d", c.MappingBatchSize)
	}
	if c.Processes < 0 || c.Workers < 0 {
		return bad("worker counts must not be negative")
	}
	if c.Version == "" {
		return bad("version must be set")
	}

	return nil
}
