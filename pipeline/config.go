package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/carbocation/colotools"
	"github.com/carbocation/colotools/clump"
	"github.com/carbocation/colotools/refpanel"
	"github.com/carbocation/colotools/sumstats"
	"github.com/carbocation/colotools/tools"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type QTLType string

const (
	EQTL QTLType = "eqtl"
	SQTL QTLType = "sqtl"
)

type Config struct {
	OutputDir string `yaml:"output_dir"`
	Workers   int    `yaml:"workers"`

	// GCS creates a google storage client so that inputs may be gs:// paths.
	GCS bool `yaml:"gcs"`

	GWAS      GWASConfig       `yaml:"gwas"`
	QTL       QTLConfig        `yaml:"qtl"`
	Clump     clump.Plink      `yaml:"clump"`
	Cluster   ClusterConfig    `yaml:"cluster"`
	Reference ReferenceConfig  `yaml:"reference"`
	Tools     []tools.Override `yaml:"tools"`
	BigQuery  BigQueryConfig   `yaml:"bigquery"`
}

type GWASConfig struct {
	Path            string           `yaml:"path"`
	Columns         sumstats.Columns `yaml:"columns"`
	PValueThreshold float64          `yaml:"pvalue_threshold"`
}

type QTLConfig struct {
	Path            string           `yaml:"path"`
	Type            QTLType          `yaml:"type"`
	Columns         sumstats.Columns `yaml:"columns"`
	PValueThreshold float64          `yaml:"pvalue_threshold"`
}

type ClusterConfig struct {
	// Radius is the window half-width, counted in variants.
	Radius int `yaml:"radius"`
}

type ReferenceConfig struct {
	Kind     refpanel.Kind `yaml:"kind"`
	Template string        `yaml:"template"`
}

// BigQueryConfig names an existing table that tool results are appended to.
// Export is skipped when Project is empty.
type BigQueryConfig struct {
	Project string `yaml:"project"`
	Dataset string `yaml:"dataset"`
	Table   string `yaml:"table"`
}

// Environment holds the settings that may be overridden from the
// environment. Empty values leave the file's settings in place.
type Environment struct {
	OutputDir         string `envconfig:"COLOTOOLS_OUTPUT_DIR"`
	Workers           int    `envconfig:"COLOTOOLS_WORKERS"`
	Plink             string `envconfig:"COLOTOOLS_PLINK"`
	BFileTemplate     string `envconfig:"COLOTOOLS_BFILE_TEMPLATE"`
	ReferenceTemplate string `envconfig:"COLOTOOLS_REFERENCE_TEMPLATE"`
	BigQueryProject   string `envconfig:"COLOTOOLS_BIGQUERY_PROJECT"`
}

func Defaults() Config {
	return Config{
		OutputDir: "colotools_output",
		Workers:   4,
		GWAS: GWASConfig{
			PValueThreshold: 5e-8,
		},
		QTL: QTLConfig{
			Type:            EQTL,
			PValueThreshold: 1e-6,
		},
		Clump: clump.Defaults(),
		Cluster: ClusterConfig{
			Radius: 50,
		},
	}
}

// Load reads the YAML file at path over the defaults and then applies
// environment overrides.
func Load(path string) (Config, error) {
	cfg := Defaults()

	local, err := colotools.ExpandHome(path)
	if err != nil {
		return cfg, err
	}

	f, err := os.Open(local)
	if err != nil {
		return cfg, err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}

	if err := cfg.ApplyEnvironment(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func (cfg *Config) ApplyEnvironment() error {
	var env Environment
	if err := envconfig.Process("", &env); err != nil {
		return err
	}

	if env.OutputDir != "" {
		cfg.OutputDir = env.OutputDir
	}
	if env.Workers > 0 {
		cfg.Workers = env.Workers
	}
	if env.Plink != "" {
		cfg.Clump.Binary = env.Plink
	}
	if env.BFileTemplate != "" {
		cfg.Clump.BFileTemplate = env.BFileTemplate
	}
	if env.ReferenceTemplate != "" {
		cfg.Reference.Template = env.ReferenceTemplate
	}
	if env.BigQueryProject != "" {
		cfg.BigQuery.Project = env.BigQueryProject
	}

	return nil
}

// Validate checks the settings shared by every run.
func (cfg Config) Validate() error {
	if cfg.OutputDir == "" {
		return fmt.Errorf("output_dir must be set")
	}
	if cfg.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", cfg.Workers)
	}
	if cfg.Cluster.Radius < 0 {
		return fmt.Errorf("cluster radius must not be negative, got %d", cfg.Cluster.Radius)
	}
	if cfg.QTL.Type != EQTL && cfg.QTL.Type != SQTL {
		return fmt.Errorf("qtl type must be %s or %s, got %q", EQTL, SQTL, cfg.QTL.Type)
	}

	for _, t := range cfg.Tools {
		if _, err := tools.Lookup(t); err != nil {
			return err
		}
	}

	return nil
}

func (cfg Config) gwasDir() string {
	return filepath.Join(cfg.OutputDir, "gwas")
}

func (cfg Config) qtlDir() string {
	return filepath.Join(cfg.OutputDir, "qtl")
}

// ClusterSummaryPath is the GWAS run's terminal artifact.
func (cfg Config) ClusterSummaryPath() string {
	return filepath.Join(cfg.gwasDir(), "cluster_summary.tsv")
}

// QTLSignalsPath is the QTL run's terminal artifact.
func (cfg Config) QTLSignalsPath() string {
	return filepath.Join(cfg.qtlDir(), "qtl_signals.tsv")
}

func (cfg Config) ResultsPath(tool string) string {
	return filepath.Join(cfg.OutputDir, "results", tool+".tsv")
}
