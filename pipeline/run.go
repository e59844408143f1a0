// Package pipeline runs the three colotools stages: GWAS clustering, QTL
// signal detection, and tool invocation over admitted cluster/phenotype
// pairs. Stages hand off through files under the configured output
// directory.
package pipeline

import (
	"context"

	"cloud.google.com/go/storage"
	"github.com/sirupsen/logrus"
)

// Run kinds, recorded on every log line of a run.
const (
	RunGWAS  = "gwas"
	RunQTL   = "qtl"
	RunPairs = "pairs"
)

// NewRun returns the logger that is passed through every stage of one run.
func NewRun(logger *logrus.Logger, kind string, cfg Config) *logrus.Entry {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return logger.WithFields(logrus.Fields{
		"run":        kind,
		"output_dir": cfg.OutputDir,
	})
}

// StorageClient returns a google storage client when cfg.GCS is set, and nil
// otherwise. The caller closes it.
func StorageClient(ctx context.Context, cfg Config) (*storage.Client, error) {
	if !cfg.GCS {
		return nil, nil
	}

	return storage.NewClient(ctx)
}

// ConfigureLogger sets the standard logger's level and format. It is called
// once, by a binary's main, before any run starts.
func ConfigureLogger(verbose, jsonLog bool) {
	logrus.SetLevel(logrus.InfoLevel)
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if jsonLog {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}
