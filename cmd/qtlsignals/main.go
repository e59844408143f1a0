// qtlsignals splits eQTL or sQTL summary statistics into one file per
// phenotype and chromosome and reports the phenotypes with a significant
// variant.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/carbocation/colotools/compileinfo"
	_ "github.com/carbocation/colotools/compileinfoprint"
	"github.com/carbocation/colotools/pipeline"
	"github.com/sirupsen/logrus"
)

func main() {
	var configPath string
	var workers int
	var verbose, jsonLog bool

	flag.StringVar(&configPath, "config", "", "Path to the YAML configuration.")
	flag.IntVar(&workers, "workers", 0, "Phenotypes processed at once. Overrides the configuration if positive.")
	flag.BoolVar(&verbose, "verbose", false, "Log debug messages.")
	flag.BoolVar(&jsonLog, "json-log", false, "Log as JSON.")
	flag.Parse()

	if configPath == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	pipeline.ConfigureLogger(verbose, jsonLog)

	cfg, err := pipeline.Load(configPath)
	if err != nil {
		log.Fatalln(err)
	}
	if workers > 0 {
		cfg.Workers = workers
	}
	if cfg.QTL.Path == "" {
		log.Fatalln("qtl.path must be set")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalln(err)
	}

	ctx := context.Background()

	runLog := pipeline.NewRun(logrus.StandardLogger(), pipeline.RunQTL, cfg)
	runLog.WithFields(compileinfo.Get().Fields()).Debugln("Starting")

	client, err := pipeline.StorageClient(ctx, cfg)
	if err != nil {
		log.Fatalln(err)
	}

	signals, err := pipeline.QTL(ctx, runLog, cfg, client)
	if client != nil {
		client.Close()
	}
	if err != nil {
		log.Fatalln(err)
	}

	runLog.Infof("Wrote %d phenotype signals to %s", len(signals), cfg.QTLSignalsPath())
}
