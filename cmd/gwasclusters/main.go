// gwasclusters preprocesses GWAS summary statistics, clumps each chromosome
// with plink and writes disjoint clusters around the lead variants, plus the
// cluster summary consumed by colocpairs.
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
	var workers, radius int
	var verbose, jsonLog bool

	flag.StringVar(&configPath, "config", "", "Path to the YAML configuration.")
	flag.IntVar(&workers, "workers", 0, "Chromosomes processed at once. Overrides the configuration if positive.")
	flag.IntVar(&radius, "radius", -1, "Window radius, in variants, around each lead. Overrides the configuration if not negative.")
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
	if radius >= 0 {
		cfg.Cluster.Radius = radius
	}
	if cfg.GWAS.Path == "" {
		log.Fatalln("gwas.path must be set")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalln(err)
	}

	if err := run(cfg); err != nil {
		log.Fatalln(err)
	}
}

func run(cfg pipeline.Config) error {
	ctx := context.Background()

	runLog := pipeline.NewRun(logrus.StandardLogger(), pipeline.RunGWAS, cfg)
	runLog.WithFields(compileinfo.Get().Fields()).Debugln("Starting")

	client, err := pipeline.StorageClient(ctx, cfg)
	if err != nil {
		return err
	}
	if client != nil {
		defer client.Close()
	}

	out, err := pipeline.GWAS(ctx, runLog, cfg, client)
	if err != nil {
		return err
	}

	if len(out.Summary) == 0 {
		runLog.Warnln("No clusters were found; there is nothing to colocalize")
	}

	return nil
}
