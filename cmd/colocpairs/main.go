// colocpairs pairs GWAS clusters with QTL phenotypes that share significant
// positions and runs the configured colocalization tools over each admitted
// pair.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"

	"github.com/carbocation/colotools/compileinfo"
	_ "github.com/carbocation/colotools/compileinfoprint"
	"github.com/carbocation/colotools/pipeline"
	"github.com/carbocation/colotools/tools"
	"github.com/sirupsen/logrus"
)

func main() {
	var configPath, toolList string
	var verbose, jsonLog bool

	flag.StringVar(&configPath, "config", "", "Path to the YAML configuration.")
	flag.StringVar(&toolList, "tools", "", "Comma-separated tools to run (default: the configured tools, or all of "+strings.Join(tools.Names(), ",")+").")
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
	if err := cfg.Validate(); err != nil {
		log.Fatalln(err)
	}

	var names []string
	for _, name := range strings.Split(toolList, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}

	ctx := context.Background()

	runLog := pipeline.NewRun(logrus.StandardLogger(), pipeline.RunPairs, cfg)
	runLog.WithFields(compileinfo.Get().Fields()).Debugln("Starting")

	client, err := pipeline.StorageClient(ctx, cfg)
	if err != nil {
		log.Fatalln(err)
	}

	results, err := pipeline.Pairs(ctx, runLog, cfg, client, names)
	if client != nil {
		client.Close()
	}
	if err != nil {
		log.Fatalln(err)
	}

	if len(results) == 0 {
		runLog.Warnln("No pair produced a result")
	}
}
