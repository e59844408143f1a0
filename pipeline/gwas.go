package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cloud.google.com/go/storage"
	"github.com/carbocation/colotools/clump"
	"github.com/carbocation/colotools/locus"
	"github.com/carbocation/colotools/sumstats"
	"github.com/carbocation/colotools/tools"
	"github.com/carbocation/pfx"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// GWASOutput is what a GWAS run produced.
type GWASOutput struct {
	Clusters    []locus.Cluster
	Summary     []locus.ClusterSummary
	SummaryPath string
}

// GWAS reads the raw summary statistics, preprocesses them, clumps every
// chromosome with signal and writes cluster files plus the cluster summary.
// Chromosomes that clump to nothing, or fail, contribute no clusters. Only
// input and configuration errors are returned.
func GWAS(ctx context.Context, log *logrus.Entry, cfg Config, client *storage.Client) (*GWASOutput, error) {
	dir := cfg.gwasDir()

	table, err := sumstats.ReadTable(ctx, log, cfg.GWAS.Path, cfg.GWAS.Columns, client)
	if err != nil {
		return nil, err
	}
	raw := len(table.Rows)

	sumstats.Preprocess(table)
	log.Infof("Kept %d of %d variants after autosome, indel and duplicate filters", len(table.Rows), raw)

	if err := sumstats.WriteTable(filepath.Join(dir, "preprocessed.tsv.gz"), table); err != nil {
		return nil, err
	}

	filtered := sumstats.FilterP(table.Rows, cfg.GWAS.PValueThreshold)
	log.Infof("%d variants have p < %g", len(filtered), cfg.GWAS.PValueThreshold)

	if err := sumstats.WriteTable(filepath.Join(dir, "filtered.tsv.gz"), table.WithRows(filtered)); err != nil {
		return nil, err
	}

	// Cluster files from an earlier run would otherwise outlive leads that
	// no longer exist.
	if err := os.RemoveAll(filepath.Join(dir, "clusters")); err != nil {
		return nil, pfx.Err(err)
	}

	chroms, significant := sumstats.GroupByChromosome(filtered)
	_, full := sumstats.GroupByChromosome(table.Rows)

	perChrom := make([][]locus.Cluster, len(chroms))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i, chrom := range chroms {
		i, chrom := i, chrom
		g.Go(func() error {
			clog := log.WithField("chrom", chrom)
			clusters, err := gwasChromosome(gctx, clog, cfg, table.WithRows(full[chrom]), significant[chrom])
			if tools.IsNotFound(err) {
				return err
			} else if errors.Is(err, clump.ErrNoClumps) {
				return nil
			} else if err != nil {
				clog.WithError(err).Warnln("Skipping chromosome")
				return nil
			}
			perChrom[i] = clusters
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &GWASOutput{SummaryPath: cfg.ClusterSummaryPath()}
	for _, clusters := range perChrom {
		out.Clusters = append(out.Clusters, clusters...)
	}
	out.Summary = locus.Summarize(out.Clusters)

	if err := locus.WriteSummary(out.SummaryPath, out.Summary); err != nil {
		return nil, err
	}

	d := locus.Describe(out.Clusters)
	log.WithFields(logrus.Fields{
		"clusters":     d.Clusters,
		"median_width": d.MedianWidth,
		"max_width":    d.MaxWidth,
	}).Infoln("Wrote cluster summary", out.SummaryPath)

	return out, nil
}

// gwasChromosome clumps one chromosome's significant variants and clusters
// the resulting leads against the chromosome's full table.
func gwasChromosome(ctx context.Context, log *logrus.Entry, cfg Config, full *sumstats.Table, significant []sumstats.Variant) ([]locus.Cluster, error) {
	chrom := full.Rows[0].Chrom
	dir := cfg.gwasDir()

	assoc := filepath.Join(dir, "chrom", fmt.Sprintf("chr%s.tsv", chrom))
	if err := clump.WriteAssoc(assoc, significant); err != nil {
		return nil, err
	}

	report, err := cfg.Clump.Run(ctx, log, chrom, assoc, filepath.Join(dir, "clumped", "chr"+chrom))
	if err != nil {
		return nil, err
	}

	clumps, err := clump.ReadClumped(report)
	if err != nil {
		log.WithError(err).Warnln("Unreadable clump report")
		return nil, fmt.Errorf("%s: %w", report, clump.ErrNoClumps)
	}

	leads := clump.Leads(log, clumps)
	if len(leads) == 0 {
		log.Warnln("Clump report has no leads")
		return nil, nil
	}

	target, err := locus.NewSortedTable(chrom, full)
	if err != nil {
		return nil, err
	}

	clusters, err := locus.Build(target, leads, cfg.Cluster.Radius)
	if err != nil {
		return nil, err
	}

	if err := locus.WriteClusterFiles(filepath.Join(dir, "clusters"), target, clusters); err != nil {
		return nil, err
	}

	log.Infof("%d leads formed %d clusters", len(leads), len(clusters))

	return clusters, nil
}
