package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cloud.google.com/go/storage"
	"github.com/carbocation/colotools/chrpos"
	"github.com/carbocation/colotools/locus"
	"github.com/carbocation/colotools/sumstats"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// partition is one phenotype on one chromosome.
type partition struct {
	chrom     string
	phenotype string
	gene      string
	rows      []sumstats.Variant
}

func (p partition) key() string {
	return locus.PhenotypeKey(p.phenotype, p.gene)
}

// QTL splits the raw QTL file into one file per phenotype and chromosome and
// reports the phenotypes that have at least one variant below the threshold.
// Phenotype files without such a variant are removed and the phenotype is
// left out of the report.
func QTL(ctx context.Context, log *logrus.Entry, cfg Config, client *storage.Client) ([]locus.QTLSignal, error) {
	required := []string{"phenotype"}
	if cfg.QTL.Type == SQTL {
		required = append(required, "gene")
	}

	table, err := sumstats.ReadTable(ctx, log, cfg.QTL.Path, cfg.QTL.Columns, client, required...)
	if err != nil {
		return nil, err
	}
	raw := len(table.Rows)

	table.Rows = sumstats.KeepAutosomes(table.Rows)
	sumstats.DeriveColumns(table)

	parts, err := partitionQTL(table.Rows, cfg.QTL.Type)
	if err != nil {
		return nil, err
	}

	stale, err := filepath.Glob(filepath.Join(cfg.qtlDir(), "chr*"))
	if err != nil {
		return nil, err
	}
	for _, path := range stale {
		if err := os.RemoveAll(path); err != nil {
			return nil, fmt.Errorf("removing %s: %w", path, err)
		}
	}
	log.Infof("%d autosomal rows of %d in %d phenotype partitions", len(table.Rows), raw, len(parts))

	signals := make([]*locus.QTLSignal, len(parts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i, part := range parts {
		i, part := i, part
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			plog := log.WithFields(logrus.Fields{"chrom": part.chrom, "phenotype": part.key()})
			signal, err := qtlPartition(cfg, table, part)
			if err != nil {
				plog.WithError(err).Warnln("Skipping phenotype")
				return nil
			}
			if signal == nil {
				plog.Debugln("No significant variants")
			}
			signals[i] = signal
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]locus.QTLSignal, 0, len(signals))
	for _, s := range signals {
		if s != nil {
			out = append(out, *s)
		}
	}
	locus.SortSignals(out)

	if err := locus.WriteSignals(cfg.QTLSignalsPath(), out); err != nil {
		return nil, err
	}
	log.Infof("%d of %d phenotypes have a variant with p < %g", len(out), len(parts), cfg.QTL.PValueThreshold)

	return out, nil
}

// partitionQTL groups rows by chromosome and phenotype, qualified by gene
// for sQTL. Partitions are ordered by chromosome then key. Two phenotypes
// that would share a file name are an error.
func partitionQTL(rows []sumstats.Variant, kind QTLType) ([]partition, error) {
	index := make(map[[3]string]int)
	var out []partition
	for _, v := range rows {
		p := partition{chrom: v.Chrom, phenotype: v.Phenotype}
		if kind == SQTL {
			p.gene = v.Gene
		}

		id := [3]string{p.chrom, p.gene, p.phenotype}
		i, exists := index[id]
		if !exists {
			i = len(out)
			index[id] = i
			out = append(out, p)
		}
		out[i].rows = append(out[i].rows, v)
	}

	files := make(map[[2]string]partition, len(out))
	for _, p := range out {
		id := [2]string{p.chrom, p.key()}
		if prior, exists := files[id]; exists {
			return nil, fmt.Errorf("chr%s: phenotypes %q (gene %q) and %q (gene %q) both map to file key %q", p.chrom, prior.phenotype, prior.gene, p.phenotype, p.gene, p.key())
		}
		files[id] = p
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].chrom != out[j].chrom {
			return chrpos.Less(out[i].chrom, out[j].chrom)
		}
		return out[i].key() < out[j].key()
	})

	return out, nil
}

func phenotypeFile(cfg Config, chrom, key string) string {
	return filepath.Join(cfg.qtlDir(), "chr"+chrom, key+".tsv.gz")
}

// qtlPartition writes one phenotype's cleaned rows and returns its signal,
// or nil when no variant passes the threshold.
func qtlPartition(cfg Config, table *sumstats.Table, part partition) (*locus.QTLSignal, error) {
	rows := sumstats.DropIndels(part.rows)
	sumstats.SortByPosition(rows)
	rows = sumstats.Dedup(rows)

	path := phenotypeFile(cfg, part.chrom, part.key())
	if err := sumstats.WriteTable(path, table.WithRows(rows)); err != nil {
		return nil, err
	}

	significant := sumstats.FilterP(rows, cfg.QTL.PValueThreshold)
	if len(significant) == 0 {
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("removing %s: %w", path, err)
		}
		return nil, nil
	}

	positions := make(locus.Positions, 0, len(significant))
	for _, v := range significant {
		positions = append(positions, v.Pos)
	}

	return &locus.QTLSignal{
		Chrom:     part.chrom,
		PhenoFile: path,
		Phenotype: part.phenotype,
		Gene:      part.gene,
		Positions: positions.Unique(),
	}, nil
}
