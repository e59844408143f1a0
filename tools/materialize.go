package tools

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/colotools"
	"github.com/carbocation/colotools/gate"
	"github.com/carbocation/colotools/sumstats"
	"github.com/carbocation/pfx"
	"github.com/sirupsen/logrus"
)

// ErrNoSharedVariants means the two sides of a pair have no variant in
// common after allele alignment and reference restriction.
var ErrNoSharedVariants = errors.New("no shared variants")

// ErrTooFewSharedVariants means the joined inputs of a pair no longer pass
// the adapter's gate policy.
var ErrTooFewSharedVariants = errors.New("too few shared variants")

// Sources says how to read the files named by cluster summaries and QTL
// signal reports.
type Sources struct {
	GWAS   sumstats.Columns
	QTL    sumstats.Columns
	Client *storage.Client

	// LD returns the LD reference path handed to tools as {{ld}}. May be
	// nil.
	LD func(chrom string) string

	// Plink computes LD matrices from the LD reference.
	Plink string
}

// Job is a materialized pair, ready to run.
type Job struct {
	Pair  gate.Pair
	Dir   string
	Tags  map[string]string
	NSNPs int
}

// Output is the path of the adapter's report for this job.
func (j Job) Output(a Adapter) string {
	return filepath.Join(j.Dir, a.Output)
}

// shared is one variant present on both sides. qtl is expressed on the
// GWAS effect allele.
type shared struct {
	gwas sumstats.Variant
	qtl  sumstats.Variant
}

// PairDir is where a pair's inputs and outputs live for one tool.
func PairDir(root string, a Adapter, pair gate.Pair) string {
	return filepath.Join(root, "pairs", a.Name, pair.Key())
}

// Materialize joins the cluster file and the phenotype file of pair on
// position and writes the adapter's inputs to its pair directory.
func Materialize(ctx context.Context, log *logrus.Entry, root string, a Adapter, src Sources, pair gate.Pair) (Job, error) {
	gwas, err := sumstats.ReadTable(ctx, log, pair.Cluster.ClusterFile, src.GWAS, src.Client)
	if err != nil {
		return Job{}, err
	}

	qtl, err := sumstats.ReadTable(ctx, log, pair.Signal.PhenoFile, src.QTL, src.Client)
	if err != nil {
		return Job{}, err
	}

	chrom := pair.Cluster.Chrom
	rows := join(sumstats.KeepChromosome(gwas.Rows, chrom), sumstats.KeepChromosome(qtl.Rows, chrom), qtl.Layout, pair)
	if len(rows) == 0 {
		return Job{}, fmt.Errorf("%s: %w", pair.Key(), ErrNoSharedVariants)
	}
	if !a.Policy.AdmitCount(len(rows)) {
		return Job{}, fmt.Errorf("%s: %d joined, %s needs %d: %w", pair.Key(), len(rows), a.Name, a.Policy.MinMatching, ErrTooFewSharedVariants)
	}

	dir := PairDir(root, a, pair)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Job{}, pfx.Err(err)
	}

	job := Job{
		Pair:  pair,
		Dir:   dir,
		NSNPs: len(rows),
		Tags: map[string]string{
			"dir":       dir,
			"output":    filepath.Join(dir, a.Output),
			"prefix":    filepath.Join(dir, a.Name),
			"chrom":     pair.Cluster.Chrom,
			"lead":      pair.Cluster.Lead,
			"phenotype": pair.Signal.Phenotype,
			"gene":      pair.Signal.Gene,
			"ld":        "",
		},
	}
	if src.LD != nil {
		job.Tags["ld"] = src.LD(pair.Cluster.Chrom)
	}

	gwasRows := make([]sumstats.Variant, 0, len(rows))
	qtlRows := make([]sumstats.Variant, 0, len(rows))
	for _, r := range rows {
		gwasRows = append(gwasRows, r.gwas)
		qtlRows = append(qtlRows, r.qtl)
	}

	for _, input := range a.Inputs {
		path := filepath.Join(dir, string(input))
		job.Tags[tagName(input)] = path

		var err error
		switch input {
		case InputGWAS:
			err = sumstats.WriteTable(path, gwas.WithRows(gwasRows))
		case InputQTL:
			err = sumstats.WriteTable(path, qtl.WithRows(qtlRows))
		case InputMerged:
			err = writeLines(path, mergedLines(rows))
		case InputGWASZ:
			err = writeLines(path, zLines(gwasRows))
		case InputQTLZ:
			err = writeLines(path, zLines(qtlRows))
		case InputSNPs:
			err = writeLines(path, idLines(gwasRows))
		case InputLD:
			err = ldMatrix(ctx, log, src, job, gwasRows, path)
		default:
			err = fmt.Errorf("unknown input %q", input)
		}
		if err != nil {
			return Job{}, err
		}
	}

	return job, nil
}

// tagName maps an input file to its template tag: gwas.z becomes gwas_z.
func tagName(input Input) string {
	if input == InputLD {
		return "ld_matrix"
	}

	name := string(input)
	if strings.HasSuffix(name, ".tsv") || strings.HasSuffix(name, ".txt") {
		return strings.TrimSuffix(strings.TrimSuffix(name, ".tsv"), ".txt")
	}

	return strings.ReplaceAll(name, ".", "_")
}

// join pairs up GWAS and QTL rows at the same position inside the cluster
// range. When the pair carries reference positions, only those are kept.
// QTL rows with swapped alleles are flipped onto the GWAS effect allele and
// variants whose alleles disagree are dropped.
func join(gwas, qtl []sumstats.Variant, qtlLayout sumstats.Layout, pair gate.Pair) []shared {
	var reference map[int]struct{}
	if pair.Reference != nil {
		reference = make(map[int]struct{}, len(pair.Reference))
		for _, pos := range pair.Reference {
			reference[pos] = struct{}{}
		}
	}

	byPos := make(map[int]sumstats.Variant, len(qtl))
	for _, v := range qtl {
		if _, exists := byPos[v.Pos]; !exists {
			byPos[v.Pos] = v
		}
	}

	out := make([]shared, 0)
	for _, g := range gwas {
		if g.Pos < pair.Cluster.MinPos || g.Pos > pair.Cluster.MaxPos {
			continue
		}
		if reference != nil {
			if _, exists := reference[g.Pos]; !exists {
				continue
			}
		}

		q, exists := byPos[g.Pos]
		if !exists {
			continue
		}

		aligned, ok := align(g, q, qtlLayout)
		if !ok {
			continue
		}
		delete(byPos, g.Pos)

		out = append(out, shared{gwas: g, qtl: aligned})
	}

	return out
}

// align returns the QTL row on the GWAS effect allele, flipping it when the
// alleles are swapped.
func align(g, q sumstats.Variant, qtlLayout sumstats.Layout) (sumstats.Variant, bool) {
	switch {
	case strings.EqualFold(g.EffectAllele, q.EffectAllele) && strings.EqualFold(g.OtherAllele, q.OtherAllele):
		return q, true
	case strings.EqualFold(g.EffectAllele, q.OtherAllele) && strings.EqualFold(g.OtherAllele, q.EffectAllele):
		return qtlLayout.Flip(q), true
	}

	return sumstats.Variant{}, false
}

var mergedHeader = strings.Join([]string{
	sumstats.VariantIDColumn, "chrom", "pos", "effect_allele", "other_allele",
	"beta_gwas", "se_gwas", "varbeta_gwas", "p_gwas",
	"beta_qtl", "se_qtl", "varbeta_qtl", "p_qtl",
}, "\t")

func mergedLines(rows []shared) []string {
	out := make([]string, 0, len(rows)+1)
	out = append(out, mergedHeader)
	for _, r := range rows {
		out = append(out, strings.Join([]string{
			r.gwas.ID, r.gwas.Chrom, strconv.Itoa(r.gwas.Pos), r.gwas.EffectAllele, r.gwas.OtherAllele,
			formatFloat(r.gwas.Beta), formatFloat(r.gwas.SE), formatFloat(r.gwas.VarBeta), formatFloat(r.gwas.P),
			formatFloat(r.qtl.Beta), formatFloat(r.qtl.SE), formatFloat(r.qtl.VarBeta), formatFloat(r.qtl.P),
		}, "\t"))
	}

	return out
}

// zLines writes the headerless id/z-score pairs read by CAVIAR-family tools.
func zLines(rows []sumstats.Variant) []string {
	out := make([]string, 0, len(rows))
	for _, v := range rows {
		z := math.NaN()
		if v.SE != 0 {
			z = v.Beta / v.SE
		}
		out = append(out, v.ID+"\t"+formatFloat(z))
	}

	return out
}

// ldMatrix has plink write the square r matrix of rows to path. plink keeps
// the reference's variant order, which matches rows because both are sorted
// by position. A variant missing from the reference leaves the matrix
// smaller than the z files, which is an error.
func ldMatrix(ctx context.Context, log *logrus.Entry, src Sources, job Job, rows []sumstats.Variant, path string) error {
	if src.LD == nil || src.Plink == "" {
		return fmt.Errorf("%s needs an LD reference and plink", InputLD)
	}

	extract := filepath.Join(job.Dir, "ld.snps")
	if err := writeLines(extract, idLines(rows)); err != nil {
		return err
	}

	args := []string{
		"--bfile", src.LD(job.Pair.Cluster.Chrom),
		"--extract", extract,
		"--r", "square",
		"--out", strings.TrimSuffix(path, ".ld"),
	}
	runner := Runner{Log: log.WithField("step", "ld")}
	if err := runner.Invoke(ctx, src.Plink, args, path); err != nil {
		return err
	}

	n, err := countLines(path)
	if err != nil {
		return err
	}
	if n != len(rows) {
		return fmt.Errorf("%s has %d rows for %d variants; the LD reference is missing some of them", path, n, len(rows))
	}

	return nil
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, pfx.Err(err)
	}
	defer f.Close()

	n := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, colotools.BufferSize), 64*colotools.BufferSize)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) != "" {
			n++
		}
	}

	return n, pfx.Err(scanner.Err())
}

func idLines(rows []sumstats.Variant) []string {
	out := make([]string, 0, len(rows))
	for _, v := range rows {
		out = append(out, v.ID)
	}

	return out
}

func writeLines(path string, lines []string) error {
	f, err := os.Create(path)
	if err != nil {
		return pfx.Err(err)
	}
	defer f.Close()

	w := bufio.NewWriterSize(f, colotools.BufferSize)
	for _, line := range lines {
		if _, err := w.WriteString(line + "\n"); err != nil {
			return pfx.Err(err)
		}
	}
	if err := w.Flush(); err != nil {
		return pfx.Err(err)
	}

	return pfx.Err(f.Close())
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
