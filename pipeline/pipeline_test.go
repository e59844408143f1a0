package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/carbocation/colotools/locus"
	"github.com/carbocation/colotools/sumstats"
	"github.com/carbocation/colotools/tools"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.WarnLevel)
	return NewRun(l, "test", Config{})
}

// fakePlink treats every variant of the association file as an independent
// lead. It produces nothing for chromosome 2.
const fakePlink = `#!/bin/sh
while [ $# -gt 0 ]; do
	case "$1" in
		--clump) in="$2"; shift;;
		--out) out="$2"; shift;;
	esac
	shift
done
case "$out" in
	*chr2) exit 0;;
esac
awk 'NR == 1 { print "CHR F SNP BP P TOTAL NSIG S05 S01 S001 S0001 SP2"; next } { print $2, 1, $1, $3, $4, 0, 0, 0, 0, 0, 0, "NONE" }' "$in" > "$out.clumped"
`

const fakeColoc = `#!/bin/sh
while [ $# -gt 0 ]; do
	case "$1" in
		--input) in="$2"; shift;;
		--out) out="$2"; shift;;
	esac
	shift
done
printf 'PP.H4.abf\n0.9\n' > "$out"
`

var gwasColumns = sumstats.Columns{
	Chrom: "CHR", Position: "BP", EffectAllele: "A1", OtherAllele: "A2", Beta: "BETA", SE: "SE", PValue: "P",
}

var qtlColumns = sumstats.Columns{
	Chrom: "CHR", Position: "BP", EffectAllele: "A1", OtherAllele: "A2", Beta: "BETA", SE: "SE", PValue: "P", Phenotype: "GENE",
}

func writeFile(t *testing.T, path, content string, mode os.FileMode) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), mode))
	return path
}

// gwasFixture has one variant at every chr1 position from 1 to 300, with
// signal at 100, 150 and 280, plus a significant chr2 variant and a chrX
// variant.
func gwasFixture(t *testing.T, dir string) string {
	var b strings.Builder
	b.WriteString("CHR\tBP\tA1\tA2\tBETA\tSE\tP\n")
	significant := map[int]string{100: "1e-10", 150: "1e-9", 280: "2e-9"}
	for pos := 1; pos <= 300; pos++ {
		p, exists := significant[pos]
		if !exists {
			p = "0.5"
		}
		fmt.Fprintf(&b, "1\t%d\tA\tG\t0.1\t0.02\t%s\n", pos, p)
	}
	b.WriteString("2\t10\tA\tG\t0.1\t0.02\t1e-12\n")
	b.WriteString("2\t11\tA\tG\t0.1\t0.02\t0.3\n")
	b.WriteString("X\t10\tA\tG\t0.1\t0.02\t1e-12\n")

	return writeFile(t, filepath.Join(dir, "gwas.tsv"), b.String(), 0644)
}

func qtlFixture(t *testing.T, dir string) string {
	return writeFile(t, filepath.Join(dir, "eqtl.tsv"), "GENE\tCHR\tBP\tA1\tA2\tBETA\tSE\tP\n"+
		"GENEA\t1\t150\tA\tG\t0.2\t0.05\t1e-9\n"+
		"GENEA\t1\t140\tA\tG\t0.2\t0.05\t1e-3\n"+
		"GENEA\t1\t141\tAT\tG\t0.2\t0.05\t1e-12\n"+
		"GENEA\t1\t160\tG\tA\t0.2\t0.05\t1e-7\n"+
		"GENEB\t1\t100\tA\tG\t0.2\t0.05\t0.2\n"+
		"GENEB\t1\t150\tA\tG\t0.2\t0.05\t0.4\n"+
		"GENEC\t3\t5\tA\tG\t0.2\t0.05\t1e-20\n"+
		"GENED\tX\t5\tA\tG\t0.2\t0.05\t1e-20\n", 0644)
}

func testConfig(t *testing.T) Config {
	t.Helper()

	in := t.TempDir()
	cfg := Defaults()
	cfg.OutputDir = t.TempDir()
	cfg.Workers = 2
	cfg.GWAS.Path = gwasFixture(t, in)
	cfg.GWAS.Columns = gwasColumns
	cfg.QTL.Path = qtlFixture(t, in)
	cfg.QTL.Columns = qtlColumns
	cfg.Clump.Binary = writeFile(t, filepath.Join(in, "plink"), fakePlink, 0755)
	cfg.Clump.BFileTemplate = filepath.Join(in, "ref_chr%s")
	cfg.Cluster.Radius = 25
	cfg.Tools = []tools.Override{{Name: "coloc", Binary: writeFile(t, filepath.Join(in, "coloc.R"), fakeColoc, 0755)}}
	require.NoError(t, cfg.Validate())

	return cfg
}

func TestGWAS(t *testing.T) {
	cfg := testConfig(t)

	out, err := GWAS(context.Background(), testLog(), cfg, nil)
	require.NoError(t, err)

	// 100 and 150 touch at 125 and merge. Chromosome 2 clumps to nothing.
	require.Len(t, out.Summary, 2)

	first := out.Summary[0]
	require.Equal(t, "1", first.Chrom)
	require.Equal(t, "chr1_100", first.Lead)
	require.Equal(t, 75, first.MinPos)
	require.Equal(t, 175, first.MaxPos)
	require.Equal(t, locus.Positions{100, 150}, first.Positions)

	second := out.Summary[1]
	require.Equal(t, "chr1_280", second.Lead)
	require.Equal(t, 255, second.MinPos)
	require.Equal(t, 300, second.MaxPos)

	clusterRows, err := sumstats.ReadTable(context.Background(), testLog(), first.ClusterFile, gwasColumns, nil)
	require.NoError(t, err)
	require.Len(t, clusterRows.Rows, 101)
	require.Equal(t, []string{"CHR", "BP", "A1", "A2", "BETA", "SE", "P", sumstats.VariantIDColumn, sumstats.VarBetaColumn}, clusterRows.Header)

	summary, err := locus.ReadSummary(cfg.ClusterSummaryPath())
	require.NoError(t, err)
	require.Equal(t, out.Summary, summary)

	for _, name := range []string{"preprocessed.tsv.gz", "filtered.tsv.gz", "chrom/chr1.tsv", "chrom/chr2.tsv", "clumped/chr1.clumped"} {
		if _, err := os.Stat(filepath.Join(cfg.OutputDir, "gwas", name)); err != nil {
			t.Fatalf("Expected %s to be written: %v", name, err)
		}
	}
}

func TestGWASIsIdempotent(t *testing.T) {
	cfg := testConfig(t)

	read := func() map[string][]byte {
		files := make(map[string][]byte)
		for _, pattern := range []string{"gwas/cluster_summary.tsv", "gwas/clusters/*.tsv.gz"} {
			matches, err := filepath.Glob(filepath.Join(cfg.OutputDir, pattern))
			require.NoError(t, err)
			for _, m := range matches {
				b, err := os.ReadFile(m)
				require.NoError(t, err)
				files[m] = b
			}
		}
		return files
	}

	_, err := GWAS(context.Background(), testLog(), cfg, nil)
	require.NoError(t, err)
	first := read()
	require.Len(t, first, 3)

	_, err = GWAS(context.Background(), testLog(), cfg, nil)
	require.NoError(t, err)
	second := read()

	require.Equal(t, len(first), len(second))
	for path, b := range first {
		if !bytes.Equal(b, second[path]) {
			t.Fatalf("%s differs between runs", path)
		}
	}
}

func TestGWASRemovesStaleClusterFiles(t *testing.T) {
	cfg := testConfig(t)

	clusters := filepath.Join(cfg.OutputDir, "gwas", "clusters")
	require.NoError(t, os.MkdirAll(clusters, 0755))
	for _, name := range []string{"chr1_999-chr1.tsv.gz", "chr2_5-chr2.tsv.gz"} {
		writeFile(t, filepath.Join(clusters, name), "stale\n", 0644)
	}

	out, err := GWAS(context.Background(), testLog(), cfg, nil)
	require.NoError(t, err)

	matches, err := filepath.Glob(filepath.Join(clusters, "*.tsv.gz"))
	require.NoError(t, err)
	require.Len(t, matches, len(out.Summary))
	for _, s := range out.Summary {
		require.Contains(t, matches, s.ClusterFile)
	}
}

func TestGWASWithoutSignal(t *testing.T) {
	cfg := testConfig(t)
	cfg.GWAS.PValueThreshold = 1e-30

	out, err := GWAS(context.Background(), testLog(), cfg, nil)
	require.NoError(t, err)
	require.Empty(t, out.Summary)

	summary, err := locus.ReadSummary(cfg.ClusterSummaryPath())
	require.NoError(t, err)
	require.Empty(t, summary)
}

func TestGWASMissingPlink(t *testing.T) {
	cfg := testConfig(t)
	cfg.Clump.Binary = filepath.Join(t.TempDir(), "plink")

	_, err := GWAS(context.Background(), testLog(), cfg, nil)
	require.True(t, tools.IsNotFound(err))
}

func TestGWASMissingColumn(t *testing.T) {
	cfg := testConfig(t)
	cfg.GWAS.Columns.Beta = "EFFECT"

	_, err := GWAS(context.Background(), testLog(), cfg, nil)
	var mce sumstats.MissingColumnError
	require.ErrorAs(t, err, &mce)
	require.Equal(t, "beta", mce.Field)
}

func TestQTL(t *testing.T) {
	cfg := testConfig(t)
	stale := writeFile(t, filepath.Join(cfg.OutputDir, "qtl", "chr1", "GENEZ.tsv.gz"), "stale\n", 0644)

	signals, err := QTL(context.Background(), testLog(), cfg, nil)
	require.NoError(t, err)

	// GENEB never passes the threshold and GENED is not autosomal.
	require.Len(t, signals, 2)
	require.Equal(t, "GENEA", signals[0].Phenotype)
	require.Equal(t, "1", signals[0].Chrom)
	require.Equal(t, locus.Positions{150, 160}, signals[0].Positions)
	require.Equal(t, "GENEC", signals[1].Phenotype)
	require.Equal(t, "3", signals[1].Chrom)

	genea, err := sumstats.ReadTable(context.Background(), testLog(), signals[0].PhenoFile, qtlColumns, nil)
	require.NoError(t, err)
	require.Equal(t, []int{140, 150, 160}, genea.Positions(), "indels dropped, rows sorted, all p-values kept")

	if _, err := os.Stat(filepath.Join(cfg.OutputDir, "qtl", "chr1", "GENEB.tsv.gz")); !os.IsNotExist(err) {
		t.Fatalf("Expected the GENEB phenotype file to be removed, got %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("Expected the file left by an earlier run to be removed, got %v", err)
	}

	report, err := locus.ReadSignals(cfg.QTLSignalsPath())
	require.NoError(t, err)
	require.Equal(t, signals, report)
	for _, s := range report {
		require.NotEqual(t, "GENEB", s.Phenotype)
	}
}

func TestQTLKeepsSimilarPhenotypesApart(t *testing.T) {
	cfg := testConfig(t)
	cfg.QTL.Path = writeFile(t, filepath.Join(t.TempDir(), "eqtl.tsv"), "GENE\tCHR\tBP\tA1\tA2\tBETA\tSE\tP\n"+
		"a:b\t1\t150\tA\tG\t0.2\t0.05\t1e-9\n"+
		"a_b\t1\t150\tA\tG\t0.2\t0.05\t1e-9\n"+
		"a_b\t1\t170\tA\tG\t0.2\t0.05\t1e-9\n", 0644)

	signals, err := QTL(context.Background(), testLog(), cfg, nil)
	require.NoError(t, err)
	require.Len(t, signals, 2)

	byPhenotype := make(map[string]locus.QTLSignal)
	for _, s := range signals {
		byPhenotype[s.Phenotype] = s
	}
	require.Equal(t, locus.Positions{150}, byPhenotype["a:b"].Positions)
	require.Equal(t, locus.Positions{150, 170}, byPhenotype["a_b"].Positions)
	require.NotEqual(t, byPhenotype["a:b"].PhenoFile, byPhenotype["a_b"].PhenoFile)

	for _, s := range signals {
		table, err := sumstats.ReadTable(context.Background(), testLog(), s.PhenoFile, qtlColumns, nil)
		require.NoError(t, err)
		require.Equal(t, []int(s.Positions), table.Positions())
	}
}

func TestPartitionRejectsSharedFileKey(t *testing.T) {
	rows := []sumstats.Variant{
		{Chrom: "1", Pos: 1, Phenotype: "x"},
		{Chrom: "1", Pos: 2, Phenotype: "x:y"},
		{Chrom: "1", Pos: 3, Phenotype: locus.PhenotypeKey("x:y", "")},
	}

	_, err := partitionQTL(rows, EQTL)
	require.Error(t, err)

	parts, err := partitionQTL(rows[:2], EQTL)
	require.NoError(t, err)
	require.Len(t, parts, 2)
}

func TestQTLRequiresPhenotypeColumn(t *testing.T) {
	cfg := testConfig(t)
	cfg.QTL.Columns.Phenotype = ""

	_, err := QTL(context.Background(), testLog(), cfg, nil)
	var mce sumstats.MissingColumnError
	require.ErrorAs(t, err, &mce)
}

func TestPairs(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	_, err := GWAS(ctx, testLog(), cfg, nil)
	require.NoError(t, err)
	_, err = QTL(ctx, testLog(), cfg, nil)
	require.NoError(t, err)

	results, err := Pairs(ctx, testLog(), cfg, nil, nil)
	require.NoError(t, err)

	// coloc admits both chr1 clusters with GENEA, but the chr1_280 cluster
	// shares no variant with GENEA's file and produces no result.
	require.Len(t, results, 1)
	require.Equal(t, "chr1_100", results[0].Lead)
	require.Equal(t, "GENEA", results[0].Phenotype)
	require.Equal(t, 0.9, results[0].Score)
	require.Equal(t, 3, results[0].NSNPs)

	written, err := tools.ReadResults(cfg.ResultsPath("coloc"))
	require.NoError(t, err)
	require.Equal(t, results, written)
}

func TestPairsWithReferencePanel(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	_, err := GWAS(ctx, testLog(), cfg, nil)
	require.NoError(t, err)
	_, err = QTL(ctx, testLog(), cfg, nil)
	require.NoError(t, err)

	// The panel only knows position 150, so only that variant is handed to
	// the tool.
	refDir := t.TempDir()
	writeFile(t, filepath.Join(refDir, "ref_chr1.bim"), "1\tchr1_150\t0\t150\tA\tG\n", 0644)
	cfg.Reference = ReferenceConfig{Kind: "bim", Template: filepath.Join(refDir, "ref_chr%s.bim")}
	one := 1
	cfg.Tools[0].MinMatching = &one

	results, err := Pairs(ctx, testLog(), cfg, nil, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "chr1_100", results[0].Lead)
	require.Equal(t, 1, results[0].NSNPs)
}

func TestPairsWithNothingToDo(t *testing.T) {
	cfg := testConfig(t)

	results, err := Pairs(context.Background(), testLog(), cfg, nil, []string{"coloc"})
	require.NoError(t, err)
	require.Empty(t, results)

	written, err := tools.ReadResults(cfg.ResultsPath("coloc"))
	require.NoError(t, err)
	require.Empty(t, written)
}

func TestPairsMissingTool(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	_, err := GWAS(ctx, testLog(), cfg, nil)
	require.NoError(t, err)
	_, err = QTL(ctx, testLog(), cfg, nil)
	require.NoError(t, err)

	cfg.Tools = append(cfg.Tools, tools.Override{Name: "smr", Binary: filepath.Join(t.TempDir(), "smr")})

	results, err := Pairs(ctx, testLog(), cfg, nil, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "smr")
	require.Len(t, results, 1, "coloc still runs")
}

func TestAdapters(t *testing.T) {
	cfg := Defaults()

	all, err := Adapters(cfg, nil)
	require.NoError(t, err)
	require.Len(t, all, 6)
	require.Equal(t, cfg.Workers, all[0].Workers)

	cfg.Tools = []tools.Override{{Name: "smr", Workers: 9}}
	selected, err := Adapters(cfg, nil)
	require.NoError(t, err)
	require.Len(t, selected, 1)
	require.Equal(t, 9, selected[0].Workers)

	named, err := Adapters(cfg, []string{"twas", "smr"})
	require.NoError(t, err)
	require.Equal(t, "twas", named[0].Name)
	require.Equal(t, 9, named[1].Workers)

	_, err = Adapters(cfg, []string{"magma"})
	require.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "cfg.yaml"), `
output_dir: /tmp/out
gwas:
  path: gwas.tsv.gz
  columns:
    chrom: CHR
    position: BP
    effect_allele: A1
    other_allele: A2
    beta: BETA
    se: SE
qtl:
  type: sqtl
clump:
  bfile_template: /ref/chr%s
  r2: 0.2
tools:
  - name: twas
    throttle: 10
`, 0644)

	t.Setenv("COLOTOOLS_WORKERS", "7")
	t.Setenv("COLOTOOLS_PLINK", "/opt/plink")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, "/tmp/out", cfg.OutputDir)
	require.Equal(t, 7, cfg.Workers)
	require.Equal(t, "/opt/plink", cfg.Clump.Binary)
	require.Equal(t, 0.2, cfg.Clump.R2)
	require.Equal(t, 5e-8, cfg.Clump.P1, "unset values keep their defaults")
	require.Equal(t, 5e-8, cfg.GWAS.PValueThreshold)
	require.Equal(t, "", cfg.GWAS.Columns.PValue)
	require.Equal(t, SQTL, cfg.QTL.Type)
	require.Equal(t, 10, *cfg.Tools[0].Throttle)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "cfg.yaml"), "output_dir: x\nworkerz: 3\n", 0644)

	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	cfg.QTL.Type = "pqtl"
	require.Error(t, cfg.Validate())

	cfg = Defaults()
	cfg.Workers = 0
	require.Error(t, cfg.Validate())

	cfg = Defaults()
	cfg.Tools = []tools.Override{{Name: "nonesuch"}}
	require.Error(t, cfg.Validate())
}
