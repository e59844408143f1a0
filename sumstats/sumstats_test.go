package sumstats

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

var testColumns = Columns{
	Chrom:        "CHR",
	Position:     "BP",
	EffectAllele: "A1",
	OtherAllele:  "A2",
	Beta:         "BETA",
	SE:           "SE",
	PValue:       "P",
}

const testGWAS = "CHR\tBP\tA1\tA2\tBETA\tSE\tP\n" +
	"1\t300\ta\tg\t0.1\t0.5\t1e-9\n" +
	"1\t100\tA\tG\t0.2\t0.1\t0.01\n" +
	"1\t100\tC\tT\t0.3\t0.1\t0.02\n" +
	"X\t50\tA\tG\t0.1\t0.1\t1e-10\n" +
	"2\t10\tAT\tA\t0.1\t0.1\t1e-12\n" +
	"2\t20\tA\tC\tNA\t0.1\t1e-12\n" +
	"chr2\t15\tA\tC\t-0.4\t0.2\t1e-8\n"

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.WarnLevel)
	return logrus.NewEntry(l)
}

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestResolveMissingColumn(t *testing.T) {
	cols := testColumns
	cols.SE = "STDERR"

	_, err := cols.Resolve([]string{"CHR", "BP", "A1", "A2", "BETA", "SE", "P"}, "gwas.tsv")

	var missing MissingColumnError
	if !errors.As(err, &missing) {
		t.Fatalf("Expected MissingColumnError, got %v", err)
	}
	if missing.Field != "se" || missing.Column != "STDERR" {
		t.Fatalf("Unexpected error contents %+v", missing)
	}
}

func TestResolveRequiredPhenotype(t *testing.T) {
	_, err := testColumns.Resolve([]string{"CHR", "BP", "A1", "A2", "BETA", "SE", "P"}, "qtl.tsv", "phenotype")

	var missing MissingColumnError
	if !errors.As(err, &missing) || missing.Field != "phenotype" {
		t.Fatalf("Expected a missing phenotype error, got %v", err)
	}
}

func TestReadAndPreprocess(t *testing.T) {
	path := writeFixture(t, "gwas.tsv", testGWAS)

	table, err := ReadTable(context.Background(), testLog(), path, testColumns, nil)
	require.NoError(t, err)

	// The NA row is skipped at read time
	require.Len(t, table.Rows, 6)

	Preprocess(table)

	// chrX is dropped, the indel is dropped, the duplicate chr1_100 keeps its
	// first occurrence, and chr2 sorts after chr1.
	ids := make([]string, 0)
	for _, v := range table.Rows {
		ids = append(ids, v.ID)
	}
	require.Equal(t, []string{"chr1_100", "chr1_300", "chr2_15"}, ids)

	require.Equal(t, 0.2, table.Rows[0].Beta)
	require.Equal(t, "A", table.Rows[1].EffectAllele)
	require.Equal(t, "G", table.Rows[1].OtherAllele)
	require.InDelta(t, 0.25, table.Rows[1].VarBeta, 1e-12)

	require.Equal(t, []string{"CHR", "BP", "A1", "A2", "BETA", "SE", "P", VariantIDColumn, VarBetaColumn}, table.Header)
	require.Equal(t, []string{"1", "300", "A", "G", "0.1", "0.5", "1e-9", "chr1_300", "0.25"}, table.Rows[1].Fields)
}

func TestWriteTableRoundTrip(t *testing.T) {
	path := writeFixture(t, "gwas.tsv", testGWAS)

	table, err := ReadTable(context.Background(), testLog(), path, testColumns, nil)
	require.NoError(t, err)
	Preprocess(table)

	out := filepath.Join(t.TempDir(), "nested", "preprocessed.tsv.gz")
	require.NoError(t, WriteTable(out, table))

	again, err := ReadTable(context.Background(), testLog(), out, testColumns, nil)
	require.NoError(t, err)
	require.Equal(t, table.Header, again.Header)
	require.Len(t, again.Rows, len(table.Rows))
	require.Equal(t, table.Layout.VariantID, again.Layout.VariantID)
	require.Equal(t, table.Layout.VarBeta, again.Layout.VarBeta)

	first, err := os.ReadFile(out)
	require.NoError(t, err)
	require.NoError(t, WriteTable(out, again))
	second, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, first, second, "rewriting the same table should be byte-identical")
}

func TestFilterP(t *testing.T) {
	rows := []Variant{{P: 1e-9}, {P: 5e-8}, {P: 0.5}}
	if got := FilterP(rows, 5e-8); len(got) != 1 || got[0].P != 1e-9 {
		t.Fatalf("Unexpected filter result %+v", got)
	}
	if got := FilterP(rows, 1e-20); len(got) != 0 {
		t.Fatalf("Expected no rows, got %+v", got)
	}
}

func TestPValueFromZ(t *testing.T) {
	if p := PValueFromZ(1.959963984540054); math.Abs(p-0.05) > 1e-9 {
		t.Fatalf("Expected 0.05, got %v", p)
	}
	if p := PValueFromZ(-1.959963984540054); math.Abs(p-0.05) > 1e-9 {
		t.Fatalf("Expected a symmetric p-value, got %v", p)
	}
}

func TestDerivedPValue(t *testing.T) {
	cols := testColumns
	cols.PValue = ""

	layout, err := cols.Resolve([]string{"CHR", "BP", "A1", "A2", "BETA", "SE"}, "gwas.tsv")
	require.NoError(t, err)

	v, err := layout.ParseRow([]string{"1", "100", "A", "G", "0.196", "0.1"})
	require.NoError(t, err)
	require.InDelta(t, 0.05, v.P, 1e-3)
}

func TestGroupByChromosome(t *testing.T) {
	keys, groups := GroupByChromosome([]Variant{{Chrom: "10", Pos: 1}, {Chrom: "2", Pos: 5}, {Chrom: "2", Pos: 3}})
	require.Equal(t, []string{"2", "10"}, keys)
	require.Len(t, groups["2"], 2)
	require.Equal(t, 5, groups["2"][0].Pos)
}

func TestKeepChromosome(t *testing.T) {
	rows := []Variant{{Chrom: "1", Pos: 1}, {Chrom: "2", Pos: 2}, {Chrom: "1", Pos: 3}}

	got := KeepChromosome(rows, "chr1")
	require.Len(t, got, 2)
	require.Equal(t, 3, got[1].Pos)
	require.Empty(t, KeepChromosome(rows, "22"))
}
