package tools

import (
	"context"
	"fmt"
	"sort"

	"cloud.google.com/go/bigquery"
	"github.com/carbocation/colotools"
	"github.com/carbocation/colotools/chrpos"
)

// Result is one row of results/{tool}.tsv.
type Result struct {
	Tool       string  `csv:"tool" bigquery:"tool"`
	Chrom      string  `csv:"chrom" bigquery:"chrom"`
	Lead       string  `csv:"lead" bigquery:"lead"`
	Phenotype  string  `csv:"phenotype" bigquery:"phenotype"`
	Gene       string  `csv:"gene" bigquery:"gene"`
	NSNPs      int     `csv:"n_snps" bigquery:"n_snps"`
	Score      float64 `csv:"score" bigquery:"score"`
	ScoreName  string  `csv:"score_name" bigquery:"score_name"`
	OutputFile string  `csv:"output_file" bigquery:"output_file"`
}

// SortResults orders rows by tool, chromosome, lead, then phenotype.
func SortResults(rows []Result) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Tool != b.Tool {
			return a.Tool < b.Tool
		}
		if a.Chrom != b.Chrom {
			return chrpos.Less(a.Chrom, b.Chrom)
		}
		if a.Lead != b.Lead {
			return a.Lead < b.Lead
		}
		if a.Phenotype != b.Phenotype {
			return a.Phenotype < b.Phenotype
		}
		return a.Gene < b.Gene
	})
}

func WriteResults(path string, rows []Result) error {
	if rows == nil {
		rows = []Result{}
	}

	return colotools.WriteTSV(path, &rows)
}

func ReadResults(path string) ([]Result, error) {
	rows := []Result{}
	if err := colotools.ReadTSV(path, &rows); err != nil {
		return nil, err
	}

	return rows, nil
}

// WrappedBigQuery carries a BigQuery client and its destination dataset.
type WrappedBigQuery struct {
	Context  context.Context
	Client   *bigquery.Client
	Project  string
	Database string
}

func NewWrappedBigQuery(ctx context.Context, project, dataset string) (*WrappedBigQuery, error) {
	bq := &WrappedBigQuery{
		Context:  ctx,
		Project:  project,
		Database: dataset,
	}

	var err error
	bq.Client, err = bigquery.NewClient(bq.Context, bq.Project)
	if err != nil {
		return nil, err
	}

	return bq, nil
}

// ExportBigQuery appends rows to project.dataset.table, which must already
// exist with a schema matching Result.
func ExportBigQuery(ctx context.Context, project, dataset, table string, rows []Result) error {
	if len(rows) == 0 {
		return nil
	}

	bq, err := NewWrappedBigQuery(ctx, project, dataset)
	if err != nil {
		return err
	}
	defer bq.Client.Close()

	return bq.Insert(table, rows)
}

func (bq *WrappedBigQuery) Insert(table string, rows []Result) error {
	inserter := bq.Client.Dataset(bq.Database).Table(table).Inserter()
	if err := inserter.Put(bq.Context, rows); err != nil {
		return fmt.Errorf("inserting %d rows into %s.%s.%s: %w", len(rows), bq.Project, bq.Database, table, err)
	}

	return nil
}
