package locus

import (
	"path/filepath"

	"github.com/carbocation/colotools"
	"github.com/carbocation/colotools/sumstats"
	"github.com/montanaflynn/stats"
)

// ClusterSummary is one row of cluster_summary.tsv.
type ClusterSummary struct {
	Chrom       string    `csv:"chrom"`
	Lead        string    `csv:"range_lead"`
	MinPos      int       `csv:"range_min_pos"`
	MaxPos      int       `csv:"range_max_pos"`
	Positions   Positions `csv:"positions"`
	ClusterFile string    `csv:"cluster_file"`
}

// WriteClusterFiles writes every table row inside each cluster to
// dir/{lead}-chr{chrom}.tsv.gz, keeping the table's full header, and records
// the path on the cluster.
func WriteClusterFiles(dir string, table SortedTable, clusters []Cluster) error {
	for i := range clusters {
		c := &clusters[i]

		path := filepath.Join(dir, c.FileName())
		rows := table.Range(c.MinPos, c.MaxPos)
		if err := sumstats.WriteTable(path, table.Table().WithRows(rows)); err != nil {
			return err
		}
		c.File = path
	}

	return nil
}

// Summarize converts clusters to summary rows, preserving their order.
func Summarize(clusters []Cluster) []ClusterSummary {
	out := make([]ClusterSummary, 0, len(clusters))
	for _, c := range clusters {
		out = append(out, ClusterSummary{
			Chrom:       c.Chrom,
			Lead:        c.Lead,
			MinPos:      c.MinPos,
			MaxPos:      c.MaxPos,
			Positions:   c.Positions,
			ClusterFile: c.File,
		})
	}

	return out
}

// WriteSummary writes the cluster summary table. An empty summary is valid and
// means there is nothing to colocalize.
func WriteSummary(path string, rows []ClusterSummary) error {
	if rows == nil {
		rows = []ClusterSummary{}
	}

	return colotools.WriteTSV(path, &rows)
}

// ReadSummary reads a cluster summary table. A missing or empty file yields no
// rows.
func ReadSummary(path string) ([]ClusterSummary, error) {
	rows := []ClusterSummary{}
	if err := colotools.ReadTSV(path, &rows); err != nil {
		return nil, err
	}

	return rows, nil
}

// Description summarizes cluster widths for logging.
type Description struct {
	Clusters    int
	MedianWidth float64
	MaxWidth    float64
}

func Describe(clusters []Cluster) Description {
	d := Description{Clusters: len(clusters)}
	if len(clusters) == 0 {
		return d
	}

	widths := make(stats.Float64Data, 0, len(clusters))
	for _, c := range clusters {
		widths = append(widths, float64(c.Width()))
	}

	d.MedianWidth, _ = widths.Median()
	d.MaxWidth, _ = widths.Max()

	return d
}
