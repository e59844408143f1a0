package sumstats

import (
	"fmt"
	"strings"
)

// Columns names the input columns holding each field. Names are matched
// exactly against the header of the input file.
type Columns struct {
	Chrom        string `yaml:"chrom"`
	Position     string `yaml:"position"`
	EffectAllele string `yaml:"effect_allele"`
	OtherAllele  string `yaml:"other_allele"`
	Beta         string `yaml:"beta"`
	SE           string `yaml:"se"`
	PValue       string `yaml:"pvalue"` // Optional: derived from beta and se when empty
	SNP          string `yaml:"snp"`    // Optional

	// QTL only
	Phenotype string `yaml:"phenotype"`
	Gene      string `yaml:"gene"` // sQTL: the gene that owns the intron cluster
}

// MissingColumnError is returned when a configured column is absent from the
// input header, or when a required column is not configured at all. Every
// downstream computation depends on these names, so callers treat it as fatal.
type MissingColumnError struct {
	Field  string
	Column string
	Path   string
}

func (e MissingColumnError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("%s: no column configured for required field %s", e.Path, e.Field)
	}
	return fmt.Sprintf("%s: column %q (configured for %s) was not found in the header", e.Path, e.Column, e.Field)
}

// Layout holds the 0-based index of each configured column within one file.
// Optional columns that were not configured are -1.
type Layout struct {
	Chrom        int
	Position     int
	EffectAllele int
	OtherAllele  int
	Beta         int
	SE           int
	PValue       int
	SNP          int
	Phenotype    int
	Gene         int

	// Set by DeriveColumns
	VariantID int
	VarBeta   int
}

// Resolve validates the column names against header and returns their
// positions. path is only used to annotate errors. Extra names in required
// must also be configured (e.g., "phenotype" for QTL inputs).
func (c Columns) Resolve(header []string, path string, required ...string) (Layout, error) {
	lookup := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if _, exists := lookup[name]; !exists {
			lookup[name] = i
		}
	}

	l := Layout{VariantID: -1, VarBeta: -1}

	mustHave := map[string]bool{
		"chrom":         true,
		"position":      true,
		"effect_allele": true,
		"other_allele":  true,
		"beta":          true,
		"se":            true,
	}
	for _, r := range required {
		mustHave[r] = true
	}

	for _, field := range []struct {
		name   string
		column string
		dest   *int
	}{
		{"chrom", c.Chrom, &l.Chrom},
		{"position", c.Position, &l.Position},
		{"effect_allele", c.EffectAllele, &l.EffectAllele},
		{"other_allele", c.OtherAllele, &l.OtherAllele},
		{"beta", c.Beta, &l.Beta},
		{"se", c.SE, &l.SE},
		{"pvalue", c.PValue, &l.PValue},
		{"snp", c.SNP, &l.SNP},
		{"phenotype", c.Phenotype, &l.Phenotype},
		{"gene", c.Gene, &l.Gene},
	} {
		*field.dest = -1

		if field.column == "" {
			if mustHave[field.name] {
				return l, MissingColumnError{Field: field.name, Path: path}
			}
			continue
		}

		idx, exists := lookup[field.column]
		if !exists {
			return l, MissingColumnError{Field: field.name, Column: field.column, Path: path}
		}
		*field.dest = idx
	}

	if idx, exists := lookup[VariantIDColumn]; exists {
		l.VariantID = idx
	}
	if idx, exists := lookup[VarBetaColumn]; exists {
		l.VarBeta = idx
	}

	return l, nil
}
