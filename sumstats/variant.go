package sumstats

import (
	"strconv"
	"strings"
)

// Names of the columns appended by preprocessing.
const (
	VariantIDColumn = "variant_id"
	VarBetaColumn   = "varbeta"
)

// Variant is one row of a summary statistics table. Fields keeps the raw row
// so that cluster and phenotype files reproduce the full input schema.
type Variant struct {
	Chrom        string
	Pos          int
	ID           string
	EffectAllele string
	OtherAllele  string
	Beta         float64
	SE           float64
	VarBeta      float64
	P            float64
	SNP          string
	Phenotype    string
	Gene         string

	Fields []string
}

// IsSNP is false for indels and anything else whose alleles are not single
// nucleotides.
func (v Variant) IsSNP() bool {
	return isBase(v.EffectAllele) && isBase(v.OtherAllele)
}

func isBase(allele string) bool {
	if len(allele) != 1 {
		return false
	}

	switch strings.ToUpper(allele) {
	case "A", "C", "G", "T":
		return true
	}

	return false
}

// Table is a header plus the rows parsed under its Layout.
type Table struct {
	Path   string
	Header []string
	Layout Layout
	Rows   []Variant
}

// WithRows returns a table sharing the header and layout but with its own row
// slice.
func (t *Table) WithRows(rows []Variant) *Table {
	return &Table{
		Path:   t.Path,
		Header: t.Header,
		Layout: t.Layout,
		Rows:   rows,
	}
}

// Positions lists the row positions in table order.
func (t *Table) Positions() []int {
	out := make([]int, 0, len(t.Rows))
	for _, v := range t.Rows {
		out = append(out, v.Pos)
	}

	return out
}

// Flip returns v expressed on its other allele: the alleles trade places and
// the effect changes sign. The raw fields are copied and updated to match.
func (l Layout) Flip(v Variant) Variant {
	out := v
	out.EffectAllele, out.OtherAllele = v.OtherAllele, v.EffectAllele
	out.Beta = -v.Beta

	out.Fields = append([]string(nil), v.Fields...)
	set := func(i int, value string) {
		if i >= 0 && i < len(out.Fields) {
			out.Fields[i] = value
		}
	}
	set(l.EffectAllele, out.EffectAllele)
	set(l.OtherAllele, out.OtherAllele)
	set(l.Beta, strconv.FormatFloat(out.Beta, 'g', -1, 64))

	return out
}
