package sumstats

import (
	"sort"
	"strconv"
	"strings"

	"github.com/carbocation/colotools/chrpos"
)

// KeepAutosomes drops every row not on chromosomes 1-22.
func KeepAutosomes(rows []Variant) []Variant {
	out := rows[:0:0]
	for _, v := range rows {
		if chrpos.IsAutosome(v.Chrom) {
			out = append(out, v)
		}
	}

	return out
}

// KeepChromosome discards off-chromosome rows.
func KeepChromosome(rows []Variant, chrom string) []Variant {
	chrom = chrpos.Normalize(chrom)

	out := rows[:0:0]
	for _, v := range rows {
		if v.Chrom == chrom {
			out = append(out, v)
		}
	}

	return out
}

// DropIndels keeps only rows whose alleles are both single bases.
func DropIndels(rows []Variant) []Variant {
	out := rows[:0:0]
	for _, v := range rows {
		if v.IsSNP() {
			out = append(out, v)
		}
	}

	return out
}

// SortByPosition orders rows by chromosome, then position. The sort is stable
// so that Dedup keeps the first row of the input file.
func SortByPosition(rows []Variant) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Chrom != rows[j].Chrom {
			return chrpos.Less(rows[i].Chrom, rows[j].Chrom)
		}
		return rows[i].Pos < rows[j].Pos
	})
}

// Dedup keeps the first row for each variant id.
func Dedup(rows []Variant) []Variant {
	seen := make(map[string]struct{}, len(rows))

	out := rows[:0:0]
	for _, v := range rows {
		if _, exists := seen[v.ID]; exists {
			continue
		}
		seen[v.ID] = struct{}{}
		out = append(out, v)
	}

	return out
}

// FilterP keeps rows with p strictly below threshold.
func FilterP(rows []Variant, threshold float64) []Variant {
	out := rows[:0:0]
	for _, v := range rows {
		if v.P < threshold {
			out = append(out, v)
		}
	}

	return out
}

// DeriveColumns appends variant_id and varbeta to the header if they are not
// already present, fills them for every row, and upper-cases the allele
// columns so that the written table matches the parsed values.
func DeriveColumns(t *Table) {
	if t.Layout.VariantID < 0 {
		t.Header = append(t.Header[:len(t.Header):len(t.Header)], VariantIDColumn)
		t.Layout.VariantID = len(t.Header) - 1
	}
	if t.Layout.VarBeta < 0 {
		t.Header = append(t.Header[:len(t.Header):len(t.Header)], VarBetaColumn)
		t.Layout.VarBeta = len(t.Header) - 1
	}

	for i := range t.Rows {
		v := &t.Rows[i]

		if len(v.Fields) < len(t.Header) {
			fields := make([]string, len(t.Header))
			copy(fields, v.Fields)
			v.Fields = fields
		}

		v.EffectAllele = strings.ToUpper(v.EffectAllele)
		v.OtherAllele = strings.ToUpper(v.OtherAllele)
		v.VarBeta = v.SE * v.SE

		v.Fields[t.Layout.EffectAllele] = v.EffectAllele
		v.Fields[t.Layout.OtherAllele] = v.OtherAllele
		v.Fields[t.Layout.VariantID] = v.ID
		v.Fields[t.Layout.VarBeta] = strconv.FormatFloat(v.VarBeta, 'g', -1, 64)
	}
}

// GroupByChromosome splits rows by chromosome. The returned keys are in
// chromosome order and each group keeps the input row order.
func GroupByChromosome(rows []Variant) ([]string, map[string][]Variant) {
	groups := make(map[string][]Variant)
	for _, v := range rows {
		groups[v.Chrom] = append(groups[v.Chrom], v)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return chrpos.Less(keys[i], keys[j]) })

	return keys, groups
}

// Preprocess runs the linear cleanup shared by the GWAS and QTL pipelines:
// autosomes, indel removal, sort, dedup, derived columns.
func Preprocess(t *Table) {
	rows := KeepAutosomes(t.Rows)
	rows = DropIndels(rows)
	SortByPosition(rows)
	rows = Dedup(rows)
	t.Rows = rows

	DeriveColumns(t)
}
