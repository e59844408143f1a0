// Package chrpos names chromosomes and positions the way the rest of
// colotools expects to see them.
package chrpos

import (
	"fmt"
	"strconv"
	"strings"
)

// Autosomes lists the chromosomes processed by the pipelines, in the order in
// which their outputs are assembled.
var Autosomes = func() []string {
	out := make([]string, 0, 22)
	for i := 1; i <= 22; i++ {
		out = append(out, strconv.Itoa(i))
	}
	return out
}()

// Normalize removes "chr" prefixes and leading zeroes (BGENIX stores
// chromosome 1 as "01" in the UK Biobank).
func Normalize(chrom string) string {
	chrom = strings.TrimSpace(chrom)
	chrom = strings.TrimPrefix(chrom, "chr")
	chrom = strings.TrimPrefix(chrom, "CHR")
	if trimmed := strings.TrimLeft(chrom, "0"); trimmed != "" {
		chrom = trimmed
	}

	return chrom
}

// IsAutosome is true only for chromosomes 1 through 22.
func IsAutosome(chrom string) bool {
	n, err := strconv.Atoi(Normalize(chrom))
	if err != nil {
		return false
	}

	return n >= 1 && n <= 22
}

// Less orders chromosomes numerically, with anything non-numeric last.
func Less(a, b string) bool {
	na, errA := strconv.Atoi(Normalize(a))
	nb, errB := strconv.Atoi(Normalize(b))
	switch {
	case errA == nil && errB == nil:
		return na < nb
	case errA == nil:
		return true
	case errB == nil:
		return false
	}

	return a < b
}

// VariantID builds the dataset-scoped variant key chr{chrom}_{pos}. It ignores
// alleles, so it is only unique within one preprocessed table.
func VariantID(chrom string, pos int) string {
	return fmt.Sprintf("chr%s_%d", Normalize(chrom), pos)
}

// ParseVariantID is the inverse of VariantID.
func ParseVariantID(id string) (chrom string, pos int, err error) {
	if !strings.HasPrefix(id, "chr") {
		return "", 0, fmt.Errorf("variant id %q does not start with chr", id)
	}

	idx := strings.LastIndexByte(id, '_')
	if idx < 0 {
		return "", 0, fmt.Errorf("variant id %q has no _ separator", id)
	}

	pos, err = strconv.Atoi(id[idx+1:])
	if err != nil {
		return "", 0, fmt.Errorf("variant id %q: %w", id, err)
	}

	chrom = Normalize(id[:idx])
	if chrom == "" {
		return "", 0, fmt.Errorf("variant id %q has no chromosome", id)
	}

	return chrom, pos, nil
}
