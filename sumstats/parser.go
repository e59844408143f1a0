package sumstats

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/carbocation/colotools/chrpos"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrMissingValue marks rows whose numeric fields are NA or empty. Such rows
// are skipped rather than treated as malformed input.
var ErrMissingValue = errors.New("missing value")

var stdNormal = distuv.Normal{Mu: 0, Sigma: 1}

// PValueFromZ is the two-sided normal p-value for z.
func PValueFromZ(z float64) float64 {
	return 2 * stdNormal.CDF(-math.Abs(z))
}

// ParseRow converts one raw row according to the layout. The row slice is
// retained as Variant.Fields, so callers must not reuse it.
func (l Layout) ParseRow(row []string) (Variant, error) {
	v := Variant{Fields: row}

	width := l.maxIndex() + 1
	if len(row) < width {
		return v, fmt.Errorf("row has %d fields but the layout needs %d", len(row), width)
	}

	v.Chrom = chrpos.Normalize(row[l.Chrom])
	v.EffectAllele = strings.TrimSpace(row[l.EffectAllele])
	v.OtherAllele = strings.TrimSpace(row[l.OtherAllele])

	pos, err := strconv.Atoi(strings.TrimSpace(row[l.Position]))
	if err != nil {
		if isMissing(row[l.Position]) {
			return v, ErrMissingValue
		}
		return v, fmt.Errorf("position: %w", err)
	}
	v.Pos = pos
	v.ID = chrpos.VariantID(v.Chrom, v.Pos)

	if v.Beta, err = parseFloat(row[l.Beta]); err != nil {
		return v, fmt.Errorf("beta: %w", err)
	}
	if v.SE, err = parseFloat(row[l.SE]); err != nil {
		return v, fmt.Errorf("se: %w", err)
	}
	v.VarBeta = v.SE * v.SE

	if l.PValue >= 0 {
		if v.P, err = parseFloat(row[l.PValue]); err != nil {
			return v, fmt.Errorf("pvalue: %w", err)
		}
	} else {
		if v.SE <= 0 {
			return v, ErrMissingValue
		}
		v.P = PValueFromZ(v.Beta / v.SE)
	}

	if l.SNP >= 0 {
		v.SNP = row[l.SNP]
	}
	if l.Phenotype >= 0 {
		v.Phenotype = strings.TrimSpace(row[l.Phenotype])
	}
	if l.Gene >= 0 {
		v.Gene = strings.TrimSpace(row[l.Gene])
	}

	return v, nil
}

func (l Layout) maxIndex() int {
	max := -1
	for _, idx := range []int{l.Chrom, l.Position, l.EffectAllele, l.OtherAllele, l.Beta, l.SE, l.PValue, l.SNP, l.Phenotype, l.Gene} {
		if idx > max {
			max = idx
		}
	}

	return max
}

func isMissing(value string) bool {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "", "NA", "NAN", ".", "NULL":
		return true
	}

	return false
}

func parseFloat(value string) (float64, error) {
	if isMissing(value) {
		return 0, ErrMissingValue
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) {
		return 0, ErrMissingValue
	}

	return f, nil
}
