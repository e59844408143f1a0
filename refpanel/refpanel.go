// Package refpanel answers which positions of a region are present in the LD
// reference panel. Tools that compute LD can only use those positions, so
// pair overlaps are rechecked against them.
package refpanel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/colotools/chrpos"
)

// ErrNoReference means the panel has no file for the requested chromosome.
// Pairs on that chromosome are skipped.
var ErrNoReference = errors.New("no reference panel file")

type Panel interface {
	// Positions returns the sorted, unique biallelic SNP positions in
	// [min, max] on chrom.
	Positions(ctx context.Context, chrom string, min, max int) ([]int, error)
	Close() error
}

type Kind string

const (
	KindVCF Kind = "vcf"
	KindBGI Kind = "bgi"
	KindBIM Kind = "bim"
)

// Open returns a panel whose per-chromosome files are found by substituting
// the chromosome for %s in template. client may be nil unless the VCF files
// live in google storage.
func Open(kind Kind, template string, client *storage.Client) (Panel, error) {
	if template == "" {
		return nil, fmt.Errorf("reference panel of kind %q has no path template", kind)
	}

	switch kind {
	case KindVCF:
		return NewVCF(template, client), nil
	case KindBGI:
		return NewBGI(template), nil
	case KindBIM:
		return NewBIM(template), nil
	}

	return nil, fmt.Errorf("unknown reference panel kind %q (expected vcf, bgi or bim)", kind)
}

func pathFor(template, chrom string) string {
	if strings.Contains(template, "%s") {
		return fmt.Sprintf(template, chrpos.Normalize(chrom))
	}

	return template
}

// spellings lists the ways a chromosome is commonly written in reference
// files: 1, 01 and chr1.
func spellings(chrom string) []string {
	c := chrpos.Normalize(chrom)
	out := []string{c}
	if len(c) == 1 {
		out = append(out, "0"+c)
	}

	return append(out, "chr"+c)
}

// dedupSorted removes repeats from an ascending slice in place.
func dedupSorted(positions []int) []int {
	j := 0
	for i, v := range positions {
		if i > 0 && v == positions[j-1] {
			continue
		}
		positions[j] = v
		j++
	}

	return positions[:j]
}
