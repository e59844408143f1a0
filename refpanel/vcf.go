package refpanel

import (
	"context"
	"fmt"
	"io"
	"sort"

	"cloud.google.com/go/storage"
	"github.com/brentp/irelate/interfaces"
	"github.com/carbocation/bix"
	"github.com/carbocation/colotools"
	"github.com/carbocation/colotools/chrpos"
	"github.com/carbocation/vcfgo"
)

// VCF queries a tabix-indexed, bgzipped VCF. Files may be local or in google
// storage.
type VCF struct {
	template string
	client   *storage.Client
}

func NewVCF(template string, client *storage.Client) *VCF {
	return &VCF{template: template, client: client}
}

func (v *VCF) Positions(ctx context.Context, chrom string, min, max int) ([]int, error) {
	vcfFile := pathFor(v.template, chrom)
	if !colotools.InputExists(vcfFile) {
		return nil, fmt.Errorf("%s: %w", vcfFile, ErrNoReference)
	}

	tbx, err := bix.NewGCP(vcfFile, v.client)
	if err != nil {
		return nil, err
	}
	defer tbx.Close()

	// The contig may be spelled either way; the first spelling that yields
	// sites wins.
	var firstErr error
	for _, spelling := range spellings(chrom) {
		positions, err := queryTabix(ctx, tbx, chrpos.MakeTabixLocus(spelling, min, max))
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if len(positions) > 0 {
			return positions, nil
		}
	}

	if firstErr != nil {
		return nil, firstErr
	}

	return []int{}, nil
}

func queryTabix(ctx context.Context, tbx *bix.Bix, locus chrpos.TabixLocus) ([]int, error) {
	vals, err := tbx.Query(locus)
	if err != nil {
		return nil, err
	}
	defer vals.Close()

	var positions []int
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		v, err := vals.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}

		// Unwrap to get to the vcfgo.Variant

		v2, ok := v.(interfaces.VarWrap)
		if !ok {
			return nil, fmt.Errorf("%s:%d: not a valid VarWrap", v.Chrom(), v.End())
		}

		snp, ok := v2.IVariant.(*vcfgo.Variant)
		if !ok {
			return nil, fmt.Errorf("%s:%d: not a valid IVariant", v.Chrom(), v.End())
		}

		pos := int(snp.Pos)
		if pos <= int(locus.Start()) || pos > int(locus.End()) || !isBiallelicSNP(snp) {
			continue
		}
		positions = append(positions, pos)
	}

	sort.Ints(positions)

	return dedupSorted(positions), nil
}

func isBiallelicSNP(v *vcfgo.Variant) bool {
	alts := v.Alt()
	return len(v.Ref()) == 1 && len(alts) == 1 && len(alts[0]) == 1
}

func (v *VCF) Close() error {
	return nil
}
