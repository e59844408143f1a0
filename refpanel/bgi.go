package refpanel

import (
	"context"
	"fmt"
	"sync"

	"github.com/carbocation/bgen"
	"github.com/carbocation/colotools"
	"github.com/carbocation/colotools/chrpos"
	"github.com/jmoiron/sqlx"
)

// BGI looks positions up in the sqlite index (.bgi) that accompanies a BGEN
// file. Chromosomes may be stored as 1, 01 or chr1.
type BGI struct {
	template string

	mu      sync.Mutex
	indices map[string]*bgen.BGIIndex
}

func NewBGI(template string) *BGI {
	return &BGI{template: template, indices: make(map[string]*bgen.BGIIndex)}
}

const bgiPositionQuery = `SELECT DISTINCT position FROM Variant
WHERE chromosome IN (?) AND position >= ? AND position <= ?
AND length(allele1) = 1 AND length(allele2) = 1 AND number_of_alleles = 2
ORDER BY position ASC`

func (b *BGI) Positions(ctx context.Context, chrom string, min, max int) ([]int, error) {
	bgi, err := b.open(chrpos.Normalize(chrom))
	if err != nil {
		return nil, err
	}

	query, args, err := sqlx.In(bgiPositionQuery, spellings(chrom), min, max)
	if err != nil {
		return nil, err
	}

	var positions []int
	if err := bgi.DB.SelectContext(ctx, &positions, bgi.DB.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("chromosome %s %d-%d: %w", chrom, min, max, err)
	}

	return positions, nil
}

func (b *BGI) open(chrom string) (*bgen.BGIIndex, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if bgi, exists := b.indices[chrom]; exists {
		return bgi, nil
	}

	path := pathFor(b.template, chrom)
	if !colotools.NonEmptyFile(path) {
		return nil, fmt.Errorf("%s: %w", path, ErrNoReference)
	}

	bgi, err := openBGI(path)
	if err != nil {
		return nil, err
	}
	b.indices[chrom] = bgi

	return bgi, nil
}

func (b *BGI) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for chrom, bgi := range b.indices {
		bgi.Close()
		delete(b.indices, chrom)
	}

	return nil
}
