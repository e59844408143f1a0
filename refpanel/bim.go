package refpanel

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/carbocation/colotools"
	"github.com/carbocation/colotools/chrpos"
)

// BIM reads positions from the .bim file of a plink fileset. Each
// chromosome's file is scanned once and its SNP positions kept in memory.
type BIM struct {
	template string

	mu    sync.Mutex
	cache map[string][]int
}

// NewBIM accepts either a .bim path template or a bfile prefix template.
func NewBIM(template string) *BIM {
	if !strings.HasSuffix(template, ".bim") {
		template += ".bim"
	}

	return &BIM{template: template, cache: make(map[string][]int)}
}

func (b *BIM) Positions(ctx context.Context, chrom string, min, max int) ([]int, error) {
	all, err := b.load(chrpos.Normalize(chrom))
	if err != nil {
		return nil, err
	}

	lo := sort.SearchInts(all, min)
	hi := sort.SearchInts(all, max+1)

	out := make([]int, hi-lo)
	copy(out, all[lo:hi])

	return out, nil
}

func (b *BIM) load(chrom string) ([]int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if positions, exists := b.cache[chrom]; exists {
		return positions, nil
	}

	path := pathFor(b.template, chrom)
	if !colotools.NonEmptyFile(path) {
		return nil, fmt.Errorf("%s: %w", path, ErrNoReference)
	}

	bim, err := colotools.OpenBIM(path)
	if err != nil {
		return nil, err
	}
	defer bim.Close()

	var positions []int
	for {
		row, err := bim.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}

		if !row.IsSNP() || chrpos.Normalize(row.Chromosome) != chrom {
			continue
		}
		positions = append(positions, row.Coordinate)
	}

	sort.Ints(positions)
	positions = dedupSorted(positions)
	b.cache[chrom] = positions

	return positions, nil
}

func (b *BIM) Close() error {
	return nil
}
