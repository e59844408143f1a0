// Package locus turns lead variants into disjoint genomic clusters.
//
// Everything here works on a SortedTable: one chromosome of a preprocessed
// summary statistics table whose positions are strictly ascending. Windows are
// found by index arithmetic on that ordering, not by searching positions, so
// the ordering is validated once, when the SortedTable is built.
package locus

import (
	"errors"
	"fmt"
	"sort"

	"github.com/carbocation/colotools/chrpos"
	"github.com/carbocation/colotools/sumstats"
)

var (
	ErrNotSorted         = errors.New("not sorted by position")
	ErrPositionNotFound  = errors.New("position not found")
	ErrMixedChromosomes  = errors.New("rows from more than one chromosome")
	ErrDuplicatePosition = errors.New("duplicate position")
)

// SortedTable is a single-chromosome table with strictly ascending positions.
// Construct it with NewSortedTable or SortTable.
type SortedTable struct {
	chrom string
	table *sumstats.Table
}

// NewSortedTable validates t without reordering it.
func NewSortedTable(chrom string, t *sumstats.Table) (SortedTable, error) {
	chrom = chrpos.Normalize(chrom)

	for i, v := range t.Rows {
		if v.Chrom != chrom {
			return SortedTable{}, fmt.Errorf("chr%s table: row %d is on chr%s: %w", chrom, i, v.Chrom, ErrMixedChromosomes)
		}
		if i == 0 {
			continue
		}
		if prev := t.Rows[i-1].Pos; v.Pos == prev {
			return SortedTable{}, fmt.Errorf("chr%s table: %d: %w", chrom, v.Pos, ErrDuplicatePosition)
		} else if v.Pos < prev {
			return SortedTable{}, fmt.Errorf("chr%s table: %d follows %d: %w", chrom, v.Pos, prev, ErrNotSorted)
		}
	}

	return SortedTable{chrom: chrom, table: t}, nil
}

// SortTable sorts a copy of t's rows by position and validates the result.
func SortTable(chrom string, t *sumstats.Table) (SortedTable, error) {
	rows := make([]sumstats.Variant, len(t.Rows))
	copy(rows, t.Rows)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Pos < rows[j].Pos })

	return NewSortedTable(chrom, t.WithRows(rows))
}

func (s SortedTable) Chrom() string {
	return s.chrom
}

func (s SortedTable) Len() int {
	if s.table == nil {
		return 0
	}
	return len(s.table.Rows)
}

func (s SortedTable) Rows() []sumstats.Variant {
	if s.table == nil {
		return nil
	}
	return s.table.Rows
}

// Table exposes the header and layout, e.g. for writing cluster files.
func (s SortedTable) Table() *sumstats.Table {
	return s.table
}

// Index returns the row index holding pos.
func (s SortedTable) Index(pos int) (int, error) {
	rows := s.Rows()
	i := sort.Search(len(rows), func(i int) bool { return rows[i].Pos >= pos })
	if i == len(rows) || rows[i].Pos != pos {
		return -1, fmt.Errorf("chr%s:%d: %w", s.chrom, pos, ErrPositionNotFound)
	}

	return i, nil
}

// WindowBounds returns the half-open row range [max(i-radius,0),
// min(i+radius+1,N)) around the row holding pos. radius counts variants, not
// base pairs, so the genomic width depends on variant density.
func (s SortedTable) WindowBounds(pos, radius int) (lo, hi int, err error) {
	i, err := s.Index(pos)
	if err != nil {
		return 0, 0, err
	}

	lo = i - radius
	if lo < 0 {
		lo = 0
	}
	hi = i + radius + 1
	if n := s.Len(); hi > n {
		hi = n
	}

	return lo, hi, nil
}

// Window returns the up to 2*radius+1 rows centered on pos, clipped at the
// table edges.
func (s SortedTable) Window(pos, radius int) ([]sumstats.Variant, error) {
	lo, hi, err := s.WindowBounds(pos, radius)
	if err != nil {
		return nil, err
	}

	return s.Rows()[lo:hi], nil
}

// Range returns the rows with minPos <= pos <= maxPos.
func (s SortedTable) Range(minPos, maxPos int) []sumstats.Variant {
	rows := s.Rows()
	lo := sort.Search(len(rows), func(i int) bool { return rows[i].Pos >= minPos })
	hi := sort.Search(len(rows), func(i int) bool { return rows[i].Pos > maxPos })
	if hi < lo {
		hi = lo
	}

	return rows[lo:hi]
}
