package locus

import (
	"fmt"

	"github.com/carbocation/colotools/chrpos"
)

// Lead is an independent association signal: the index variant of a clump and
// the positions of its LD friends.
type Lead struct {
	ID      string
	Pos     int
	Friends []int
}

// Window is the genomic span contributed by one lead: its variant-count
// neighborhood, widened if necessary to cover all of its friends.
type Window struct {
	Chrom     string
	MinPos    int
	MaxPos    int
	Lead      string
	LeadPos   int
	LeadP     float64
	Positions Positions
}

// Cluster is a disjoint genomic range built from one or more overlapping
// windows. Lead is the lowest-p lead among them.
type Cluster struct {
	Chrom     string
	MinPos    int
	MaxPos    int
	Lead      string
	LeadPos   int
	LeadP     float64
	Positions Positions // Sorted positions of every lead and friend merged in

	File string // Set once the cluster file has been written
}

// Width is the inclusive base-pair span of the cluster.
func (c Cluster) Width() int {
	return c.MaxPos - c.MinPos + 1
}

// Contains reports whether pos lies within the cluster.
func (c Cluster) Contains(pos int) bool {
	return pos >= c.MinPos && pos <= c.MaxPos
}

// FileName is the cluster file name, {lead}-chr{chrom}.tsv.gz.
func (c Cluster) FileName() string {
	return fmt.Sprintf("%s-chr%s.tsv.gz", c.Lead, c.Chrom)
}

// LeadWindow computes the window for one lead.
func LeadWindow(table SortedTable, lead Lead, radius int) (Window, error) {
	lo, hi, err := table.WindowBounds(lead.Pos, radius)
	if err != nil {
		return Window{}, fmt.Errorf("lead %s: %w", lead.ID, err)
	}

	rows := table.Rows()
	center, _ := table.Index(lead.Pos)

	w := Window{
		Chrom:   table.Chrom(),
		MinPos:  rows[lo].Pos,
		MaxPos:  rows[hi-1].Pos,
		Lead:    lead.ID,
		LeadPos: lead.Pos,
		LeadP:   rows[center].P,
	}

	// Sparse regions can push LD friends past the index radius. Widen the
	// window to their bounding box so they are never excluded.
	for _, f := range lead.Friends {
		if f < w.MinPos {
			w.MinPos = f
		}
		if f > w.MaxPos {
			w.MaxPos = f
		}
	}

	w.Positions = append(Positions{lead.Pos}, lead.Friends...).Unique()

	return w, nil
}

// Build computes one window per lead and sweeps them into disjoint clusters.
// Leads must be ascending by position.
func Build(table SortedTable, leads []Lead, radius int) ([]Cluster, error) {
	windows := make([]Window, 0, len(leads))
	for i, lead := range leads {
		if i > 0 && lead.Pos < leads[i-1].Pos {
			return nil, fmt.Errorf("chr%s lead %s at %d follows %d: %w", table.Chrom(), lead.ID, lead.Pos, leads[i-1].Pos, ErrNotSorted)
		}

		w, err := LeadWindow(table, lead, radius)
		if err != nil {
			return nil, err
		}
		windows = append(windows, w)
	}

	return Sweep(windows)
}

// Sweep merges windows, which must be ordered by chromosome and then by lead
// position, in a single left-to-right pass. A window joins the current cluster
// when it is on the same chromosome and the cluster's MaxPos reaches the
// window's MinPos (touching counts as overlapping). On equal p-values the lead
// encountered first is kept.
func Sweep(windows []Window) ([]Cluster, error) {
	out := make([]Cluster, 0)

	var current *Cluster
	for i, w := range windows {
		if i > 0 {
			prev := windows[i-1]
			if prev.Chrom != w.Chrom && chrpos.Less(w.Chrom, prev.Chrom) ||
				prev.Chrom == w.Chrom && w.LeadPos < prev.LeadPos {
				return nil, fmt.Errorf("window for %s (chr%s:%d) follows %s (chr%s:%d): %w", w.Lead, w.Chrom, w.LeadPos, prev.Lead, prev.Chrom, prev.LeadPos, ErrNotSorted)
			}
		}

		next := clusterFromWindow(w)

		if current == nil {
			current = &next
			continue
		}

		if w.Chrom != current.Chrom || current.MaxPos < w.MinPos {
			out = append(out, *current)
			current = &next
			continue
		}

		merged := merge(*current, next)
		current = &merged

		// A friend-extended window can reach left past clusters that were
		// already emitted. Fold those back in so clusters stay disjoint.
		for len(out) > 0 {
			last := out[len(out)-1]
			if last.Chrom != current.Chrom || last.MaxPos < current.MinPos {
				break
			}
			merged = merge(last, *current)
			current = &merged
			out = out[:len(out)-1]
		}
	}

	// Always flush the final cluster.
	if current != nil {
		out = append(out, *current)
	}

	return out, nil
}

func clusterFromWindow(w Window) Cluster {
	return Cluster{
		Chrom:     w.Chrom,
		MinPos:    w.MinPos,
		MaxPos:    w.MaxPos,
		Lead:      w.Lead,
		LeadPos:   w.LeadPos,
		LeadP:     w.LeadP,
		Positions: w.Positions,
	}
}

// merge combines two overlapping clusters. earlier keeps the lead unless
// later's lead has a strictly smaller p-value.
func merge(earlier, later Cluster) Cluster {
	out := earlier

	if later.MinPos < out.MinPos {
		out.MinPos = later.MinPos
	}
	if later.MaxPos > out.MaxPos {
		out.MaxPos = later.MaxPos
	}

	if later.LeadP < earlier.LeadP {
		out.Lead = later.Lead
		out.LeadPos = later.LeadPos
		out.LeadP = later.LeadP
	}

	out.Positions = append(append(Positions{}, earlier.Positions...), later.Positions...).Unique()

	return out
}
