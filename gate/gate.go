// Package gate decides which GWAS cluster / QTL signal pairs are worth
// handing to a colocalization tool, by counting the positions they share.
package gate

import (
	"sort"

	"github.com/carbocation/colotools/chrpos"
	"github.com/carbocation/colotools/locus"
)

// Intersect returns the sorted, unique positions present in both a and b.
// Neither input needs to be sorted.
func Intersect(a, b []int) []int {
	in := make(map[int]struct{}, len(a))
	for _, v := range a {
		in[v] = struct{}{}
	}

	out := make([]int, 0)
	for _, v := range b {
		if _, exists := in[v]; exists {
			out = append(out, v)
			delete(in, v)
		}
	}
	sort.Ints(out)

	return out
}

// Count is the number of distinct positions shared by a and b.
func Count(a, b []int) int {
	return len(Intersect(a, b))
}

type Policy struct {
	// MinMatching is the smallest shared-position count that is admitted.
	MinMatching int `yaml:"min_matching"`

	// RequireDirectOverlap rejects pairs that share nothing, even when
	// MinMatching is 0.
	RequireDirectOverlap bool `yaml:"require_direct_overlap"`
}

// AdmitCount applies the policy to an already computed overlap size.
func (p Policy) AdmitCount(n int) bool {
	if p.RequireDirectOverlap && n == 0 {
		return false
	}

	return n >= p.MinMatching
}

func (p Policy) Admit(a, b []int) bool {
	return p.AdmitCount(Count(a, b))
}

// Pair is a cluster and a QTL signal on the same chromosome together with the
// positions they share.
type Pair struct {
	Cluster locus.ClusterSummary
	Signal  locus.QTLSignal
	Overlap []int

	// Reference holds the reference panel positions inside the cluster
	// range once the pair has been rechecked. Nil means unrestricted.
	Reference []int
}

// Key names the pair in file paths: {lead}-{phenotype key}.
func (p Pair) Key() string {
	return p.Cluster.Lead + "-" + p.Signal.Key()
}

// Pairs enumerates every same-chromosome pair the policy admits, ordered by
// chromosome, lead, then phenotype file.
func Pairs(clusters []locus.ClusterSummary, signals []locus.QTLSignal, policy Policy) []Pair {
	byChrom := make(map[string][]locus.QTLSignal)
	for _, s := range signals {
		c := chrpos.Normalize(s.Chrom)
		byChrom[c] = append(byChrom[c], s)
	}

	var out []Pair
	for _, c := range clusters {
		for _, s := range byChrom[chrpos.Normalize(c.Chrom)] {
			overlap := Intersect(c.Positions, s.Positions)
			if !policy.AdmitCount(len(overlap)) {
				continue
			}
			out = append(out, Pair{Cluster: c, Signal: s, Overlap: overlap})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if ac, bc := chrpos.Normalize(a.Cluster.Chrom), chrpos.Normalize(b.Cluster.Chrom); ac != bc {
			return chrpos.Less(ac, bc)
		}
		if a.Cluster.Lead != b.Cluster.Lead {
			return a.Cluster.Lead < b.Cluster.Lead
		}
		return a.Signal.PhenoFile < b.Signal.PhenoFile
	})

	return out
}

// Recheck evaluates the pair a second time after restricting its overlap to
// positions that are present in the reference panel. The returned pair
// carries the reduced overlap and the panel positions.
func Recheck(pair Pair, panelPositions []int, policy Policy) (Pair, bool) {
	pair.Overlap = Intersect(pair.Overlap, panelPositions)
	pair.Reference = panelPositions
	if pair.Reference == nil {
		pair.Reference = []int{}
	}

	return pair, policy.AdmitCount(len(pair.Overlap))
}
