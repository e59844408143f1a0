package gate

import (
	"testing"

	"github.com/carbocation/colotools/locus"
	"github.com/stretchr/testify/require"
)

func TestIntersect(t *testing.T) {
	cases := []struct {
		a, b     []int
		expected []int
	}{
		{[]int{100, 105, 110}, []int{100, 200, 300}, []int{100}},
		{[]int{3, 1, 2}, []int{2, 3, 4}, []int{2, 3}},
		{[]int{1, 1, 2}, []int{1, 1}, []int{1}},
		{nil, []int{1}, []int{}},
		{[]int{5}, []int{6}, []int{}},
	}

	for _, c := range cases {
		got := Intersect(c.a, c.b)
		require.Equal(t, c.expected, got, "Intersect(%v, %v)", c.a, c.b)
		require.Equal(t, got, Intersect(c.b, c.a), "Intersect should be symmetric")
	}
}

func TestCountSelf(t *testing.T) {
	a := []int{9, 4, 7, 1}
	if got := Count(a, a); got != len(a) {
		t.Fatalf("Count(a, a) = %d, expected %d", got, len(a))
	}
}

func TestPolicy(t *testing.T) {
	a := []int{100, 105, 110}
	b := []int{100, 200, 300}

	cases := []struct {
		name     string
		policy   Policy
		a, b     []int
		expected bool
	}{
		{"min1 admits one shared", Policy{MinMatching: 1}, a, b, true},
		{"min2 rejects one shared", Policy{MinMatching: 2}, a, b, false},
		{"min0 admits disjoint", Policy{}, a, []int{1}, true},
		{"direct overlap rejects disjoint", Policy{RequireDirectOverlap: true}, a, []int{1}, false},
		{"direct overlap admits shared", Policy{RequireDirectOverlap: true}, a, b, true},
		{"direct overlap plus min2", Policy{MinMatching: 2, RequireDirectOverlap: true}, a, []int{100, 110}, true},
	}

	for _, c := range cases {
		if got := c.policy.Admit(c.a, c.b); got != c.expected {
			t.Fatalf("%s: Admit = %v, expected %v", c.name, got, c.expected)
		}
	}
}

func TestPairs(t *testing.T) {
	clusters := []locus.ClusterSummary{
		{Chrom: "1", Lead: "chr1_150", Positions: locus.Positions{100, 105, 110}},
		{Chrom: "1", Lead: "chr1_900", Positions: locus.Positions{900}},
		{Chrom: "2", Lead: "chr2_50", Positions: locus.Positions{50}},
	}
	signals := []locus.QTLSignal{
		{Chrom: "1", PhenoFile: "qtl/chr1/GENEB.tsv.gz", Phenotype: "GENEB", Positions: locus.Positions{100, 110}},
		{Chrom: "1", PhenoFile: "qtl/chr1/GENEA.tsv.gz", Phenotype: "GENEA", Positions: locus.Positions{100, 200, 300}},
		{Chrom: "3", PhenoFile: "qtl/chr3/GENEC.tsv.gz", Phenotype: "GENEC", Positions: locus.Positions{50}},
	}

	pairs := Pairs(clusters, signals, Policy{MinMatching: 1})
	require.Len(t, pairs, 2)
	require.Equal(t, "GENEA", pairs[0].Signal.Phenotype)
	require.Equal(t, []int{100}, pairs[0].Overlap)
	require.Equal(t, "GENEB", pairs[1].Signal.Phenotype)
	require.Equal(t, []int{100, 110}, pairs[1].Overlap)
	require.Equal(t, "chr1_150-GENEB", pairs[1].Key())

	// Chromosomes never cross, even with a permissive policy.
	for _, p := range Pairs(clusters, signals, Policy{}) {
		require.Equal(t, p.Cluster.Chrom, p.Signal.Chrom)
	}
	require.Len(t, Pairs(clusters, signals, Policy{}), 4)

	require.Len(t, Pairs(clusters, signals, Policy{MinMatching: 2}), 1)
}

func TestRecheck(t *testing.T) {
	p := Pair{Overlap: []int{100, 110}}

	reduced, ok := Recheck(p, []int{100, 105}, Policy{MinMatching: 1})
	require.True(t, ok)
	require.Equal(t, []int{100}, reduced.Overlap)
	require.Equal(t, []int{100, 105}, reduced.Reference)

	_, ok = Recheck(p, []int{100, 105}, Policy{MinMatching: 2})
	require.False(t, ok)
}
