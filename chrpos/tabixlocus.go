package chrpos

import "fmt"

// TabixLocus is a 0-based, half-open region suitable for tabix queries. It
// satisfies the irelate interfaces.IPosition interface.
type TabixLocus struct {
	chrom string
	start int
	end   int
}

// MakeTabixLocus converts an inclusive 1-based [minPos, maxPos] range into a
// tabix region.
func MakeTabixLocus(chrom string, minPos, maxPos int) TabixLocus {
	start := minPos - 1
	if start < 0 {
		start = 0
	}

	return TabixLocus{
		chrom: chrom,
		start: start,
		end:   maxPos,
	}
}

func (tl TabixLocus) Chrom() string {
	return tl.chrom
}

func (tl TabixLocus) Start() uint32 {
	return uint32(tl.start)
}

func (tl TabixLocus) End() uint32 {
	return uint32(tl.end)
}

func (tl TabixLocus) String() string {
	return fmt.Sprintf("%s:%d-%d", tl.chrom, tl.start+1, tl.end)
}
