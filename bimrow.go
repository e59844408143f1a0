package colotools

// Map columns in the BIM file to their positions
const (
	BIMChromosome int = iota
	BIMVariantID
	BIMMorgans
	BIMCoordinate
	BIMAllele1
	BIMAllele2
)

type BIMRow struct {
	Chromosome string
	Coordinate int    // Labeled "position" by most applications
	VariantID  string // E.g., RSID, or chr1_12345 for panels built by colotools
	Allele1    string // Can contain > 1 character
	Allele2    string // Can contain > 1 character
}

// IsSNP reports whether both alleles are single bases.
func (r BIMRow) IsSNP() bool {
	return len(r.Allele1) == 1 && len(r.Allele2) == 1
}
