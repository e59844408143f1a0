package colotools

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// BIM reads the variant table of a plink binary fileset, which is the LD
// reference consumed by clumping.
type BIM struct {
	path    string
	file    io.ReadCloser
	scanner *bufio.Scanner
	line    int
}

func OpenBIM(path string) (*BIM, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	rc, err := MaybeDecompressReadCloserFromFile(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &BIM{
		path:    path,
		file:    rc,
		scanner: bufio.NewScanner(rc),
	}, nil
}

func (b *BIM) Close() error {
	return b.file.Close()
}

// Read returns the next row, or io.EOF once the file is exhausted.
func (b *BIM) Read() (*BIMRow, error) {
	for b.scanner.Scan() {
		b.line++

		cols := strings.Fields(b.scanner.Text())
		if len(cols) == 0 {
			continue
		}

		if len(cols) < BIMAllele2+1 {
			return nil, fmt.Errorf("%s line %d: expected %d columns, found %d", b.path, b.line, BIMAllele2+1, len(cols))
		}

		coord, err := strconv.Atoi(cols[BIMCoordinate])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", b.path, b.line, err)
		}

		return &BIMRow{
			Chromosome: cols[BIMChromosome],
			VariantID:  cols[BIMVariantID],
			Coordinate: coord,
			Allele1:    cols[BIMAllele1],
			Allele2:    cols[BIMAllele2],
		}, nil
	}

	if err := b.scanner.Err(); err != nil {
		return nil, err
	}

	return nil, io.EOF
}
