package locus

import (
	"fmt"
	"sort"
	"strings"

	"github.com/carbocation/colotools"
	"github.com/carbocation/colotools/chrpos"
	"github.com/minio/blake2b-simd"
)

// QTLSignal is one row of qtl_signals.tsv: a phenotype file on one
// chromosome with at least one variant below the QTL threshold.
type QTLSignal struct {
	Chrom     string    `csv:"chrom"`
	PhenoFile string    `csv:"pheno_file"`
	Phenotype string    `csv:"phenotype"`
	Gene      string    `csv:"gene"`
	Positions Positions `csv:"positions"`
}

// Key identifies the phenotype within its chromosome and is safe to use as
// a file name. sQTL phenotypes are qualified by their gene.
func (s QTLSignal) Key() string {
	return PhenotypeKey(s.Phenotype, s.Gene)
}

// PhenotypeKey joins gene and phenotype into a name that is safe to use as
// a file name (intron clusters look like 1:100:200:clu_1). When the name had
// to be qualified or rewritten, a digest of the raw gene and phenotype is
// appended so that distinct phenotypes never share a key.
func PhenotypeKey(phenotype, gene string) string {
	key := phenotype
	if gene != "" && gene != phenotype {
		key = gene + "_" + phenotype
	}

	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, key)

	if safe == phenotype {
		return safe
	}

	return safe + "-" + phenotypeDigest(phenotype, gene)
}

func phenotypeDigest(phenotype, gene string) string {
	h, err := blake2b.New(&blake2b.Config{Size: 4})
	if err != nil {
		return ""
	}
	h.Write([]byte(gene))
	h.Write([]byte{0})
	h.Write([]byte(phenotype))

	return fmt.Sprintf("%x", h.Sum(nil))
}

// SortSignals orders signals by chromosome, then phenotype file.
func SortSignals(rows []QTLSignal) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Chrom != rows[j].Chrom {
			return chrpos.Less(rows[i].Chrom, rows[j].Chrom)
		}
		return rows[i].PhenoFile < rows[j].PhenoFile
	})
}

func WriteSignals(path string, rows []QTLSignal) error {
	if rows == nil {
		rows = []QTLSignal{}
	}

	return colotools.WriteTSV(path, &rows)
}

// ReadSignals reads a QTL signal report. A missing or empty file yields no
// rows.
func ReadSignals(path string) ([]QTLSignal, error) {
	rows := []QTLSignal{}
	if err := colotools.ReadTSV(path, &rows); err != nil {
		return nil, err
	}

	return rows, nil
}
