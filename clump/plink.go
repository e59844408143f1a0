// Package clump drives plink's LD clumping over a per-chromosome association
// file and turns its report into lead variants for the cluster builder.
package clump

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/carbocation/colotools"
	"github.com/carbocation/colotools/sumstats"
	"github.com/carbocation/colotools/tools"
	"github.com/carbocation/pfx"
	"github.com/sirupsen/logrus"
)

// ErrNoClumps means plink produced no usable report for the chromosome. The
// chromosome contributes no clusters; this is not a run failure.
var ErrNoClumps = errors.New("no clumps")

// Column names of the association file handed to plink.
const (
	SNPField = sumstats.VariantIDColumn
	PField   = "P"
)

type Plink struct {
	Binary string `yaml:"plink"`

	// BFileTemplate is the plink fileset prefix of the reference panel,
	// with %s replaced by the chromosome.
	BFileTemplate string `yaml:"bfile_template"`

	P1 float64 `yaml:"p1"`
	P2 float64 `yaml:"p2"`
	R2 float64 `yaml:"r2"`
	KB int     `yaml:"kb"`
}

// Defaults returns plink's clumping settings commonly used for
// genome-wide significant loci.
func Defaults() Plink {
	return Plink{
		Binary: "plink",
		P1:     5e-8,
		P2:     1e-5,
		R2:     0.1,
		KB:     250,
	}
}

// BFile returns the reference fileset prefix for chrom.
func (p Plink) BFile(chrom string) string {
	if strings.Contains(p.BFileTemplate, "%s") {
		return fmt.Sprintf(p.BFileTemplate, chrom)
	}

	return p.BFileTemplate
}

// Args returns plink's command line for one chromosome.
func (p Plink) Args(chrom, assocFile, outPrefix string) []string {
	return []string{
		"--bfile", p.BFile(chrom),
		"--clump", assocFile,
		"--clump-p1", formatFloat(p.P1),
		"--clump-p2", formatFloat(p.P2),
		"--clump-r2", formatFloat(p.R2),
		"--clump-kb", strconv.Itoa(p.KB),
		"--clump-snp-field", SNPField,
		"--clump-field", PField,
		"--out", outPrefix,
	}
}

// Output is the path of the report plink writes for outPrefix.
func Output(outPrefix string) string {
	return outPrefix + ".clumped"
}

// Run clumps assocFile and returns the path of the .clumped report. An
// existing non-empty report is reused without running plink again.
func (p Plink) Run(ctx context.Context, log *logrus.Entry, chrom, assocFile, outPrefix string) (string, error) {
	out := Output(outPrefix)
	log = log.WithField("chrom", chrom)

	if colotools.NonEmptyFile(out) {
		log.Infoln("Reusing existing clump report", out)
		return out, nil
	}

	if err := os.MkdirAll(filepath.Dir(outPrefix), 0755); err != nil {
		return "", pfx.Err(err)
	}

	runner := tools.Runner{Log: log}
	err := runner.Invoke(ctx, p.Binary, p.Args(chrom, assocFile, outPrefix), out)
	if tools.IsNotFound(err) {
		return "", err
	} else if err != nil {
		log.WithError(err).Warnln("Clumping produced no report")
		return "", fmt.Errorf("chromosome %s: %w: %v", chrom, ErrNoClumps, err)
	}

	return out, nil
}

// WriteAssoc writes the association file plink clumps: one row per variant
// with its id, chromosome, position and p-value.
func WriteAssoc(path string, rows []sumstats.Variant) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return pfx.Err(err)
	}

	f, err := os.Create(path)
	if err != nil {
		return pfx.Err(err)
	}
	defer f.Close()

	w := bufio.NewWriterSize(f, colotools.BufferSize)
	fmt.Fprintf(w, "%s\tCHR\tBP\t%s\n", SNPField, PField)
	for _, v := range rows {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", v.ID, v.Chrom, v.Pos, formatFloat(v.P))
	}

	if err := w.Flush(); err != nil {
		return pfx.Err(err)
	}

	return pfx.Err(f.Close())
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
