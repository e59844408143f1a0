package clump

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/carbocation/colotools"
	"github.com/carbocation/colotools/chrpos"
	"github.com/carbocation/colotools/locus"
	"github.com/carbocation/pfx"
	"github.com/sirupsen/logrus"
)

// Clump is one row of a plink .clumped report.
type Clump struct {
	Chrom   string
	SNP     string
	BP      int
	P       float64
	Friends []string
}

// ReadClumped parses the report at path.
func ReadClumped(path string) ([]Clump, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer f.Close()

	rdr, err := colotools.MaybeDecompressReadCloserFromFile(f)
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer rdr.Close()

	return ParseClumped(rdr)
}

// ParseClumped reads plink's whitespace-aligned clump report. Columns are
// located by name; the report ends with blank lines which are skipped.
func ParseClumped(r io.Reader) ([]Clump, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, colotools.BufferSize), 1<<26)

	var header map[string]int
	var out []Clump
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		if header == nil {
			header = make(map[string]int, len(fields))
			for i, name := range fields {
				header[name] = i
			}
			for _, name := range []string{"CHR", "SNP", "BP", "SP2"} {
				if _, ok := header[name]; !ok {
					return nil, pfx.Err(fmt.Errorf("clump report has no %s column", name))
				}
			}
			continue
		}

		if len(fields) < len(header) {
			return nil, pfx.Err(fmt.Errorf("line %d: expected %d fields, found %d", line, len(header), len(fields)))
		}

		bp, err := strconv.Atoi(fields[header["BP"]])
		if err != nil {
			return nil, pfx.Err(fmt.Errorf("line %d: %w", line, err))
		}

		c := Clump{
			Chrom:   chrpos.Normalize(fields[header["CHR"]]),
			SNP:     fields[header["SNP"]],
			BP:      bp,
			Friends: parseFriends(fields[header["SP2"]]),
		}
		if idx, ok := header["P"]; ok {
			c.P, _ = strconv.ParseFloat(fields[idx], 64)
		}

		out = append(out, c)
	}

	return out, pfx.Err(scanner.Err())
}

// parseFriends splits an SP2 cell such as "chr1_101(1),chr1_102(1)".
func parseFriends(cell string) []string {
	if cell == "NONE" || cell == "" {
		return nil
	}

	parts := strings.Split(cell, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if i := strings.IndexByte(part, '('); i >= 0 {
			part = part[:i]
		}
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}

	return out
}

// Leads converts clumps to cluster-builder leads, ordered by position.
// Friend ids that are not of the form chr{chrom}_{pos}, or that sit on a
// different chromosome than their lead, are ignored.
func Leads(log *logrus.Entry, clumps []Clump) []locus.Lead {
	out := make([]locus.Lead, 0, len(clumps))
	for _, c := range clumps {
		lead := locus.Lead{ID: c.SNP, Pos: c.BP}
		for _, friend := range c.Friends {
			chrom, pos, err := chrpos.ParseVariantID(friend)
			if err != nil || (c.Chrom != "" && chrom != c.Chrom) {
				if log != nil {
					log.WithField("lead", c.SNP).Debugln("Ignoring friend", friend)
				}
				continue
			}
			lead.Friends = append(lead.Friends, pos)
		}
		sort.Ints(lead.Friends)
		out = append(out, lead)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Pos < out[j].Pos })

	return out
}
