package colotools

import (
	"bufio"
	"bytes"
	"io"

	"github.com/csimplestring/go-csv/detector"
)

// DetermineDelimiter returns the single most likely rune that would delimit the
// values in the reader, assuming a CSV-like file. Summary statistics files are
// usually tab-delimited, so tab wins whenever it appears in the first line.
func DetermineDelimiter(r io.Reader) rune {
	br := bufio.NewReader(r)
	firstLine, _ := br.ReadBytes('\n')
	if bytes.ContainsRune(firstLine, '\t') {
		return '\t'
	}

	d := detector.New()
	delimiters := d.DetectDelimiter(io.MultiReader(bytes.NewReader(firstLine), br), '"')

	if len(delimiters) > 0 {
		return rune(delimiters[0][0])
	}

	if bytes.ContainsRune(firstLine, ' ') {
		return ' '
	}

	return '\t'
}
