package tools

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/carbocation/colotools"
	"github.com/carbocation/pfx"
)

// Score is the best value of a report's score column.
type Score struct {
	Value float64
	Rows  int
}

// ParseReport reads a tool's tabular report and returns the best value of
// scoreColumn. The delimiter is sniffed; space-aligned reports are split on
// runs of whitespace. Rows whose score is NA or not a number are ignored.
func ParseReport(path, scoreColumn string, lowerIsBetter bool) (Score, error) {
	f, err := os.Open(path)
	if err != nil {
		return Score{}, pfx.Err(err)
	}
	defer f.Close()

	rdr, err := colotools.MaybeDecompressReadCloserFromFile(f)
	if err != nil {
		return Score{}, pfx.Err(err)
	}
	defer rdr.Close()

	score, err := Parse(rdr, scoreColumn, lowerIsBetter)
	if err != nil {
		return Score{}, fmt.Errorf("%s: %w", path, err)
	}

	return score, nil
}

func Parse(r io.Reader, scoreColumn string, lowerIsBetter bool) (Score, error) {
	br := bufio.NewReaderSize(r, colotools.BufferSize)

	headerLine, err := br.ReadString('\n')
	if err != nil && (err != io.EOF || headerLine == "") {
		return Score{}, fmt.Errorf("reading header: %w", err)
	}
	headerLine = strings.TrimRight(headerLine, "\r\n")

	split := splitter(colotools.DetermineDelimiter(strings.NewReader(headerLine)))

	col := -1
	for i, name := range split(headerLine) {
		if strings.Trim(name, `"`) == scoreColumn {
			col = i
			break
		}
	}
	if col < 0 {
		return Score{}, fmt.Errorf("report has no %s column", scoreColumn)
	}

	best := Score{Value: math.NaN()}
	scanner := bufio.NewScanner(br)
	scanner.Buffer(make([]byte, 0, colotools.BufferSize), 1<<26)
	for scanner.Scan() {
		fields := split(scanner.Text())
		if len(fields) <= col {
			continue
		}

		value, err := strconv.ParseFloat(strings.Trim(fields[col], `"`), 64)
		if err != nil || math.IsNaN(value) {
			continue
		}

		best.Rows++
		if math.IsNaN(best.Value) || (lowerIsBetter && value < best.Value) || (!lowerIsBetter && value > best.Value) {
			best.Value = value
		}
	}
	if err := scanner.Err(); err != nil {
		return Score{}, err
	}

	if best.Rows == 0 {
		return Score{}, fmt.Errorf("report has no numeric %s values", scoreColumn)
	}

	return best, nil
}

func splitter(delim rune) func(string) []string {
	if delim == ' ' {
		return strings.Fields
	}

	sep := string(delim)
	return func(line string) []string {
		return strings.Split(strings.TrimSpace(line), sep)
	}
}
