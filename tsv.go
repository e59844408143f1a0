package colotools

import (
	"bufio"
	"encoding/csv"
	"os"
	"path/filepath"

	"github.com/carbocation/pfx"
	"github.com/gocarina/gocsv"
)

// WriteTSV marshals a slice of gocsv-tagged structs to a tab-delimited file.
// An empty slice still produces a header row.
func WriteTSV(path string, rows interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return pfx.Err(err)
	}

	f, err := os.Create(path)
	if err != nil {
		return pfx.Err(err)
	}

	bw := bufio.NewWriter(f)
	cw := csv.NewWriter(bw)
	cw.Comma = '\t'

	if err := gocsv.MarshalCSV(rows, gocsv.NewSafeCSVWriter(cw)); err != nil {
		f.Close()
		return pfx.Err(err)
	}

	if err := bw.Flush(); err != nil {
		f.Close()
		return pfx.Err(err)
	}

	return pfx.Err(f.Close())
}

// ReadTSV unmarshals a tab-delimited file into out, a pointer to a slice of
// gocsv-tagged structs. A missing or zero-byte file yields an empty slice:
// for summary tables that simply means there is nothing to process.
func ReadTSV(path string, out interface{}) error {
	if !NonEmptyFile(path) {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return pfx.Err(err)
	}
	defer f.Close()

	cr := csv.NewReader(bufio.NewReader(f))
	cr.Comma = '\t'
	cr.LazyQuotes = true

	if err := gocsv.UnmarshalCSV(cr, out); err != nil {
		return pfx.Err(err)
	}

	return nil
}
