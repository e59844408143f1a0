package sumstats

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/colotools"
	"github.com/carbocation/pfx"
	"github.com/klauspost/pgzip"
	"github.com/sirupsen/logrus"
)

// ReadTable loads a whole summary statistics file. The header is validated
// against cols before any row is read; rows with missing numeric values are
// skipped and counted. client may be nil when path is local.
func ReadTable(ctx context.Context, log *logrus.Entry, path string, cols Columns, client *storage.Client, required ...string) (*Table, error) {
	rc, err := colotools.OpenInput(ctx, path, client)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	br := bufio.NewReaderSize(rc, colotools.BufferSize)

	headerLine, err := br.ReadString('\n')
	if err != nil && (err != io.EOF || headerLine == "") {
		return nil, pfx.Err(fmt.Errorf("%s: reading header: %w", path, err))
	}
	headerLine = strings.TrimRight(headerLine, "\r\n")

	delim := colotools.DetermineDelimiter(strings.NewReader(headerLine))
	header := splitLine(headerLine, delim)

	layout, err := cols.Resolve(header, path, required...)
	if err != nil {
		return nil, err
	}

	table := &Table{
		Path:   path,
		Header: header,
		Layout: layout,
		Rows:   make([]Variant, 0),
	}

	next := rowReader(br, delim)

	var skipped int
	for i := 1; ; i++ {
		if i%1000000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			log.WithField("path", path).Debugln("Observed entry", i)
		}

		row, err := next()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, pfx.Err(fmt.Errorf("%s line %d: %w", path, i+1, err))
		}

		v, err := layout.ParseRow(row)
		if errors.Is(err, ErrMissingValue) {
			skipped++
			continue
		} else if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, i+1, err)
		}

		table.Rows = append(table.Rows, v)
	}

	if skipped > 0 {
		log.WithField("path", path).Warnf("Skipped %d rows with missing values", skipped)
	}

	return table, nil
}

func splitLine(line string, delim rune) []string {
	if delim == ' ' {
		return strings.Fields(line)
	}

	return strings.Split(line, string(delim))
}

// rowReader yields rows until io.EOF. Whitespace-delimited files may use runs
// of spaces, which encoding/csv cannot express, so those are split by hand.
func rowReader(br *bufio.Reader, delim rune) func() ([]string, error) {
	if delim == ' ' {
		scanner := bufio.NewScanner(br)
		scanner.Buffer(make([]byte, 0, colotools.BufferSize), 1024*1024)
		return func() ([]string, error) {
			for scanner.Scan() {
				if fields := strings.Fields(scanner.Text()); len(fields) > 0 {
					return fields, nil
				}
			}
			if err := scanner.Err(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}
	}

	cr := csv.NewReader(br)
	cr.Comma = delim
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	return cr.Read
}

// WriteTable writes the header and the raw fields of every row, tab-delimited.
// Paths ending in .gz are gzip-compressed.
func WriteTable(path string, table *Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return pfx.Err(err)
	}

	f, err := os.Create(path)
	if err != nil {
		return pfx.Err(err)
	}

	var w io.Writer = f
	var zw *pgzip.Writer
	if strings.HasSuffix(path, ".gz") {
		zw = pgzip.NewWriter(f)
		w = zw
	}

	bw := bufio.NewWriterSize(w, colotools.BufferSize)

	writeErr := writeRows(bw, table)
	if writeErr == nil {
		writeErr = bw.Flush()
	}
	if zw != nil {
		if err := zw.Close(); writeErr == nil {
			writeErr = err
		}
	}
	if err := f.Close(); writeErr == nil {
		writeErr = err
	}

	if writeErr != nil {
		return pfx.Err(fmt.Errorf("%s: %w", path, writeErr))
	}

	return nil
}

func writeRows(w *bufio.Writer, table *Table) error {
	if _, err := w.WriteString(strings.Join(table.Header, "\t") + "\n"); err != nil {
		return err
	}

	for _, v := range table.Rows {
		if _, err := w.WriteString(strings.Join(v.Fields, "\t") + "\n"); err != nil {
			return err
		}
	}

	return nil
}
