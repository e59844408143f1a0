package colotools

import (
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDetectDataType(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write([]byte("CHR\tBP\n1\t100\n"))
	zw.Close()

	if dt := DetectDataType(buf.Bytes()); dt != DataTypeGzip {
		t.Fatalf("Expected gzip, got %v", dt)
	}

	if dt := DetectDataType([]byte("CHR\tBP")); dt != DataTypeNoCompression {
		t.Fatalf("Expected no compression, got %v", dt)
	}

	if dt := DetectDataType([]byte{0x1f}); dt != DataTypeNoCompression {
		t.Fatalf("Short input should not match a signature, got %v", dt)
	}
}

func TestMaybeDecompressReader(t *testing.T) {
	want := "CHR\tBP\n1\t100\n"

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write([]byte(want))
	zw.Close()

	for name, input := range map[string][]byte{
		"gzip":  buf.Bytes(),
		"plain": []byte(want),
	} {
		rc, err := MaybeDecompressReader(bytes.NewReader(input))
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		got, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if string(got) != want {
			t.Fatalf("%s: got %q, want %q", name, got, want)
		}
	}
}

func TestDetermineDelimiterPrefersTab(t *testing.T) {
	if d := DetermineDelimiter(strings.NewReader("CHR\tBP\tP\n1\t2\t0.1\n")); d != '\t' {
		t.Fatalf("Expected tab, got %q", d)
	}
}

func TestBIMRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ref.bim")
	content := "1\tchr1_100\t0\t100\tA\tG\n\n1\tchr1_105\t0\t105\tAT\tA\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	b, err := OpenBIM(path)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	rows := make([]*BIMRow, 0)
	for {
		row, err := b.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			t.Fatal(err)
		}
		rows = append(rows, row)
	}

	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}
	if rows[0].Coordinate != 100 || !rows[0].IsSNP() {
		t.Errorf("Unexpected first row %+v", rows[0])
	}
	if rows[1].IsSNP() {
		t.Errorf("Row %+v should not be a SNP", rows[1])
	}
}

func TestSplitGSPath(t *testing.T) {
	bucket, object, err := SplitGSPath("gs://bucket/a/b.tsv.gz")
	if err != nil {
		t.Fatal(err)
	}
	if bucket != "bucket" || object != "a/b.tsv.gz" {
		t.Fatalf("Got %s %s", bucket, object)
	}

	if _, _, err := SplitGSPath("gs://bucket"); err == nil {
		t.Fatal("Expected an error for a path without an object")
	}
}
