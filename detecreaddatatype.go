package colotools

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"compress/zlib"
	"io"
	"os"

	"github.com/klauspost/pgzip"
	"github.com/krolaw/zipstream"
	"github.com/xi2/xz"
)

type DataType byte

const (
	DataTypeInvalid DataType = iota
	DataTypeNoCompression
	DataTypeGzip
	DataTypeZip
	DataTypeXZ
	DataTypeZ
	DataTypeBZip2
)

// Byte code signatures from https://stackoverflow.com/a/19127748/199475
var byteCodeSigs = map[DataType][]byte{
	DataTypeGzip:  {0x1f, 0x8b, 0x08},
	DataTypeZip:   {0x50, 0x4b, 0x03, 0x04},
	DataTypeXZ:    {0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00},
	DataTypeZ:     {0x1f, 0x9d},
	DataTypeBZip2: {0x42, 0x5a, 0x68},
}

// DetectDataType checks the leading bytes of a stream against a set of known
// compression signatures. Streams that match nothing are reported as
// uncompressed.
func DetectDataType(head []byte) DataType {
	for dt, sig := range byteCodeSigs {
		if len(head) >= len(sig) && bytes.Equal(head[:len(sig)], sig) {
			return dt
		}
	}

	return DataTypeNoCompression
}

// MaybeDecompressReader wraps r in the decompressor matching its leading
// bytes. The returned Closer closes only the decompressor, not r.
func MaybeDecompressReader(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReaderSize(r, BufferSize)

	// Peek errors are fine here: short files simply won't match a signature.
	head, _ := br.Peek(6)

	switch DetectDataType(head) {
	case DataTypeGzip:
		return pgzip.NewReader(br)
	case DataTypeZip:
		return io.NopCloser(zipstream.NewReader(br)), nil
	case DataTypeBZip2:
		return io.NopCloser(bzip2.NewReader(br)), nil
	case DataTypeXZ:
		reader, err := xz.NewReader(br, 0)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(reader), nil
	case DataTypeZ:
		return zlib.NewReader(br)
	}

	return io.NopCloser(br), nil
}

// MaybeDecompressReadCloserFromFile is MaybeDecompressReader for files; closing
// the result also closes f.
func MaybeDecompressReadCloserFromFile(f *os.File) (io.ReadCloser, error) {
	rc, err := MaybeDecompressReader(f)
	if err != nil {
		return nil, err
	}

	return &stackedCloser{ReadCloser: rc, under: f}, nil
}

// stackedCloser closes a decompressor and then the stream beneath it.
type stackedCloser struct {
	io.ReadCloser
	under io.Closer
}

func (s *stackedCloser) Close() error {
	err := s.ReadCloser.Close()
	if err2 := s.under.Close(); err == nil {
		err = err2
	}

	return err
}
