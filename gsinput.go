package colotools

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
)

// BufferSize is the read buffer used for summary statistics inputs.
var BufferSize = 4096 * 16

// SplitGSPath splits gs://bucket/path/to/object into its bucket and object.
func SplitGSPath(path string) (bucket, object string, err error) {
	pathParts := strings.SplitN(strings.TrimPrefix(path, "gs://"), "/", 2)
	if len(pathParts) != 2 || pathParts[0] == "" || pathParts[1] == "" {
		return "", "", fmt.Errorf("Tried to split your google storage path into 2 parts, but got %d: %v", len(pathParts), pathParts)
	}

	return pathParts[0], pathParts[1], nil
}

// IsGoogleStoragePath reports whether path refers to a gs:// object.
func IsGoogleStoragePath(path string) bool {
	return strings.HasPrefix(path, "gs://")
}

// OpenInput opens a local path, or a gs:// path when client is non-nil, and
// transparently decompresses it. The caller must close the result.
func OpenInput(ctx context.Context, path string, client *storage.Client) (io.ReadCloser, error) {
	if IsGoogleStoragePath(path) {
		if client == nil {
			return nil, fmt.Errorf("%s: a google storage client is required to read gs:// paths", path)
		}

		bucketName, objectName, err := SplitGSPath(path)
		if err != nil {
			return nil, err
		}

		rc, err := client.Bucket(bucketName).Object(objectName).NewReader(ctx)
		if err != nil {
			return nil, pfx.Err(fmt.Errorf("%s: %w", path, err))
		}

		dec, err := MaybeDecompressReader(rc)
		if err != nil {
			rc.Close()
			return nil, pfx.Err(fmt.Errorf("%s: %w", path, err))
		}

		return &stackedCloser{ReadCloser: dec, under: rc}, nil
	}

	local, err := ExpandHome(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(local)
	if err != nil {
		return nil, err
	}

	rc, err := MaybeDecompressReadCloserFromFile(f)
	if err != nil {
		f.Close()
		return nil, pfx.Err(fmt.Errorf("%s: %w", path, err))
	}

	return rc, nil
}

// InputExists reports whether a local input exists and is non-empty. gs://
// paths are assumed to exist and are checked when opened.
func InputExists(path string) bool {
	if IsGoogleStoragePath(path) {
		return true
	}

	local, err := ExpandHome(path)
	if err != nil {
		return false
	}

	return NonEmptyFile(local)
}

// NonEmptyFile reports whether path is a regular file with at least one byte.
func NonEmptyFile(path string) bool {
	st, err := os.Stat(path)
	if err != nil {
		return false
	}

	return st.Mode().IsRegular() && st.Size() > 0
}
