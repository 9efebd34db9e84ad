package storage

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
)

// Compress gzips path into path+".gz" and removes the original once the
// archive is fully written.
func Compress(path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer src.Close()

	archive := path + ".gz"
	dst, err := os.Create(archive)
	if err != nil {
		return "", err
	}

	gz := gzip.NewWriter(dst)
	if _, err := io.Copy(gz, src); err != nil {
		dst.Close()
		os.Remove(archive)
		return "", fmt.Errorf("failed to compress %s: %w", path, err)
	}
	if err := gz.Close(); err != nil {
		dst.Close()
		os.Remove(archive)
		return "", err
	}
	if err := dst.Sync(); err != nil {
		dst.Close()
		return "", err
	}
	if err := dst.Close(); err != nil {
		return "", err
	}

	src.Close()
	if err := os.Remove(path); err != nil {
		return "", err
	}
	return archive, nil
}
