package assets

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
)

// Precompress writes a gzip sibling of path for servers that serve
// precompressed files, returning the new file's path
func Precompress(path string) (string, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer in.Close()

	dst := path + ".gz"
	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}

	zw, err := gzip.NewWriterLevel(out, gzip.BestCompression)
	if err != nil {
		_ = out.Close()
		return "", err
	}

	if _, err := io.Copy(zw, in); err != nil {
		_ = zw.Close()
		_ = out.Close()
		return "", fmt.Errorf("failed to compress %s: %w", path, err)
	}
	if err := zw.Close(); err != nil {
		_ = out.Close()
		return "", err
	}
	return dst, out.Close()
}
