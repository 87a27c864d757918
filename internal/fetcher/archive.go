package fetcher

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"

	"github.com/nlepage/go-tarfs"
)

// extractArchive unpacks a .tar or .tar.gz file into dest, which must not
// exist yet.
func extractArchive(archive, dest string) error {
	f, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var reader io.Reader = br
	// gzip magic number
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1F && magic[1] == 0x8B {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	fsys, err := tarfs.New(reader)
	if err != nil {
		return fmt.Errorf("unable to read archive %s: %w", archive, err)
	}
	if err := os.CopyFS(dest, fsys); err != nil {
		return fmt.Errorf("failed to extract %s: %w", archive, err)
	}
	return nil
}
