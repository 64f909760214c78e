package zip

import (
	"archive/zip"
	"fmt"
	"io"
	"path"
	"strings"
)

// Entry is one file of an archive. Open is called once, in order.
type Entry struct {
	Filename string
	Open     func() (io.ReadCloser, error)
}

// WriteArchive streams entries into a zip written to w. Duplicate names get a
// numeric suffix so no entry shadows another.
func WriteArchive(w io.Writer, entries []Entry) error {
	zw := zip.NewWriter(w)
	seen := map[string]int{}
	for _, entry := range entries {
		name := uniqueName(entry.Filename, seen)
		if err := addEntry(zw, name, entry.Open); err != nil {
			_ = zw.Close()
			return err
		}
	}
	return zw.Close()
}

func addEntry(zw *zip.Writer, name string, open func() (io.ReadCloser, error)) error {
	rc, err := open()
	if err != nil {
		return fmt.Errorf("zip: open %s: %w", name, err)
	}
	defer rc.Close()
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("zip: create %s: %w", name, err)
	}
	if _, err := io.Copy(w, rc); err != nil {
		return fmt.Errorf("zip: write %s: %w", name, err)
	}
	return nil
}

func uniqueName(name string, seen map[string]int) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "" || name == "." || name == "/" {
		name = "file"
	}
	n := seen[name]
	seen[name] = n + 1
	if n == 0 {
		return name
	}
	ext := path.Ext(name)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), n, ext)
}
