package zip

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func entry(name, body string) Entry {
	return Entry{Filename: name, Open: func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(body)), nil
	}}
}

func TestWriteArchive(t *testing.T) {
	var buf bytes.Buffer
	err := WriteArchive(&buf, []Entry{
		entry("base.glb", "glb"),
		entry("../textures/base.glb", "second"),
		entry("", "anon"),
	})
	if err != nil {
		t.Fatalf("WriteArchive: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("zip.NewReader: %v", err)
	}
	want := map[string]string{"base.glb": "glb", "base-1.glb": "second", "file": "anon"}
	if len(zr.File) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(zr.File))
	}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		data, _ := io.ReadAll(rc)
		rc.Close()
		if want[f.Name] != string(data) {
			t.Fatalf("entry %s = %q, want %q", f.Name, data, want[f.Name])
		}
	}
}

func TestWriteArchiveOpenError(t *testing.T) {
	boom := errors.New("boom")
	err := WriteArchive(io.Discard, []Entry{{Filename: "x.glb", Open: func() (io.ReadCloser, error) { return nil, boom }}})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
}
