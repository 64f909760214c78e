package domain

import "strings"

// ArtifactFile is one downloadable file of a resolved task.
type ArtifactFile struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ResolvedArtifact is the file list returned once all sub-jobs complete.
type ResolvedArtifact struct {
	Files []ArtifactFile `json:"list"`
}

// Select returns the first file whose name ends with ext (case-insensitive).
func (a ResolvedArtifact) Select(ext string) (ArtifactFile, bool) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ArtifactFile{}, false
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	for _, f := range a.Files {
		if strings.HasSuffix(strings.ToLower(f.Name), ext) {
			return f, true
		}
	}
	return ArtifactFile{}, false
}
