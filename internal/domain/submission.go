package domain

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

const (
	MaxImages     = 5
	MaxImageBytes = 10 * 1024 * 1024
)

// Image is one input picture for image-to-3D generation.
type Image struct {
	Name        string
	ContentType string
	Data        []byte
}

// Options are the generation parameters forwarded to the service.
type Options struct {
	ConditionMode string `json:"condition_mode"`
	Quality       string `json:"quality"`
	FileFormat    string `json:"geometry_file_format"`
	UseHyper      bool   `json:"use_hyper"`
	Tier          string `json:"tier"`
	TAPose        bool   `json:"TAPose"`
	Material      string `json:"material"`
	MeshMode      string `json:"mesh_mode"`
	MeshSimplify  bool   `json:"mesh_simplify"`
	MeshSmooth    bool   `json:"mesh_smooth"`
}

// DefaultOptions mirrors the defaults of the generation form.
func DefaultOptions() Options {
	return Options{
		ConditionMode: "concat",
		Quality:       "medium",
		FileFormat:    "glb",
		Tier:          "Regular",
		Material:      "PBR",
		MeshMode:      "Quad",
		MeshSimplify:  true,
		MeshSmooth:    true,
	}
}

var allowedOptions = map[string][]string{
	"condition_mode":       {"concat", "fuse"},
	"quality":              {"high", "medium", "low", "extra-low"},
	"geometry_file_format": {"glb", "usdz", "fbx", "obj", "stl"},
	"tier":                 {"Regular", "Sketch"},
	"material":             {"PBR", "Shaded"},
	"mesh_mode":            {"Quad", "Raw"},
}

// Normalize fills empty option values with defaults.
func (o *Options) Normalize() {
	def := DefaultOptions()
	if strings.TrimSpace(o.ConditionMode) == "" {
		o.ConditionMode = def.ConditionMode
	}
	if strings.TrimSpace(o.Quality) == "" {
		o.Quality = def.Quality
	}
	if strings.TrimSpace(o.FileFormat) == "" {
		o.FileFormat = def.FileFormat
	}
	if strings.TrimSpace(o.Tier) == "" {
		o.Tier = def.Tier
	}
	if strings.TrimSpace(o.Material) == "" {
		o.Material = def.Material
	}
	if strings.TrimSpace(o.MeshMode) == "" {
		o.MeshMode = def.MeshMode
	}
}

// Validate checks every enumerated option against the values the service accepts.
func (o Options) Validate() error {
	for field, value := range o.enumFields() {
		if !contains(allowedOptions[field], value) {
			return Validation(ErrInvalidOption, fmt.Sprintf("%s=%q", field, value))
		}
	}
	return nil
}

func (o Options) enumFields() map[string]string {
	return map[string]string{
		"condition_mode":       o.ConditionMode,
		"quality":              o.Quality,
		"geometry_file_format": o.FileFormat,
		"tier":                 o.Tier,
		"material":             o.Material,
		"mesh_mode":            o.MeshMode,
	}
}

// FormFields returns the option values in the service's multipart field order.
func (o Options) FormFields() [][2]string {
	return [][2]string{
		{"condition_mode", o.ConditionMode},
		{"geometry_file_format", o.FileFormat},
		{"material", o.Material},
		{"quality", o.Quality},
		{"use_hyper", strconv.FormatBool(o.UseHyper)},
		{"tier", o.Tier},
		{"TAPose", strconv.FormatBool(o.TAPose)},
		{"mesh_mode", o.MeshMode},
		{"mesh_simplify", strconv.FormatBool(o.MeshSimplify)},
		{"mesh_smooth", strconv.FormatBool(o.MeshSmooth)},
	}
}

// Extension is the file suffix of the requested geometry format.
func (o Options) Extension() string {
	format := strings.ToLower(strings.TrimSpace(o.FileFormat))
	if format == "" {
		format = "glb"
	}
	return "." + format
}

// Submission is immutable once sent.
type Submission struct {
	Prompt  string
	Images  []Image
	Options Options
}

// Validate enforces the submission invariants before any network call.
func (s Submission) Validate() error {
	if strings.TrimSpace(s.Prompt) == "" && len(s.Images) == 0 {
		return Validation(ErrPromptOrImagesRequired, "")
	}
	if len(s.Images) > MaxImages {
		return Validation(ErrTooManyImages, fmt.Sprintf("%d images, maximum is %d", len(s.Images), MaxImages))
	}
	for _, img := range s.Images {
		if len(img.Data) > MaxImageBytes {
			return Validation(ErrImageTooLarge, fmt.Sprintf("image %s is too large. Maximum size is 10MB.", img.Name))
		}
		if !IsImageType(img) {
			return Validation(ErrInvalidImage, fmt.Sprintf("file %s is not a valid image.", img.Name))
		}
	}
	return s.Options.Validate()
}

var sniffableImageTypes = map[string]struct{}{
	"image/png":  {},
	"image/jpeg": {},
	"image/gif":  {},
	"image/webp": {},
	"image/bmp":  {},
}

// DetectImageType sniffs data and returns its MIME type when it is one of the
// accepted image formats, else "".
func DetectImageType(data []byte) string {
	ct := http.DetectContentType(data)
	if _, ok := sniffableImageTypes[ct]; ok {
		return ct
	}
	return ""
}

// IsImageType reports whether img is an accepted image. A declared type must
// be image/* and the bytes must sniff as an accepted format either way.
func IsImageType(img Image) bool {
	declared := strings.ToLower(strings.TrimSpace(img.ContentType))
	if declared != "" && declared != "application/octet-stream" && !strings.HasPrefix(declared, "image/") {
		return false
	}
	return DetectImageType(img.Data) != ""
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
