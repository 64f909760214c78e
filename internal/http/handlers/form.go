package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"rodinstudio/internal/domain"
)

const (
	// maxFieldBytes bounds every non-file form value.
	maxFieldBytes = 1 << 20
	// maxFormBytes admits one part past the image limit so an extra image is
	// reported as too many images rather than an oversized body.
	maxFormBytes = (domain.MaxImages+1)*(domain.MaxImageBytes+maxFieldBytes) + maxFieldBytes
)

var errInvalidForm = errors.New("invalid multipart form")

// optionFields are the generation option form fields in forwarding order.
var optionFields = []string{
	"condition_mode",
	"geometry_file_format",
	"material",
	"quality",
	"use_hyper",
	"tier",
	"TAPose",
	"mesh_mode",
	"mesh_simplify",
	"mesh_smooth",
}

// submissionForm is a parsed generation form. Fields holds the option fields
// exactly as the client sent them, for pass-through forwarding.
type submissionForm struct {
	Submission domain.Submission
	Fields     [][2]string
}

// parseSubmissionForm streams the multipart generation form. Image parts are
// counted as they arrive, so an image past the limit is rejected before its
// bytes are read. It does not run Submission.Validate; callers decide where
// validation happens.
func parseSubmissionForm(w http.ResponseWriter, r *http.Request) (submissionForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	mr, err := r.MultipartReader()
	if err != nil {
		return submissionForm{}, domain.Validation(errInvalidForm, err.Error())
	}

	form := submissionForm{Submission: domain.Submission{Options: domain.DefaultOptions()}}
	values := map[string]string{}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return submissionForm{}, formError(err)
		}
		err = form.readPart(part, values)
		_ = part.Close()
		if err != nil {
			return submissionForm{}, err
		}
	}

	form.Submission.Prompt = strings.TrimSpace(values["prompt"])
	for _, name := range optionFields {
		value, ok := values[name]
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		form.Fields = append(form.Fields, [2]string{name, value})
		if err := applyOption(&form.Submission.Options, name, value); err != nil {
			return submissionForm{}, err
		}
	}
	return form, nil
}

func (f *submissionForm) readPart(part *multipart.Part, values map[string]string) error {
	name := part.FormName()
	if part.FileName() == "" {
		if _, seen := values[name]; seen {
			return nil
		}
		data, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
		if err != nil {
			return formError(err)
		}
		if len(data) > maxFieldBytes {
			return domain.Validation(errInvalidForm, fmt.Sprintf("field %s is too large", name))
		}
		values[name] = string(data)
		return nil
	}
	if name != "images" && name != "images[]" {
		return nil
	}
	if len(f.Submission.Images) == domain.MaxImages {
		return domain.Validation(domain.ErrTooManyImages, fmt.Sprintf("more than %d images", domain.MaxImages))
	}
	img, err := readImage(part)
	if err != nil {
		return err
	}
	f.Submission.Images = append(f.Submission.Images, img)
	return nil
}

func readImage(part *multipart.Part) (domain.Image, error) {
	img := domain.Image{Name: part.FileName(), ContentType: part.Header.Get("Content-Type")}
	data, err := io.ReadAll(io.LimitReader(part, domain.MaxImageBytes+1))
	if err != nil {
		return img, formError(err)
	}
	if len(data) > domain.MaxImageBytes {
		return img, domain.Validation(domain.ErrImageTooLarge, fmt.Sprintf("image %s is too large. Maximum size is 10MB.", img.Name))
	}
	img.Data = data
	return img, nil
}

func formError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return domain.Validation(domain.ErrImageTooLarge, "request body is too large")
	}
	return domain.Validation(errInvalidForm, err.Error())
}

func applyOption(o *domain.Options, name, value string) error {
	switch name {
	case "condition_mode":
		o.ConditionMode = value
	case "geometry_file_format":
		o.FileFormat = value
	case "material":
		o.Material = value
	case "quality":
		o.Quality = value
	case "tier":
		o.Tier = value
	case "mesh_mode":
		o.MeshMode = value
	case "use_hyper", "TAPose", "mesh_simplify", "mesh_smooth":
		if value == "" {
			return nil
		}
		b, err := strconv.ParseBool(value)
		if err != nil {
			return domain.Validation(domain.ErrInvalidOption, fmt.Sprintf("%s=%q", name, value))
		}
		switch name {
		case "use_hyper":
			o.UseHyper = b
		case "TAPose":
			o.TAPose = b
		case "mesh_simplify":
			o.MeshSimplify = b
		default:
			o.MeshSmooth = b
		}
	}
	return nil
}
