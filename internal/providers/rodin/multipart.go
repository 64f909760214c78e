package rodin

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strings"

	"rodinstudio/internal/domain"
)

// EncodeSubmission renders a submission as the multipart form /rodin expects:
// one `images` part per image, then `prompt`, then the option fields.
func EncodeSubmission(sub domain.Submission) (*bytes.Buffer, string, error) {
	return EncodeForm(sub.Images, sub.Prompt, sub.Options.FormFields())
}

// EncodeForm writes images, the trimmed prompt when non-empty, and fields in
// the given order. Pass-through callers use it to forward only the fields a
// client actually sent.
func EncodeForm(images []domain.Image, prompt string, fields [][2]string) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for i, img := range images {
		name := img.Name
		if strings.TrimSpace(name) == "" {
			name = fmt.Sprintf("image-%d", i+1)
		}
		contentType := img.ContentType
		if !strings.HasPrefix(contentType, "image/") {
			contentType = domain.DetectImageType(img.Data)
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="images"; filename="%s"`, escapeQuotes(name)))
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("rodin: create image part: %w", err)
		}
		if _, err := part.Write(img.Data); err != nil {
			return nil, "", fmt.Errorf("rodin: write image part: %w", err)
		}
	}
	if prompt = strings.TrimSpace(prompt); prompt != "" {
		if err := w.WriteField("prompt", prompt); err != nil {
			return nil, "", fmt.Errorf("rodin: write prompt: %w", err)
		}
	}
	for _, field := range fields {
		if err := w.WriteField(field[0], field[1]); err != nil {
			return nil, "", fmt.Errorf("rodin: write %s: %w", field[0], err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("rodin: close multipart: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
