package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/linesmerrill/lapor-sampah-api/intake"
)

// MaxImageBytes caps a single uploaded photo
const MaxImageBytes = 10 << 20

var errNoImage = errors.New("no image attached")

// readImage reads the "image" part of a multipart form. It returns errNoImage when the
// form carries no file.
func readImage(r *http.Request) (*intake.Image, error) {
	if err := r.ParseMultipartForm(MaxImageBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return nil, fmt.Errorf("failed to parse form: %w", err)
	}
	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, errNoImage
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxImageBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxImageBytes {
		return nil, fmt.Errorf("image larger than %d bytes", MaxImageBytes)
	}
	if len(data) == 0 {
		return nil, errNoImage
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return &intake.Image{Name: header.Filename, ContentType: contentType, Data: data}, nil
}
