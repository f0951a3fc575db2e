package handler

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ai-gen-platform/internal/service"
)

// formUpload opens the optional file in field.  A nil Upload means the
// client sent none; the returned func closes the file.
func formUpload(c echo.Context, field string, maxBytes int64) (*service.Upload, func(), error) {
	noop := func() {}
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, noop, nil
	}
	if err != nil {
		return nil, noop, fmt.Errorf("%w: unreadable upload", service.ErrValidation)
	}
	if maxBytes > 0 && fh.Size > maxBytes {
		return nil, noop, fmt.Errorf("%w: file exceeds %d MB", service.ErrValidation, maxBytes>>20)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, noop, err
	}
	name := filepath.Base(fh.Filename)
	if name == "." || name == string(filepath.Separator) {
		name = "upload"
	}
	return &service.Upload{Name: name, Body: f}, func() { _ = f.Close() }, nil
}
