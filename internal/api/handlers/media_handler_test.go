package handlers

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/crosspost/internal/service"
	"github.com/maheshrc27/crosspost/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMediaService struct {
	received []byte
	err      error
}

func (f *fakeMediaService) Upload(ctx context.Context, file io.Reader, size int64) (*transfer.MediaUpload, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	f.received = data
	if f.err != nil {
		return nil, f.err
	}
	return &transfer.MediaUpload{Key: "k.png", URL: "https://cdn.example/k.png", Size: size}, nil
}

func multipartRequest(t *testing.T, field string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, "image.png")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/media", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestMediaHandler_Upload(t *testing.T) {
	svc := &fakeMediaService{}
	app := fiber.New()
	app.Post("/api/media", NewMediaHandler(svc).UploadImage)

	resp, err := app.Test(multipartRequest(t, "file", []byte("image-bytes")))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, []byte("image-bytes"), svc.received)
}

func TestMediaHandler_Errors(t *testing.T) {
	tests := []struct {
		name       string
		field      string
		svcErr     error
		wantStatus int
	}{
		{"missing file field", "other", nil, fiber.StatusBadRequest},
		{"unsupported type", "file", service.ErrUnsupportedMedia, fiber.StatusUnsupportedMediaType},
		{"too large", "file", service.ErrFileTooLarge, fiber.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Post("/api/media", NewMediaHandler(&fakeMediaService{err: tt.svcErr}).UploadImage)

			resp, err := app.Test(multipartRequest(t, tt.field, []byte("x")))
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}
