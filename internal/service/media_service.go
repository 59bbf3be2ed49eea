package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	"github.com/maheshrc27/crosspost/internal/transfer"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

var allowedImageTypes = map[string]struct{}{
	"jpg": {}, "png": {}, "gif": {}, "webp": {},
}

type MediaService interface {
	Upload(ctx context.Context, file io.Reader, size int64) (*transfer.MediaUpload, error)
}

type mediaService struct {
	store   ImageStore
	maxSize int64
	newKey  func() (string, error)
}

func NewMediaService(store ImageStore, maxSize int64) MediaService {
	return &mediaService{
		store:   store,
		maxSize: maxSize,
		newKey:  func() (string, error) { return gonanoid.New() },
	}
}

func (s *mediaService) Upload(ctx context.Context, file io.Reader, size int64) (*transfer.MediaUpload, error) {
	if s.maxSize > 0 && size > s.maxSize {
		return nil, ErrFileTooLarge
	}

	reader := file
	if s.maxSize > 0 {
		reader = io.LimitReader(file, s.maxSize+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("error reading file content: %w", err)
	}
	if s.maxSize > 0 && int64(len(data)) > s.maxSize {
		return nil, ErrFileTooLarge
	}

	kind, err := filetype.Match(data)
	if err != nil || kind == types.Unknown {
		return nil, ErrUnsupportedMedia
	}
	if _, ok := allowedImageTypes[kind.Extension]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMedia, kind.Extension)
	}

	id, err := s.newKey()
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	key := fmt.Sprintf("%s.%s", id, kind.Extension)

	url, err := s.store.Put(ctx, key, data, kind.MIME.Value)
	if err != nil {
		return nil, fmt.Errorf("error uploading file: %w", err)
	}

	slog.Info("image uploaded", "key", key, "type", kind.MIME.Value, "size", len(data))
	return &transfer.MediaUpload{
		Key:         key,
		URL:         url,
		ContentType: kind.MIME.Value,
		Size:        int64(len(data)),
	}, nil
}
