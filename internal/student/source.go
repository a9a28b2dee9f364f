package student

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"classqa/internal/common/storage"

	"github.com/klauspost/compress/zstd"
)

// ErrSourceMissing means the roster file or object does not exist yet.
var ErrSourceMissing = errors.New("roster source missing")

// Source is where the roster JSON lives.
type Source interface {
	// Version identifies the current content; an unchanged version skips the reload.
	Version(ctx context.Context) (string, error)
	// Open returns the raw roster bytes. Caller must close the reader.
	Open(ctx context.Context) (io.ReadCloser, error)
	// Name is the file path or object key, used to detect compression.
	Name() string
}

// FileSource reads the roster from the local filesystem.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Name() string { return s.path }

func (s *FileSource) Version(ctx context.Context) (string, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrSourceMissing
		}
		return "", fmt.Errorf("stat roster file failed: %w", err)
	}
	return strconv.FormatInt(info.ModTime().UnixNano(), 10) + "-" + strconv.FormatInt(info.Size(), 10), nil
}

func (s *FileSource) Open(ctx context.Context) (io.ReadCloser, error) {
	file, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrSourceMissing
		}
		return nil, fmt.Errorf("open roster file failed: %w", err)
	}
	return file, nil
}

// ObjectSource reads the roster from an object store bucket.
type ObjectSource struct {
	store  storage.ObjectStorage
	bucket string
	key    string
}

func NewObjectSource(store storage.ObjectStorage, bucket, key string) *ObjectSource {
	return &ObjectSource{store: store, bucket: bucket, key: key}
}

func (s *ObjectSource) Name() string { return s.key }

func (s *ObjectSource) Version(ctx context.Context) (string, error) {
	stat, err := s.store.StatObject(ctx, s.bucket, s.key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return "", ErrSourceMissing
		}
		return "", err
	}
	return stat.ETag + "-" + strconv.FormatInt(stat.SizeBytes, 10), nil
}

func (s *ObjectSource) Open(ctx context.Context) (io.ReadCloser, error) {
	return s.store.GetObject(ctx, s.bucket, s.key)
}

// readRoster opens src and returns the decompressed roster bytes.
func readRoster(ctx context.Context, src Source) ([]byte, error) {
	reader, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	if !strings.HasSuffix(src.Name(), ".zst") {
		data, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("read roster failed: %w", err)
		}
		return data, nil
	}

	decoder, err := zstd.NewReader(reader)
	if err != nil {
		return nil, fmt.Errorf("create zstd reader failed: %w", err)
	}
	defer decoder.Close()
	data, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("decompress roster failed: %w", err)
	}
	return data, nil
}
