package content

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/gabriel-vasile/mimetype"

	"github.com/3leaps/ossxml/pkg/provider"
)

// DetectContentType sniffs the media type of data, falling back to
// application/octet-stream.
func DetectContentType(data []byte) string {
	return mimetype.Detect(data).String()
}

// PutBytes uploads data to key. An empty contentType is sniffed from data.
func PutBytes(ctx context.Context, p provider.Provider, key string, data []byte, contentType string) (string, error) {
	w, ok := p.(provider.ObjectPutter)
	if !ok {
		return "", fmt.Errorf("put %s: %w", key, ErrUnsupported)
	}
	if contentType == "" {
		contentType = DetectContentType(data)
	}
	return w.PutObject(ctx, key, bytes.NewReader(data), int64(len(data)), contentType)
}

// PutFile uploads the local file at path to key. An empty contentType is
// sniffed from the file's leading bytes.
func PutFile(ctx context.Context, p provider.Provider, key, path, contentType string) (string, error) {
	w, ok := p.(provider.ObjectPutter)
	if !ok {
		return "", fmt.Errorf("put %s: %w", key, ErrUnsupported)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()
	st, err := f.Stat()
	if err != nil {
		return "", err
	}
	if st.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}

	if contentType == "" {
		mt, err := mimetype.DetectReader(f)
		if err != nil {
			return "", fmt.Errorf("detect content type: %w", err)
		}
		contentType = mt.String()
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return "", err
		}
	}
	return w.PutObject(ctx, key, f, st.Size(), contentType)
}

// Delete removes key.
func Delete(ctx context.Context, p provider.Provider, key string) error {
	d, ok := p.(provider.ObjectDeleter)
	if !ok {
		return fmt.Errorf("delete %s: %w", key, ErrUnsupported)
	}
	return d.DeleteObject(ctx, key)
}
