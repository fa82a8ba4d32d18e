// Package storage keeps uploaded résumés and recording artifacts.
package storage

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/url"
	"path/filepath"
	"strings"
)

var (
	ErrNotFound    = errors.New("blob not found")
	ErrInvalidName = errors.New("invalid blob name")
)

type BlobStore interface {
	// Upload stores r under name and returns the public URL.
	Upload(ctx context.Context, name, contentType string, r io.Reader) (string, error)
	Open(ctx context.Context, name string) (*Blob, error)
}

type Blob struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.ReadCloser
}

// ValidateName accepts flat file names only.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return ErrInvalidName
	}
	return nil
}

func URLFor(baseURL, name string) string {
	return strings.TrimRight(baseURL, "/") + "/blobs/" + url.PathEscape(name)
}

func contentTypeFor(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".webm":
		return "video/webm"
	case ".pdf":
		return "application/pdf"
	}
	return "application/octet-stream"
}
