// Package storage defines the FileStore interface through which corpora are
// read and synthesized datasets are written. It abstracts the backend so the
// same pipeline runs against a local directory tree or an S3-compatible
// bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vibvoice/vibsynth/pkg/config"
)

// FileStore is a minimal interface for file-oriented storage.
//
// Paths are forward-slash separated and relative to the store root.
// Implementations must be safe for concurrent use.
type FileStore interface {
	// Read opens the named file for reading.
	// The caller must close the returned ReadCloser when done.
	// If the file does not exist, an error wrapping os.ErrNotExist is returned.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write opens the named file for writing, replacing any existing file.
	// Parent directories are created automatically. Data becomes visible
	// only once the returned WriteCloser is closed without error.
	Write(ctx context.Context, path string) (io.WriteCloser, error)

	// List returns the files directly inside dir whose names end in ext,
	// compared case-insensitively, sorted by path. An empty ext matches
	// every file.
	List(ctx context.Context, dir, ext string) ([]string, error)

	// Exists reports whether the named file exists.
	Exists(ctx context.Context, path string) (bool, error)
}

// ReadAll reads the whole named file.
func ReadAll(ctx context.Context, fs FileStore, path string) ([]byte, error) {
	r, err := fs.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// Discarder is implemented by writers that can drop a pending write so that
// nothing is published. Writers returned by Local and S3Store implement it.
type Discarder interface {
	Discard() error
}

// WriteFile publishes data at name. When the write fails the pending file is
// discarded, or closed if the writer cannot discard.
func WriteFile(ctx context.Context, fs FileStore, name string, data []byte) error {
	w, err := fs.Write(ctx, name)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		if d, ok := w.(Discarder); ok {
			d.Discard()
		} else {
			w.Close()
		}
		return fmt.Errorf("storage: write %s: %w", name, err)
	}
	return w.Close()
}

func matchExt(name, ext string) bool {
	return len(name) >= len(ext) && strings.EqualFold(name[len(name)-len(ext):], ext)
}

// Open builds the store selected by cfg.
func Open(cfg config.StorageConfig) (FileStore, error) {
	switch cfg.Backend {
	case "", "local":
		root := cfg.Root
		if root == "" {
			root = "."
		}
		return NewLocal(root)
	case "s3":
		opts := s3.Options{
			Region:       cfg.Region,
			UsePathStyle: cfg.Endpoint != "",
			Credentials:  aws.NewCredentialsCache(envCredentials{}),
		}
		if cfg.Endpoint != "" {
			opts.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		return NewS3(s3.New(opts), cfg.Bucket, cfg.Prefix), nil
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.Backend)
	}
}

// envCredentials reads static credentials from the standard AWS
// environment variables.
type envCredentials struct{}

func (envCredentials) Retrieve(context.Context) (aws.Credentials, error) {
	id, secret := os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY")
	if id == "" || secret == "" {
		return aws.Credentials{}, fmt.Errorf("storage: AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set")
	}
	return aws.Credentials{
		AccessKeyID:     id,
		SecretAccessKey: secret,
		SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		Source:          "environment",
	}, nil
}
