// Package storage persists uploaded proof-of-payment images on the local
// filesystem. Writes go to a temporary file first and are renamed into
// place, so a failed upload never leaves a partially attached proof.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/AFrenchWrench/ustat-orders/internal/config"
)

// ProofStore saves proof images and yields opaque references for them.
type ProofStore interface {
	Save(ctx context.Context, transactionID int64, filename string, r io.Reader) (string, error)
	Remove(ctx context.Context, ref string) error
}

// Module provides the proof store to the Fx graph.
var Module = fx.Provide(NewProofStore)

type fsStore struct {
	dir      string
	maxBytes int64
	logger   *zap.Logger
}

// NewProofStore initialises the filesystem-backed proof store.
func NewProofStore(cfg config.Config, logger *zap.Logger) (ProofStore, error) {
	dir := cfg.Storage.ProofDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create proof dir: %w", err)
	}
	return &fsStore{
		dir:      dir,
		maxBytes: cfg.Storage.MaxUploadBytes,
		logger:   logger,
	}, nil
}

// Save stores the image and returns its reference. The reference embeds a
// random component so uploads never collide or overwrite each other.
func (s *fsStore) Save(ctx context.Context, transactionID int64, filename string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".png", ".jpg", ".jpeg":
	default:
		return "", fmt.Errorf("unsupported proof image type: %q", ext)
	}

	ref := fmt.Sprintf("proofs/%d-%s%s", transactionID, uuid.NewString(), ext)

	tmp, err := os.CreateTemp(s.dir, "upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, io.LimitReader(r, s.maxBytes+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("write proof: %w", err)
	}
	if written > s.maxBytes {
		return "", fmt.Errorf("proof image exceeds %d bytes", s.maxBytes)
	}
	if written == 0 {
		return "", fmt.Errorf("proof image is empty")
	}

	final := filepath.Join(s.dir, filepath.Base(ref))
	if err := os.Rename(tmp.Name(), final); err != nil {
		return "", fmt.Errorf("store proof: %w", err)
	}

	if s.logger != nil {
		s.logger.Debug("proof stored", zap.Int64("transaction", transactionID), zap.String("ref", ref))
	}
	return ref, nil
}

// Remove deletes a previously stored proof; a missing file is not an error.
func (s *fsStore) Remove(ctx context.Context, ref string) error {
	if ref == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.dir, filepath.Base(ref)))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
