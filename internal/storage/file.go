package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/quiby-ai/review-insights/internal/domain"
)

// FileRepository keeps the record set as one indented JSON array.
type FileRepository struct {
	mu       sync.Mutex
	path     string
	withTime bool
	logger   *slog.Logger
}

func NewFileRepository(path string, withTime bool, logger *slog.Logger) (*FileRepository, error) {
	if path == "" {
		return nil, fmt.Errorf("file path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
	}
	return &FileRepository{path: path, withTime: withTime, logger: logger}, nil
}

func (r *FileRepository) Upsert(ctx context.Context, reviews []domain.Review) (UpsertResult, error) {
	if len(reviews) == 0 {
		return UpsertResult{}, nil
	}
	if err := ctx.Err(); err != nil {
		return UpsertResult{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	merged, result := mergeBatch(r.load(), reviews, r.withTime)
	if err := r.save(merged); err != nil {
		return UpsertResult{}, err
	}

	return result, nil
}

func (r *FileRepository) List(ctx context.Context) ([]domain.Review, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.load(), nil
}

func (r *FileRepository) Count(ctx context.Context) (int, error) {
	reviews, err := r.List(ctx)
	return len(reviews), err
}

func (r *FileRepository) Stats(ctx context.Context) (Stats, error) {
	reviews, err := r.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	return computeStats(reviews), nil
}

func (r *FileRepository) Close() error {
	return nil
}

// load reads the record set. A missing or unreadable file is an empty set.
func (r *FileRepository) load() []domain.Review {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			r.logger.Warn("Failed to read review file, treating as empty", "path", r.path, "error", err)
		}
		return []domain.Review{}
	}

	var reviews []domain.Review
	if err := json.Unmarshal(data, &reviews); err != nil {
		r.logger.Warn("Malformed review file, treating as empty", "path", r.path, "error", err)
		return []domain.Review{}
	}
	if reviews == nil {
		reviews = []domain.Review{}
	}
	return reviews
}

func (r *FileRepository) save(reviews []domain.Review) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(reviews); err != nil {
		return fmt.Errorf("failed to encode reviews: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write reviews: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace review file: %w", err)
	}

	return nil
}
