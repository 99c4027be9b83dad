package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/procurehub/marketplace-api/internal/models"
)

// FileRepository resolves attachment IDs to file metadata.
type FileRepository struct {
	db *sqlx.DB
}

// NewFileRepository constructs the repository.
func NewFileRepository(db *sqlx.DB) *FileRepository {
	return &FileRepository{db: db}
}

// GetByIDs fetches metadata for the given attachment IDs. Callers compare the
// result length against the request to detect dangling references.
func (r *FileRepository) GetByIDs(ctx context.Context, ids []string) ([]models.FileRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(
		`SELECT id, name, mime_type, size_bytes, created_at FROM file_records WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("build file records query: %w", err)
	}
	query = r.db.Rebind(query)
	var records []models.FileRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("select file records: %w", err)
	}
	return records, nil
}
