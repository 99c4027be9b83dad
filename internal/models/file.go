package models

import "time"

// FileRecord is the metadata row backing an attachment ID. The binary blob
// itself lives in an external file store.
type FileRecord struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	MimeType  string    `db:"mime_type" json:"mimeType"`
	SizeBytes int64     `db:"size_bytes" json:"sizeBytes"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
