package model

import "time"

// Known upload purposes. FileMetadata.Purpose is opaque to the pipeline;
// these are just the tags the seller forms use.
const (
	PurposeProfileLogo   = "profile_logo"
	PurposeProfileBanner = "profile_banner"
	PurposeReviewImage   = "review_image"
)

// FileMetadata is the caller-supplied classification attached to every
// upload request. It's passed through verbatim; nothing validates it.
type FileMetadata struct {
	Purpose  string `json:"purpose" mapstructure:"purpose" yaml:"purpose"`
	ParentID string `json:"parent_id,omitempty" mapstructure:"parent_id" yaml:"parent_id"`
}

// FileMeta is the display metadata of an uploaded file.
type FileMeta struct {
	FileName string `json:"fileName"`
	FileSize int64  `json:"fileSize"`
}

// UploadedFile is the descriptor returned by the upload service.
// Each field has two tags:
//   - `db:"column_name"` — used by sqlx to scan database rows
//   - `json:"field_name"` — used for JSON serialization (API responses)
//
// Meta is flattened into file_name/file_size columns by the repository.
type UploadedFile struct {
	ID        string    `db:"id" json:"id"`
	Src       string    `db:"src" json:"src"`
	Meta      FileMeta  `db:"-" json:"meta"`
	MIMEType  string    `db:"mime_type" json:"mime_type,omitempty"`
	Purpose   string    `db:"purpose" json:"purpose,omitempty"`
	ParentID  string    `db:"parent_id" json:"parent_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at,omitempty"`
}

// PurposeCount is one row of the per-purpose statistics.
type PurposeCount struct {
	Purpose string `db:"purpose" json:"purpose"`
	Count   int64  `db:"count" json:"count"`
}
