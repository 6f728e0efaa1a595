package entity

import (
	"time"

	"github.com/google/uuid"
)

// Upload is one persisted roster export belonging to a user. ExportedAt is
// parsed from the export filename, not the upload time.
type Upload struct {
	Id          uuid.UUID
	UserId      string
	FileName    string
	ExportedAt  time.Time
	MemberCount int
	CreatedAt   time.Time
	Members     []UploadMember
}

// UploadMember is one roster row. Metrics keeps every numeric column of the
// export so new instructions work against old uploads.
type UploadMember struct {
	Id       uuid.UUID
	UploadId uuid.UUID
	Name     string
	Metrics  map[string]string
}
