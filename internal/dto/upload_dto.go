package dto

import (
	"time"

	"github.com/google/uuid"
)

type UploadResponse struct {
	Id          uuid.UUID `json:"id"`
	FileName    string    `json:"file_name"`
	ExportedAt  time.Time `json:"exported_at"`
	MemberCount int       `json:"member_count"`
	CreatedAt   time.Time `json:"created_at"`
}

type CompareUploadsRequest struct {
	UserID      string      `json:"user_id"`
	Instruction string      `json:"instruction"`
	UploadIDs   []uuid.UUID `json:"upload_ids"`
}
