package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Upload struct {
	Id          uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserId      string    `gorm:"index"`
	FileName    string
	ExportedAt  time.Time
	MemberCount int
	CreatedAt   time.Time
	Members     []UploadMember `gorm:"foreignKey:UploadId;constraint:OnDelete:CASCADE"`
}

type UploadMember struct {
	Id       uuid.UUID `gorm:"type:uuid;primaryKey"`
	UploadId uuid.UUID `gorm:"type:uuid;index"`
	Name     string
	Metrics  datatypes.JSONMap
}
