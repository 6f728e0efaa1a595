package contract

import (
	"context"

	"sanbot-be/internal/entity"

	"github.com/google/uuid"
)

type UploadRepository interface {
	Create(ctx context.Context, upload *entity.Upload) error
	// FindOne loads an upload with its members, scoped to the owning user.
	FindOne(ctx context.Context, userId string, id uuid.UUID) (*entity.Upload, error)
	// ListByUser returns uploads without members, newest export first.
	ListByUser(ctx context.Context, userId string) ([]*entity.Upload, error)
	Delete(ctx context.Context, userId string, id uuid.UUID) error
}
