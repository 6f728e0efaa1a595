package implementation

import (
	"context"
	"errors"

	"sanbot-be/internal/entity"
	"sanbot-be/internal/mapper"
	"sanbot-be/internal/model"
	"sanbot-be/internal/repository/contract"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UploadRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.UploadMapper
}

func NewUploadRepository(db *gorm.DB) contract.UploadRepository {
	return &UploadRepositoryImpl{
		db:     db,
		mapper: mapper.NewUploadMapper(),
	}
}

func (r *UploadRepositoryImpl) Create(ctx context.Context, upload *entity.Upload) error {
	m := r.mapper.ToModel(upload)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*upload = *r.mapper.ToEntity(m)
	return nil
}

func (r *UploadRepositoryImpl) FindOne(ctx context.Context, userId string, id uuid.UUID) (*entity.Upload, error) {
	var m model.Upload
	err := r.db.WithContext(ctx).
		Preload("Members").
		Where("user_id = ?", userId).
		First(&m, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *UploadRepositoryImpl) ListByUser(ctx context.Context, userId string) ([]*entity.Upload, error) {
	var models []*model.Upload
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userId).
		Order("exported_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *UploadRepositoryImpl) Delete(ctx context.Context, userId string, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("user_id = ?", userId).
		Delete(&model.Upload{}, "id = ?", id).Error
}
