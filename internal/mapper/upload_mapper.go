package mapper

import (
	"fmt"

	"sanbot-be/internal/entity"
	"sanbot-be/internal/model"

	"gorm.io/datatypes"
)

type UploadMapper struct{}

func NewUploadMapper() *UploadMapper {
	return &UploadMapper{}
}

func (m *UploadMapper) ToModel(e *entity.Upload) *model.Upload {
	members := make([]model.UploadMember, 0, len(e.Members))
	for _, mem := range e.Members {
		metrics := make(datatypes.JSONMap, len(mem.Metrics))
		for k, v := range mem.Metrics {
			metrics[k] = v
		}
		members = append(members, model.UploadMember{
			Id:       mem.Id,
			UploadId: mem.UploadId,
			Name:     mem.Name,
			Metrics:  metrics,
		})
	}
	return &model.Upload{
		Id:          e.Id,
		UserId:      e.UserId,
		FileName:    e.FileName,
		ExportedAt:  e.ExportedAt,
		MemberCount: e.MemberCount,
		CreatedAt:   e.CreatedAt,
		Members:     members,
	}
}

func (m *UploadMapper) ToEntity(mod *model.Upload) *entity.Upload {
	members := make([]entity.UploadMember, 0, len(mod.Members))
	for _, mem := range mod.Members {
		metrics := make(map[string]string, len(mem.Metrics))
		for k, v := range mem.Metrics {
			metrics[k] = fmt.Sprint(v)
		}
		members = append(members, entity.UploadMember{
			Id:       mem.Id,
			UploadId: mem.UploadId,
			Name:     mem.Name,
			Metrics:  metrics,
		})
	}
	return &entity.Upload{
		Id:          mod.Id,
		UserId:      mod.UserId,
		FileName:    mod.FileName,
		ExportedAt:  mod.ExportedAt,
		MemberCount: mod.MemberCount,
		CreatedAt:   mod.CreatedAt,
		Members:     members,
	}
}

func (m *UploadMapper) ToEntities(mods []*model.Upload) []*entity.Upload {
	out := make([]*entity.Upload, 0, len(mods))
	for _, mod := range mods {
		out = append(out, m.ToEntity(mod))
	}
	return out
}
