package service

import (
	"context"
	"fmt"
	"time"

	"sanbot-be/internal/constant"
	"sanbot-be/internal/dto"
	"sanbot-be/internal/entity"
	"sanbot-be/internal/pkg/logger"
	"sanbot-be/internal/repository/contract"
	"sanbot-be/pkg/report"
	"sanbot-be/pkg/session"
	"sanbot-be/pkg/tabular"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// IUploadService persists roster exports so that comparisons can run against
// historical snapshots instead of requiring both files in one conversation.
type IUploadService interface {
	SaveUpload(ctx context.Context, userID string, file session.FileRef) (*dto.UploadResponse, error)
	ListUploads(ctx context.Context, userID string) ([]*dto.UploadResponse, error)
	DeleteUpload(ctx context.Context, userID string, id uuid.UUID) error

	// Compare dispatches an asynchronous analysis over two stored uploads.
	// The earlier export always becomes side 1.
	Compare(ctx context.Context, req dto.CompareUploadsRequest) (*Task, error)
}

type uploadService struct {
	uploads  contract.UploadRepository
	parser   *tabular.Registry
	analysis IAnalysisService
	log      logger.ILogger
}

func NewUploadService(
	uploads contract.UploadRepository,
	parser *tabular.Registry,
	analysis IAnalysisService,
	log logger.ILogger,
) IUploadService {
	return &uploadService{
		uploads:  uploads,
		parser:   parser,
		analysis: analysis,
		log:      log,
	}
}

func (s *uploadService) SaveUpload(ctx context.Context, userID string, file session.FileRef) (*dto.UploadResponse, error) {
	table, err := s.parser.ParseFile(file.Path, file.Name)
	if err != nil {
		return nil, err
	}

	exportedAt, ok := ParseExportTime(file.Name)
	if !ok {
		// No embedded export timestamp: fall back to the upload time.
		exportedAt = time.Now()
	}

	upload := &entity.Upload{
		Id:          uuid.New(),
		UserId:      userID,
		FileName:    file.Name,
		ExportedAt:  exportedAt,
		MemberCount: len(table.Rows),
		CreatedAt:   time.Now(),
	}
	for _, row := range table.Rows {
		name, _ := row.Get("成员")
		metrics := make(map[string]string, len(row.Columns))
		for k, v := range row.Columns {
			metrics[k] = v
		}
		upload.Members = append(upload.Members, entity.UploadMember{
			Id:       uuid.New(),
			UploadId: upload.Id,
			Name:     name,
			Metrics:  metrics,
		})
	}

	if err := s.uploads.Create(ctx, upload); err != nil {
		return nil, fmt.Errorf("persist upload: %w", err)
	}
	s.log.Info("upload", "roster upload stored", map[string]interface{}{
		"user_id": userID, "upload_id": upload.Id.String(), "members": upload.MemberCount,
	})
	return toUploadResponse(upload), nil
}

func (s *uploadService) ListUploads(ctx context.Context, userID string) ([]*dto.UploadResponse, error) {
	uploads, err := s.uploads.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]*dto.UploadResponse, 0, len(uploads))
	for _, u := range uploads {
		out = append(out, toUploadResponse(u))
	}
	return out, nil
}

func (s *uploadService) DeleteUpload(ctx context.Context, userID string, id uuid.UUID) error {
	return s.uploads.Delete(ctx, userID, id)
}

func (s *uploadService) Compare(ctx context.Context, req dto.CompareUploadsRequest) (*Task, error) {
	if len(req.UploadIDs) != 2 {
		return nil, fiber.NewError(fiber.StatusBadRequest, "exactly 2 upload ids are required")
	}
	spec, ok := constant.LookupInstruction(req.Instruction)
	if !ok || spec.GenericDiff() {
		return nil, fiber.NewError(fiber.StatusBadRequest, "instruction does not support stored-upload comparison")
	}

	first, err := s.mustFind(ctx, req.UserID, req.UploadIDs[0])
	if err != nil {
		return nil, err
	}
	second, err := s.mustFind(ctx, req.UserID, req.UploadIDs[1])
	if err != nil {
		return nil, err
	}
	if second.ExportedAt.Before(first.ExportedAt) {
		first, second = second, first
	}

	meta := report.Meta{
		File1:     first.FileName,
		File2:     second.FileName,
		EarlierTS: FormatExportTime(first.ExportedAt),
		LaterTS:   FormatExportTime(second.ExportedAt),
	}
	tables := []*tabular.Table{toTable(first), toTable(second)}
	return s.analysis.DispatchPrepared(req.UserID, spec, tables, meta)
}

func (s *uploadService) mustFind(ctx context.Context, userID string, id uuid.UUID) (*entity.Upload, error) {
	upload, err := s.uploads.FindOne(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if upload == nil {
		return nil, fiber.NewError(fiber.StatusNotFound, fmt.Sprintf("upload %s not found", id))
	}
	return upload, nil
}

// toTable rebuilds a parseable table from stored members so the delta engine
// runs unchanged against historical snapshots.
func toTable(u *entity.Upload) *tabular.Table {
	headerSet := map[string]struct{}{}
	var headers []string
	rows := make([]tabular.Row, 0, len(u.Members))
	for _, m := range u.Members {
		columns := make(map[string]string, len(m.Metrics))
		for k, v := range m.Metrics {
			columns[k] = v
			if _, seen := headerSet[k]; !seen {
				headerSet[k] = struct{}{}
				headers = append(headers, k)
			}
		}
		rows = append(rows, tabular.Row{Columns: columns})
	}
	return &tabular.Table{Headers: headers, Rows: rows}
}

func toUploadResponse(u *entity.Upload) *dto.UploadResponse {
	return &dto.UploadResponse{
		Id:          u.Id,
		FileName:    u.FileName,
		ExportedAt:  u.ExportedAt,
		MemberCount: u.MemberCount,
		CreatedAt:   u.CreatedAt,
	}
}
