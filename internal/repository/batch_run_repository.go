package repository

import (
	"context"
	"errors"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/customeros/mailscan/interfaces"
	"github.com/customeros/mailscan/internal/models"
	"github.com/customeros/mailscan/internal/tracing"
)

type batchRunRepository struct {
	db *gorm.DB
}

func NewBatchRunRepository(db *gorm.DB) interfaces.BatchRunRepository {
	return &batchRunRepository{db: db}
}

func (r *batchRunRepository) Create(ctx context.Context, run *models.BatchRun) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "batchRunRepository.Create")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *batchRunRepository) Update(ctx context.Context, run *models.BatchRun) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "batchRunRepository.Update")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagEntity(span, run.ID)

	if err := r.db.WithContext(ctx).Save(run).Error; err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *batchRunRepository) GetLatest(ctx context.Context) (*models.BatchRun, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "batchRunRepository.GetLatest")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	var run models.BatchRun
	if err := r.db.WithContext(ctx).Order("started_at DESC").First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &run, nil
}
