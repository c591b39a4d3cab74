package repository

import (
	"context"
	"errors"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	mailscan_errors "github.com/customeros/mailscan/errors"
	"github.com/customeros/mailscan/interfaces"
	"github.com/customeros/mailscan/internal/models"
	"github.com/customeros/mailscan/internal/tracing"
)

const (
	defaultListLimit = 10
	maxListLimit     = 100

	uniqueViolation = "23505"
)

type emailRepository struct {
	db *gorm.DB
}

func NewEmailRepository(db *gorm.DB) interfaces.EmailRepository {
	return &emailRepository{
		db: db,
	}
}

func (r *emailRepository) Create(ctx context.Context, email *models.Email) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.Create")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	span.SetTag("message-id", email.MessageID)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Email{}).Where("message_id = ?", email.MessageID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return mailscan_errors.ErrDuplicate
		}
		return tx.Create(email).Error
	})
	if err != nil {
		if isDuplicateKey(err) {
			span.SetTag("duplicate", true)
			return mailscan_errors.ErrDuplicate
		}
		tracing.TraceErr(span, err)
		return err
	}

	return nil
}

// GetByID retrieves an email with its attachments
func (r *emailRepository) GetByID(ctx context.Context, id string) (*models.Email, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.GetByID")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagEntity(span, id)

	var email models.Email
	err := r.db.WithContext(ctx).
		Preload("Attachments", orderByPosition).
		Where("id = ?", id).
		First(&email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &email, nil
}

// GetByMessageID retrieves an email by its dedup key
func (r *emailRepository) GetByMessageID(ctx context.Context, messageID string) (*models.Email, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.GetByMessageID")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	var email models.Email
	err := r.db.WithContext(ctx).
		Preload("Attachments", orderByPosition).
		Where("message_id = ?", messageID).
		First(&email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &email, nil
}

func (r *emailRepository) ExistsByMessageID(ctx context.Context, messageID string) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.ExistsByMessageID")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Email{}).
		Where("message_id = ?", messageID).
		Count(&count).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return false, err
	}
	span.SetTag("exists", count > 0)
	return count > 0, nil
}

// ListRecent returns the newest emails first, with attachments
func (r *emailRepository) ListRecent(ctx context.Context, limit int) ([]*models.Email, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.ListRecent")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	limit = clampLimit(limit)
	span.SetTag("limit", limit)

	var emails []*models.Email
	err := r.db.WithContext(ctx).
		Preload("Attachments", orderByPosition).
		Order("created_at DESC").
		Limit(limit).
		Find(&emails).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return emails, nil
}

func orderByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

// isDuplicateKey reports whether err comes from the Message-ID check or from
// the unique index rejecting a concurrent insert.
func isDuplicateKey(err error) bool {
	if errors.Is(err, mailscan_errors.ErrDuplicate) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr interface{ SQLState() string }
	return errors.As(err, &pgErr) && pgErr.SQLState() == uniqueViolation
}
