package repository

import (
	"context"
	"errors"

	"github.com/kursadbilgin/sms-gateway/internal/domain"
	"gorm.io/gorm"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

type ListParams struct {
	Status *domain.Status
	To     string
	Limit  int
}

type DispatchRepository interface {
	Create(ctx context.Context, d *domain.Dispatch) error
	GetByID(ctx context.Context, id string) (*domain.Dispatch, error)
	List(ctx context.Context, params ListParams) ([]domain.Dispatch, error)
}

var _ DispatchRepository = (*GormDispatchRepo)(nil)

type GormDispatchRepo struct {
	db *gorm.DB
}

func NewGormDispatchRepo(db *gorm.DB) *GormDispatchRepo {
	return &GormDispatchRepo{db: db}
}

func (r *GormDispatchRepo) Create(ctx context.Context, d *domain.Dispatch) error {
	model := dispatchModelFromDomain(d)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if d != nil {
		*d = *dispatchModelToDomain(model)
	}
	return nil
}

func (r *GormDispatchRepo) GetByID(ctx context.Context, id string) (*domain.Dispatch, error) {
	var model DispatchModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return dispatchModelToDomain(&model), nil
}

func (r *GormDispatchRepo) List(ctx context.Context, params ListParams) ([]domain.Dispatch, error) {
	query := r.db.WithContext(ctx).Model(&DispatchModel{})

	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.To != "" {
		query = query.Where("to_number = ?", params.To)
	}

	var models []DispatchModel
	err := query.
		Order("created_at DESC").
		Limit(normalizeLimit(params.Limit)).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	dispatches := make([]domain.Dispatch, 0, len(models))
	for i := range models {
		dispatches = append(dispatches, *dispatchModelToDomain(&models[i]))
	}

	return dispatches, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

var _ DispatchRepository = NopDispatchRepo{}

// NopDispatchRepo discards dispatches. It backs the service when no database is configured.
type NopDispatchRepo struct{}

func (NopDispatchRepo) Create(context.Context, *domain.Dispatch) error { return nil }

func (NopDispatchRepo) GetByID(context.Context, string) (*domain.Dispatch, error) {
	return nil, domain.ErrNotFound
}

func (NopDispatchRepo) List(context.Context, ListParams) ([]domain.Dispatch, error) {
	return []domain.Dispatch{}, nil
}
