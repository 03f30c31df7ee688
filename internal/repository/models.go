package repository

import (
	"time"

	"github.com/kursadbilgin/sms-gateway/internal/domain"
)

// DispatchModel is the persistence model for the sms_dispatches table.
type DispatchModel struct {
	ID            string        `gorm:"type:uuid;primaryKey"`
	CorrelationID string        `gorm:"type:varchar(64);not null"`
	AccountSID    string        `gorm:"type:varchar(64);not null"`
	From          string        `gorm:"column:from_number;type:varchar(32);not null"`
	To            string        `gorm:"column:to_number;type:varchar(32);not null"`
	Body          string        `gorm:"type:text;not null"`
	Status        domain.Status `gorm:"type:varchar(10);not null"`
	Message       string        `gorm:"type:text;not null"`
	StatusCode    *int          `gorm:"type:int"`
	ProviderSID   *string       `gorm:"type:varchar(64)"`
	Error         *string       `gorm:"type:text"`
	CreatedAt     time.Time
}

func (DispatchModel) TableName() string {
	return "sms_dispatches"
}

func dispatchModelFromDomain(d *domain.Dispatch) *DispatchModel {
	if d == nil {
		return nil
	}

	return &DispatchModel{
		ID:            d.ID,
		CorrelationID: d.CorrelationID,
		AccountSID:    d.AccountSID,
		From:          d.From,
		To:            d.To,
		Body:          d.Body,
		Status:        d.Status,
		Message:       d.Message,
		StatusCode:    d.StatusCode,
		ProviderSID:   d.ProviderSID,
		Error:         d.Error,
		CreatedAt:     d.CreatedAt,
	}
}

func dispatchModelToDomain(m *DispatchModel) *domain.Dispatch {
	if m == nil {
		return nil
	}

	return &domain.Dispatch{
		ID:            m.ID,
		CorrelationID: m.CorrelationID,
		AccountSID:    m.AccountSID,
		From:          m.From,
		To:            m.To,
		Body:          m.Body,
		Status:        m.Status,
		Message:       m.Message,
		StatusCode:    m.StatusCode,
		ProviderSID:   m.ProviderSID,
		Error:         m.Error,
		CreatedAt:     m.CreatedAt,
	}
}
