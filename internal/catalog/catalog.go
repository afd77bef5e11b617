package catalog

import (
	"context"
	"errors"

	"tixhold-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrTicketTypeNotFound = errors.New("Ticket type not found")
	ErrOccurrenceNotFound = errors.New("Event occurrence not found")
)

// TicketCatalog is the read-only boundary to the ticket/event catalog. The
// engine never writes through it; ticket definitions, prices and currencies
// are owned elsewhere.
type TicketCatalog interface {
	GetTicketType(ctx context.Context, id uuid.UUID) (*models.TicketType, error)
	GetEventOccurrence(ctx context.Context, id uuid.UUID) (*models.EventOccurrence, error)
}

// GormCatalog reads the catalog tables directly. Suitable when the catalog
// shares the engine's database; swap for an API-backed client otherwise.
type GormCatalog struct {
	DB *gorm.DB
}

func (c *GormCatalog) GetTicketType(ctx context.Context, id uuid.UUID) (*models.TicketType, error) {
	var tt models.TicketType
	if err := c.DB.WithContext(ctx).Where("ticket_type_id = ?", id).First(&tt).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrTicketTypeNotFound
		}
		return nil, err
	}
	return &tt, nil
}

func (c *GormCatalog) GetEventOccurrence(ctx context.Context, id uuid.UUID) (*models.EventOccurrence, error) {
	var occ models.EventOccurrence
	if err := c.DB.WithContext(ctx).Where("occurrence_id = ?", id).First(&occ).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrOccurrenceNotFound
		}
		return nil, err
	}
	return &occ, nil
}
