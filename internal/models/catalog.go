package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TicketType and EventOccurrence are owned by the catalog subsystem; the
// engine only reads them through the catalog boundary. They are migrated
// here so dev and test environments have the tables to read from.

type TicketType struct {
	TicketTypeID      uuid.UUID `gorm:"column:ticket_type_id;type:uuid;primaryKey" json:"ticket_type_id"`
	EventOccurrenceID uuid.UUID `gorm:"column:event_occurrence_id;type:uuid;not null;index" json:"event_occurrence_id"`
	Name              string    `gorm:"column:name;not null" json:"name"`
	PriceCents        int64     `gorm:"column:price_cents;not null" json:"price_cents"`
	Currency          string    `gorm:"column:currency;type:varchar(10);not null" json:"currency"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

func (TicketType) TableName() string {
	return "TicketTypes"
}

func (t *TicketType) BeforeCreate(tx *gorm.DB) error {
	if t.TicketTypeID == uuid.Nil {
		t.TicketTypeID = uuid.New()
	}
	return nil
}

type EventOccurrence struct {
	OccurrenceID uuid.UUID `gorm:"column:occurrence_id;type:uuid;primaryKey" json:"occurrence_id"`
	EventID      uuid.UUID `gorm:"column:event_id;type:uuid;not null;index" json:"event_id"`
	StartAt      time.Time `gorm:"column:start_at;not null" json:"start_at"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (EventOccurrence) TableName() string {
	return "EventOccurrences"
}

func (e *EventOccurrence) BeforeCreate(tx *gorm.DB) error {
	if e.OccurrenceID == uuid.Nil {
		e.OccurrenceID = uuid.New()
	}
	return nil
}
