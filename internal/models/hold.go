package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// HoldStatus is computed at read time from stored facts; only the release
// stamp is an explicit terminal write. EXPIRED and EXHAUSTED are derived.
type HoldStatus string

const (
	HoldStatusActive    HoldStatus = "ACTIVE"
	HoldStatusExpired   HoldStatus = "EXPIRED"
	HoldStatusReleased  HoldStatus = "RELEASED"
	HoldStatusExhausted HoldStatus = "EXHAUSTED"
)

// Hold reserves a block of an event occurrence's inventory for one organizer.
// Never hard-deleted; release/expiry leave the row in place for audit.
type Hold struct {
	HoldID            uuid.UUID      `gorm:"column:hold_id;type:uuid;primaryKey" json:"hold_id"`
	EventOccurrenceID uuid.UUID      `gorm:"column:event_occurrence_id;type:uuid;not null;index" json:"event_occurrence_id"`
	OrganizerID       uuid.UUID      `gorm:"column:organizer_id;type:uuid;not null;index" json:"organizer_id"`
	CreatedBy         uuid.UUID      `gorm:"column:created_by;type:uuid;not null" json:"created_by"`
	Name              string         `gorm:"column:name;not null" json:"name"`
	Description       *string        `gorm:"column:description" json:"description"`
	InternalNotes     *string        `gorm:"column:internal_notes" json:"-"`
	ExpiresAt         *time.Time     `gorm:"column:expires_at" json:"expires_at"`
	ReleasedAt        *time.Time     `gorm:"column:released_at" json:"released_at"`
	ReleasedBy        *uuid.UUID     `gorm:"column:released_by;type:uuid" json:"released_by"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Hold) TableName() string {
	return "Holds"
}

func (h *Hold) BeforeCreate(tx *gorm.DB) error {
	if h.HoldID == uuid.Nil {
		h.HoldID = uuid.New()
	}
	return nil
}

// StatusAt derives the hold's status at the given instant. RELEASED and
// EXPIRED are absorbing; EXHAUSTED holds only while every allocation has
// zero remaining, so raising a capacity un-exhausts the hold.
func (h *Hold) StatusAt(now time.Time, allocations []Allocation) HoldStatus {
	if h.ReleasedAt != nil {
		return HoldStatusReleased
	}
	if h.ExpiresAt != nil && now.After(*h.ExpiresAt) {
		return HoldStatusExpired
	}
	if len(allocations) > 0 {
		exhausted := true
		for i := range allocations {
			if allocations[i].Remaining() > 0 {
				exhausted = false
				break
			}
		}
		if exhausted {
			return HoldStatusExhausted
		}
	}
	return HoldStatusActive
}
