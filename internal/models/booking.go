package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Booking is the output of the booking pipeline boundary. The default
// pipeline writes these rows inside the coordinator's transaction; a remote
// pipeline would return ids minted elsewhere.
type Booking struct {
	BookingID      uuid.UUID  `gorm:"column:booking_id;type:uuid;primaryKey" json:"booking_id"`
	TicketTypeID   uuid.UUID  `gorm:"column:ticket_type_id;type:uuid;not null" json:"ticket_type_id"`
	Quantity       int        `gorm:"column:quantity;not null" json:"quantity"`
	UnitPriceCents int64      `gorm:"column:unit_price_cents;not null" json:"unit_price_cents"`
	Currency       string     `gorm:"column:currency;type:varchar(10);not null" json:"currency"`
	UserID         *uuid.UUID `gorm:"column:user_id;type:uuid" json:"user_id"`
	TransactionID  *string    `gorm:"column:transaction_id" json:"transaction_id"`
	CreatedAt      time.Time  `json:"createdAt"`
}

func (Booking) TableName() string {
	return "Bookings"
}

func (b *Booking) BeforeCreate(tx *gorm.DB) error {
	if b.BookingID == uuid.Nil {
		b.BookingID = uuid.New()
	}
	return nil
}
