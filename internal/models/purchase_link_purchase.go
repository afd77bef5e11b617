package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PurchaseLinkPurchase records one completed redemption line. Written
// exactly once by the redemption coordinator and never mutated; the
// original list price is kept alongside the charged price for discount
// reporting.
type PurchaseLinkPurchase struct {
	PurchaseID         uuid.UUID  `gorm:"column:purchase_id;type:uuid;primaryKey" json:"purchase_id"`
	LinkID             uuid.UUID  `gorm:"column:link_id;type:uuid;not null;index" json:"link_id"`
	AccessID           *uuid.UUID `gorm:"column:access_id;type:uuid" json:"access_id"`
	TicketTypeID       uuid.UUID  `gorm:"column:ticket_type_id;type:uuid;not null" json:"ticket_type_id"`
	Quantity           int        `gorm:"column:quantity;not null" json:"quantity"`
	UnitPriceCents     int64      `gorm:"column:unit_price_cents;not null" json:"unit_price_cents"`
	OriginalPriceCents int64      `gorm:"column:original_price_cents;not null" json:"original_price_cents"`
	Currency           string     `gorm:"column:currency;type:varchar(10);not null" json:"currency"`
	BookingID          uuid.UUID  `gorm:"column:booking_id;type:uuid;not null" json:"booking_id"`
	TransactionID      *string    `gorm:"column:transaction_id" json:"transaction_id"`
	UserID             *uuid.UUID `gorm:"column:user_id;type:uuid" json:"user_id"`
	CreatedAt          time.Time  `json:"createdAt"`
}

func (PurchaseLinkPurchase) TableName() string {
	return "PurchaseLinkPurchases"
}

func (p *PurchaseLinkPurchase) BeforeCreate(tx *gorm.DB) error {
	if p.PurchaseID == uuid.Nil {
		p.PurchaseID = uuid.New()
	}
	return nil
}
