package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PricingMode selects how an allocation prices its ticket type relative to
// the catalog list price. Mode-specific fields are mutually exclusive and
// validated at construction, not at use.
type PricingMode string

const (
	PricingOriginal           PricingMode = "ORIGINAL"
	PricingFixed              PricingMode = "FIXED"
	PricingPercentageDiscount PricingMode = "PERCENTAGE_DISCOUNT"
	PricingFree               PricingMode = "FREE"
)

// Allocation is the slice of a hold's reservation belonging to one ticket
// type. AllocatedQuantity is the capacity ceiling; PurchasedQuantity only
// ever grows, and only through the redemption coordinator's guarded update.
type Allocation struct {
	AllocationID      uuid.UUID      `gorm:"column:allocation_id;type:uuid;primaryKey" json:"allocation_id"`
	HoldID            uuid.UUID      `gorm:"column:hold_id;type:uuid;not null;index" json:"hold_id"`
	TicketTypeID      uuid.UUID      `gorm:"column:ticket_type_id;type:uuid;not null;index" json:"ticket_type_id"`
	AllocatedQuantity int            `gorm:"column:allocated_quantity;not null" json:"allocated_quantity"`
	PurchasedQuantity int            `gorm:"column:purchased_quantity;not null;default:0" json:"purchased_quantity"`
	PricingMode       PricingMode    `gorm:"column:pricing_mode;type:varchar(30);not null" json:"pricing_mode"`
	CustomPriceCents  *int64         `gorm:"column:custom_price_cents" json:"custom_price_cents"`
	DiscountPercent   *int           `gorm:"column:discount_percent" json:"discount_percent"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Allocation) TableName() string {
	return "Allocations"
}

func (a *Allocation) BeforeCreate(tx *gorm.DB) error {
	if a.AllocationID == uuid.Nil {
		a.AllocationID = uuid.New()
	}
	return nil
}

// Remaining is the unconsumed capacity of this allocation.
func (a *Allocation) Remaining() int {
	return a.AllocatedQuantity - a.PurchasedQuantity
}
