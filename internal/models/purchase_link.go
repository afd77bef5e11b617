package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type LinkStatus string

const (
	LinkStatusActive    LinkStatus = "ACTIVE"
	LinkStatusExpired   LinkStatus = "EXPIRED"
	LinkStatusRevoked   LinkStatus = "REVOKED"
	LinkStatusExhausted LinkStatus = "EXHAUSTED"
)

// LinkQuantityMode controls how a link's quantity limit is interpreted.
// UNLIMITED links carry no limit at all; FIXED and MAXIMUM both cap total
// purchases at the stored limit.
type LinkQuantityMode string

const (
	LinkQuantityFixed     LinkQuantityMode = "FIXED"
	LinkQuantityMaximum   LinkQuantityMode = "MAXIMUM"
	LinkQuantityUnlimited LinkQuantityMode = "UNLIMITED"
)

// PurchaseLink is a shareable access token scoped to one hold. The code is
// the public URL token; the id is used for internal references. A bound
// user makes the link identity-restricted; nil means anyone may view it.
type PurchaseLink struct {
	LinkID            uuid.UUID        `gorm:"column:link_id;type:uuid;primaryKey" json:"link_id"`
	HoldID            uuid.UUID        `gorm:"column:hold_id;type:uuid;not null;index" json:"hold_id"`
	Code              string           `gorm:"column:code;uniqueIndex;not null" json:"code"`
	Name              *string          `gorm:"column:name" json:"name"`
	BoundUserID       *uuid.UUID       `gorm:"column:bound_user_id;type:uuid" json:"bound_user_id"`
	QuantityMode      LinkQuantityMode `gorm:"column:quantity_mode;type:varchar(20);not null" json:"quantity_mode"`
	QuantityLimit     *int             `gorm:"column:quantity_limit" json:"quantity_limit"`
	QuantityPurchased int              `gorm:"column:quantity_purchased;not null;default:0" json:"quantity_purchased"`
	ExpiresAt         *time.Time       `gorm:"column:expires_at" json:"expires_at"`
	RevokedAt         *time.Time       `gorm:"column:revoked_at" json:"revoked_at"`
	RevokedBy         *uuid.UUID       `gorm:"column:revoked_by;type:uuid" json:"revoked_by"`
	Notes             *string          `gorm:"column:notes" json:"notes"`
	Metadata          datatypes.JSON   `gorm:"column:metadata;type:jsonb" json:"metadata"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
	DeletedAt         gorm.DeletedAt   `gorm:"index" json:"-"`
}

func (PurchaseLink) TableName() string {
	return "PurchaseLinks"
}

func (l *PurchaseLink) BeforeCreate(tx *gorm.DB) error {
	if l.LinkID == uuid.Nil {
		l.LinkID = uuid.New()
	}
	return nil
}

// StatusAt derives the link's status at the given instant. Revocation is
// the only stored terminal flag and always wins; expiry and exhaustion are
// recomputed from expires_at and the purchase counter.
func (l *PurchaseLink) StatusAt(now time.Time) LinkStatus {
	if l.RevokedAt != nil {
		return LinkStatusRevoked
	}
	if l.ExpiresAt != nil && now.After(*l.ExpiresAt) {
		return LinkStatusExpired
	}
	if l.QuantityLimit != nil && l.QuantityPurchased >= *l.QuantityLimit {
		return LinkStatusExhausted
	}
	return LinkStatusActive
}

// Remaining returns the purchasable quantity left on the link, or nil for
// unlimited links.
func (l *PurchaseLink) Remaining() *int {
	if l.QuantityLimit == nil {
		return nil
	}
	r := *l.QuantityLimit - l.QuantityPurchased
	if r < 0 {
		r = 0
	}
	return &r
}
