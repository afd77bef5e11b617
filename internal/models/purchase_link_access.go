package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PurchaseLinkAccess is an append-only audit row written on every link
// resolution, including views of unavailable links. The only field that
// changes after creation is the purchase-attribution flag, flipped by the
// redemption coordinator inside its transaction.
type PurchaseLinkAccess struct {
	AccessID           uuid.UUID      `gorm:"column:access_id;type:uuid;primaryKey" json:"access_id"`
	LinkID             uuid.UUID      `gorm:"column:link_id;type:uuid;not null;index" json:"link_id"`
	UserID             *uuid.UUID     `gorm:"column:user_id;type:uuid" json:"user_id"`
	SessionID          *string        `gorm:"column:session_id;index" json:"session_id"`
	IPAddress          string         `gorm:"column:ip_address" json:"ip_address"`
	UserAgent          string         `gorm:"column:user_agent" json:"user_agent"`
	Referrer           string         `gorm:"column:referrer" json:"referrer"`
	Metadata           datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata"`
	ResultedInPurchase bool           `gorm:"column:resulted_in_purchase;not null;default:false" json:"resulted_in_purchase"`
	CreatedAt          time.Time      `json:"createdAt"`
}

func (PurchaseLinkAccess) TableName() string {
	return "PurchaseLinkAccesses"
}

func (a *PurchaseLinkAccess) BeforeCreate(tx *gorm.DB) error {
	if a.AccessID == uuid.Nil {
		a.AccessID = uuid.New()
	}
	return nil
}
