package access

import (
	"context"
	"errors"

	"tixhold-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrAccessNotFound = errors.New("Access record not found")

// ViewerContext is what the storefront knows about the requester at view
// time. All fields except the IP may be absent.
type ViewerContext struct {
	UserID    *uuid.UUID
	SessionID *string
	IPAddress string
	UserAgent string
	Referrer  string
	Metadata  datatypes.JSON
}

// Service records link views. Every successful resolve gets a row, even
// when the link turns out to be unavailable; funnel analysis needs the
// dead-end views too.
type Service struct {
	DB *gorm.DB
}

// Record writes one immutable access row.
func (s *Service) Record(ctx context.Context, linkID uuid.UUID, v ViewerContext) (*models.PurchaseLinkAccess, error) {
	row := &models.PurchaseLinkAccess{
		LinkID:    linkID,
		UserID:    v.UserID,
		SessionID: v.SessionID,
		IPAddress: v.IPAddress,
		UserAgent: v.UserAgent,
		Referrer:  v.Referrer,
		Metadata:  v.Metadata,
	}
	if err := s.DB.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

// MarkPurchased flips the attribution flag on the access that led to a
// completed purchase. Called by the redemption coordinator inside its
// transaction so the flag rolls back with the counters.
func (s *Service) MarkPurchased(ctx context.Context, tx *gorm.DB, accessID uuid.UUID) error {
	db := tx
	if db == nil {
		db = s.DB
	}
	res := db.WithContext(ctx).Model(&models.PurchaseLinkAccess{}).
		Where("access_id = ?", accessID).
		Update("resulted_in_purchase", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAccessNotFound
	}
	return nil
}

// LatestForSession finds the most recent access of a link within a session,
// used to attribute a purchase to the view that produced it.
func (s *Service) LatestForSession(ctx context.Context, linkID uuid.UUID, sessionID string) (*models.PurchaseLinkAccess, error) {
	var row models.PurchaseLinkAccess
	err := s.DB.WithContext(ctx).
		Where("link_id = ? AND session_id = ?", linkID, sessionID).
		Order("created_at desc").
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrAccessNotFound
		}
		return nil, err
	}
	return &row, nil
}

// CountByLink returns the number of recorded views of one link.
func (s *Service) CountByLink(ctx context.Context, linkID uuid.UUID) (int64, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&models.PurchaseLinkAccess{}).
		Where("link_id = ?", linkID).Count(&n).Error
	return n, err
}

// CountByHold returns the number of recorded views across all of a hold's
// links.
func (s *Service) CountByHold(ctx context.Context, holdID uuid.UUID) (int64, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&models.PurchaseLinkAccess{}).
		Joins(`JOIN "PurchaseLinks" ON "PurchaseLinks".link_id = "PurchaseLinkAccesses".link_id`).
		Where(`"PurchaseLinks".hold_id = ?`, holdID).Count(&n).Error
	return n, err
}
