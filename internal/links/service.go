package links

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"tixhold-backend/internal/holds"
	"tixhold-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrLinkNotFound         = errors.New("Purchase link not found")
	ErrLinkUnavailable      = errors.New("Purchase link is not currently available")
	ErrAlreadyRevoked       = errors.New("Purchase link is already revoked")
	ErrInvalidQuantityLimit = errors.New("Quantity limit does not match quantity mode")
	ErrLimitBelowPurchased  = errors.New("Quantity limit cannot drop below purchased quantity")
)

// AccessDecision is the outcome of the identity check on a link view.
// An unauthenticated viewer of a bound link is sent to authenticate, which
// is not an authorization failure; a different authenticated user gets an
// explicit Unauthorized, kept distinct from NotFound.
type AccessDecision int

const (
	AccessShow AccessDecision = iota
	AccessRedirectToLogin
	AccessUnauthorized
)

// Service owns purchase links: code generation, quantity accounting rules,
// revocation, and the identity check. A link can never outlive or bypass
// its hold; availability always re-derives the hold's status.
type Service struct {
	DB    *gorm.DB
	Holds *holds.Service
}

type CreateLinkInput struct {
	Name          *string
	BoundUserID   *uuid.UUID
	QuantityMode  models.LinkQuantityMode
	QuantityLimit *int
	ExpiresAt     *time.Time
	Notes         *string
	Metadata      datatypes.JSON
}

// Create issues a new link under an active hold. The code is a 128-bit
// random token, unguessable by construction.
func (s *Service) Create(ctx context.Context, holdID uuid.UUID, in CreateLinkInput) (*models.PurchaseLink, error) {
	hold, allocations, err := s.Holds.Get(ctx, holdID)
	if err != nil {
		return nil, err
	}
	if hold.StatusAt(time.Now(), allocations) != models.HoldStatusActive {
		return nil, holds.ErrHoldNotActive
	}

	switch in.QuantityMode {
	case models.LinkQuantityUnlimited:
		if in.QuantityLimit != nil {
			return nil, ErrInvalidQuantityLimit
		}
	case models.LinkQuantityFixed, models.LinkQuantityMaximum:
		if in.QuantityLimit == nil || *in.QuantityLimit < 1 {
			return nil, ErrInvalidQuantityLimit
		}
	default:
		return nil, ErrInvalidQuantityLimit
	}

	link := &models.PurchaseLink{
		HoldID:        holdID,
		Code:          randomHex(16),
		Name:          in.Name,
		BoundUserID:   in.BoundUserID,
		QuantityMode:  in.QuantityMode,
		QuantityLimit: in.QuantityLimit,
		ExpiresAt:     in.ExpiresAt,
		Notes:         in.Notes,
		Metadata:      in.Metadata,
	}
	if err := s.DB.WithContext(ctx).Create(link).Error; err != nil {
		return nil, err
	}
	return link, nil
}

// Revoke terminally disables a link. Revocation always wins over every
// time- or quantity-derived status.
func (s *Service) Revoke(ctx context.Context, linkID, actorID uuid.UUID) (*models.PurchaseLink, error) {
	var link models.PurchaseLink
	if err := s.DB.WithContext(ctx).Where("link_id = ?", linkID).First(&link).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	if link.RevokedAt != nil {
		return nil, ErrAlreadyRevoked
	}
	now := time.Now()
	link.RevokedAt = &now
	link.RevokedBy = &actorID
	if err := s.DB.WithContext(ctx).Save(&link).Error; err != nil {
		return nil, err
	}
	return &link, nil
}

// Resolve looks a link up by its public code, with its hold and the hold's
// allocations. NotFound is kept distinct from unavailable so callers can
// render different explanations.
func (s *Service) Resolve(ctx context.Context, code string) (*models.PurchaseLink, *models.Hold, []models.Allocation, error) {
	var link models.PurchaseLink
	if err := s.DB.WithContext(ctx).Where("code = ?", code).First(&link).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, nil, ErrLinkNotFound
		}
		return nil, nil, nil, err
	}
	hold, allocations, err := s.Holds.Get(ctx, link.HoldID)
	if err != nil {
		return nil, nil, nil, err
	}
	return &link, hold, allocations, nil
}

// Availability reports whether the link is currently redeemable: both the
// link and its hold must derive ACTIVE at the given instant.
func (s *Service) Availability(link *models.PurchaseLink, hold *models.Hold, allocations []models.Allocation, now time.Time) error {
	if hold.StatusAt(now, allocations) != models.HoldStatusActive {
		return ErrLinkUnavailable
	}
	if link.StatusAt(now) != models.LinkStatusActive {
		return ErrLinkUnavailable
	}
	return nil
}

// CheckAccess applies the identity rule: anonymous links are viewable by
// anyone; a bound link only by its bound user.
func (s *Service) CheckAccess(link *models.PurchaseLink, viewerUserID *uuid.UUID) AccessDecision {
	if link.BoundUserID == nil {
		return AccessShow
	}
	if viewerUserID == nil {
		return AccessRedirectToLogin
	}
	if *viewerUserID != *link.BoundUserID {
		return AccessUnauthorized
	}
	return AccessShow
}

// ListByHold returns a hold's links, oldest first.
func (s *Service) ListByHold(ctx context.Context, holdID uuid.UUID) ([]models.PurchaseLink, error) {
	var list []models.PurchaseLink
	err := s.DB.WithContext(ctx).Where("hold_id = ?", holdID).Order("created_at asc").Find(&list).Error
	return list, err
}

type UpdateLinkInput struct {
	Name          *string
	Notes         *string
	ExpiresAt     *time.Time
	QuantityLimit *int
}

// Update edits mutable link fields. Revoked links are frozen; a new limit
// can never drop below what was already purchased.
func (s *Service) Update(ctx context.Context, linkID uuid.UUID, in UpdateLinkInput) (*models.PurchaseLink, error) {
	var link models.PurchaseLink
	if err := s.DB.WithContext(ctx).Where("link_id = ?", linkID).First(&link).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	if link.RevokedAt != nil {
		return nil, ErrAlreadyRevoked
	}
	if in.QuantityLimit != nil {
		if link.QuantityMode == models.LinkQuantityUnlimited {
			return nil, ErrInvalidQuantityLimit
		}
		if *in.QuantityLimit < link.QuantityPurchased {
			return nil, ErrLimitBelowPurchased
		}
		link.QuantityLimit = in.QuantityLimit
	}
	if in.Name != nil {
		link.Name = in.Name
	}
	if in.Notes != nil {
		link.Notes = in.Notes
	}
	if in.ExpiresAt != nil {
		link.ExpiresAt = in.ExpiresAt
	}
	if err := s.DB.WithContext(ctx).Save(&link).Error; err != nil {
		return nil, err
	}
	return &link, nil
}

func randomHex(n int) string {
	b := make([]byte, n)
	rand.Read(b)
	return hex.EncodeToString(b)
}
