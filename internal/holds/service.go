package holds

import (
	"context"
	"errors"
	"time"

	"tixhold-backend/internal/catalog"
	"tixhold-backend/internal/ledger"
	"tixhold-backend/internal/models"
	"tixhold-backend/internal/pricing"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrHoldNotFound       = errors.New("Hold not found")
	ErrAlreadyTerminal    = errors.New("Hold is already released or expired")
	ErrHoldNotActive      = errors.New("Hold is not active")
	ErrNoAllocations      = errors.New("At least one allocation is required")
	ErrTicketTypeMismatch = errors.New("Ticket type does not belong to the event occurrence")
)

// Service owns the hold lifecycle: creation with allocations as one atomic
// unit, explicit release, and derived expiry/exhaustion. Holds are soft
// deleted only, so the audit trail survives.
type Service struct {
	DB      *gorm.DB
	Ledger  *ledger.Service
	Catalog catalog.TicketCatalog
}

type AllocationInput struct {
	TicketTypeID uuid.UUID
	Quantity     int
	Pricing      pricing.Spec
}

type CreateHoldInput struct {
	EventOccurrenceID uuid.UUID
	OrganizerID       uuid.UUID
	CreatedBy         uuid.UUID
	Name              string
	Description       *string
	InternalNotes     *string
	ExpiresAt         *time.Time
	Allocations       []AllocationInput
}

// Create validates every allocation against the catalog, then writes the
// hold and its allocations in one transaction. Partial creation is never
// observable.
func (s *Service) Create(ctx context.Context, in CreateHoldInput) (*models.Hold, []models.Allocation, error) {
	if len(in.Allocations) == 0 {
		return nil, nil, ErrNoAllocations
	}
	if _, err := s.Catalog.GetEventOccurrence(ctx, in.EventOccurrenceID); err != nil {
		return nil, nil, err
	}
	for _, a := range in.Allocations {
		if a.Quantity < 0 {
			return nil, nil, ledger.ErrInvalidQuantity
		}
		if err := a.Pricing.Validate(); err != nil {
			return nil, nil, err
		}
		tt, err := s.Catalog.GetTicketType(ctx, a.TicketTypeID)
		if err != nil {
			return nil, nil, err
		}
		if tt.EventOccurrenceID != in.EventOccurrenceID {
			return nil, nil, ErrTicketTypeMismatch
		}
	}

	hold := &models.Hold{
		EventOccurrenceID: in.EventOccurrenceID,
		OrganizerID:       in.OrganizerID,
		CreatedBy:         in.CreatedBy,
		Name:              in.Name,
		Description:       in.Description,
		InternalNotes:     in.InternalNotes,
		ExpiresAt:         in.ExpiresAt,
	}
	var allocations []models.Allocation

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(hold).Error; err != nil {
			return err
		}
		for _, a := range in.Allocations {
			alloc, err := s.Ledger.Reserve(ctx, tx, hold.HoldID, a.TicketTypeID, a.Quantity, a.Pricing)
			if err != nil {
				return err
			}
			allocations = append(allocations, *alloc)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return hold, allocations, nil
}

// Get loads a hold with its allocations.
func (s *Service) Get(ctx context.Context, holdID uuid.UUID) (*models.Hold, []models.Allocation, error) {
	var hold models.Hold
	if err := s.DB.WithContext(ctx).Where("hold_id = ?", holdID).First(&hold).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, ErrHoldNotFound
		}
		return nil, nil, err
	}
	var allocations []models.Allocation
	if err := s.DB.WithContext(ctx).Where("hold_id = ?", holdID).Order("created_at asc").Find(&allocations).Error; err != nil {
		return nil, nil, err
	}
	return &hold, allocations, nil
}

// ListByOrganizer returns an organizer's holds, newest first.
func (s *Service) ListByOrganizer(ctx context.Context, organizerID uuid.UUID) ([]models.Hold, error) {
	var holds []models.Hold
	err := s.DB.WithContext(ctx).Where("organizer_id = ?", organizerID).Order("created_at desc").Find(&holds).Error
	return holds, err
}

// Release terminates an active hold. RELEASED and EXPIRED are absorbing:
// releasing an already-terminal hold fails with ErrAlreadyTerminal. Links
// under a released hold stop being redeemable immediately because every
// availability check re-derives the hold's status.
func (s *Service) Release(ctx context.Context, holdID, actorID uuid.UUID) (*models.Hold, error) {
	var hold models.Hold
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("hold_id = ?", holdID).First(&hold).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrHoldNotFound
			}
			return err
		}
		status := hold.StatusAt(time.Now(), nil)
		if status == models.HoldStatusReleased || status == models.HoldStatusExpired {
			return ErrAlreadyTerminal
		}
		now := time.Now()
		hold.ReleasedAt = &now
		hold.ReleasedBy = &actorID
		return tx.Save(&hold).Error
	})
	if err != nil {
		return nil, err
	}
	return &hold, nil
}

type UpdateAllocationInput struct {
	AllocatedQuantity *int
	Pricing           *pricing.Spec
}

// UpdateAllocation adjusts capacity or pricing while the hold is active.
// Raising capacity on an exhausted hold brings it back to ACTIVE, since
// exhaustion is derived, not stored.
func (s *Service) UpdateAllocation(ctx context.Context, holdID, allocationID uuid.UUID, in UpdateAllocationInput) (*models.Allocation, error) {
	hold, allocations, err := s.Get(ctx, holdID)
	if err != nil {
		return nil, err
	}
	switch hold.StatusAt(time.Now(), allocations) {
	case models.HoldStatusActive, models.HoldStatusExhausted:
		// Exhausted holds may still be edited; raising capacity revives them.
	default:
		return nil, ErrHoldNotActive
	}

	var target *models.Allocation
	for i := range allocations {
		if allocations[i].AllocationID == allocationID {
			target = &allocations[i]
			break
		}
	}
	if target == nil {
		return nil, ledger.ErrAllocationNotFound
	}

	var updated *models.Allocation
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updated = target
		if in.AllocatedQuantity != nil {
			a, err := s.Ledger.SetAllocatedQuantity(ctx, tx, allocationID, *in.AllocatedQuantity)
			if err != nil {
				return err
			}
			updated = a
		}
		if in.Pricing != nil {
			a, err := s.Ledger.SetPricing(ctx, tx, allocationID, *in.Pricing)
			if err != nil {
				return err
			}
			updated = a
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Status derives the hold's current status.
func (s *Service) Status(hold *models.Hold, allocations []models.Allocation) models.HoldStatus {
	return hold.StatusAt(time.Now(), allocations)
}
