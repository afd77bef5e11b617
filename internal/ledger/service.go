package ledger

import (
	"context"
	"errors"

	"tixhold-backend/internal/models"
	"tixhold-backend/internal/pricing"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrInvalidQuantity        = errors.New("Quantity must be a positive integer")
	ErrInsufficientAllocation = errors.New("Insufficient allocation remaining")
	ErrAllocationNotFound     = errors.New("Allocation not found")
	ErrCapacityBelowPurchased = errors.New("Allocated quantity cannot drop below purchased quantity")
)

// Service is the allocation ledger: it owns the allocated/purchased
// counters per (hold, ticket type) pair. All consumption goes through the
// guarded update in Consume so the purchased counter can never pass the
// allocated ceiling, no matter how many redemptions race.
type Service struct {
	DB *gorm.DB
}

func (s *Service) db(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.DB
}

// Reserve carves out quantity units of a ticket type under a hold. Caller
// supplies the open transaction when creating a hold with its allocations
// as one atomic unit.
func (s *Service) Reserve(ctx context.Context, tx *gorm.DB, holdID, ticketTypeID uuid.UUID, quantity int, spec pricing.Spec) (*models.Allocation, error) {
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	alloc := models.Allocation{
		HoldID:            holdID,
		TicketTypeID:      ticketTypeID,
		AllocatedQuantity: quantity,
		PricingMode:       spec.Mode,
		CustomPriceCents:  spec.CustomPriceCents,
		DiscountPercent:   spec.DiscountPercent,
	}
	if err := s.db(tx).WithContext(ctx).Create(&alloc).Error; err != nil {
		return nil, err
	}
	return &alloc, nil
}

// Consume atomically increments the purchased counter by quantity, but only
// if capacity remains. The check and the increment are one guarded UPDATE
// (compare-and-swap at the storage layer); losing the race reports
// ErrInsufficientAllocation and changes nothing.
func (s *Service) Consume(ctx context.Context, tx *gorm.DB, allocationID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	res := s.db(tx).WithContext(ctx).Model(&models.Allocation{}).
		Where("allocation_id = ? AND purchased_quantity + ? <= allocated_quantity", allocationID, quantity).
		Update("purchased_quantity", gorm.Expr("purchased_quantity + ?", quantity))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := s.db(tx).WithContext(ctx).Model(&models.Allocation{}).
			Where("allocation_id = ?", allocationID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrAllocationNotFound
		}
		return ErrInsufficientAllocation
	}
	return nil
}

// Remaining returns allocated - purchased for one allocation.
func (s *Service) Remaining(ctx context.Context, allocationID uuid.UUID) (int, error) {
	var alloc models.Allocation
	if err := s.DB.WithContext(ctx).Where("allocation_id = ?", allocationID).First(&alloc).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, ErrAllocationNotFound
		}
		return 0, err
	}
	return alloc.Remaining(), nil
}

// UtilizationRate reports sum(purchased)/sum(allocated)*100 across a hold's
// allocations, and 0 when nothing is allocated.
func (s *Service) UtilizationRate(ctx context.Context, holdID uuid.UUID) (float64, error) {
	var totals struct {
		Allocated int64
		Purchased int64
	}
	err := s.DB.WithContext(ctx).Model(&models.Allocation{}).
		Select("COALESCE(SUM(allocated_quantity), 0) AS allocated, COALESCE(SUM(purchased_quantity), 0) AS purchased").
		Where("hold_id = ?", holdID).
		Scan(&totals).Error
	if err != nil {
		return 0, err
	}
	if totals.Allocated == 0 {
		return 0, nil
	}
	return float64(totals.Purchased) / float64(totals.Allocated) * 100, nil
}

// SetAllocatedQuantity raises or lowers an allocation's capacity ceiling.
// The ceiling can never drop below what was already purchased.
func (s *Service) SetAllocatedQuantity(ctx context.Context, tx *gorm.DB, allocationID uuid.UUID, quantity int) (*models.Allocation, error) {
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	db := s.db(tx)
	var alloc models.Allocation
	if err := db.WithContext(ctx).Where("allocation_id = ?", allocationID).First(&alloc).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrAllocationNotFound
		}
		return nil, err
	}
	if quantity < alloc.PurchasedQuantity {
		return nil, ErrCapacityBelowPurchased
	}
	alloc.AllocatedQuantity = quantity
	if err := db.WithContext(ctx).Save(&alloc).Error; err != nil {
		return nil, err
	}
	return &alloc, nil
}

// SetPricing replaces an allocation's pricing rule.
func (s *Service) SetPricing(ctx context.Context, tx *gorm.DB, allocationID uuid.UUID, spec pricing.Spec) (*models.Allocation, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	db := s.db(tx)
	var alloc models.Allocation
	if err := db.WithContext(ctx).Where("allocation_id = ?", allocationID).First(&alloc).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrAllocationNotFound
		}
		return nil, err
	}
	alloc.PricingMode = spec.Mode
	alloc.CustomPriceCents = spec.CustomPriceCents
	alloc.DiscountPercent = spec.DiscountPercent
	if err := db.WithContext(ctx).Save(&alloc).Error; err != nil {
		return nil, err
	}
	return &alloc, nil
}
