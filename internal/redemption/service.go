package redemption

import (
	"context"
	"errors"
	"time"

	"tixhold-backend/internal/access"
	"tixhold-backend/internal/booking"
	"tixhold-backend/internal/catalog"
	"tixhold-backend/internal/ledger"
	"tixhold-backend/internal/links"
	"tixhold-backend/internal/models"
	"tixhold-backend/internal/pricing"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var (
	ErrEmptyCart         = errors.New("Cart must contain at least one item")
	ErrDuplicateCartItem = errors.New("Cart contains the same ticket type twice")
	ErrTicketNotInHold   = errors.New("Ticket type is not part of this hold")
	ErrLinkExhausted     = errors.New("Purchase link quantity is exhausted")
	ErrAuthRequired      = errors.New("Authentication required for this link")
	ErrWrongUser         = errors.New("Purchase link is bound to a different user")
	ErrBookingFailed     = errors.New("Booking could not be completed, no charge was made")
)

// CartItem is one requested line of a redemption.
type CartItem struct {
	TicketTypeID uuid.UUID
	Quantity     int
}

// LineResult reports one completed line: what was charged and the booking
// it produced.
type LineResult struct {
	TicketTypeID       uuid.UUID `json:"ticket_type_id"`
	Quantity           int       `json:"quantity"`
	UnitPriceCents     int64     `json:"unit_price_cents"`
	OriginalPriceCents int64     `json:"original_price_cents"`
	Currency           string    `json:"currency"`
	BookingID          uuid.UUID `json:"booking_id"`
	PurchaseID         uuid.UUID `json:"purchase_id"`
}

// Service is the single transactional entry point that turns a validated
// link into a purchase. Everything between re-validation and the purchase
// rows happens in one transaction: capacity is reserved through the
// ledger's guarded updates first, and any later failure, including the
// booking pipeline declining, rolls every counter back. There is no
// partially-redeemed state.
type Service struct {
	DB       *gorm.DB
	Ledger   *ledger.Service
	Access   *access.Service
	Catalog  catalog.TicketCatalog
	Pipeline booking.Pipeline
}

// Redeem executes the full redemption algorithm for a link code, an acting
// viewer (nil when anonymous), a cart, and an optional access row to
// attribute the purchase to.
func (s *Service) Redeem(ctx context.Context, code string, viewerUserID *uuid.UUID, items []CartItem, accessID *uuid.UUID) ([]LineResult, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	var results []LineResult
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Re-resolve inside the transaction: time may have advanced and
		// concurrent redemptions may have drained quantity since the page
		// was shown. Display reads are never authoritative.
		var link models.PurchaseLink
		if err := tx.Where("code = ?", code).First(&link).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return links.ErrLinkNotFound
			}
			return err
		}
		var hold models.Hold
		if err := tx.Where("hold_id = ?", link.HoldID).First(&hold).Error; err != nil {
			return err
		}
		var allocations []models.Allocation
		if err := tx.Where("hold_id = ?", hold.HoldID).Find(&allocations).Error; err != nil {
			return err
		}

		now := time.Now()
		if hold.StatusAt(now, allocations) != models.HoldStatusActive || link.StatusAt(now) != models.LinkStatusActive {
			return links.ErrLinkUnavailable
		}

		if link.BoundUserID != nil {
			if viewerUserID == nil {
				return ErrAuthRequired
			}
			if *viewerUserID != *link.BoundUserID {
				return ErrWrongUser
			}
		}

		allocByTicketType := make(map[uuid.UUID]*models.Allocation, len(allocations))
		for i := range allocations {
			allocByTicketType[allocations[i].TicketTypeID] = &allocations[i]
		}

		seen := make(map[uuid.UUID]bool, len(items))
		total := 0
		for _, item := range items {
			if item.Quantity <= 0 {
				return ledger.ErrInvalidQuantity
			}
			if seen[item.TicketTypeID] {
				return ErrDuplicateCartItem
			}
			seen[item.TicketTypeID] = true
			if _, ok := allocByTicketType[item.TicketTypeID]; !ok {
				return ErrTicketNotInHold
			}
			total += item.Quantity
		}

		if link.QuantityMode != models.LinkQuantityUnlimited {
			if remaining := link.Remaining(); remaining != nil && total > *remaining {
				return ErrLinkExhausted
			}
		}
		for _, item := range items {
			if item.Quantity > allocByTicketType[item.TicketTypeID].Remaining() {
				return ledger.ErrInsufficientAllocation
			}
		}

		// Reserve capacity before anything touches the pipeline. Each
		// consume is a guarded update; losing a race here aborts the whole
		// transaction and nothing was charged.
		for _, item := range items {
			alloc := allocByTicketType[item.TicketTypeID]
			if err := s.Ledger.Consume(ctx, tx, alloc.AllocationID, item.Quantity); err != nil {
				return err
			}
		}

		linkUpdate := tx.Model(&models.PurchaseLink{}).Where("link_id = ?", link.LinkID)
		if link.QuantityLimit != nil {
			linkUpdate = linkUpdate.Where("quantity_purchased + ? <= quantity_limit", total)
		}
		res := linkUpdate.Update("quantity_purchased", gorm.Expr("quantity_purchased + ?", total))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrLinkExhausted
		}

		for _, item := range items {
			alloc := allocByTicketType[item.TicketTypeID]
			tt, err := s.Catalog.GetTicketType(ctx, item.TicketTypeID)
			if err != nil {
				return err
			}
			unitPrice := pricing.EffectivePriceFor(alloc, tt.PriceCents)

			bookingRes, err := s.Pipeline.CreateBooking(ctx, tx, booking.CreateBookingInput{
				TicketTypeID:    item.TicketTypeID,
				Quantity:        item.Quantity,
				UnitPriceCents:  unitPrice,
				Currency:        tt.Currency,
				PurchaserUserID: viewerUserID,
			})
			if err != nil {
				log.Warn().Err(err).Str("link_code", code).Str("ticket_type_id", item.TicketTypeID.String()).Msg("booking pipeline rejected redemption")
				return ErrBookingFailed
			}

			purchase := models.PurchaseLinkPurchase{
				LinkID:             link.LinkID,
				AccessID:           accessID,
				TicketTypeID:       item.TicketTypeID,
				Quantity:           item.Quantity,
				UnitPriceCents:     unitPrice,
				OriginalPriceCents: tt.PriceCents,
				Currency:           tt.Currency,
				BookingID:          bookingRes.BookingID,
				TransactionID:      bookingRes.TransactionID,
				UserID:             viewerUserID,
			}
			if err := tx.Create(&purchase).Error; err != nil {
				return err
			}

			results = append(results, LineResult{
				TicketTypeID:       item.TicketTypeID,
				Quantity:           item.Quantity,
				UnitPriceCents:     unitPrice,
				OriginalPriceCents: tt.PriceCents,
				Currency:           tt.Currency,
				BookingID:          bookingRes.BookingID,
				PurchaseID:         purchase.PurchaseID,
			})
		}

		if accessID != nil {
			if err := s.Access.MarkPurchased(ctx, tx, *accessID); err != nil && err != access.ErrAccessNotFound {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
