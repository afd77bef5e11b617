package booking

import (
	"context"
	"errors"

	"tixhold-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrPaymentDeclined is what a payment-capable pipeline returns when the
// charge fails; the coordinator treats it the same as any pipeline error
// and rolls the redemption back.
var ErrPaymentDeclined = errors.New("Payment declined")

// CreateBookingInput is one priced cart line handed to the pipeline.
type CreateBookingInput struct {
	TicketTypeID    uuid.UUID
	Quantity        int
	UnitPriceCents  int64
	Currency        string
	PurchaserUserID *uuid.UUID
}

// Result identifies the booking (and optional payment transaction) the
// pipeline produced for one line.
type Result struct {
	BookingID     uuid.UUID
	TransactionID *string
}

// Pipeline is the boundary to the booking/payment subsystem. The tx handle
// is the coordinator's open transaction: an implementation that writes to
// the same database must use it so its rows roll back with the counters; a
// remote implementation ignores it and must return an error on failure to
// trigger the same rollback.
type Pipeline interface {
	CreateBooking(ctx context.Context, tx *gorm.DB, in CreateBookingInput) (*Result, error)
}

// GormPipeline records bookings in the engine's own database.
type GormPipeline struct{}

func (p *GormPipeline) CreateBooking(ctx context.Context, tx *gorm.DB, in CreateBookingInput) (*Result, error) {
	b := models.Booking{
		TicketTypeID:   in.TicketTypeID,
		Quantity:       in.Quantity,
		UnitPriceCents: in.UnitPriceCents,
		Currency:       in.Currency,
		UserID:         in.PurchaserUserID,
	}
	if err := tx.WithContext(ctx).Create(&b).Error; err != nil {
		return nil, err
	}
	return &Result{BookingID: b.BookingID, TransactionID: b.TransactionID}, nil
}
