package holds

import (
	"time"

	"tixhold-backend/internal/catalog"
	"tixhold-backend/internal/ledger"
	"tixhold-backend/internal/middleware"
	"tixhold-backend/internal/models"
	"tixhold-backend/internal/pkg/response"
	"tixhold-backend/internal/pricing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *Service
}

type allocationBody struct {
	TicketTypeID     string `json:"ticket_type_id"`
	Quantity         int    `json:"quantity"`
	PricingMode      string `json:"pricing_mode"`
	CustomPriceCents *int64 `json:"custom_price_cents"`
	DiscountPercent  *int   `json:"discount_percent"`
}

// CreateHold POST /api/v1/holds/create-hold
func (h *Handlers) CreateHold(c *fiber.Ctx) error {
	var body struct {
		EventOccurrenceID string           `json:"event_occurrence_id"`
		Name              string           `json:"name"`
		Description       *string          `json:"description"`
		InternalNotes     *string          `json:"internal_notes"`
		ExpiresAt         *time.Time       `json:"expires_at"`
		Allocations       []allocationBody `json:"allocations"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Missing required fields", 400, nil)
	}
	if body.EventOccurrenceID == "" || body.Name == "" {
		return response.Error(c, "Missing required fields", 400, nil)
	}
	occurrenceID, err := uuid.Parse(body.EventOccurrenceID)
	if err != nil {
		return response.Error(c, "Invalid UUID format for event_occurrence_id", 400, nil)
	}

	viewer := middleware.GetViewer(c)
	if viewer == nil || viewer.OrganizerID == nil {
		return response.Error(c, "User not associated with an organizer", 403, nil)
	}
	organizerID, err := uuid.Parse(*viewer.OrganizerID)
	if err != nil {
		return response.Error(c, "Invalid organizer in session", 400, nil)
	}
	actorID, _ := uuid.Parse(viewer.UserID)

	in := CreateHoldInput{
		EventOccurrenceID: occurrenceID,
		OrganizerID:       organizerID,
		CreatedBy:         actorID,
		Name:              body.Name,
		Description:       body.Description,
		InternalNotes:     body.InternalNotes,
		ExpiresAt:         body.ExpiresAt,
	}
	for _, a := range body.Allocations {
		ttID, err := uuid.Parse(a.TicketTypeID)
		if err != nil {
			return response.Error(c, "Invalid UUID format for ticket_type_id", 400, nil)
		}
		in.Allocations = append(in.Allocations, AllocationInput{
			TicketTypeID: ttID,
			Quantity:     a.Quantity,
			Pricing: pricing.Spec{
				Mode:             models.PricingMode(a.PricingMode),
				CustomPriceCents: a.CustomPriceCents,
				DiscountPercent:  a.DiscountPercent,
			},
		})
	}

	hold, allocations, err := h.Service.Create(c.Context(), in)
	if err != nil {
		return holdErrorResponse(c, err)
	}
	return response.SuccessCreated(c, "Hold created successfully", fiber.Map{
		"hold":        hold,
		"allocations": allocations,
		"status":      h.Service.Status(hold, allocations),
	}, nil)
}

// ReleaseHold POST /api/v1/holds/release-hold
func (h *Handlers) ReleaseHold(c *fiber.Ctx) error {
	var body struct {
		HoldID string `json:"hold_id"`
	}
	if err := c.BodyParser(&body); err != nil || body.HoldID == "" {
		return response.Error(c, "Missing required fields", 400, nil)
	}
	holdID, err := uuid.Parse(body.HoldID)
	if err != nil {
		return response.Error(c, "Invalid UUID format for hold_id", 400, nil)
	}
	viewer := middleware.GetViewer(c)
	if err := h.requireSameOrganizer(c, holdID, viewer); err != nil {
		return holdErrorResponse(c, err)
	}
	actorID, _ := uuid.Parse(viewer.UserID)

	hold, err := h.Service.Release(c.Context(), holdID, actorID)
	if err != nil {
		return holdErrorResponse(c, err)
	}
	return response.Success(c, "Hold released successfully", fiber.Map{"hold": hold}, nil)
}

// ViewHold GET /api/v1/holds/view-hold/:hold_id
func (h *Handlers) ViewHold(c *fiber.Ctx) error {
	holdID, err := uuid.Parse(c.Params("hold_id"))
	if err != nil {
		return response.Error(c, "Invalid UUID format for hold_id", 400, nil)
	}
	viewer := middleware.GetViewer(c)
	if err := h.requireSameOrganizer(c, holdID, viewer); err != nil {
		return holdErrorResponse(c, err)
	}

	hold, allocations, err := h.Service.Get(c.Context(), holdID)
	if err != nil {
		return holdErrorResponse(c, err)
	}
	return response.Success(c, "Hold fetched successfully", fiber.Map{
		"hold":        hold,
		"allocations": allocations,
		"status":      h.Service.Status(hold, allocations),
	}, nil)
}

// ViewHolds GET /api/v1/holds/view-holds
func (h *Handlers) ViewHolds(c *fiber.Ctx) error {
	viewer := middleware.GetViewer(c)
	if viewer == nil || viewer.OrganizerID == nil {
		return response.Error(c, "User not associated with an organizer", 403, nil)
	}
	organizerID, err := uuid.Parse(*viewer.OrganizerID)
	if err != nil {
		return response.Error(c, "Invalid organizer in session", 400, nil)
	}
	holds, err := h.Service.ListByOrganizer(c.Context(), organizerID)
	if err != nil {
		return response.Error(c, "Internal Server Error", 500, nil)
	}
	return response.Success(c, "Holds fetched successfully", fiber.Map{"holds": holds}, nil)
}

// UpdateAllocation PATCH /api/v1/holds/update-allocation
func (h *Handlers) UpdateAllocation(c *fiber.Ctx) error {
	var body struct {
		HoldID            string  `json:"hold_id"`
		AllocationID      string  `json:"allocation_id"`
		AllocatedQuantity *int    `json:"allocated_quantity"`
		PricingMode       *string `json:"pricing_mode"`
		CustomPriceCents  *int64  `json:"custom_price_cents"`
		DiscountPercent   *int    `json:"discount_percent"`
	}
	if err := c.BodyParser(&body); err != nil || body.HoldID == "" || body.AllocationID == "" {
		return response.Error(c, "Missing required fields", 400, nil)
	}
	holdID, err := uuid.Parse(body.HoldID)
	if err != nil {
		return response.Error(c, "Invalid UUID format for hold_id", 400, nil)
	}
	allocationID, err := uuid.Parse(body.AllocationID)
	if err != nil {
		return response.Error(c, "Invalid UUID format for allocation_id", 400, nil)
	}
	viewer := middleware.GetViewer(c)
	if err := h.requireSameOrganizer(c, holdID, viewer); err != nil {
		return holdErrorResponse(c, err)
	}

	in := UpdateAllocationInput{AllocatedQuantity: body.AllocatedQuantity}
	if body.PricingMode != nil {
		in.Pricing = &pricing.Spec{
			Mode:             models.PricingMode(*body.PricingMode),
			CustomPriceCents: body.CustomPriceCents,
			DiscountPercent:  body.DiscountPercent,
		}
	}
	alloc, err := h.Service.UpdateAllocation(c.Context(), holdID, allocationID, in)
	if err != nil {
		return holdErrorResponse(c, err)
	}
	return response.Success(c, "Allocation updated successfully", fiber.Map{"allocation": alloc}, nil)
}

var errOrganizerMismatch = fiber.NewError(403, "Hold belongs to a different organizer")

func (h *Handlers) requireSameOrganizer(c *fiber.Ctx, holdID uuid.UUID, viewer *middleware.SessionViewer) error {
	if viewer == nil || viewer.OrganizerID == nil {
		return errOrganizerMismatch
	}
	hold, _, err := h.Service.Get(c.Context(), holdID)
	if err != nil {
		return err
	}
	if hold.OrganizerID.String() != *viewer.OrganizerID {
		return errOrganizerMismatch
	}
	return nil
}

func holdErrorResponse(c *fiber.Ctx, err error) error {
	statusMap := map[error]int{
		ErrHoldNotFound:                  404,
		ErrAlreadyTerminal:               409,
		ErrHoldNotActive:                 409,
		ErrNoAllocations:                 400,
		ErrTicketTypeMismatch:            400,
		ledger.ErrInvalidQuantity:        400,
		ledger.ErrAllocationNotFound:     404,
		ledger.ErrCapacityBelowPurchased: 400,
		pricing.ErrInvalidPricingSpec:    400,
		pricing.ErrUnknownPricingMode:    400,
		catalog.ErrTicketTypeNotFound:    404,
		catalog.ErrOccurrenceNotFound:    404,
	}
	if fe, ok := err.(*fiber.Error); ok {
		return response.Error(c, fe.Message, fe.Code, nil)
	}
	if code, ok := statusMap[err]; ok {
		return response.Error(c, err.Error(), code, nil)
	}
	return response.Error(c, "Internal Server Error", 500, nil)
}
