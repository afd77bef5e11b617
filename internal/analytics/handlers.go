package analytics

import (
	"strconv"

	"tixhold-backend/internal/holds"
	"tixhold-backend/internal/middleware"
	"tixhold-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *Service
}

// HoldAnalytics GET /api/v1/analytics/hold/:hold_id
func (h *Handlers) HoldAnalytics(c *fiber.Ctx) error {
	holdID, err := uuid.Parse(c.Params("hold_id"))
	if err != nil {
		return response.Error(c, "Invalid UUID format for hold_id", 400, nil)
	}
	if err := h.requireSameOrganizer(c, holdID); err != nil {
		return analyticsErrorResponse(c, err)
	}

	stats, err := h.Service.HoldAnalytics(c.Context(), holdID)
	if err != nil {
		return analyticsErrorResponse(c, err)
	}
	return response.Success(c, "Hold analytics fetched successfully", fiber.Map{"analytics": stats}, nil)
}

// TopLinks GET /api/v1/analytics/top-links/:hold_id?limit=n
func (h *Handlers) TopLinks(c *fiber.Ctx) error {
	holdID, err := uuid.Parse(c.Params("hold_id"))
	if err != nil {
		return response.Error(c, "Invalid UUID format for hold_id", 400, nil)
	}
	if err := h.requireSameOrganizer(c, holdID); err != nil {
		return analyticsErrorResponse(c, err)
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return response.Error(c, "Invalid limit", 400, nil)
		}
	}
	top, err := h.Service.TopPerformingLinks(c.Context(), holdID, limit)
	if err != nil {
		return analyticsErrorResponse(c, err)
	}
	return response.Success(c, "Top performing links fetched successfully", fiber.Map{"links": top}, nil)
}

var errOrganizerMismatch = fiber.NewError(403, "Hold belongs to a different organizer")

func (h *Handlers) requireSameOrganizer(c *fiber.Ctx, holdID uuid.UUID) error {
	viewer := middleware.GetViewer(c)
	if viewer == nil || viewer.OrganizerID == nil {
		return errOrganizerMismatch
	}
	hold, _, err := h.Service.Holds.Get(c.Context(), holdID)
	if err != nil {
		return err
	}
	if hold.OrganizerID.String() != *viewer.OrganizerID {
		return errOrganizerMismatch
	}
	return nil
}

func analyticsErrorResponse(c *fiber.Ctx, err error) error {
	if err == holds.ErrHoldNotFound {
		return response.Error(c, err.Error(), 404, nil)
	}
	if fe, ok := err.(*fiber.Error); ok {
		return response.Error(c, fe.Message, fe.Code, nil)
	}
	return response.Error(c, "Internal Server Error", 500, nil)
}
