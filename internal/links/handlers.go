package links

import (
	"time"

	"tixhold-backend/internal/holds"
	"tixhold-backend/internal/middleware"
	"tixhold-backend/internal/models"
	"tixhold-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Handlers struct {
	Service *Service
}

// CreateLink POST /api/v1/links/create-link
func (h *Handlers) CreateLink(c *fiber.Ctx) error {
	var body struct {
		HoldID        string         `json:"hold_id"`
		Name          *string        `json:"name"`
		BoundUserID   *string        `json:"bound_user_id"`
		QuantityMode  string         `json:"quantity_mode"`
		QuantityLimit *int           `json:"quantity_limit"`
		ExpiresAt     *time.Time     `json:"expires_at"`
		Notes         *string        `json:"notes"`
		Metadata      datatypes.JSON `json:"metadata"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Missing required fields", 400, nil)
	}
	if body.HoldID == "" || body.QuantityMode == "" {
		return response.Error(c, "Missing required fields", 400, nil)
	}
	holdID, err := uuid.Parse(body.HoldID)
	if err != nil {
		return response.Error(c, "Invalid UUID format for hold_id", 400, nil)
	}
	if err := h.requireSameOrganizer(c, holdID); err != nil {
		return linkErrorResponse(c, err)
	}

	in := CreateLinkInput{
		Name:          body.Name,
		QuantityMode:  models.LinkQuantityMode(body.QuantityMode),
		QuantityLimit: body.QuantityLimit,
		ExpiresAt:     body.ExpiresAt,
		Notes:         body.Notes,
		Metadata:      body.Metadata,
	}
	if body.BoundUserID != nil {
		boundID, err := uuid.Parse(*body.BoundUserID)
		if err != nil {
			return response.Error(c, "Invalid UUID format for bound_user_id", 400, nil)
		}
		in.BoundUserID = &boundID
	}

	link, err := h.Service.Create(c.Context(), holdID, in)
	if err != nil {
		return linkErrorResponse(c, err)
	}
	return response.SuccessCreated(c, "Purchase link created successfully", fiber.Map{"link": link}, nil)
}

// RevokeLink PATCH /api/v1/links/revoke-link
func (h *Handlers) RevokeLink(c *fiber.Ctx) error {
	var body struct {
		LinkID string `json:"link_id"`
	}
	if err := c.BodyParser(&body); err != nil || body.LinkID == "" {
		return response.Error(c, "Missing required fields", 400, nil)
	}
	linkID, err := uuid.Parse(body.LinkID)
	if err != nil {
		return response.Error(c, "Invalid UUID format for link_id", 400, nil)
	}
	if err := h.requireLinkOrganizer(c, linkID); err != nil {
		return linkErrorResponse(c, err)
	}
	viewer := middleware.GetViewer(c)
	actorID, _ := uuid.Parse(viewer.UserID)

	link, err := h.Service.Revoke(c.Context(), linkID, actorID)
	if err != nil {
		return linkErrorResponse(c, err)
	}
	return response.Success(c, "Purchase link revoked successfully", fiber.Map{"link": link}, nil)
}

// ViewLinks GET /api/v1/links/view-links/:hold_id
func (h *Handlers) ViewLinks(c *fiber.Ctx) error {
	holdID, err := uuid.Parse(c.Params("hold_id"))
	if err != nil {
		return response.Error(c, "Invalid UUID format for hold_id", 400, nil)
	}
	if err := h.requireSameOrganizer(c, holdID); err != nil {
		return linkErrorResponse(c, err)
	}

	list, err := h.Service.ListByHold(c.Context(), holdID)
	if err != nil {
		return response.Error(c, "Internal Server Error", 500, nil)
	}
	now := time.Now()
	out := make([]fiber.Map, 0, len(list))
	for i := range list {
		out = append(out, fiber.Map{
			"link":      &list[i],
			"status":    list[i].StatusAt(now),
			"remaining": list[i].Remaining(),
		})
	}
	return response.Success(c, "Purchase links fetched successfully", fiber.Map{"links": out}, nil)
}

// UpdateLink PATCH /api/v1/links/update-link
func (h *Handlers) UpdateLink(c *fiber.Ctx) error {
	var body struct {
		LinkID        string     `json:"link_id"`
		Name          *string    `json:"name"`
		Notes         *string    `json:"notes"`
		ExpiresAt     *time.Time `json:"expires_at"`
		QuantityLimit *int       `json:"quantity_limit"`
	}
	if err := c.BodyParser(&body); err != nil || body.LinkID == "" {
		return response.Error(c, "Missing required fields", 400, nil)
	}
	linkID, err := uuid.Parse(body.LinkID)
	if err != nil {
		return response.Error(c, "Invalid UUID format for link_id", 400, nil)
	}
	if err := h.requireLinkOrganizer(c, linkID); err != nil {
		return linkErrorResponse(c, err)
	}

	link, err := h.Service.Update(c.Context(), linkID, UpdateLinkInput{
		Name:          body.Name,
		Notes:         body.Notes,
		ExpiresAt:     body.ExpiresAt,
		QuantityLimit: body.QuantityLimit,
	})
	if err != nil {
		return linkErrorResponse(c, err)
	}
	return response.Success(c, "Purchase link updated successfully", fiber.Map{"link": link}, nil)
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

func (h *Handlers) requireLinkOrganizer(c *fiber.Ctx, linkID uuid.UUID) error {
	var link models.PurchaseLink
	if err := h.Service.DB.Where("link_id = ?", linkID).First(&link).Error; err != nil {
		return ErrLinkNotFound
	}
	return h.requireSameOrganizer(c, link.HoldID)
}

func linkErrorResponse(c *fiber.Ctx, err error) error {
	statusMap := map[error]int{
		ErrLinkNotFound:         404,
		ErrAlreadyRevoked:       409,
		ErrInvalidQuantityLimit: 400,
		ErrLimitBelowPurchased:  400,
		holds.ErrHoldNotFound:   404,
		holds.ErrHoldNotActive:  409,
	}
	if fe, ok := err.(*fiber.Error); ok {
		return response.Error(c, fe.Message, fe.Code, nil)
	}
	if code, ok := statusMap[err]; ok {
		return response.Error(c, err.Error(), code, nil)
	}
	return response.Error(c, "Internal Server Error", 500, nil)
}
