package storefront

import (
	"time"

	"tixhold-backend/internal/access"
	"tixhold-backend/internal/catalog"
	"tixhold-backend/internal/ledger"
	"tixhold-backend/internal/links"
	"tixhold-backend/internal/middleware"
	"tixhold-backend/internal/models"
	"tixhold-backend/internal/pkg/response"
	"tixhold-backend/internal/pricing"
	"tixhold-backend/internal/redemption"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Handlers serves the public storefront: the link landing page and the
// purchase endpoint. These routes are reachable without authentication,
// the link code itself is the credential.
type Handlers struct {
	Links      *links.Service
	Access     *access.Service
	Redemption *redemption.Service
	Catalog    catalog.TicketCatalog
}

type ticketOffer struct {
	TicketTypeID        string  `json:"ticket_type_id"`
	Name                string  `json:"name"`
	PricingMode         string  `json:"pricing_mode"`
	EffectivePriceCents int64   `json:"effective_price_cents"`
	OriginalPriceCents  int64   `json:"original_price_cents"`
	Currency            string  `json:"currency"`
	Remaining           int     `json:"remaining"`
	DiscountPercent     *int    `json:"discount_percent,omitempty"`
}

// ShowLink renders everything a buyer needs to decide: the event, each
// ticket offer with its effective price next to the list price, and how
// many tickets the link still allows. Every resolved view is recorded,
// including views of links that are no longer available.
func (h *Handlers) ShowLink(c *fiber.Ctx) error {
	code := c.Params("code")

	link, hold, allocations, err := h.Links.Resolve(c.Context(), code)
	if err != nil {
		if err == links.ErrLinkNotFound {
			return response.Error(c, err.Error(), fiber.StatusNotFound, nil)
		}
		return response.Error(c, "Failed to load purchase link", fiber.StatusInternalServerError, nil)
	}

	viewerID := middleware.ViewerUserID(c)
	h.recordAccess(c, link.LinkID, viewerID)

	switch h.Links.CheckAccess(link, viewerID) {
	case links.AccessRedirectToLogin:
		return response.Error(c, "Sign in to view this purchase link", fiber.StatusUnauthorized,
			fiber.Map{"redirect_to_login": true})
	case links.AccessUnauthorized:
		return response.Error(c, "This purchase link is reserved for another account", fiber.StatusForbidden, nil)
	}

	now := time.Now()
	if err := h.Links.Availability(link, hold, allocations, now); err != nil {
		reason := string(link.StatusAt(now))
		if hold.StatusAt(now, allocations) != models.HoldStatusActive {
			reason = string(hold.StatusAt(now, allocations))
		}
		return response.Success(c, "Purchase link is not available", fiber.Map{
			"available": false,
			"reason":    reason,
		}, nil)
	}

	occurrence, err := h.Catalog.GetEventOccurrence(c.Context(), hold.EventOccurrenceID)
	if err != nil {
		return response.Error(c, "Failed to load event details", fiber.StatusInternalServerError, nil)
	}

	offers := make([]ticketOffer, 0, len(allocations))
	for i := range allocations {
		a := &allocations[i]
		tt, err := h.Catalog.GetTicketType(c.Context(), a.TicketTypeID)
		if err != nil {
			return response.Error(c, "Failed to load ticket details", fiber.StatusInternalServerError, nil)
		}
		offers = append(offers, ticketOffer{
			TicketTypeID:        a.TicketTypeID.String(),
			Name:                tt.Name,
			PricingMode:         string(a.PricingMode),
			EffectivePriceCents: pricing.EffectivePriceFor(a, tt.PriceCents),
			OriginalPriceCents:  tt.PriceCents,
			Currency:            tt.Currency,
			Remaining:           a.Remaining(),
			DiscountPercent:     a.DiscountPercent,
		})
	}

	data := fiber.Map{
		"available": true,
		"link": fiber.Map{
			"name":          link.Name,
			"quantity_mode": link.QuantityMode,
			"remaining":     link.Remaining(),
			"expires_at":    link.ExpiresAt,
		},
		"event": fiber.Map{
			"event_id":      occurrence.EventID,
			"occurrence_id": occurrence.OccurrenceID,
			"start_at":      occurrence.StartAt,
		},
		"tickets": offers,
	}
	return response.Success(c, "Purchase link retrieved", data, nil)
}

// Purchase redeems the link for the posted cart. Attribution is best
// effort: the most recent recorded view in this browser session gets the
// conversion credit, and a missing one never blocks the purchase.
func (h *Handlers) Purchase(c *fiber.Ctx) error {
	code := c.Params("code")

	var body struct {
		Items []struct {
			TicketTypeID string `json:"ticket_type_id"`
			Quantity     int    `json:"quantity"`
		} `json:"items"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	items := make([]redemption.CartItem, 0, len(body.Items))
	for _, it := range body.Items {
		ttID, err := uuid.Parse(it.TicketTypeID)
		if err != nil {
			return response.Error(c, "Invalid ticket_type_id", fiber.StatusBadRequest, nil)
		}
		items = append(items, redemption.CartItem{TicketTypeID: ttID, Quantity: it.Quantity})
	}

	var accessID *uuid.UUID
	if link, _, _, err := h.Links.Resolve(c.Context(), code); err == nil {
		if sid := middleware.GetSessionID(c); sid != "" {
			if row, err := h.Access.LatestForSession(c.Context(), link.LinkID, sid); err == nil {
				accessID = &row.AccessID
			}
		}
	}

	results, err := h.Redemption.Redeem(c.Context(), code, middleware.ViewerUserID(c), items, accessID)
	if err != nil {
		return purchaseErrorResponse(c, err)
	}
	return response.SuccessCreated(c, "Purchase completed", fiber.Map{"lines": results}, nil)
}

func (h *Handlers) recordAccess(c *fiber.Ctx, linkID uuid.UUID, viewerID *uuid.UUID) {
	var sessionID *string
	if sid := middleware.GetSessionID(c); sid != "" {
		sessionID = &sid
	}
	_, err := h.Access.Record(c.Context(), linkID, access.ViewerContext{
		UserID:    viewerID,
		SessionID: sessionID,
		IPAddress: c.IP(),
		UserAgent: c.Get("User-Agent"),
		Referrer:  c.Get("Referer"),
	})
	if err != nil {
		// The landing page still renders when the audit write fails.
		log.Error().Err(err).Str("link_id", linkID.String()).Msg("failed to record link access")
	}
}

func purchaseErrorResponse(c *fiber.Ctx, err error) error {
	statusMap := map[error]int{
		links.ErrLinkNotFound:              fiber.StatusNotFound,
		links.ErrLinkUnavailable:           fiber.StatusGone,
		redemption.ErrEmptyCart:            fiber.StatusBadRequest,
		redemption.ErrDuplicateCartItem:    fiber.StatusBadRequest,
		redemption.ErrTicketNotInHold:      fiber.StatusBadRequest,
		redemption.ErrLinkExhausted:        fiber.StatusConflict,
		redemption.ErrAuthRequired:         fiber.StatusUnauthorized,
		redemption.ErrWrongUser:            fiber.StatusForbidden,
		redemption.ErrBookingFailed:        fiber.StatusPaymentRequired,
		ledger.ErrInvalidQuantity:          fiber.StatusBadRequest,
		ledger.ErrInsufficientAllocation:   fiber.StatusConflict,
	}
	if code, ok := statusMap[err]; ok {
		return response.Error(c, err.Error(), code, nil)
	}
	log.Error().Err(err).Msg("purchase failed")
	return response.Error(c, "Failed to complete purchase", fiber.StatusInternalServerError, nil)
}
