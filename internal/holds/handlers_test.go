package holds

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"tixhold-backend/internal/models"
	"tixhold-backend/internal/pricing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupHoldHandlerApp(t *testing.T, organizerID uuid.UUID) (*fiber.App, *Handlers, *gorm.DB) {
	svc, db := setupHoldsTest(t)
	h := &Handlers{Service: svc}

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("viewer", map[string]interface{}{
			"user_id":      uuid.New().String(),
			"role":         "manager",
			"organizer_id": organizerID.String(),
		})
		return c.Next()
	})
	app.Post("/create-hold", h.CreateHold)
	app.Post("/release-hold", h.ReleaseHold)
	app.Get("/view-hold/:hold_id", h.ViewHold)
	app.Get("/view-holds", h.ViewHolds)
	app.Patch("/update-allocation", h.UpdateAllocation)
	return app, h, db
}

func TestCreateHold_MissingFields(t *testing.T) {
	app, _, _ := setupHoldHandlerApp(t, uuid.New())

	body, _ := json.Marshal(map[string]interface{}{})
	req := httptest.NewRequest("POST", "/create-hold", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestCreateHold_CreatesHoldAndAllocations(t *testing.T) {
	organizerID := uuid.New()
	app, h, db := setupHoldHandlerApp(t, organizerID)
	occ, tt := seedOccurrenceWithTicketType(t, db, 10000)

	body, _ := json.Marshal(map[string]interface{}{
		"event_occurrence_id": occ.OccurrenceID.String(),
		"name":                "Sponsor block",
		"allocations": []map[string]interface{}{
			{"ticket_type_id": tt.TicketTypeID.String(), "quantity": 25, "pricing_mode": "PERCENTAGE_DISCOUNT", "discount_percent": 50},
		},
	})
	req := httptest.NewRequest("POST", "/create-hold", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 201, resp.StatusCode)

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	assert.Equal(t, "success", result["status"])

	holds, err := h.Service.ListByOrganizer(context.Background(), organizerID)
	require.NoError(t, err)
	require.Len(t, holds, 1)
	assert.Equal(t, "Sponsor block", holds[0].Name)
}

func TestReleaseHold_WrongOrganizerForbidden(t *testing.T) {
	app, h, db := setupHoldHandlerApp(t, uuid.New())
	occ, tt := seedOccurrenceWithTicketType(t, db, 10000)

	hold, _, err := h.Service.Create(context.Background(), CreateHoldInput{
		EventOccurrenceID: occ.OccurrenceID,
		OrganizerID:       uuid.New(), // not the session organizer
		CreatedBy:         uuid.New(),
		Name:              "Foreign",
		Allocations: []AllocationInput{
			{TicketTypeID: tt.TicketTypeID, Quantity: 5, Pricing: pricingSpecOriginal()},
		},
	})
	require.NoError(t, err)

	body, _ := json.Marshal(map[string]interface{}{"hold_id": hold.HoldID.String()})
	req := httptest.NewRequest("POST", "/release-hold", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 403, resp.StatusCode)
}

func TestViewHold_ReportsDerivedStatus(t *testing.T) {
	organizerID := uuid.New()
	app, h, db := setupHoldHandlerApp(t, organizerID)
	occ, tt := seedOccurrenceWithTicketType(t, db, 10000)

	expires := time.Now().Add(-time.Minute)
	hold, _, err := h.Service.Create(context.Background(), CreateHoldInput{
		EventOccurrenceID: occ.OccurrenceID,
		OrganizerID:       organizerID,
		CreatedBy:         uuid.New(),
		Name:              "Expired block",
		ExpiresAt:         &expires,
		Allocations: []AllocationInput{
			{TicketTypeID: tt.TicketTypeID, Quantity: 5, Pricing: pricingSpecOriginal()},
		},
	})
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/view-hold/"+hold.HoldID.String(), nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	data, _ := result["data"].(map[string]interface{})
	assert.Equal(t, string(models.HoldStatusExpired), data["status"])
}

func pricingSpecOriginal() pricing.Spec {
	return pricing.Spec{Mode: models.PricingOriginal}
}
