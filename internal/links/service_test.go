package links

import (
	"context"
	"testing"
	"time"

	"tixhold-backend/internal/catalog"
	"tixhold-backend/internal/holds"
	"tixhold-backend/internal/ledger"
	"tixhold-backend/internal/models"
	"tixhold-backend/internal/pricing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupLinksTest(t *testing.T) (*Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&models.Hold{}, &models.Allocation{}, &models.PurchaseLink{},
		&models.TicketType{}, &models.EventOccurrence{},
	))
	holdsSvc := &holds.Service{
		DB:      db,
		Ledger:  &ledger.Service{DB: db},
		Catalog: &catalog.GormCatalog{DB: db},
	}
	return &Service{DB: db, Holds: holdsSvc}, db
}

func seedActiveHold(t *testing.T, svc *Service, db *gorm.DB) *models.Hold {
	occ := &models.EventOccurrence{EventID: uuid.New(), StartAt: time.Now().Add(24 * time.Hour)}
	require.NoError(t, db.Create(occ).Error)
	tt := &models.TicketType{
		EventOccurrenceID: occ.OccurrenceID,
		Name:              "Standard",
		PriceCents:        5000,
		Currency:          "usd",
	}
	require.NoError(t, db.Create(tt).Error)

	hold, _, err := svc.Holds.Create(context.Background(), holds.CreateHoldInput{
		EventOccurrenceID: occ.OccurrenceID,
		OrganizerID:       uuid.New(),
		CreatedBy:         uuid.New(),
		Name:              "Block",
		Allocations: []holds.AllocationInput{
			{TicketTypeID: tt.TicketTypeID, Quantity: 20, Pricing: pricing.Spec{Mode: models.PricingOriginal}},
		},
	})
	require.NoError(t, err)
	return hold
}

func intPtr(v int) *int { return &v }

func TestCreate_GeneratesUnguessableCode(t *testing.T) {
	svc, db := setupLinksTest(t)
	hold := seedActiveHold(t, svc, db)

	a, err := svc.Create(context.Background(), hold.HoldID, CreateLinkInput{QuantityMode: models.LinkQuantityUnlimited})
	require.NoError(t, err)
	b, err := svc.Create(context.Background(), hold.HoldID, CreateLinkInput{QuantityMode: models.LinkQuantityUnlimited})
	require.NoError(t, err)

	assert.Len(t, a.Code, 32)
	assert.NotEqual(t, a.Code, b.Code)
}

func TestCreate_QuantityModePairing(t *testing.T) {
	svc, db := setupLinksTest(t)
	hold := seedActiveHold(t, svc, db)
	ctx := context.Background()

	_, err := svc.Create(ctx, hold.HoldID, CreateLinkInput{QuantityMode: models.LinkQuantityUnlimited, QuantityLimit: intPtr(5)})
	assert.ErrorIs(t, err, ErrInvalidQuantityLimit)

	_, err = svc.Create(ctx, hold.HoldID, CreateLinkInput{QuantityMode: models.LinkQuantityMaximum})
	assert.ErrorIs(t, err, ErrInvalidQuantityLimit)

	_, err = svc.Create(ctx, hold.HoldID, CreateLinkInput{QuantityMode: models.LinkQuantityFixed, QuantityLimit: intPtr(0)})
	assert.ErrorIs(t, err, ErrInvalidQuantityLimit)

	_, err = svc.Create(ctx, hold.HoldID, CreateLinkInput{QuantityMode: "SOMETIMES", QuantityLimit: intPtr(5)})
	assert.ErrorIs(t, err, ErrInvalidQuantityLimit)

	link, err := svc.Create(ctx, hold.HoldID, CreateLinkInput{QuantityMode: models.LinkQuantityMaximum, QuantityLimit: intPtr(10)})
	require.NoError(t, err)
	require.NotNil(t, link.Remaining())
	assert.Equal(t, 10, *link.Remaining())
}

func TestCreate_RequiresActiveHold(t *testing.T) {
	svc, db := setupLinksTest(t)
	hold := seedActiveHold(t, svc, db)
	_, err := svc.Holds.Release(context.Background(), hold.HoldID, uuid.New())
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), hold.HoldID, CreateLinkInput{QuantityMode: models.LinkQuantityUnlimited})
	assert.ErrorIs(t, err, holds.ErrHoldNotActive)
}

func TestStatusPrecedence_RevokedWinsOverEverything(t *testing.T) {
	svc, db := setupLinksTest(t)
	hold := seedActiveHold(t, svc, db)
	ctx := context.Background()

	expired := time.Now().Add(-time.Hour)
	link, err := svc.Create(ctx, hold.HoldID, CreateLinkInput{
		QuantityMode:  models.LinkQuantityMaximum,
		QuantityLimit: intPtr(1),
	})
	require.NoError(t, err)

	// Exhaust and expire it, then revoke: REVOKED still wins.
	link.QuantityPurchased = 1
	link.ExpiresAt = &expired
	require.NoError(t, db.Save(link).Error)
	assert.Equal(t, models.LinkStatusExpired, link.StatusAt(time.Now()))

	revoked, err := svc.Revoke(ctx, link.LinkID, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, models.LinkStatusRevoked, revoked.StatusAt(time.Now()))

	_, err = svc.Revoke(ctx, link.LinkID, uuid.New())
	assert.ErrorIs(t, err, ErrAlreadyRevoked)
}

func TestStatusPrecedence_ExpiredBeforeExhausted(t *testing.T) {
	expired := time.Now().Add(-time.Minute)
	limit := 3
	link := models.PurchaseLink{
		QuantityMode:      models.LinkQuantityMaximum,
		QuantityLimit:     &limit,
		QuantityPurchased: 3,
		ExpiresAt:         &expired,
	}
	assert.Equal(t, models.LinkStatusExpired, link.StatusAt(time.Now()))

	link.ExpiresAt = nil
	assert.Equal(t, models.LinkStatusExhausted, link.StatusAt(time.Now()))

	link.QuantityPurchased = 1
	r := link.Remaining()
	require.NotNil(t, r)
	assert.Equal(t, 2, *r)
	assert.Equal(t, models.LinkStatusActive, link.StatusAt(time.Now()))
}

func TestResolve_NotFoundVsUnavailable(t *testing.T) {
	svc, db := setupLinksTest(t)
	hold := seedActiveHold(t, svc, db)
	ctx := context.Background()

	_, _, _, err := svc.Resolve(ctx, "no-such-code")
	assert.ErrorIs(t, err, ErrLinkNotFound)

	link, err := svc.Create(ctx, hold.HoldID, CreateLinkInput{QuantityMode: models.LinkQuantityUnlimited})
	require.NoError(t, err)

	resolved, resolvedHold, allocations, err := svc.Resolve(ctx, link.Code)
	require.NoError(t, err)
	assert.Equal(t, link.LinkID, resolved.LinkID)
	require.NoError(t, svc.Availability(resolved, resolvedHold, allocations, time.Now()))

	// Releasing the hold makes the link unavailable but still resolvable.
	_, err = svc.Holds.Release(ctx, hold.HoldID, uuid.New())
	require.NoError(t, err)
	resolved, resolvedHold, allocations, err = svc.Resolve(ctx, link.Code)
	require.NoError(t, err)
	assert.ErrorIs(t, svc.Availability(resolved, resolvedHold, allocations, time.Now()), ErrLinkUnavailable)
}

func TestCheckAccess_IdentityRules(t *testing.T) {
	svc, _ := setupLinksTest(t)
	bound := uuid.New()
	other := uuid.New()

	anonymous := &models.PurchaseLink{}
	assert.Equal(t, AccessShow, svc.CheckAccess(anonymous, nil))
	assert.Equal(t, AccessShow, svc.CheckAccess(anonymous, &other))

	restricted := &models.PurchaseLink{BoundUserID: &bound}
	assert.Equal(t, AccessRedirectToLogin, svc.CheckAccess(restricted, nil))
	assert.Equal(t, AccessUnauthorized, svc.CheckAccess(restricted, &other))
	assert.Equal(t, AccessShow, svc.CheckAccess(restricted, &bound))
}

func TestUpdate_LimitFloorsAtPurchased(t *testing.T) {
	svc, db := setupLinksTest(t)
	hold := seedActiveHold(t, svc, db)
	ctx := context.Background()

	link, err := svc.Create(ctx, hold.HoldID, CreateLinkInput{
		QuantityMode:  models.LinkQuantityMaximum,
		QuantityLimit: intPtr(10),
	})
	require.NoError(t, err)
	link.QuantityPurchased = 4
	require.NoError(t, db.Save(link).Error)

	_, err = svc.Update(ctx, link.LinkID, UpdateLinkInput{QuantityLimit: intPtr(3)})
	assert.ErrorIs(t, err, ErrLimitBelowPurchased)

	updated, err := svc.Update(ctx, link.LinkID, UpdateLinkInput{QuantityLimit: intPtr(4)})
	require.NoError(t, err)
	assert.Equal(t, models.LinkStatusExhausted, updated.StatusAt(time.Now()))
}
