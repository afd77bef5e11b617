package analytics

import (
	"context"
	"testing"
	"time"

	"tixhold-backend/internal/access"
	"tixhold-backend/internal/booking"
	"tixhold-backend/internal/catalog"
	"tixhold-backend/internal/holds"
	"tixhold-backend/internal/ledger"
	"tixhold-backend/internal/links"
	"tixhold-backend/internal/models"
	"tixhold-backend/internal/pricing"
	"tixhold-backend/internal/redemption"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type analyticsFixture struct {
	db         *gorm.DB
	svc        *Service
	links      *links.Service
	access     *access.Service
	redemption *redemption.Service
	tt         *models.TicketType
	hold       *models.Hold
}

func setupAnalyticsTest(t *testing.T) *analyticsFixture {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&models.Hold{}, &models.Allocation{}, &models.PurchaseLink{},
		&models.PurchaseLinkAccess{}, &models.PurchaseLinkPurchase{},
		&models.TicketType{}, &models.EventOccurrence{}, &models.Booking{},
	))

	led := &ledger.Service{DB: db}
	cat := &catalog.GormCatalog{DB: db}
	holdsSvc := &holds.Service{DB: db, Ledger: led, Catalog: cat}
	linksSvc := &links.Service{DB: db, Holds: holdsSvc}
	accessSvc := &access.Service{DB: db}

	occ := &models.EventOccurrence{EventID: uuid.New(), StartAt: time.Now().Add(24 * time.Hour)}
	require.NoError(t, db.Create(occ).Error)
	tt := &models.TicketType{
		EventOccurrenceID: occ.OccurrenceID,
		Name:              "Standard",
		PriceCents:        5000,
		Currency:          "usd",
	}
	require.NoError(t, db.Create(tt).Error)

	hold, _, err := holdsSvc.Create(context.Background(), holds.CreateHoldInput{
		EventOccurrenceID: occ.OccurrenceID,
		OrganizerID:       uuid.New(),
		CreatedBy:         uuid.New(),
		Name:              "Press block",
		Allocations: []holds.AllocationInput{
			{TicketTypeID: tt.TicketTypeID, Quantity: 10, Pricing: pricing.Spec{Mode: models.PricingFree}},
		},
	})
	require.NoError(t, err)

	return &analyticsFixture{
		db:     db,
		svc:    &Service{DB: db, Holds: holdsSvc, Access: accessSvc},
		links:  linksSvc,
		access: accessSvc,
		redemption: &redemption.Service{
			DB: db, Ledger: led, Access: accessSvc, Catalog: cat,
			Pipeline: &booking.GormPipeline{},
		},
		tt:   tt,
		hold: hold,
	}
}

func (f *analyticsFixture) mustLink(t *testing.T, in links.CreateLinkInput) *models.PurchaseLink {
	link, err := f.links.Create(context.Background(), f.hold.HoldID, in)
	require.NoError(t, err)
	return link
}

func (f *analyticsFixture) recordViews(t *testing.T, linkID uuid.UUID, n int) {
	for i := 0; i < n; i++ {
		_, err := f.access.Record(context.Background(), linkID, access.ViewerContext{IPAddress: "10.0.0.1"})
		require.NoError(t, err)
	}
}

func (f *analyticsFixture) redeem(t *testing.T, code string, qty int) {
	_, err := f.redemption.Redeem(context.Background(), code, nil, []redemption.CartItem{
		{TicketTypeID: f.tt.TicketTypeID, Quantity: qty},
	}, nil)
	require.NoError(t, err)
}

func intPtr(v int) *int { return &v }

func TestHoldAnalytics_AggregatesUtilizationAndFunnel(t *testing.T) {
	f := setupAnalyticsTest(t)
	a := f.mustLink(t, links.CreateLinkInput{QuantityMode: models.LinkQuantityUnlimited})
	b := f.mustLink(t, links.CreateLinkInput{QuantityMode: models.LinkQuantityFixed, QuantityLimit: intPtr(2)})

	f.recordViews(t, a.LinkID, 3)
	f.recordViews(t, b.LinkID, 1)
	f.redeem(t, a.Code, 3)
	f.redeem(t, b.Code, 2)

	stats, err := f.svc.HoldAnalytics(context.Background(), f.hold.HoldID)
	require.NoError(t, err)

	assert.Equal(t, models.HoldStatusActive, stats.Status)
	require.Len(t, stats.Allocations, 1)
	assert.Equal(t, 5, stats.Allocations[0].PurchasedQuantity)
	assert.Equal(t, 5, stats.Allocations[0].Remaining)
	assert.InDelta(t, 50.0, stats.UtilizationRate, 0.001)

	// The fixed link is fully redeemed and derives EXHAUSTED.
	assert.Equal(t, 1, stats.LinksByStatus["ACTIVE"])
	assert.Equal(t, 1, stats.LinksByStatus["EXHAUSTED"])

	assert.Equal(t, int64(4), stats.TotalAccesses)
	assert.Equal(t, int64(2), stats.TotalPurchases)
	assert.InDelta(t, 50.0, stats.ConversionRate, 0.001)
}

func TestHoldAnalytics_ZeroPurchasesZeroDivision(t *testing.T) {
	f := setupAnalyticsTest(t)
	link := f.mustLink(t, links.CreateLinkInput{QuantityMode: models.LinkQuantityUnlimited})
	f.recordViews(t, link.LinkID, 13)

	stats, err := f.svc.HoldAnalytics(context.Background(), f.hold.HoldID)
	require.NoError(t, err)

	assert.Equal(t, int64(13), stats.TotalAccesses)
	assert.Equal(t, int64(0), stats.TotalPurchases)
	assert.Equal(t, 0.0, stats.ConversionRate)
}

func TestHoldAnalytics_NoLinksNoAccesses(t *testing.T) {
	f := setupAnalyticsTest(t)

	stats, err := f.svc.HoldAnalytics(context.Background(), f.hold.HoldID)
	require.NoError(t, err)

	assert.Equal(t, int64(0), stats.TotalAccesses)
	assert.Equal(t, 0.0, stats.ConversionRate)
	assert.Equal(t, 0.0, stats.UtilizationRate)
	assert.Equal(t, 0, stats.LinksByStatus["ACTIVE"])
}

func TestHoldAnalytics_UnknownHold(t *testing.T) {
	f := setupAnalyticsTest(t)

	_, err := f.svc.HoldAnalytics(context.Background(), uuid.New())
	assert.ErrorIs(t, err, holds.ErrHoldNotFound)
}

func TestTopPerformingLinks_OrderAndLimit(t *testing.T) {
	f := setupAnalyticsTest(t)
	quiet := f.mustLink(t, links.CreateLinkInput{QuantityMode: models.LinkQuantityUnlimited})
	busy := f.mustLink(t, links.CreateLinkInput{QuantityMode: models.LinkQuantityUnlimited})
	viewed := f.mustLink(t, links.CreateLinkInput{QuantityMode: models.LinkQuantityUnlimited})

	f.recordViews(t, busy.LinkID, 2)
	f.redeem(t, busy.Code, 1)
	f.redeem(t, busy.Code, 1)
	f.recordViews(t, viewed.LinkID, 5)

	top, err := f.svc.TopPerformingLinks(context.Background(), f.hold.HoldID, 0)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, busy.LinkID, top[0].LinkID)
	assert.Equal(t, viewed.LinkID, top[1].LinkID)
	assert.Equal(t, quiet.LinkID, top[2].LinkID)
	assert.Equal(t, int64(2), top[0].Purchases)
	assert.InDelta(t, 100.0, top[0].ConversionRate, 0.001)

	limited, err := f.svc.TopPerformingLinks(context.Background(), f.hold.HoldID, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, busy.LinkID, limited[0].LinkID)
}
