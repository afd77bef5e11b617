package analytics

import (
	"context"
	"sort"
	"time"

	"tixhold-backend/internal/access"
	"tixhold-backend/internal/holds"
	"tixhold-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AllocationStats is the sell-through of one ticket type within a hold.
type AllocationStats struct {
	AllocationID      uuid.UUID `json:"allocation_id"`
	TicketTypeID      uuid.UUID `json:"ticket_type_id"`
	AllocatedQuantity int       `json:"allocated_quantity"`
	PurchasedQuantity int       `json:"purchased_quantity"`
	Remaining         int       `json:"remaining"`
	UtilizationRate   float64   `json:"utilization_rate"`
}

// HoldAnalytics aggregates a hold's sell-through, its link funnel, and the
// view-to-purchase conversion across all of its links.
type HoldAnalytics struct {
	HoldID          uuid.UUID             `json:"hold_id"`
	Status          models.HoldStatus     `json:"status"`
	Allocations     []AllocationStats     `json:"allocations"`
	UtilizationRate float64               `json:"utilization_rate"`
	LinksByStatus   map[string]int        `json:"links_by_status"`
	TotalAccesses   int64                 `json:"total_accesses"`
	TotalPurchases  int64                 `json:"total_purchases"`
	ConversionRate  float64               `json:"conversion_rate"`
}

// LinkPerformance ranks one link by the business it brought in.
type LinkPerformance struct {
	LinkID            uuid.UUID         `json:"link_id"`
	Name              *string           `json:"name"`
	Status            models.LinkStatus `json:"status"`
	QuantityPurchased int               `json:"quantity_purchased"`
	Purchases         int64             `json:"purchases"`
	Accesses          int64             `json:"accesses"`
	ConversionRate    float64           `json:"conversion_rate"`
}

// Service computes hold analytics from the stored facts at read time.
// Nothing here is cached or pre-aggregated; the counters it reads are the
// same ones the redemption transaction keeps consistent.
type Service struct {
	DB     *gorm.DB
	Holds  *holds.Service
	Access *access.Service
}

func (s *Service) HoldAnalytics(ctx context.Context, holdID uuid.UUID) (*HoldAnalytics, error) {
	hold, allocations, err := s.Holds.Get(ctx, holdID)
	if err != nil {
		return nil, err
	}
	now := time.Now()

	out := &HoldAnalytics{
		HoldID: hold.HoldID,
		Status: hold.StatusAt(now, allocations),
		LinksByStatus: map[string]int{
			string(models.LinkStatusActive):    0,
			string(models.LinkStatusExpired):   0,
			string(models.LinkStatusRevoked):   0,
			string(models.LinkStatusExhausted): 0,
		},
	}

	totalAllocated, totalPurchased := 0, 0
	for i := range allocations {
		a := &allocations[i]
		rate := 0.0
		if a.AllocatedQuantity > 0 {
			rate = float64(a.PurchasedQuantity) / float64(a.AllocatedQuantity) * 100
		}
		out.Allocations = append(out.Allocations, AllocationStats{
			AllocationID:      a.AllocationID,
			TicketTypeID:      a.TicketTypeID,
			AllocatedQuantity: a.AllocatedQuantity,
			PurchasedQuantity: a.PurchasedQuantity,
			Remaining:         a.Remaining(),
			UtilizationRate:   rate,
		})
		totalAllocated += a.AllocatedQuantity
		totalPurchased += a.PurchasedQuantity
	}
	if totalAllocated > 0 {
		out.UtilizationRate = float64(totalPurchased) / float64(totalAllocated) * 100
	}

	var linkList []models.PurchaseLink
	if err := s.DB.WithContext(ctx).Where("hold_id = ?", holdID).Find(&linkList).Error; err != nil {
		return nil, err
	}
	linkIDs := make([]uuid.UUID, 0, len(linkList))
	for i := range linkList {
		out.LinksByStatus[string(linkList[i].StatusAt(now))]++
		linkIDs = append(linkIDs, linkList[i].LinkID)
	}

	if len(linkIDs) > 0 {
		if out.TotalAccesses, err = s.Access.CountByHold(ctx, holdID); err != nil {
			return nil, err
		}
		if err := s.DB.WithContext(ctx).Model(&models.PurchaseLinkPurchase{}).
			Where("link_id IN ?", linkIDs).Count(&out.TotalPurchases).Error; err != nil {
			return nil, err
		}
	}
	// Conversion is undefined without accesses; report 0 rather than NaN.
	if out.TotalAccesses > 0 {
		out.ConversionRate = float64(out.TotalPurchases) / float64(out.TotalAccesses) * 100
	}
	return out, nil
}

// TopPerformingLinks ranks a hold's links by purchases, then accesses, then
// age. Limit <= 0 means all links.
func (s *Service) TopPerformingLinks(ctx context.Context, holdID uuid.UUID, limit int) ([]LinkPerformance, error) {
	if _, _, err := s.Holds.Get(ctx, holdID); err != nil {
		return nil, err
	}

	var linkList []models.PurchaseLink
	if err := s.DB.WithContext(ctx).Where("hold_id = ?", holdID).Order("created_at asc").Find(&linkList).Error; err != nil {
		return nil, err
	}
	now := time.Now()

	perf := make([]LinkPerformance, 0, len(linkList))
	for i := range linkList {
		l := &linkList[i]
		accesses, err := s.Access.CountByLink(ctx, l.LinkID)
		if err != nil {
			return nil, err
		}
		var purchases int64
		if err := s.DB.WithContext(ctx).Model(&models.PurchaseLinkPurchase{}).
			Where("link_id = ?", l.LinkID).Count(&purchases).Error; err != nil {
			return nil, err
		}
		conversion := 0.0
		if accesses > 0 {
			conversion = float64(purchases) / float64(accesses) * 100
		}
		perf = append(perf, LinkPerformance{
			LinkID:            l.LinkID,
			Name:              l.Name,
			Status:            l.StatusAt(now),
			QuantityPurchased: l.QuantityPurchased,
			Purchases:         purchases,
			Accesses:          accesses,
			ConversionRate:    conversion,
		})
	}

	// Stable sort keeps the created_at order as the final tiebreak.
	sort.SliceStable(perf, func(i, j int) bool {
		if perf[i].Purchases != perf[j].Purchases {
			return perf[i].Purchases > perf[j].Purchases
		}
		return perf[i].Accesses > perf[j].Accesses
	})
	if limit > 0 && len(perf) > limit {
		perf = perf[:limit]
	}
	return perf, nil
}
