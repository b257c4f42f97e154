package allocation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/umeats/umeats/internal/model"
)

// --- テスト用モック ---

// mockItemRepo はテスト用のItemRepositoryモック。
type mockItemRepo struct {
	items            map[string]*model.Item // id -> item
	createBatchCalls int
	failCreateBatch  bool
}

func newMockItemRepo() *mockItemRepo {
	return &mockItemRepo{items: make(map[string]*model.Item)}
}

func (m *mockItemRepo) CountByListingID(_ context.Context, listingID string) (int, error) {
	count := 0
	for _, item := range m.items {
		if item.ListingID == listingID {
			count++
		}
	}
	return count, nil
}

func (m *mockItemRepo) CreateBatch(_ context.Context, items []*model.Item) error {
	m.createBatchCalls++
	if m.failCreateBatch {
		return fmt.Errorf("insert failed")
	}
	for _, item := range items {
		copied := *item
		m.items[item.ID] = &copied
	}
	return nil
}

func (m *mockItemRepo) ListByListingID(_ context.Context, listingID string) ([]*model.Item, error) {
	var items []*model.Item
	for _, item := range m.items {
		if item.ListingID == listingID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ItemNumber < items[j].ItemNumber })
	return items, nil
}

func (m *mockItemRepo) UpdateStatus(_ context.Context, itemID string, status model.ItemStatus) error {
	item, ok := m.items[itemID]
	if !ok {
		return fmt.Errorf("item not found: %s", itemID)
	}
	item.Status = status
	return nil
}

func (m *mockItemRepo) FindNextAvailableForUpdate(_ context.Context, listingID string) (*model.Item, error) {
	items, _ := m.ListByListingID(context.Background(), listingID)
	for _, item := range items {
		if item.Status == model.ItemStatusAvailable {
			return item, nil
		}
	}
	return nil, nil
}

// mockClaimRepo はテスト用のClaimRepositoryモック。
type mockClaimRepo struct {
	claims      map[string]*model.Claim
	createCalls int
	updateCalls int
}

func newMockClaimRepo() *mockClaimRepo {
	return &mockClaimRepo{claims: make(map[string]*model.Claim)}
}

func (m *mockClaimRepo) add(claim *model.Claim) {
	copied := *claim
	m.claims[claim.ID] = &copied
}

func (m *mockClaimRepo) FindByID(_ context.Context, id string) (*model.Claim, error) {
	claim, ok := m.claims[id]
	if !ok {
		return nil, nil
	}
	return claim, nil
}

func (m *mockClaimRepo) Create(_ context.Context, claim *model.Claim) error {
	m.createCalls++
	copied := *claim
	m.claims[claim.ID] = &copied
	return nil
}

func (m *mockClaimRepo) Update(_ context.Context, claim *model.Claim) error {
	m.updateCalls++
	if _, ok := m.claims[claim.ID]; !ok {
		return fmt.Errorf("claim not found: %s", claim.ID)
	}
	copied := *claim
	m.claims[claim.ID] = &copied
	return nil
}

func (m *mockClaimRepo) ListByListingID(_ context.Context, listingID string) ([]*model.Claim, error) {
	var claims []*model.Claim
	for _, claim := range m.claims {
		if claim.ListingID == listingID {
			claims = append(claims, claim)
		}
	}
	sort.Slice(claims, func(i, j int) bool {
		if !claims[i].ClaimedAt.Equal(claims[j].ClaimedAt) {
			return claims[i].ClaimedAt.Before(claims[j].ClaimedAt)
		}
		return claims[i].ID < claims[j].ID
	})
	return claims, nil
}

func (m *mockClaimRepo) ListByUserID(_ context.Context, userID string) ([]*model.Claim, error) {
	var claims []*model.Claim
	for _, claim := range m.claims {
		if claim.UserID == userID {
			claims = append(claims, claim)
		}
	}
	return claims, nil
}

func (m *mockClaimRepo) CountPendingByListingID(_ context.Context, listingID string) (int, error) {
	count := 0
	for _, claim := range m.claims {
		if claim.ListingID == listingID && claim.Status == model.ClaimStatusPending {
			count++
		}
	}
	return count, nil
}

// sumPoints は指定リスティングの全クレームのインパクトポイント合計を返す。
// 保存則の検証に使用する。
func (m *mockClaimRepo) sumPoints(listingID string) (estimated, actual float64) {
	for _, claim := range m.claims {
		if claim.ListingID != listingID {
			continue
		}
		if claim.EstimatedImpactPoints != nil {
			estimated += *claim.EstimatedImpactPoints
		}
		if claim.ActualImpactPoints != nil {
			actual += *claim.ActualImpactPoints
		}
	}
	return estimated, actual
}

// mockListingRepo はテスト用のListingRepositoryモック。
type mockListingRepo struct {
	listings map[string]*model.Listing
}

func newMockListingRepo() *mockListingRepo {
	return &mockListingRepo{listings: make(map[string]*model.Listing)}
}

func (m *mockListingRepo) add(listing *model.Listing) {
	copied := *listing
	m.listings[listing.ID] = &copied
}

func (m *mockListingRepo) FindByID(_ context.Context, id string) (*model.Listing, error) {
	listing, ok := m.listings[id]
	if !ok {
		return nil, nil
	}
	return listing, nil
}

func (m *mockListingRepo) Create(_ context.Context, listing *model.Listing) error {
	m.add(listing)
	return nil
}

func (m *mockListingRepo) Update(_ context.Context, listing *model.Listing) error {
	m.add(listing)
	return nil
}

func (m *mockListingRepo) ListActive(_ context.Context, _ time.Time) ([]model.ListingWithRemaining, error) {
	return nil, nil
}

func (m *mockListingRepo) ListAllIDs(_ context.Context) ([]string, error) {
	var ids []string
	for id := range m.listings {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// --- テスト用ヘルパー ---

func testListing(id string, quantity int) *model.Listing {
	now := time.Date(2025, 10, 1, 9, 0, 0, 0, time.UTC)
	return &model.Listing{
		ID:             id,
		OrganizationID: "org-1",
		Title:          "余剰弁当",
		Quantity:       quantity,
		Unit:           "boxes",
		AvailableFrom:  now,
		AvailableUntil: now.Add(6 * time.Hour),
		Status:         model.ListingStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func legacyClaim(id, listingID string, quantity int, claimedAt time.Time) *model.Claim {
	return &model.Claim{
		ID:        id,
		UserID:    "user-" + id,
		ListingID: listingID,
		Quantity:  quantity,
		Status:    model.ClaimStatusPending,
		ClaimedAt: claimedAt,
		CreatedAt: claimedAt,
		UpdatedAt: claimedAt,
	}
}

func floatPtr(v float64) *float64 { return &v }
