package claim

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/umeats/umeats/internal/model"
)

// --- テスト用モック ---

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
	return nil, nil
}

type mockItemRepo struct {
	items map[string]*model.Item
}

func newMockItemRepo() *mockItemRepo {
	return &mockItemRepo{items: make(map[string]*model.Item)}
}

func (m *mockItemRepo) add(item *model.Item) {
	copied := *item
	m.items[item.ID] = &copied
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
	for _, item := range items {
		m.add(item)
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

type mockClaimRepo struct {
	claims map[string]*model.Claim
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
	m.add(claim)
	return nil
}

func (m *mockClaimRepo) Update(_ context.Context, claim *model.Claim) error {
	if _, ok := m.claims[claim.ID]; !ok {
		return fmt.Errorf("claim not found: %s", claim.ID)
	}
	m.add(claim)
	return nil
}

func (m *mockClaimRepo) ListByListingID(_ context.Context, _ string) ([]*model.Claim, error) {
	return nil, nil
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

type mockOrgRepo struct {
	orgs map[string]*model.Organization
}

func newMockOrgRepo() *mockOrgRepo {
	return &mockOrgRepo{orgs: make(map[string]*model.Organization)}
}

func (m *mockOrgRepo) add(org *model.Organization) {
	copied := *org
	m.orgs[org.ID] = &copied
}

func (m *mockOrgRepo) FindByID(_ context.Context, id string) (*model.Organization, error) {
	org, ok := m.orgs[id]
	if !ok {
		return nil, nil
	}
	return org, nil
}

func (m *mockOrgRepo) FindByOwnerUserID(_ context.Context, userID string) (*model.Organization, error) {
	for _, org := range m.orgs {
		if org.OwnerUserID == userID {
			return org, nil
		}
	}
	return nil, nil
}

func (m *mockOrgRepo) Create(_ context.Context, org *model.Organization) error {
	m.add(org)
	return nil
}

func (m *mockOrgRepo) AddDonationResult(_ context.Context, orgID string, impactPoints float64) error {
	org, ok := m.orgs[orgID]
	if !ok {
		return fmt.Errorf("organization not found: %s", orgID)
	}
	org.TotalDonations++
	org.TotalImpactPoints += impactPoints
	return nil
}

func (m *mockOrgRepo) ListRanking(_ context.Context, _ int) ([]*model.Organization, error) {
	return nil, nil
}

// --- テスト用ヘルパー ---

type fixture struct {
	repos    txRepos
	listings *mockListingRepo
	items    *mockItemRepo
	claims   *mockClaimRepo
	orgs     *mockOrgRepo
}

func newFixture() *fixture {
	listings := newMockListingRepo()
	items := newMockItemRepo()
	claims := newMockClaimRepo()
	orgs := newMockOrgRepo()
	return &fixture{
		repos:    txRepos{listings: listings, items: items, claims: claims, orgs: orgs},
		listings: listings,
		items:    items,
		claims:   claims,
		orgs:     orgs,
	}
}

// setupListing は受付中のリスティングと受け取り可能アイテムを用意する。
func (f *fixture) setupListing(listingID string, quantity int) {
	now := time.Now()
	f.orgs.add(&model.Organization{
		ID:          "org-1",
		OwnerUserID: "owner-1",
		Name:        "学食サークル",
	})
	f.listings.add(&model.Listing{
		ID:             listingID,
		OrganizationID: "org-1",
		Title:          "余剰弁当",
		Quantity:       quantity,
		Unit:           "boxes",
		AvailableFrom:  now.Add(-time.Hour),
		AvailableUntil: now.Add(time.Hour),
		Status:         model.ListingStatusActive,
	})
	for i := 1; i <= quantity; i++ {
		f.items.add(&model.Item{
			ID:         fmt.Sprintf("item-%d", i),
			ListingID:  listingID,
			ItemNumber: i,
			Status:     model.ItemStatusAvailable,
		})
	}
}

func assertAPIError(t *testing.T, err error, wantCode string) {
	t.Helper()
	if err == nil {
		t.Fatalf("エラーが返されるべきですが nil でした (want code %s)", wantCode)
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("APIErrorが返されるべきですが %T でした: %v", err, err)
	}
	if apiErr.Code != wantCode {
		t.Errorf("エラーコードが %s であるべきですが %s でした", wantCode, apiErr.Code)
	}
}

// --- ClaimItem ---

func TestClaimItem(t *testing.T) {
	f := newFixture()
	f.setupListing("listing-1", 3)
	ctx := context.Background()

	claim, err := claimItem(ctx, f.repos, "student-1", "listing-1", 10)
	if err != nil {
		t.Fatalf("claimItemが失敗しました: %v", err)
	}

	if claim.Status != model.ClaimStatusPending {
		t.Errorf("クレーム状態がpendingであるべきですが %s でした", claim.Status)
	}
	if claim.Quantity != 1 {
		t.Errorf("数量が1であるべきですが %d でした", claim.Quantity)
	}
	if claim.ItemID == nil || *claim.ItemID != "item-1" {
		t.Errorf("番号最小のitem-1が割り当てられるべきですが %v でした", claim.ItemID)
	}
	if claim.EstimatedImpactPoints == nil || *claim.EstimatedImpactPoints != 10 {
		t.Errorf("見積もりポイントが10であるべきですが %v でした", claim.EstimatedImpactPoints)
	}

	item := f.items.items["item-1"]
	if item.Status != model.ItemStatusClaimed {
		t.Errorf("アイテム状態がclaimedであるべきですが %s でした", item.Status)
	}
}

func TestClaimItemAssignsInNumberOrder(t *testing.T) {
	f := newFixture()
	f.setupListing("listing-1", 2)
	ctx := context.Background()

	first, err := claimItem(ctx, f.repos, "student-1", "listing-1", 10)
	if err != nil {
		t.Fatalf("1件目のclaimItemが失敗しました: %v", err)
	}
	second, err := claimItem(ctx, f.repos, "student-2", "listing-1", 10)
	if err != nil {
		t.Fatalf("2件目のclaimItemが失敗しました: %v", err)
	}

	if *first.ItemID != "item-1" || *second.ItemID != "item-2" {
		t.Errorf("item_number昇順に割り当てられるべきですが %s, %s でした", *first.ItemID, *second.ItemID)
	}

	// 3件目は割り当て可能なアイテムがない
	_, err = claimItem(ctx, f.repos, "student-3", "listing-1", 10)
	assertAPIError(t, err, model.ErrCodeItemNotAvailable)
}

func TestClaimItemListingNotFound(t *testing.T) {
	f := newFixture()
	_, err := claimItem(context.Background(), f.repos, "student-1", "missing", 10)
	assertAPIError(t, err, model.ErrCodeListingNotFound)
}

func TestClaimItemListingNotActive(t *testing.T) {
	f := newFixture()
	f.setupListing("listing-1", 1)
	listing := f.listings.listings["listing-1"]
	listing.Status = model.ListingStatusCancelled

	_, err := claimItem(context.Background(), f.repos, "student-1", "listing-1", 10)
	assertAPIError(t, err, model.ErrCodeListingNotActive)
}

func TestClaimItemOutsideWindow(t *testing.T) {
	f := newFixture()
	f.setupListing("listing-1", 1)
	listing := f.listings.listings["listing-1"]
	listing.AvailableUntil = time.Now().Add(-time.Minute)

	_, err := claimItem(context.Background(), f.repos, "student-1", "listing-1", 10)
	assertAPIError(t, err, model.ErrCodeListingNotActive)
}

// --- Collect ---

func TestCollectByClaimOwner(t *testing.T) {
	f := newFixture()
	f.setupListing("listing-1", 1)
	ctx := context.Background()

	claim, err := claimItem(ctx, f.repos, "student-1", "listing-1", 10)
	if err != nil {
		t.Fatalf("claimItemが失敗しました: %v", err)
	}

	collected, err := collect(ctx, f.repos, "student-1", claim.ID)
	if err != nil {
		t.Fatalf("collectが失敗しました: %v", err)
	}

	if collected.Status != model.ClaimStatusCollected {
		t.Errorf("クレーム状態がcollectedであるべきですが %s でした", collected.Status)
	}
	if collected.CollectedAt == nil {
		t.Error("collected_atが設定されるべきです")
	}
	if collected.ActualImpactPoints == nil || *collected.ActualImpactPoints != 10 {
		t.Errorf("実績ポイントが見積もり値10で確定するべきですが %v でした", collected.ActualImpactPoints)
	}

	if f.items.items["item-1"].Status != model.ItemStatusCollected {
		t.Errorf("アイテム状態がcollectedであるべきですが %s でした", f.items.items["item-1"].Status)
	}

	org := f.orgs.orgs["org-1"]
	if org.TotalDonations != 1 {
		t.Errorf("total_donationsが1であるべきですが %d でした", org.TotalDonations)
	}
	if org.TotalImpactPoints != 10 {
		t.Errorf("total_impact_pointsが10であるべきですが %v でした", org.TotalImpactPoints)
	}
}

func TestCollectByOrganizationOwner(t *testing.T) {
	f := newFixture()
	f.setupListing("listing-1", 1)
	ctx := context.Background()

	claim, err := claimItem(ctx, f.repos, "student-1", "listing-1", 10)
	if err != nil {
		t.Fatalf("claimItemが失敗しました: %v", err)
	}

	// 提供団体の担当者も受け渡し完了を記録できる
	if _, err := collect(ctx, f.repos, "owner-1", claim.ID); err != nil {
		t.Fatalf("団体担当者によるcollectが失敗しました: %v", err)
	}
}

func TestCollectByStrangerIsNotFound(t *testing.T) {
	f := newFixture()
	f.setupListing("listing-1", 1)
	ctx := context.Background()

	claim, err := claimItem(ctx, f.repos, "student-1", "listing-1", 10)
	if err != nil {
		t.Fatalf("claimItemが失敗しました: %v", err)
	}

	// 無関係なユーザーにはクレームの存在を漏らさない
	_, err = collect(ctx, f.repos, "student-2", claim.ID)
	assertAPIError(t, err, model.ErrCodeClaimNotFound)
}

func TestCollectNotPending(t *testing.T) {
	f := newFixture()
	f.setupListing("listing-1", 1)
	ctx := context.Background()

	claim, err := claimItem(ctx, f.repos, "student-1", "listing-1", 10)
	if err != nil {
		t.Fatalf("claimItemが失敗しました: %v", err)
	}
	if _, err := collect(ctx, f.repos, "student-1", claim.ID); err != nil {
		t.Fatalf("1回目のcollectが失敗しました: %v", err)
	}

	_, err = collect(ctx, f.repos, "student-1", claim.ID)
	assertAPIError(t, err, model.ErrCodeClaimNotPending)
}

func TestCollectLegacyClaimWithoutEstimate(t *testing.T) {
	f := newFixture()
	f.setupListing("listing-1", 1)
	ctx := context.Background()

	// 見積もり未設定のレガシークレーム
	f.claims.add(&model.Claim{
		ID:        "claim-legacy",
		UserID:    "student-1",
		ListingID: "listing-1",
		Quantity:  2,
		Status:    model.ClaimStatusPending,
		ClaimedAt: time.Now(),
	})

	collected, err := collect(ctx, f.repos, "student-1", "claim-legacy")
	if err != nil {
		t.Fatalf("collectが失敗しました: %v", err)
	}
	if collected.ActualImpactPoints != nil {
		t.Errorf("見積もりのないクレームの実績はnilのままであるべきですが %v でした", *collected.ActualImpactPoints)
	}

	// ポイント0として加算される
	if f.orgs.orgs["org-1"].TotalDonations != 1 {
		t.Errorf("total_donationsが1であるべきですが %d でした", f.orgs.orgs["org-1"].TotalDonations)
	}
	if f.orgs.orgs["org-1"].TotalImpactPoints != 0 {
		t.Errorf("total_impact_pointsが0であるべきですが %v でした", f.orgs.orgs["org-1"].TotalImpactPoints)
	}
}

// --- Cancel ---

func TestCancel(t *testing.T) {
	f := newFixture()
	f.setupListing("listing-1", 1)
	ctx := context.Background()

	claim, err := claimItem(ctx, f.repos, "student-1", "listing-1", 10)
	if err != nil {
		t.Fatalf("claimItemが失敗しました: %v", err)
	}

	if err := cancel(ctx, f.repos, "student-1", claim.ID); err != nil {
		t.Fatalf("cancelが失敗しました: %v", err)
	}

	if f.claims.claims[claim.ID].Status != model.ClaimStatusCancelled {
		t.Errorf("クレーム状態がcancelledであるべきですが %s でした", f.claims.claims[claim.ID].Status)
	}

	// アイテムは受け取り可能に戻り、再クレームできる
	if f.items.items["item-1"].Status != model.ItemStatusAvailable {
		t.Errorf("アイテム状態がavailableに戻るべきですが %s でした", f.items.items["item-1"].Status)
	}
	reclaimed, err := claimItem(ctx, f.repos, "student-2", "listing-1", 10)
	if err != nil {
		t.Fatalf("キャンセル後の再クレームが失敗しました: %v", err)
	}
	if *reclaimed.ItemID != "item-1" {
		t.Errorf("解放されたitem-1が再割り当てされるべきですが %s でした", *reclaimed.ItemID)
	}
}

func TestCancelByNonOwner(t *testing.T) {
	f := newFixture()
	f.setupListing("listing-1", 1)
	ctx := context.Background()

	claim, err := claimItem(ctx, f.repos, "student-1", "listing-1", 10)
	if err != nil {
		t.Fatalf("claimItemが失敗しました: %v", err)
	}

	// 団体担当者であってもキャンセルはできない
	err = cancel(ctx, f.repos, "owner-1", claim.ID)
	assertAPIError(t, err, model.ErrCodeClaimNotFound)
}

func TestCancelNotPending(t *testing.T) {
	f := newFixture()
	f.setupListing("listing-1", 1)
	ctx := context.Background()

	claim, err := claimItem(ctx, f.repos, "student-1", "listing-1", 10)
	if err != nil {
		t.Fatalf("claimItemが失敗しました: %v", err)
	}
	if _, err := collect(ctx, f.repos, "student-1", claim.ID); err != nil {
		t.Fatalf("collectが失敗しました: %v", err)
	}

	err = cancel(ctx, f.repos, "student-1", claim.ID)
	assertAPIError(t, err, model.ErrCodeClaimNotPending)
}
