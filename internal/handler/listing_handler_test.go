package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/umeats/umeats/internal/listing"
	"github.com/umeats/umeats/internal/middleware"
	"github.com/umeats/umeats/internal/model"
)

// --- モック定義 ---

// mockListingService はListingServiceInterfaceのモック実装。
type mockListingService struct {
	createFn     func(ctx context.Context, userID string, input listing.CreateInput) (*model.Listing, error)
	listActiveFn func(ctx context.Context) ([]model.ListingWithRemaining, error)
	getFn        func(ctx context.Context, listingID string) (*listing.ListingDetail, error)
	updateFn     func(ctx context.Context, userID, listingID string, input listing.UpdateInput) (*model.Listing, error)
	cancelFn     func(ctx context.Context, userID, listingID string) error
}

func (m *mockListingService) Create(ctx context.Context, userID string, input listing.CreateInput) (*model.Listing, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, input)
	}
	return nil, nil
}

func (m *mockListingService) ListActive(ctx context.Context) ([]model.ListingWithRemaining, error) {
	if m.listActiveFn != nil {
		return m.listActiveFn(ctx)
	}
	return nil, nil
}

func (m *mockListingService) Get(ctx context.Context, listingID string) (*listing.ListingDetail, error) {
	if m.getFn != nil {
		return m.getFn(ctx, listingID)
	}
	return nil, nil
}

func (m *mockListingService) Update(ctx context.Context, userID, listingID string, input listing.UpdateInput) (*model.Listing, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, userID, listingID, input)
	}
	return nil, nil
}

func (m *mockListingService) Cancel(ctx context.Context, userID, listingID string) error {
	if m.cancelFn != nil {
		return m.cancelFn(ctx, userID, listingID)
	}
	return nil
}

// --- テストヘルパー ---

// withUserID はテスト用にリクエストコンテキストにユーザーIDを注入するヘルパー。
func withUserID(r *http.Request, userID string) *http.Request {
	ctx := middleware.ContextWithUserID(r.Context(), userID)
	return r.WithContext(ctx)
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

// testListing はテスト用のリスティングを返す。
func testListing() *model.Listing {
	return &model.Listing{
		ID:             "listing-1",
		OrganizationID: "org-1",
		Title:          "余剰弁当",
		Description:    "<p>学食の余剰弁当です</p>",
		Quantity:       5,
		Unit:           "boxes",
		AvailableFrom:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		AvailableUntil: time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC),
		Status:         model.ListingStatusActive,
	}
}

// --- POST /api/listings テスト ---

func TestListingHandler_CreateListing_Success(t *testing.T) {
	svc := &mockListingService{
		createFn: func(ctx context.Context, userID string, input listing.CreateInput) (*model.Listing, error) {
			if userID != "user-123" {
				t.Errorf("userID = %q, want %q", userID, "user-123")
			}
			if input.Title != "余剰弁当" {
				t.Errorf("title = %q, want %q", input.Title, "余剰弁当")
			}
			if input.Quantity != 5 {
				t.Errorf("quantity = %d, want %d", input.Quantity, 5)
			}
			return testListing(), nil
		},
	}

	h := NewListingHandler(svc)

	body := `{"title": "余剰弁当", "description": "<p>学食の余剰弁当です</p>", "quantity": 5, "unit": "boxes", "available_from": "2026-03-01T12:00:00Z", "available_until": "2026-03-01T18:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/api/listings", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req = withUserID(req, "user-123")
	w := httptest.NewRecorder()

	h.CreateListing(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if result["id"] != "listing-1" {
		t.Errorf("id = %v, want %q", result["id"], "listing-1")
	}
	if result["status"] != "active" {
		t.Errorf("status = %v, want %q", result["status"], "active")
	}
	if result["quantity"] != float64(5) {
		t.Errorf("quantity = %v, want %v", result["quantity"], 5)
	}
}

func TestListingHandler_CreateListing_InvalidJSON_ReturnsBadRequest(t *testing.T) {
	h := NewListingHandler(&mockListingService{})

	body := `{invalid json`
	req := httptest.NewRequest(http.MethodPost, "/api/listings", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req = withUserID(req, "user-123")
	w := httptest.NewRecorder()

	h.CreateListing(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestListingHandler_CreateListing_NoUserID_ReturnsUnauthorized(t *testing.T) {
	h := NewListingHandler(&mockListingService{})

	body := `{"title": "余剰弁当", "quantity": 5}`
	req := httptest.NewRequest(http.MethodPost, "/api/listings", bytes.NewBufferString(body))
	w := httptest.NewRecorder()

	h.CreateListing(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestListingHandler_CreateListing_NotOrganization_ReturnsForbidden(t *testing.T) {
	svc := &mockListingService{
		createFn: func(ctx context.Context, userID string, input listing.CreateInput) (*model.Listing, error) {
			return nil, model.NewForbiddenRoleError(model.RoleOrganization)
		},
	}

	h := NewListingHandler(svc)

	body := `{"title": "余剰弁当", "quantity": 5, "unit": "boxes", "available_from": "2026-03-01T12:00:00Z", "available_until": "2026-03-01T18:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/api/listings", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req = withUserID(req, "user-123")
	w := httptest.NewRecorder()

	h.CreateListing(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}

	errResp := parseAPIErrorResponse(t, w)
	if errResp["code"] != model.ErrCodeForbiddenRole {
		t.Errorf("code = %q, want %q", errResp["code"], model.ErrCodeForbiddenRole)
	}
}

func TestListingHandler_CreateListing_InvalidQuantity_ReturnsBadRequest(t *testing.T) {
	svc := &mockListingService{
		createFn: func(ctx context.Context, userID string, input listing.CreateInput) (*model.Listing, error) {
			return nil, model.NewInvalidQuantityError("", 0)
		},
	}

	h := NewListingHandler(svc)

	body := `{"title": "余剰弁当", "quantity": 0, "unit": "boxes", "available_from": "2026-03-01T12:00:00Z", "available_until": "2026-03-01T18:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/api/listings", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req = withUserID(req, "user-123")
	w := httptest.NewRecorder()

	h.CreateListing(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	errResp := parseAPIErrorResponse(t, w)
	if errResp["code"] != model.ErrCodeInvalidQuantity {
		t.Errorf("code = %q, want %q", errResp["code"], model.ErrCodeInvalidQuantity)
	}
}

// --- GET /api/listings テスト ---

func TestListingHandler_ListListings_ReturnsRemainingItems(t *testing.T) {
	svc := &mockListingService{
		listActiveFn: func(ctx context.Context) ([]model.ListingWithRemaining, error) {
			return []model.ListingWithRemaining{
				{Listing: *testListing(), RemainingItems: 3},
			}, nil
		},
	}

	h := NewListingHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/listings", nil)
	w := httptest.NewRecorder()

	h.ListListings(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var result []map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if len(result) != 1 {
		t.Fatalf("len(result) = %d, want 1", len(result))
	}
	if result[0]["remaining_items"] != float64(3) {
		t.Errorf("remaining_items = %v, want %v", result[0]["remaining_items"], 3)
	}
}

func TestListingHandler_ListListings_Empty_ReturnsEmptyArray(t *testing.T) {
	svc := &mockListingService{
		listActiveFn: func(ctx context.Context) ([]model.ListingWithRemaining, error) {
			return nil, nil
		},
	}

	h := NewListingHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/listings", nil)
	w := httptest.NewRecorder()

	h.ListListings(w, req)

	body := w.Body.String()
	if body != "[]\n" {
		t.Errorf("body = %q, want %q", body, "[]\n")
	}
}

// --- GET /api/listings/{id} テスト ---

func TestListingHandler_GetListing_ReturnsItems(t *testing.T) {
	svc := &mockListingService{
		getFn: func(ctx context.Context, listingID string) (*listing.ListingDetail, error) {
			if listingID != "listing-1" {
				t.Errorf("listingID = %q, want %q", listingID, "listing-1")
			}
			return &listing.ListingDetail{
				Listing: *testListing(),
				Items: []*model.Item{
					{ID: "item-1", ListingID: "listing-1", ItemNumber: 1, Status: model.ItemStatusClaimed},
					{ID: "item-2", ListingID: "listing-1", ItemNumber: 2, Status: model.ItemStatusAvailable},
				},
			}, nil
		},
	}

	h := NewListingHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/listings/listing-1", nil)
	req = withChiURLParam(req, "id", "listing-1")
	w := httptest.NewRecorder()

	h.GetListing(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var result struct {
		ID    string `json:"id"`
		Items []struct {
			ID         string `json:"id"`
			ItemNumber int    `json:"item_number"`
			Status     string `json:"status"`
		} `json:"items"`
	}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if result.ID != "listing-1" {
		t.Errorf("id = %q, want %q", result.ID, "listing-1")
	}
	if len(result.Items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(result.Items))
	}
	if result.Items[0].ItemNumber != 1 || result.Items[0].Status != "claimed" {
		t.Errorf("items[0] = %+v, want item_number=1 status=claimed", result.Items[0])
	}
}

func TestListingHandler_GetListing_NotFound(t *testing.T) {
	svc := &mockListingService{
		getFn: func(ctx context.Context, listingID string) (*listing.ListingDetail, error) {
			return nil, model.NewListingNotFoundError(listingID)
		},
	}

	h := NewListingHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/listings/nope", nil)
	req = withChiURLParam(req, "id", "nope")
	w := httptest.NewRecorder()

	h.GetListing(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}

	errResp := parseAPIErrorResponse(t, w)
	if errResp["code"] != model.ErrCodeListingNotFound {
		t.Errorf("code = %q, want %q", errResp["code"], model.ErrCodeListingNotFound)
	}
}

// --- PATCH /api/listings/{id} テスト ---

func TestListingHandler_UpdateListing_Success(t *testing.T) {
	svc := &mockListingService{
		updateFn: func(ctx context.Context, userID, listingID string, input listing.UpdateInput) (*model.Listing, error) {
			if userID != "user-123" {
				t.Errorf("userID = %q, want %q", userID, "user-123")
			}
			if listingID != "listing-1" {
				t.Errorf("listingID = %q, want %q", listingID, "listing-1")
			}
			updated := testListing()
			updated.Title = input.Title
			return updated, nil
		},
	}

	h := NewListingHandler(svc)

	body := `{"title": "更新後タイトル", "available_from": "2026-03-01T12:00:00Z", "available_until": "2026-03-01T18:00:00Z"}`
	req := httptest.NewRequest(http.MethodPatch, "/api/listings/listing-1", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req = withUserID(req, "user-123")
	req = withChiURLParam(req, "id", "listing-1")
	w := httptest.NewRecorder()

	h.UpdateListing(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result["title"] != "更新後タイトル" {
		t.Errorf("title = %v, want %q", result["title"], "更新後タイトル")
	}
}

func TestListingHandler_UpdateListing_NotOwner_ReturnsForbidden(t *testing.T) {
	svc := &mockListingService{
		updateFn: func(ctx context.Context, userID, listingID string, input listing.UpdateInput) (*model.Listing, error) {
			return nil, model.NewNotListingOwnerError()
		},
	}

	h := NewListingHandler(svc)

	body := `{"title": "x", "available_from": "2026-03-01T12:00:00Z", "available_until": "2026-03-01T18:00:00Z"}`
	req := httptest.NewRequest(http.MethodPatch, "/api/listings/listing-1", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req = withUserID(req, "other-user")
	req = withChiURLParam(req, "id", "listing-1")
	w := httptest.NewRecorder()

	h.UpdateListing(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}

	errResp := parseAPIErrorResponse(t, w)
	if errResp["code"] != model.ErrCodeNotListingOwner {
		t.Errorf("code = %q, want %q", errResp["code"], model.ErrCodeNotListingOwner)
	}
}

// --- DELETE /api/listings/{id} テスト ---

func TestListingHandler_CancelListing_Success(t *testing.T) {
	var gotListingID string
	svc := &mockListingService{
		cancelFn: func(ctx context.Context, userID, listingID string) error {
			gotListingID = listingID
			return nil
		},
	}

	h := NewListingHandler(svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/listings/listing-1", nil)
	req = withUserID(req, "user-123")
	req = withChiURLParam(req, "id", "listing-1")
	w := httptest.NewRecorder()

	h.CancelListing(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	if gotListingID != "listing-1" {
		t.Errorf("listingID = %q, want %q", gotListingID, "listing-1")
	}
}

func TestListingHandler_CancelListing_HasClaims_ReturnsConflict(t *testing.T) {
	svc := &mockListingService{
		cancelFn: func(ctx context.Context, userID, listingID string) error {
			return model.NewListingHasClaimsError(listingID)
		},
	}

	h := NewListingHandler(svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/listings/listing-1", nil)
	req = withUserID(req, "user-123")
	req = withChiURLParam(req, "id", "listing-1")
	w := httptest.NewRecorder()

	h.CancelListing(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}

	errResp := parseAPIErrorResponse(t, w)
	if errResp["code"] != model.ErrCodeListingHasClaims {
		t.Errorf("code = %q, want %q", errResp["code"], model.ErrCodeListingHasClaims)
	}
}

func TestListingHandler_CancelListing_UnexpectedError_Returns500(t *testing.T) {
	svc := &mockListingService{
		cancelFn: func(ctx context.Context, userID, listingID string) error {
			return errors.New("db connection lost")
		},
	}

	h := NewListingHandler(svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/listings/listing-1", nil)
	req = withUserID(req, "user-123")
	req = withChiURLParam(req, "id", "listing-1")
	w := httptest.NewRecorder()

	h.CancelListing(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
	}
}
