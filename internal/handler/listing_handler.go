package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/umeats/umeats/internal/listing"
	"github.com/umeats/umeats/internal/middleware"
	"github.com/umeats/umeats/internal/model"
)

// ListingServiceInterface はリスティングハンドラーが必要とするサービスインターフェース。
type ListingServiceInterface interface {
	Create(ctx context.Context, userID string, input listing.CreateInput) (*model.Listing, error)
	ListActive(ctx context.Context) ([]model.ListingWithRemaining, error)
	Get(ctx context.Context, listingID string) (*listing.ListingDetail, error)
	Update(ctx context.Context, userID, listingID string, input listing.UpdateInput) (*model.Listing, error)
	Cancel(ctx context.Context, userID, listingID string) error
}

// ListingHandler はリスティング管理のHTTPハンドラー。
type ListingHandler struct {
	service ListingServiceInterface
}

// NewListingHandler はListingHandlerを生成する。
func NewListingHandler(service ListingServiceInterface) *ListingHandler {
	return &ListingHandler{
		service: service,
	}
}

// createListingRequest はリスティング作成リクエストのボディ。
type createListingRequest struct {
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Quantity       int       `json:"quantity"`
	Unit           string    `json:"unit"`
	AvailableFrom  time.Time `json:"available_from"`
	AvailableUntil time.Time `json:"available_until"`
}

// updateListingRequest はリスティング更新リクエストのボディ。
// 数量はアイテム実体化後に不変のため受け付けない。
type updateListingRequest struct {
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	AvailableFrom  time.Time `json:"available_from"`
	AvailableUntil time.Time `json:"available_until"`
}

// listingResponse はリスティング情報のAPIレスポンス。
type listingResponse struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Quantity       int       `json:"quantity"`
	Unit           string    `json:"unit"`
	AvailableFrom  time.Time `json:"available_from"`
	AvailableUntil time.Time `json:"available_until"`
	Status         string    `json:"status"`
}

// listingWithRemainingResponse は一覧APIのレスポンス（残りアイテム数付き）。
type listingWithRemainingResponse struct {
	listingResponse
	RemainingItems int `json:"remaining_items"`
}

// itemResponse はアイテム情報のAPIレスポンス。
type itemResponse struct {
	ID         string `json:"id"`
	ItemNumber int    `json:"item_number"`
	Status     string `json:"status"`
}

// listingDetailResponse は詳細APIのレスポンス（アイテム一覧付き）。
type listingDetailResponse struct {
	listingResponse
	Items []itemResponse `json:"items"`
}

// CreateListing はリスティング作成を処理する。
// POST /api/listings
func (h *ListingHandler) CreateListing(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req createListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	created, err := h.service.Create(r.Context(), userID, listing.CreateInput{
		Title:          req.Title,
		Description:    req.Description,
		Quantity:       req.Quantity,
		Unit:           req.Unit,
		AvailableFrom:  req.AvailableFrom,
		AvailableUntil: req.AvailableUntil,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toListingResponse(created))
}

// ListListings は受付中リスティングの一覧を返す。
// GET /api/listings
func (h *ListingHandler) ListListings(w http.ResponseWriter, r *http.Request) {
	listings, err := h.service.ListActive(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]listingWithRemainingResponse, 0, len(listings))
	for _, l := range listings {
		resp = append(resp, listingWithRemainingResponse{
			listingResponse: toListingResponse(&l.Listing),
			RemainingItems:  l.RemainingItems,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GetListing はリスティング詳細をアイテム一覧付きで返す。
// GET /api/listings/:id
func (h *ListingHandler) GetListing(w http.ResponseWriter, r *http.Request) {
	listingID := chi.URLParam(r, "id")

	detail, err := h.service.Get(r.Context(), listingID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	items := make([]itemResponse, 0, len(detail.Items))
	for _, item := range detail.Items {
		items = append(items, itemResponse{
			ID:         item.ID,
			ItemNumber: item.ItemNumber,
			Status:     string(item.Status),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(listingDetailResponse{
		listingResponse: toListingResponse(&detail.Listing),
		Items:           items,
	})
}

// UpdateListing はリスティングの編集を処理する。
// PATCH /api/listings/:id
func (h *ListingHandler) UpdateListing(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	listingID := chi.URLParam(r, "id")

	var req updateListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	updated, err := h.service.Update(r.Context(), userID, listingID, listing.UpdateInput{
		Title:          req.Title,
		Description:    req.Description,
		AvailableFrom:  req.AvailableFrom,
		AvailableUntil: req.AvailableUntil,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toListingResponse(updated))
}

// CancelListing はリスティングのキャンセルを処理する。
// DELETE /api/listings/:id
func (h *ListingHandler) CancelListing(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	listingID := chi.URLParam(r, "id")

	if err := h.service.Cancel(r.Context(), userID, listingID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// toListingResponse はmodel.ListingからAPIレスポンスに変換する。
func toListingResponse(l *model.Listing) listingResponse {
	return listingResponse{
		ID:             l.ID,
		OrganizationID: l.OrganizationID,
		Title:          l.Title,
		Description:    l.Description,
		Quantity:       l.Quantity,
		Unit:           l.Unit,
		AvailableFrom:  l.AvailableFrom,
		AvailableUntil: l.AvailableUntil,
		Status:         string(l.Status),
	}
}
