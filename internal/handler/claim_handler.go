package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/umeats/umeats/internal/middleware"
	"github.com/umeats/umeats/internal/model"
)

// ClaimServiceInterface はクレームハンドラーが必要とするサービスインターフェース。
type ClaimServiceInterface interface {
	ClaimItem(ctx context.Context, userID, listingID string) (*model.Claim, error)
	Collect(ctx context.Context, actorUserID, claimID string) (*model.Claim, error)
	Cancel(ctx context.Context, actorUserID, claimID string) error
	ListMine(ctx context.Context, userID string) ([]*model.Claim, error)
}

// ClaimHandler はクレームライフサイクルのHTTPハンドラー。
type ClaimHandler struct {
	service ClaimServiceInterface
}

// NewClaimHandler はClaimHandlerを生成する。
func NewClaimHandler(service ClaimServiceInterface) *ClaimHandler {
	return &ClaimHandler{
		service: service,
	}
}

// claimResponse はクレーム情報のAPIレスポンス。
// アイテム未割り当てのレガシークレームではitem_idがnullになる。
type claimResponse struct {
	ID                    string     `json:"id"`
	ListingID             string     `json:"listing_id"`
	ItemID                *string    `json:"item_id"`
	Quantity              int        `json:"quantity"`
	Status                string     `json:"status"`
	EstimatedImpactPoints *float64   `json:"estimated_impact_points"`
	ActualImpactPoints    *float64   `json:"actual_impact_points"`
	ClaimedAt             time.Time  `json:"claimed_at"`
	CollectedAt           *time.Time `json:"collected_at"`
}

// CreateClaim はリスティングのアイテム1単位のクレームを処理する。
// POST /api/listings/:id/claims
func (h *ClaimHandler) CreateClaim(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	listingID := chi.URLParam(r, "id")

	claim, err := h.service.ClaimItem(r.Context(), userID, listingID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toClaimResponse(claim))
}

// ListMyClaims は自分のクレーム一覧を返す。
// GET /api/claims
func (h *ClaimHandler) ListMyClaims(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	claims, err := h.service.ListMine(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]claimResponse, 0, len(claims))
	for _, claim := range claims {
		resp = append(resp, toClaimResponse(claim))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// CollectClaim は受け渡し完了の記録を処理する。
// POST /api/claims/:id/collect
func (h *ClaimHandler) CollectClaim(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	claimID := chi.URLParam(r, "id")

	claim, err := h.service.Collect(r.Context(), userID, claimID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toClaimResponse(claim))
}

// CancelClaim はクレームのキャンセルを処理する。
// POST /api/claims/:id/cancel
func (h *ClaimHandler) CancelClaim(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	claimID := chi.URLParam(r, "id")

	if err := h.service.Cancel(r.Context(), userID, claimID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// toClaimResponse はmodel.ClaimからAPIレスポンスに変換する。
func toClaimResponse(claim *model.Claim) claimResponse {
	return claimResponse{
		ID:                    claim.ID,
		ListingID:             claim.ListingID,
		ItemID:                claim.ItemID,
		Quantity:              claim.Quantity,
		Status:                string(claim.Status),
		EstimatedImpactPoints: claim.EstimatedImpactPoints,
		ActualImpactPoints:    claim.ActualImpactPoints,
		ClaimedAt:             claim.ClaimedAt,
		CollectedAt:           claim.CollectedAt,
	}
}
