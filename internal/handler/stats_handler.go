package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/umeats/umeats/internal/stats"
)

// StatsServiceInterface は統計ハンドラーが必要とするサービスインターフェース。
type StatsServiceInterface interface {
	Platform(ctx context.Context) (*stats.PlatformStats, error)
	OrganizationRankings(ctx context.Context) ([]stats.OrganizationRanking, error)
}

// StatsHandler はプラットフォーム統計のHTTPハンドラー。
type StatsHandler struct {
	service StatsServiceInterface
}

// NewStatsHandler はStatsHandlerを生成する。
func NewStatsHandler(service StatsServiceInterface) *StatsHandler {
	return &StatsHandler{
		service: service,
	}
}

// PlatformStats はプラットフォーム全体の統計を返す。
// GET /api/stats/platform
func (h *StatsHandler) PlatformStats(w http.ResponseWriter, r *http.Request) {
	platformStats, err := h.service.Platform(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(platformStats)
}

// OrganizationRankings は団体ランキングを返す。
// GET /api/stats/organizations
func (h *StatsHandler) OrganizationRankings(w http.ResponseWriter, r *http.Request) {
	rankings, err := h.service.OrganizationRankings(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rankings)
}
