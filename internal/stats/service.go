// Package stats はプラットフォーム統計の読み取りロジックを提供する。
package stats

import (
	"context"

	"github.com/umeats/umeats/internal/model"
	"github.com/umeats/umeats/internal/repository"
)

// defaultRankingLimit は団体ランキングの既定取得件数。
const defaultRankingLimit = 20

// PlatformStats はプラットフォーム全体の統計値。
//
// インパクトポイントはリスティング単位で保存されるため
// （クレームへの分配は合計を変えない）、見積もり合計は
// 受け渡しの進み具合に関係なく一定になる。
type PlatformStats struct {
	TotalListings              int     `json:"total_listings"`
	TotalItems                 int     `json:"total_items"`
	TotalClaims                int     `json:"total_claims"`
	TotalCollected             int     `json:"total_collected"`
	TotalEstimatedImpactPoints float64 `json:"total_estimated_impact_points"`
	TotalActualImpactPoints    float64 `json:"total_actual_impact_points"`
}

// OrganizationRanking はランキング1行分の団体統計。
type OrganizationRanking struct {
	OrganizationID    string  `json:"organization_id"`
	Name              string  `json:"name"`
	TotalDonations    int     `json:"total_donations"`
	TotalImpactPoints float64 `json:"total_impact_points"`
}

// Service は統計情報の読み取りサービス。
type Service struct {
	stats repository.StatsRepository
	orgs  repository.OrganizationRepository
}

// NewService はServiceを生成する。
func NewService(stats repository.StatsRepository, orgs repository.OrganizationRepository) *Service {
	return &Service{stats: stats, orgs: orgs}
}

// Platform はプラットフォーム全体の統計値を返す。
func (s *Service) Platform(ctx context.Context) (*PlatformStats, error) {
	totals, err := s.stats.PlatformTotals(ctx)
	if err != nil {
		return nil, err
	}
	return &PlatformStats{
		TotalListings:              totals.TotalListings,
		TotalItems:                 totals.TotalItems,
		TotalClaims:                totals.TotalClaims,
		TotalCollected:             totals.TotalCollected,
		TotalEstimatedImpactPoints: totals.TotalEstimatedImpactPoints,
		TotalActualImpactPoints:    totals.TotalActualImpactPoints,
	}, nil
}

// OrganizationRankings は累積インパクトポイント降順の団体ランキングを返す。
func (s *Service) OrganizationRankings(ctx context.Context) ([]OrganizationRanking, error) {
	orgs, err := s.orgs.ListRanking(ctx, defaultRankingLimit)
	if err != nil {
		return nil, err
	}

	rankings := make([]OrganizationRanking, 0, len(orgs))
	for _, org := range orgs {
		rankings = append(rankings, rankingFromOrganization(org))
	}
	return rankings, nil
}

func rankingFromOrganization(org *model.Organization) OrganizationRanking {
	return OrganizationRanking{
		OrganizationID:    org.ID,
		Name:              org.Name,
		TotalDonations:    org.TotalDonations,
		TotalImpactPoints: org.TotalImpactPoints,
	}
}
