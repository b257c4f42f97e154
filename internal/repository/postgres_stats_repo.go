package repository

import (
	"context"
	"fmt"
)

// PostgresStatsRepo はPostgreSQLを使用した統計集計リポジトリ。
type PostgresStatsRepo struct {
	db Querier
}

// NewPostgresStatsRepo はPostgresStatsRepoを生成する。
func NewPostgresStatsRepo(db Querier) *PostgresStatsRepo {
	return &PostgresStatsRepo{db: db}
}

// PlatformTotals はプラットフォーム全体の集計値を1クエリで返す。
// インパクトポイントはキャンセル済みクレームを除いて合算する。
func (r *PostgresStatsRepo) PlatformTotals(ctx context.Context) (*PlatformTotals, error) {
	totals := &PlatformTotals{}
	err := r.db.QueryRowContext(ctx,
		`SELECT
		   (SELECT COUNT(*) FROM listings),
		   (SELECT COUNT(*) FROM items),
		   (SELECT COUNT(*) FROM claims),
		   (SELECT COUNT(*) FROM claims WHERE status = 'collected'),
		   (SELECT COALESCE(SUM(estimated_impact_points), 0) FROM claims WHERE status <> 'cancelled'),
		   (SELECT COALESCE(SUM(actual_impact_points), 0) FROM claims WHERE status <> 'cancelled')`,
	).Scan(
		&totals.TotalListings,
		&totals.TotalItems,
		&totals.TotalClaims,
		&totals.TotalCollected,
		&totals.TotalEstimatedImpactPoints,
		&totals.TotalActualImpactPoints,
	)
	if err != nil {
		return nil, fmt.Errorf("プラットフォーム集計の取得に失敗しました: %w", err)
	}

	return totals, nil
}

// compile-time interface check
var _ StatsRepository = (*PostgresStatsRepo)(nil)
