package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/umeats/umeats/internal/model"
)

// PostgresClaimRepo はPostgreSQLを使用したクレームリポジトリ。
// Querierを受け取るため、*sql.DB上でも*sql.Tx上でも動作する。
type PostgresClaimRepo struct {
	db Querier
}

// NewPostgresClaimRepo はPostgresClaimRepoを生成する。
func NewPostgresClaimRepo(db Querier) *PostgresClaimRepo {
	return &PostgresClaimRepo{db: db}
}

// scanClaim は1行分のクレームを読み取る。
func scanClaim(scan func(dest ...interface{}) error) (*model.Claim, error) {
	claim := &model.Claim{}
	var userID, itemID sql.NullString
	var estimated, actual sql.NullFloat64
	var collectedAt sql.NullTime

	err := scan(
		&claim.ID, &userID, &claim.ListingID, &itemID, &claim.Quantity, &claim.Status,
		&estimated, &actual, &claim.ClaimedAt, &collectedAt,
		&claim.CreatedAt, &claim.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	// 退会済みユーザーの履歴行はuser_idがNULL
	claim.UserID = userID.String
	if itemID.Valid {
		claim.ItemID = &itemID.String
	}
	if estimated.Valid {
		claim.EstimatedImpactPoints = &estimated.Float64
	}
	if actual.Valid {
		claim.ActualImpactPoints = &actual.Float64
	}
	if collectedAt.Valid {
		claim.CollectedAt = &collectedAt.Time
	}

	return claim, nil
}

const claimColumns = `id, user_id, listing_id, item_id, quantity, status,
		        estimated_impact_points, actual_impact_points, claimed_at, collected_at,
		        created_at, updated_at`

// FindByID は指定IDのクレームを取得する。見つからない場合はnilを返す。
func (r *PostgresClaimRepo) FindByID(ctx context.Context, id string) (*model.Claim, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+claimColumns+` FROM claims WHERE id = $1`,
		id,
	)

	claim, err := scanClaim(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("クレームの取得に失敗しました: %w", err)
	}

	return claim, nil
}

// Create はクレームを作成する。
func (r *PostgresClaimRepo) Create(ctx context.Context, claim *model.Claim) error {
	var itemID interface{}
	if claim.ItemID != nil {
		itemID = *claim.ItemID
	}
	var estimated, actual interface{}
	if claim.EstimatedImpactPoints != nil {
		estimated = *claim.EstimatedImpactPoints
	}
	if claim.ActualImpactPoints != nil {
		actual = *claim.ActualImpactPoints
	}
	var collectedAt interface{}
	if claim.CollectedAt != nil {
		collectedAt = *claim.CollectedAt
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO claims (id, user_id, listing_id, item_id, quantity, status,
		                     estimated_impact_points, actual_impact_points, claimed_at, collected_at,
		                     created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		claim.ID, claim.UserID, claim.ListingID, itemID, claim.Quantity, claim.Status,
		estimated, actual, claim.ClaimedAt, collectedAt,
		claim.CreatedAt, claim.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("クレームの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はクレームの可変フィールドを更新する。
func (r *PostgresClaimRepo) Update(ctx context.Context, claim *model.Claim) error {
	var itemID interface{}
	if claim.ItemID != nil {
		itemID = *claim.ItemID
	}
	var estimated, actual interface{}
	if claim.EstimatedImpactPoints != nil {
		estimated = *claim.EstimatedImpactPoints
	}
	if claim.ActualImpactPoints != nil {
		actual = *claim.ActualImpactPoints
	}
	var collectedAt interface{}
	if claim.CollectedAt != nil {
		collectedAt = *claim.CollectedAt
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE claims
		 SET item_id = $1, quantity = $2, status = $3,
		     estimated_impact_points = $4, actual_impact_points = $5, collected_at = $6,
		     updated_at = now()
		 WHERE id = $7`,
		itemID, claim.Quantity, claim.Status,
		estimated, actual, collectedAt,
		claim.ID,
	)
	if err != nil {
		return fmt.Errorf("クレームの更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("claim not found: %s", claim.ID)
	}
	return nil
}

// ListByListingID は指定リスティングの全クレームをclaimed_at昇順で返す。
// バインド処理の先着順割り当てはこの順序に依存する。
func (r *PostgresClaimRepo) ListByListingID(ctx context.Context, listingID string) ([]*model.Claim, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+claimColumns+`
		 FROM claims
		 WHERE listing_id = $1
		 ORDER BY claimed_at ASC, id ASC`,
		listingID,
	)
	if err != nil {
		return nil, fmt.Errorf("クレーム一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectClaims(rows)
}

// ListByUserID は指定ユーザーのクレームをclaimed_at降順で返す。
func (r *PostgresClaimRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Claim, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+claimColumns+`
		 FROM claims
		 WHERE user_id = $1
		 ORDER BY claimed_at DESC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("ユーザークレーム一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectClaims(rows)
}

// CountPendingByListingID は指定リスティングの受け取り待ちクレーム数を返す。
func (r *PostgresClaimRepo) CountPendingByListingID(ctx context.Context, listingID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM claims WHERE listing_id = $1 AND status = 'pending'`,
		listingID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("受け取り待ちクレーム数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// collectClaims はrowsから全クレームを読み取る。
func collectClaims(rows *sql.Rows) ([]*model.Claim, error) {
	var claims []*model.Claim
	for rows.Next() {
		claim, err := scanClaim(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("クレーム行の読み取りに失敗しました: %w", err)
		}
		claims = append(claims, claim)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("クレーム一覧の走査に失敗しました: %w", err)
	}
	return claims, nil
}

// compile-time interface check
var _ ClaimRepository = (*PostgresClaimRepo)(nil)
