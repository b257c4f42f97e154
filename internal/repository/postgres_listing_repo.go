package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/umeats/umeats/internal/model"
)

// PostgresListingRepo はPostgreSQLを使用したリスティングリポジトリ。
// Querierを受け取るため、*sql.DB上でも*sql.Tx上でも動作する。
type PostgresListingRepo struct {
	db Querier
}

// NewPostgresListingRepo はPostgresListingRepoを生成する。
func NewPostgresListingRepo(db Querier) *PostgresListingRepo {
	return &PostgresListingRepo{db: db}
}

// FindByID は指定IDのリスティングを取得する。見つからない場合はnilを返す。
func (r *PostgresListingRepo) FindByID(ctx context.Context, id string) (*model.Listing, error) {
	listing := &model.Listing{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, organization_id, title, description, quantity, unit,
		        available_from, available_until, status, created_at, updated_at
		 FROM listings WHERE id = $1`,
		id,
	).Scan(
		&listing.ID, &listing.OrganizationID, &listing.Title, &listing.Description,
		&listing.Quantity, &listing.Unit,
		&listing.AvailableFrom, &listing.AvailableUntil, &listing.Status,
		&listing.CreatedAt, &listing.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("リスティングの取得に失敗しました: %w", err)
	}

	return listing, nil
}

// Create はリスティングを作成する。
func (r *PostgresListingRepo) Create(ctx context.Context, listing *model.Listing) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO listings (id, organization_id, title, description, quantity, unit,
		                       available_from, available_until, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		listing.ID, listing.OrganizationID, listing.Title, listing.Description,
		listing.Quantity, listing.Unit,
		listing.AvailableFrom, listing.AvailableUntil, listing.Status,
		listing.CreatedAt, listing.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("リスティングの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はリスティングの編集可能フィールドを更新する。
// quantityは実体化後に不変のため更新対象に含めない。
func (r *PostgresListingRepo) Update(ctx context.Context, listing *model.Listing) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE listings
		 SET title = $1, description = $2, available_from = $3, available_until = $4,
		     status = $5, updated_at = now()
		 WHERE id = $6`,
		listing.Title, listing.Description, listing.AvailableFrom, listing.AvailableUntil,
		listing.Status, listing.ID,
	)
	if err != nil {
		return fmt.Errorf("リスティングの更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("listing not found: %s", listing.ID)
	}
	return nil
}

// ListActive は受付中かつ受け取り期間内のリスティングを残りアイテム数付きで返す。
func (r *PostgresListingRepo) ListActive(ctx context.Context, now time.Time) ([]model.ListingWithRemaining, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT l.id, l.organization_id, l.title, l.description, l.quantity, l.unit,
		        l.available_from, l.available_until, l.status, l.created_at, l.updated_at,
		        COUNT(i.id) FILTER (WHERE i.status = 'available') AS remaining_items
		 FROM listings l
		 LEFT JOIN items i ON i.listing_id = l.id
		 WHERE l.status = 'active'
		   AND l.available_from <= $1 AND l.available_until >= $1
		 GROUP BY l.id
		 ORDER BY l.available_until ASC`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("リスティング一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var listings []model.ListingWithRemaining
	for rows.Next() {
		var lw model.ListingWithRemaining
		if err := rows.Scan(
			&lw.ID, &lw.OrganizationID, &lw.Title, &lw.Description,
			&lw.Quantity, &lw.Unit,
			&lw.AvailableFrom, &lw.AvailableUntil, &lw.Status,
			&lw.CreatedAt, &lw.UpdatedAt,
			&lw.RemainingItems,
		); err != nil {
			return nil, fmt.Errorf("リスティング行の読み取りに失敗しました: %w", err)
		}
		listings = append(listings, lw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("リスティング一覧の走査に失敗しました: %w", err)
	}

	return listings, nil
}

// ListAllIDs は全リスティングIDをcreated_at昇順で返す。
func (r *PostgresListingRepo) ListAllIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM listings ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("リスティングIDの列挙に失敗しました: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("リスティングIDの読み取りに失敗しました: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("リスティングIDの走査に失敗しました: %w", err)
	}

	return ids, nil
}

// compile-time interface check
var _ ListingRepository = (*PostgresListingRepo)(nil)
