package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/umeats/umeats/internal/model"
)

// PostgresItemRepo はPostgreSQLを使用したアイテムリポジトリ。
// Querierを受け取るため、*sql.DB上でも*sql.Tx上でも動作する。
type PostgresItemRepo struct {
	db Querier
}

// NewPostgresItemRepo はPostgresItemRepoを生成する。
func NewPostgresItemRepo(db Querier) *PostgresItemRepo {
	return &PostgresItemRepo{db: db}
}

// CountByListingID は指定リスティングのアイテム数を返す。
func (r *PostgresItemRepo) CountByListingID(ctx context.Context, listingID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items WHERE listing_id = $1`,
		listingID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("アイテム数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// CreateBatch は複数アイテムを1回のINSERTで一括作成する。
// 空スライスに対してはno-opで成功する。
func (r *PostgresItemRepo) CreateBatch(ctx context.Context, items []*model.Item) error {
	if len(items) == 0 {
		return nil
	}

	const cols = 6
	placeholders := make([]string, 0, len(items))
	args := make([]interface{}, 0, len(items)*cols)
	for i, item := range items {
		base := i * cols
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6))
		args = append(args,
			item.ID, item.ListingID, item.ItemNumber, item.Status,
			item.CreatedAt, item.UpdatedAt,
		)
	}

	query := `INSERT INTO items (id, listing_id, item_number, status, created_at, updated_at) VALUES ` +
		strings.Join(placeholders, ", ")

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("アイテムの一括作成に失敗しました: %w", err)
	}
	return nil
}

// ListByListingID は指定リスティングのアイテムをitem_number昇順で返す。
func (r *PostgresItemRepo) ListByListingID(ctx context.Context, listingID string) ([]*model.Item, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, listing_id, item_number, status, created_at, updated_at
		 FROM items
		 WHERE listing_id = $1
		 ORDER BY item_number ASC`,
		listingID,
	)
	if err != nil {
		return nil, fmt.Errorf("アイテム一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var items []*model.Item
	for rows.Next() {
		item := &model.Item{}
		if err := rows.Scan(
			&item.ID, &item.ListingID, &item.ItemNumber, &item.Status,
			&item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("アイテム行の読み取りに失敗しました: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("アイテム一覧の走査に失敗しました: %w", err)
	}

	return items, nil
}

// UpdateStatus は指定アイテムの状態を更新する。
func (r *PostgresItemRepo) UpdateStatus(ctx context.Context, itemID string, status model.ItemStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE items SET status = $1, updated_at = now() WHERE id = $2`,
		status, itemID,
	)
	if err != nil {
		return fmt.Errorf("アイテム状態の更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("item not found: %s", itemID)
	}
	return nil
}

// FindNextAvailableForUpdate は未受付アイテムのうちitem_number最小のものを
// FOR UPDATE SKIP LOCKEDで排他的に取得する。
// 同時クレームで同じアイテムが二重割り当てされるのを防ぐため、
// 必ずトランザクション上で呼び出すこと。
func (r *PostgresItemRepo) FindNextAvailableForUpdate(ctx context.Context, listingID string) (*model.Item, error) {
	item := &model.Item{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, listing_id, item_number, status, created_at, updated_at
		 FROM items
		 WHERE listing_id = $1 AND status = 'available'
		 ORDER BY item_number ASC
		 LIMIT 1
		 FOR UPDATE SKIP LOCKED`,
		listingID,
	).Scan(
		&item.ID, &item.ListingID, &item.ItemNumber, &item.Status,
		&item.CreatedAt, &item.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("受け取り可能アイテムの取得に失敗しました: %w", err)
	}

	return item, nil
}

// compile-time interface check
var _ ItemRepository = (*PostgresItemRepo)(nil)
