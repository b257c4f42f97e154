package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/umeats/umeats/internal/model"
)

// PostgresOrganizationRepo はPostgreSQLを使用した団体リポジトリ。
// Querierを受け取るため、*sql.DB上でも*sql.Tx上でも動作する。
type PostgresOrganizationRepo struct {
	db Querier
}

// NewPostgresOrganizationRepo はPostgresOrganizationRepoを生成する。
func NewPostgresOrganizationRepo(db Querier) *PostgresOrganizationRepo {
	return &PostgresOrganizationRepo{db: db}
}

// FindByID は指定IDの団体を取得する。見つからない場合はnilを返す。
func (r *PostgresOrganizationRepo) FindByID(ctx context.Context, id string) (*model.Organization, error) {
	org := &model.Organization{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, owner_user_id, name, description, total_donations, total_impact_points,
		        created_at, updated_at
		 FROM organizations WHERE id = $1`,
		id,
	).Scan(
		&org.ID, &org.OwnerUserID, &org.Name, &org.Description,
		&org.TotalDonations, &org.TotalImpactPoints,
		&org.CreatedAt, &org.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("団体の取得に失敗しました: %w", err)
	}

	return org, nil
}

// FindByOwnerUserID は担当者ユーザーIDで団体を検索する。見つからない場合はnilを返す。
func (r *PostgresOrganizationRepo) FindByOwnerUserID(ctx context.Context, userID string) (*model.Organization, error) {
	org := &model.Organization{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, owner_user_id, name, description, total_donations, total_impact_points,
		        created_at, updated_at
		 FROM organizations WHERE owner_user_id = $1`,
		userID,
	).Scan(
		&org.ID, &org.OwnerUserID, &org.Name, &org.Description,
		&org.TotalDonations, &org.TotalImpactPoints,
		&org.CreatedAt, &org.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("担当者による団体の検索に失敗しました: %w", err)
	}

	return org, nil
}

// Create は団体を作成する。
func (r *PostgresOrganizationRepo) Create(ctx context.Context, org *model.Organization) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO organizations (id, owner_user_id, name, description,
		                            total_donations, total_impact_points, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		org.ID, org.OwnerUserID, org.Name, org.Description,
		org.TotalDonations, org.TotalImpactPoints, org.CreatedAt, org.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("団体の作成に失敗しました: %w", err)
	}
	return nil
}

// AddDonationResult は受け渡し完了1件分のランキング累積値を加算する。
func (r *PostgresOrganizationRepo) AddDonationResult(ctx context.Context, orgID string, impactPoints float64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE organizations
		 SET total_donations = total_donations + 1,
		     total_impact_points = total_impact_points + $1,
		     updated_at = now()
		 WHERE id = $2`,
		impactPoints, orgID,
	)
	if err != nil {
		return fmt.Errorf("ランキング累積値の加算に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("organization not found: %s", orgID)
	}
	return nil
}

// ListRanking は累積インパクトポイント降順で団体一覧を返す。
func (r *PostgresOrganizationRepo) ListRanking(ctx context.Context, limit int) ([]*model.Organization, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, owner_user_id, name, description, total_donations, total_impact_points,
		        created_at, updated_at
		 FROM organizations
		 ORDER BY total_impact_points DESC, total_donations DESC, name ASC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("団体ランキングの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var orgs []*model.Organization
	for rows.Next() {
		org := &model.Organization{}
		if err := rows.Scan(
			&org.ID, &org.OwnerUserID, &org.Name, &org.Description,
			&org.TotalDonations, &org.TotalImpactPoints,
			&org.CreatedAt, &org.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("団体行の読み取りに失敗しました: %w", err)
		}
		orgs = append(orgs, org)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("団体ランキングの走査に失敗しました: %w", err)
	}

	return orgs, nil
}

// compile-time interface check
var _ OrganizationRepository = (*PostgresOrganizationRepo)(nil)
