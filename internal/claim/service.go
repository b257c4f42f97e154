// Package claim はライブクレーム（アイテム1単位の受け取り予約）の
// ビジネスロジックを提供する。
//
// リコンサイルバッチが過去データに対して保証する不変条件
// （1クレーム=1アイテム、アイテムの二重割り当てなし）を、
// このパッケージは新規クレームに対してトランザクションと
// FOR UPDATE SKIP LOCKEDによる単一ライター規律で維持する。
package claim

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/umeats/umeats/internal/model"
	"github.com/umeats/umeats/internal/repository"
)

// MetricsRecorder はクレームライフサイクルのメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordClaimCreated()
	RecordCollection(impactPoints float64)
}

// txRepos はトランザクション上に構築するリポジトリ群。
type txRepos struct {
	listings repository.ListingRepository
	items    repository.ItemRepository
	claims   repository.ClaimRepository
	orgs     repository.OrganizationRepository
}

// Config はクレームサービスの設定。
type Config struct {
	// ImpactPointsPerItem はアイテム1単位あたりの見積もりインパクトポイント。
	ImpactPointsPerItem float64
}

// Service はクレームライフサイクルのビジネスロジックを提供する。
type Service struct {
	db       repository.TxBeginner
	claims   repository.ClaimRepository
	config   Config
	metrics  MetricsRecorder
	newRepos func(q repository.Querier) txRepos
}

// NewService はServiceを生成する。metricsはnilを許容する。
func NewService(db *sql.DB, config Config, metrics MetricsRecorder) *Service {
	return &Service{
		db:      db,
		claims:  repository.NewPostgresClaimRepo(db),
		config:  config,
		metrics: metrics,
		newRepos: func(q repository.Querier) txRepos {
			return txRepos{
				listings: repository.NewPostgresListingRepo(q),
				items:    repository.NewPostgresItemRepo(q),
				claims:   repository.NewPostgresClaimRepo(q),
				orgs:     repository.NewPostgresOrganizationRepo(q),
			}
		},
	}
}

// ClaimItem は受付中リスティングの次の受け取り可能アイテム1件を
// 呼び出しユーザーに割り当てる。
//
// アイテムの選択はFOR UPDATE SKIP LOCKEDによる行ロックの下で行われるため、
// 同時リクエストが同じアイテムを取り合うことはなく、アイテム範囲の
// 重複割り当ては起こらない。
func (s *Service) ClaimItem(ctx context.Context, userID, listingID string) (*model.Claim, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	claim, err := claimItem(ctx, s.newRepos(tx), userID, listingID, s.config.ImpactPointsPerItem)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordClaimCreated()
	}

	slog.Info("アイテムをクレームしました",
		slog.String("claim_id", claim.ID),
		slog.String("listing_id", listingID),
		slog.String("user_id", userID),
	)

	return claim, nil
}

// claimItem はトランザクション上でクレーム処理本体を実行する。
func claimItem(ctx context.Context, repos txRepos, userID, listingID string, pointsPerItem float64) (*model.Claim, error) {
	listing, err := repos.listings.FindByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing == nil {
		return nil, model.NewListingNotFoundError(listingID)
	}
	if listing.Status != model.ListingStatusActive {
		return nil, model.NewListingNotActiveError(listingID)
	}

	now := time.Now()
	if now.Before(listing.AvailableFrom) || now.After(listing.AvailableUntil) {
		return nil, model.NewListingNotActiveError(listingID)
	}

	item, err := repos.items.FindNextAvailableForUpdate(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, model.NewItemNotAvailableError(listingID)
	}

	estimated := pointsPerItem
	claim := &model.Claim{
		ID:                    uuid.New().String(),
		UserID:                userID,
		ListingID:             listingID,
		ItemID:                &item.ID,
		Quantity:              1,
		Status:                model.ClaimStatusPending,
		EstimatedImpactPoints: &estimated,
		ClaimedAt:             now,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if err := repos.claims.Create(ctx, claim); err != nil {
		return nil, err
	}
	if err := repos.items.UpdateStatus(ctx, item.ID, model.ItemStatusClaimed); err != nil {
		return nil, err
	}

	return claim, nil
}

// Collect はクレームの受け渡し完了を記録する。
// クレーム所有者本人または提供団体の担当者のみが実行できる。
// インパクトポイントの実績値を確定し、団体のランキング累積値
// （total_donations, total_impact_points）を同一トランザクションで加算する。
func (s *Service) Collect(ctx context.Context, actorUserID, claimID string) (*model.Claim, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	claim, err := collect(ctx, s.newRepos(tx), actorUserID, claimID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if s.metrics != nil && claim.ActualImpactPoints != nil {
		s.metrics.RecordCollection(*claim.ActualImpactPoints)
	}

	slog.Info("クレームの受け渡しが完了しました",
		slog.String("claim_id", claimID),
		slog.String("user_id", claim.UserID),
	)

	return claim, nil
}

// collect はトランザクション上で受け渡し完了処理本体を実行する。
func collect(ctx context.Context, repos txRepos, actorUserID, claimID string) (*model.Claim, error) {
	claim, org, err := authorizeClaimActor(ctx, repos, actorUserID, claimID)
	if err != nil {
		return nil, err
	}
	if claim.Status != model.ClaimStatusPending {
		return nil, model.NewClaimNotPendingError(claimID)
	}

	now := time.Now()
	claim.Status = model.ClaimStatusCollected
	claim.CollectedAt = &now

	// 実績値は見積もり値で確定する。見積もりのないクレーム
	// （リコンサイル前の未設定データ）は実績もnilのまま。
	claim.ActualImpactPoints = claim.EstimatedImpactPoints

	if err := repos.claims.Update(ctx, claim); err != nil {
		return nil, err
	}
	if claim.ItemID != nil {
		if err := repos.items.UpdateStatus(ctx, *claim.ItemID, model.ItemStatusCollected); err != nil {
			return nil, err
		}
	}

	points := 0.0
	if claim.ActualImpactPoints != nil {
		points = *claim.ActualImpactPoints
	}
	if err := repos.orgs.AddDonationResult(ctx, org.ID, points); err != nil {
		return nil, err
	}

	return claim, nil
}

// Cancel は受け取り待ちのクレームをキャンセルし、アイテムを
// 受け取り可能状態に戻す。クレーム所有者本人のみが実行できる。
func (s *Service) Cancel(ctx context.Context, actorUserID, claimID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := cancel(ctx, s.newRepos(tx), actorUserID, claimID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	slog.Info("クレームをキャンセルしました",
		slog.String("claim_id", claimID),
		slog.String("user_id", actorUserID),
	)

	return nil
}

// cancel はトランザクション上でキャンセル処理本体を実行する。
func cancel(ctx context.Context, repos txRepos, actorUserID, claimID string) error {
	claim, err := repos.claims.FindByID(ctx, claimID)
	if err != nil {
		return err
	}
	if claim == nil {
		return model.NewClaimNotFoundError(claimID)
	}
	if claim.UserID != actorUserID {
		return model.NewClaimNotFoundError(claimID)
	}
	if claim.Status != model.ClaimStatusPending {
		return model.NewClaimNotPendingError(claimID)
	}

	claim.Status = model.ClaimStatusCancelled
	if err := repos.claims.Update(ctx, claim); err != nil {
		return err
	}
	if claim.ItemID != nil {
		if err := repos.items.UpdateStatus(ctx, *claim.ItemID, model.ItemStatusAvailable); err != nil {
			return err
		}
	}

	return nil
}

// ListMine は呼び出しユーザーのクレーム一覧をclaimed_at降順で返す。
func (s *Service) ListMine(ctx context.Context, userID string) ([]*model.Claim, error) {
	return s.claims.ListByUserID(ctx, userID)
}

// authorizeClaimActor はクレームとその提供団体を取得し、actorが
// クレーム所有者本人または団体担当者であることを確認する。
// 権限のないユーザーにはクレームの存在を漏らさないためNOT_FOUNDを返す。
func authorizeClaimActor(ctx context.Context, repos txRepos, actorUserID, claimID string) (*model.Claim, *model.Organization, error) {
	claim, err := repos.claims.FindByID(ctx, claimID)
	if err != nil {
		return nil, nil, err
	}
	if claim == nil {
		return nil, nil, model.NewClaimNotFoundError(claimID)
	}

	listing, err := repos.listings.FindByID(ctx, claim.ListingID)
	if err != nil {
		return nil, nil, err
	}
	if listing == nil {
		return nil, nil, model.NewListingNotFoundError(claim.ListingID)
	}

	org, err := repos.orgs.FindByID(ctx, listing.OrganizationID)
	if err != nil {
		return nil, nil, err
	}
	if org == nil {
		return nil, nil, fmt.Errorf("organization not found: %s", listing.OrganizationID)
	}

	if claim.UserID != actorUserID && org.OwnerUserID != actorUserID {
		return nil, nil, model.NewClaimNotFoundError(claimID)
	}

	return claim, org, nil
}
