// Package listing はリスティング管理のビジネスロジックを提供する。
package listing

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/umeats/umeats/internal/allocation"
	"github.com/umeats/umeats/internal/model"
	"github.com/umeats/umeats/internal/repository"
)

// SanitizerService はリスティング説明文のサニタイズインターフェース。
type SanitizerService interface {
	Sanitize(rawHTML string) string
}

// CreateInput はリスティング作成の入力値。
type CreateInput struct {
	Title          string
	Description    string // 未サニタイズのHTML
	Quantity       int
	Unit           string
	AvailableFrom  time.Time
	AvailableUntil time.Time
}

// UpdateInput はリスティング編集の入力値。
// 数量は実体化後に不変のため編集対象に含めない。
type UpdateInput struct {
	Title          string
	Description    string // 未サニタイズのHTML
	AvailableFrom  time.Time
	AvailableUntil time.Time
}

// ListingDetail はリスティング詳細とそのアイテム一覧。
type ListingDetail struct {
	Listing model.Listing
	Items   []*model.Item
}

// txRepos はトランザクション上に構築するリポジトリ群。
type txRepos struct {
	listings repository.ListingRepository
	items    repository.ItemRepository
}

// Service はリスティング管理のビジネスロジックを提供する。
// 作成時はリスティング行の挿入とアイテムの実体化を同一トランザクションで
// 行うため、リコンサイルバッチと同じ実体化コードを共有する。
type Service struct {
	db        repository.TxBeginner
	listings  repository.ListingRepository
	items     repository.ItemRepository
	claims    repository.ClaimRepository
	orgs      repository.OrganizationRepository
	users     repository.UserRepository
	sanitizer SanitizerService
	newRepos  func(q repository.Querier) txRepos
}

// NewService はServiceを生成する。
func NewService(
	db *sql.DB,
	claims repository.ClaimRepository,
	orgs repository.OrganizationRepository,
	users repository.UserRepository,
	sanitizer SanitizerService,
) *Service {
	return &Service{
		db:        db,
		listings:  repository.NewPostgresListingRepo(db),
		items:     repository.NewPostgresItemRepo(db),
		claims:    claims,
		orgs:      orgs,
		users:     users,
		sanitizer: sanitizer,
		newRepos: func(q repository.Querier) txRepos {
			return txRepos{
				listings: repository.NewPostgresListingRepo(q),
				items:    repository.NewPostgresItemRepo(q),
			}
		},
	}
}

// Create は団体担当者の新規リスティングを作成し、数量分のアイテムを
// 即座に実体化する。リスティングとアイテムは同一トランザクションで
// コミットされるため、数量とアイテム数の不変条件が途切れる瞬間はない。
func (s *Service) Create(ctx context.Context, userID string, input CreateInput) (*model.Listing, error) {
	org, err := s.requireOrganization(ctx, userID)
	if err != nil {
		return nil, err
	}

	if input.Title == "" {
		return nil, model.NewValidationFailedError("タイトルは必須です")
	}
	if input.Quantity < 1 {
		return nil, model.NewInvalidQuantityError("", input.Quantity)
	}
	if !input.AvailableUntil.After(input.AvailableFrom) {
		return nil, model.NewValidationFailedError("受け取り終了時刻は開始時刻より後を指定してください")
	}

	now := time.Now()
	listing := &model.Listing{
		ID:             uuid.New().String(),
		OrganizationID: org.ID,
		Title:          input.Title,
		Description:    s.sanitizer.Sanitize(input.Description),
		Quantity:       input.Quantity,
		Unit:           input.Unit,
		AvailableFrom:  input.AvailableFrom,
		AvailableUntil: input.AvailableUntil,
		Status:         model.ListingStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := create(ctx, s.newRepos(tx), listing); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	slog.Info("リスティングを作成しました",
		slog.String("listing_id", listing.ID),
		slog.String("organization_id", org.ID),
		slog.Int("quantity", listing.Quantity),
	)

	return listing, nil
}

// create はトランザクション上でリスティング挿入とアイテム実体化を行う。
func create(ctx context.Context, repos txRepos, listing *model.Listing) error {
	if err := repos.listings.Create(ctx, listing); err != nil {
		return err
	}

	materializer := allocation.NewMaterializer(repos.items)
	if _, err := materializer.Materialize(ctx, listing); err != nil {
		return err
	}

	return nil
}

// ListActive は受付中かつ受け取り期間内のリスティング一覧を
// 残りアイテム数付きで返す。
func (s *Service) ListActive(ctx context.Context) ([]model.ListingWithRemaining, error) {
	return s.listings.ListActive(ctx, time.Now())
}

// Get はリスティング詳細をアイテム一覧付きで返す。
func (s *Service) Get(ctx context.Context, listingID string) (*ListingDetail, error) {
	listing, err := s.listings.FindByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing == nil {
		return nil, model.NewListingNotFoundError(listingID)
	}

	items, err := s.items.ListByListingID(ctx, listingID)
	if err != nil {
		return nil, err
	}

	return &ListingDetail{Listing: *listing, Items: items}, nil
}

// Update はリスティングの編集可能フィールドを更新する。
// 所有団体の担当者または管理者のみが実行できる。
func (s *Service) Update(ctx context.Context, userID, listingID string, input UpdateInput) (*model.Listing, error) {
	listing, err := s.authorizeOwner(ctx, userID, listingID)
	if err != nil {
		return nil, err
	}

	if input.Title == "" {
		return nil, model.NewValidationFailedError("タイトルは必須です")
	}
	if !input.AvailableUntil.After(input.AvailableFrom) {
		return nil, model.NewValidationFailedError("受け取り終了時刻は開始時刻より後を指定してください")
	}

	listing.Title = input.Title
	listing.Description = s.sanitizer.Sanitize(input.Description)
	listing.AvailableFrom = input.AvailableFrom
	listing.AvailableUntil = input.AvailableUntil

	if err := s.listings.Update(ctx, listing); err != nil {
		return nil, err
	}

	return listing, nil
}

// Cancel はリスティングをキャンセル状態にする。
// 受け取り待ちのクレームが残っている間は拒否する。アクティブなクレームが
// 参照しているリスティングを消すことはできない。
func (s *Service) Cancel(ctx context.Context, userID, listingID string) error {
	listing, err := s.authorizeOwner(ctx, userID, listingID)
	if err != nil {
		return err
	}

	pending, err := s.claims.CountPendingByListingID(ctx, listingID)
	if err != nil {
		return err
	}
	if pending > 0 {
		return model.NewListingHasClaimsError(listingID)
	}

	listing.Status = model.ListingStatusCancelled
	if err := s.listings.Update(ctx, listing); err != nil {
		return err
	}

	slog.Info("リスティングをキャンセルしました",
		slog.String("listing_id", listingID),
		slog.String("user_id", userID),
	)

	return nil
}

// requireOrganization はユーザーが担当する団体を返す。
// 団体を持たないユーザーにはFORBIDDEN_ROLEエラーを返す。
func (s *Service) requireOrganization(ctx context.Context, userID string) (*model.Organization, error) {
	org, err := s.orgs.FindByOwnerUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, model.NewForbiddenRoleError(model.RoleOrganization)
	}
	return org, nil
}

// authorizeOwner はリスティングを取得し、userIDが所有団体の担当者
// または管理者であることを確認する。
func (s *Service) authorizeOwner(ctx context.Context, userID, listingID string) (*model.Listing, error) {
	listing, err := s.listings.FindByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing == nil {
		return nil, model.NewListingNotFoundError(listingID)
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	if user.Role == model.RoleAdmin {
		return listing, nil
	}

	org, err := s.orgs.FindByID(ctx, listing.OrganizationID)
	if err != nil {
		return nil, err
	}
	if org == nil || org.OwnerUserID != userID {
		return nil, model.NewNotListingOwnerError()
	}

	return listing, nil
}
