// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/umeats/umeats/internal/model"
)

// Querier はSQLクエリ実行を抽象化するインターフェース。
// *sql.DB と *sql.Tx の両方を受け付けることができるため、
// リコンサイルバッチはリスティング単位のトランザクション上に
// 同じリポジトリ実装を構築できる。
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// UpdateRole は指定ユーザーのロールを更新する。管理者操作でのみ使用する。
	UpdateRole(ctx context.Context, id string, role model.UserRole) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するidentities、sessionsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// OrganizationRepository は提供団体データの永続化インターフェース。
type OrganizationRepository interface {
	// FindByID は指定IDの団体を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Organization, error)

	// FindByOwnerUserID は担当者ユーザーIDで団体を検索する。見つからない場合はnilを返す。
	FindByOwnerUserID(ctx context.Context, userID string) (*model.Organization, error)

	// Create は団体を作成する。
	Create(ctx context.Context, org *model.Organization) error

	// AddDonationResult は受け渡し完了1件分のランキング累積値を加算する。
	// total_donationsを+1、total_impact_pointsをimpactPoints分加算する。
	AddDonationResult(ctx context.Context, orgID string, impactPoints float64) error

	// ListRanking は累積インパクトポイント降順で団体一覧を返す。
	ListRanking(ctx context.Context, limit int) ([]*model.Organization, error)
}

// ListingRepository はリスティングデータの永続化インターフェース。
type ListingRepository interface {
	// FindByID は指定IDのリスティングを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Listing, error)

	// Create はリスティングを作成する。
	Create(ctx context.Context, listing *model.Listing) error

	// Update はリスティングの編集可能フィールド
	// （title, description, available_from, available_until, status）を更新する。
	Update(ctx context.Context, listing *model.Listing) error

	// ListActive は受付中かつ受け取り期間内のリスティングを
	// 残りアイテム数付きで返す。available_until昇順。
	ListActive(ctx context.Context, now time.Time) ([]model.ListingWithRemaining, error)

	// ListAllIDs は全リスティングIDをcreated_at昇順で返す。
	// リコンサイルバッチの処理対象列挙に使用する。
	ListAllIDs(ctx context.Context) ([]string, error)
}

// ItemRepository はアイテムデータの永続化インターフェース。
type ItemRepository interface {
	// CountByListingID は指定リスティングのアイテム数を返す。
	CountByListingID(ctx context.Context, listingID string) (int, error)

	// CreateBatch は複数アイテムを一括作成する。
	CreateBatch(ctx context.Context, items []*model.Item) error

	// ListByListingID は指定リスティングのアイテムをitem_number昇順で返す。
	ListByListingID(ctx context.Context, listingID string) ([]*model.Item, error)

	// UpdateStatus は指定アイテムの状態を更新する。
	UpdateStatus(ctx context.Context, itemID string, status model.ItemStatus) error

	// FindNextAvailableForUpdate は指定リスティングの未受付アイテムのうち
	// item_number最小のものをFOR UPDATE SKIP LOCKEDで排他的に取得する。
	// ライブクレーム時の単一ライター規律を保証するため、必ずトランザクション上の
	// Querierで呼び出すこと。受け取り可能なアイテムがない場合はnilを返す。
	FindNextAvailableForUpdate(ctx context.Context, listingID string) (*model.Item, error)
}

// ClaimRepository はクレームデータの永続化インターフェース。
type ClaimRepository interface {
	// FindByID は指定IDのクレームを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Claim, error)

	// Create はクレームを作成する。
	Create(ctx context.Context, claim *model.Claim) error

	// Update はクレームの可変フィールド
	// （item_id, quantity, status, impact points, collected_at）を更新する。
	Update(ctx context.Context, claim *model.Claim) error

	// ListByListingID は指定リスティングの全クレームをclaimed_at昇順で返す。
	ListByListingID(ctx context.Context, listingID string) ([]*model.Claim, error)

	// ListByUserID は指定ユーザーのクレームをclaimed_at降順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Claim, error)

	// CountPendingByListingID は指定リスティングの受け取り待ちクレーム数を返す。
	CountPendingByListingID(ctx context.Context, listingID string) (int, error)
}

// PlatformTotals はプラットフォーム全体の集計値。
type PlatformTotals struct {
	TotalListings              int
	TotalItems                 int
	TotalClaims                int
	TotalCollected             int
	TotalEstimatedImpactPoints float64
	TotalActualImpactPoints    float64
}

// StatsRepository は統計集計の読み取りインターフェース。
type StatsRepository interface {
	// PlatformTotals はプラットフォーム全体の集計値を返す。
	PlatformTotals(ctx context.Context) (*PlatformTotals, error)
}
