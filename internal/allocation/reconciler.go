package allocation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/umeats/umeats/internal/model"
	"github.com/umeats/umeats/internal/repository"
)

// Repos はリスティング1件の処理に必要なリポジトリ群。
// リコンサイルバッチはリスティングごとのトランザクション上にこの組を構築する。
type Repos struct {
	Listings repository.ListingRepository
	Items    repository.ItemRepository
	Claims   repository.ClaimRepository
}

// SkippedListing はリコンサイルをスキップしたリスティングとその理由。
type SkippedListing struct {
	ListingID string
	Reason    string
}

// Summary はリコンサイルバッチ全体の集計結果。
// グローバルなカウンタではなくローカルなアキュムレータとして
// オーケストレーション関数から返される。
type Summary struct {
	ListingsProcessed int
	ListingsSkipped   int
	ItemsCreated      int
	ClaimsUpdated     int
	ClaimsCreated     int
	Warnings          []BindWarning
	Skipped           []SkippedListing
}

// ListingResult はリスティング1件分のリコンサイル結果。
type ListingResult struct {
	ItemsCreated  int
	ClaimsUpdated int
	ClaimsCreated int
	Warnings      []BindWarning
}

// ProcessListing はリスティング1件をリコンサイルする:
// 数量をアイテムに実体化し、レガシークレームを先着順でアイテムに束縛する。
// 呼び出し側はreposを同一トランザクション上に構築し、エラー時には
// ロールバックすることで部分適用を防ぐこと。
func ProcessListing(ctx context.Context, repos Repos, listingID string) (*ListingResult, error) {
	listing, err := repos.Listings.FindByID(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("リスティングの取得に失敗しました: %w", err)
	}
	if listing == nil {
		return nil, model.NewListingNotFoundError(listingID)
	}

	materializer := NewMaterializer(repos.Items)
	items, err := materializer.Materialize(ctx, listing)
	if err != nil {
		return nil, err
	}

	claims, err := repos.Claims.ListByListingID(ctx, listing.ID)
	if err != nil {
		return nil, fmt.Errorf("クレーム一覧の取得に失敗しました: %w", err)
	}

	binder := NewBinder(repos.Claims, repos.Items)
	bindResult, err := binder.Bind(ctx, listing, items, claims)
	if err != nil {
		return nil, err
	}

	return &ListingResult{
		ItemsCreated:  len(items),
		ClaimsUpdated: bindResult.ClaimsUpdated,
		ClaimsCreated: bindResult.ClaimsCreated,
		Warnings:      bindResult.Warnings,
	}, nil
}

// MetricsRecorder はリコンサイルバッチのメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordItemsMaterialized(count int)
	RecordReconcileListing(outcome string)
}

// Reconciler は全リスティングを対象とするリコンサイルバッチ。
// 1回実行して終了するジョブであり、常駐サービスではない。
// リスティング1件の失敗はログに記録してスキップし、残りの処理を継続する。
type Reconciler struct {
	db       repository.TxBeginner
	listings repository.ListingRepository
	newRepos func(q repository.Querier) Repos
	metrics  MetricsRecorder
	logger   *slog.Logger
}

// NewReconciler はPostgreSQL上で動作するReconcilerを生成する。
// dbはトランザクション開始とリスティング列挙の両方に使用される。
// metricsはnilを許容する。
func NewReconciler(db interface {
	repository.TxBeginner
	repository.Querier
}, metrics MetricsRecorder, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		db:       db,
		listings: repository.NewPostgresListingRepo(db),
		newRepos: func(q repository.Querier) Repos {
			return Repos{
				Listings: repository.NewPostgresListingRepo(q),
				Items:    repository.NewPostgresItemRepo(q),
				Claims:   repository.NewPostgresClaimRepo(q),
			}
		},
		metrics: metrics,
		logger:  logger,
	}
}

// Run は全リスティングを順番にリコンサイルし、集計結果を返す。
//
// リスティングごとに実体化→バインド→ポイント分配を1トランザクションで
// 実行するため、途中失敗してもコミット済みリスティングは移行完了のまま、
// 未処理リスティングは手つかずのまま残り、再実行は実体化ガードにより安全。
// リスティング列挙自体の失敗のみが致命的エラーになる。
func (r *Reconciler) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()

	ids, err := r.listings.ListAllIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("リスティングの列挙に失敗しました: %w", err)
	}

	r.logger.Info("リコンサイルバッチを開始します",
		slog.Int("target_listings", len(ids)),
	)

	summary := &Summary{}
	for _, id := range ids {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		r.reconcileListing(ctx, id, summary)
	}

	duration := time.Since(start)
	r.logger.Info("リコンサイルバッチが完了しました",
		slog.Int("listings_processed", summary.ListingsProcessed),
		slog.Int("listings_skipped", summary.ListingsSkipped),
		slog.Int("items_created", summary.ItemsCreated),
		slog.Int("claims_updated", summary.ClaimsUpdated),
		slog.Int("claims_created", summary.ClaimsCreated),
		slog.Int("warnings", len(summary.Warnings)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	for _, w := range summary.Warnings {
		apiErr := w.APIError()
		r.logger.Warn(apiErr.Message,
			slog.String("code", apiErr.Code),
			slog.String("listing_id", w.ListingID),
			slog.String("claim_id", w.ClaimID),
			slog.Int("requested", w.Requested),
			slog.Int("remaining", w.Remaining),
		)
	}

	return summary, nil
}

// reconcileListing はリスティング1件をトランザクション内で処理し、
// 結果をsummaryに積み上げる。失敗はロールバックしてスキップ扱いにする。
func (r *Reconciler) reconcileListing(ctx context.Context, listingID string, summary *Summary) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		r.skip(summary, listingID, fmt.Sprintf("トランザクション開始に失敗: %v", err))
		return
	}

	result, err := ProcessListing(ctx, r.newRepos(tx), listingID)
	if err != nil {
		tx.Rollback()

		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			r.skip(summary, listingID, apiErr.Code)
		} else {
			r.skip(summary, listingID, err.Error())
		}
		return
	}

	if err := tx.Commit(); err != nil {
		r.skip(summary, listingID, fmt.Sprintf("コミットに失敗: %v", err))
		return
	}

	summary.ListingsProcessed++
	summary.ItemsCreated += result.ItemsCreated
	summary.ClaimsUpdated += result.ClaimsUpdated
	summary.ClaimsCreated += result.ClaimsCreated
	summary.Warnings = append(summary.Warnings, result.Warnings...)

	if r.metrics != nil {
		r.metrics.RecordItemsMaterialized(result.ItemsCreated)
		r.metrics.RecordReconcileListing("processed")
	}

	r.logger.Info("リスティングをリコンサイルしました",
		slog.String("listing_id", listingID),
		slog.Int("items_created", result.ItemsCreated),
		slog.Int("claims_updated", result.ClaimsUpdated),
		slog.Int("claims_created", result.ClaimsCreated),
	)
}

// skip はリスティングをスキップ扱いにして理由を記録する。
func (r *Reconciler) skip(summary *Summary, listingID, reason string) {
	summary.ListingsSkipped++
	summary.Skipped = append(summary.Skipped, SkippedListing{ListingID: listingID, Reason: reason})

	if r.metrics != nil {
		r.metrics.RecordReconcileListing("skipped")
	}

	r.logger.Warn("リスティングのリコンサイルをスキップしました",
		slog.String("listing_id", listingID),
		slog.String("reason", reason),
	)
}
