package allocation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/umeats/umeats/internal/model"
	"github.com/umeats/umeats/internal/repository"
)

// BindWarning はバインド処理中に記録された非致命的な警告を表す。
type BindWarning struct {
	ListingID string
	ClaimID   string
	Requested int
	Remaining int
}

// APIError は警告を統一エラーフォーマット（INSUFFICIENT_ITEMS）に変換する。
func (w BindWarning) APIError() *model.APIError {
	return model.NewInsufficientItemsError(w.ClaimID, w.Requested, w.Remaining)
}

// BindResult はリスティング1件分のバインド結果。
type BindResult struct {
	ClaimsUpdated int
	ClaimsCreated int
	Warnings      []BindWarning
}

// Binder はレガシークレームを実体化済みアイテムに割り当てる。
//
// 割り当てポリシーは先着順（claimed_at昇順）で、各クレームには
// アイテム列の連続した範囲を割り当てる。これは意図的な設計であり、
// 早くクレームしたユーザーが若い番号のアイテムを受け取る。
type Binder struct {
	claimRepo repository.ClaimRepository
	itemRepo  repository.ItemRepository
}

// NewBinder はBinderを生成する。
func NewBinder(claimRepo repository.ClaimRepository, itemRepo repository.ItemRepository) *Binder {
	return &Binder{claimRepo: claimRepo, itemRepo: itemRepo}
}

// Bind はクレーム列をclaimed_at昇順に走査し、カーソル位置から
// claim.Quantity件の連続アイテムを各クレームに割り当てる。
//
// 数量Qのクレームは、元レコードの更新1件（先頭アイテムに束縛、履歴とIDを保持）
// と新規レコードQ-1件（残りのアイテムに束縛、ユーザー・リスティング・状態・
// タイムスタンプをコピー）に分割される。インパクトポイントの集計値は
// SplitImpactPointsにより単位クレームに分配され、合計が保存される。
//
// 残りアイテムがclaim.Quantityに満たないクレームはバインドせずスキップし、
// 警告として記録して後続クレームの処理を継続する。1件の不整合クレームが
// リコンサイル全体を中断してはならない。
//
// itemsはitem_number昇順であること。ストレージ層の既定順序には依存せず、
// クレームはバインド前に明示的なコンパレータで安定ソートされる。
func (b *Binder) Bind(ctx context.Context, listing *model.Listing, items []*model.Item, claims []*model.Claim) (*BindResult, error) {
	// 実体化済みアイテム数と数量の再検証。クレーム発生後に数量が
	// 編集されたリスティングを黙って処理せず、音を立てて失敗させる。
	if len(items) != listing.Quantity {
		return nil, model.NewQuantityMismatchError(listing.ID, listing.Quantity, len(items))
	}

	sorted := make([]*model.Claim, len(claims))
	copy(sorted, claims)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].ClaimedAt.Equal(sorted[j].ClaimedAt) {
			return sorted[i].ClaimedAt.Before(sorted[j].ClaimedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})

	result := &BindResult{}
	cursor := 0

	for _, claim := range sorted {
		// 既にアイテムに束縛済みのクレームは対象外。
		if !claim.IsLegacy() {
			continue
		}

		// bindClaimはクレームの数量をin-placeで1に書き換えるため、
		// カーソル前進用に元の数量をここで確保する。
		quantity := claim.Quantity

		if quantity < 1 || cursor+quantity > len(items) {
			result.Warnings = append(result.Warnings, BindWarning{
				ListingID: listing.ID,
				ClaimID:   claim.ID,
				Requested: quantity,
				Remaining: len(items) - cursor,
			})
			continue
		}

		if err := b.bindClaim(ctx, claim, items[cursor:cursor+quantity], result); err != nil {
			return nil, err
		}
		cursor += quantity
	}

	return result, nil
}

// bindClaim は1件のクレームを連続アイテム範囲sliceに束縛する。
func (b *Binder) bindClaim(ctx context.Context, claim *model.Claim, slice []*model.Item, result *BindResult) error {
	itemStatus, err := MapClaimStatus(claim.Status)
	if err != nil {
		return err
	}

	quantity := claim.Quantity
	estimated := SplitImpactPoints(claim.EstimatedImpactPoints, quantity)
	actual := SplitImpactPoints(claim.ActualImpactPoints, quantity)

	// 先頭アイテム: 元のクレームレコードをin-placeで束縛する。
	// クレームIDと履歴（claimed_at等）を保持するため、新規作成はしない。
	claim.ItemID = &slice[0].ID
	claim.Quantity = 1
	claim.EstimatedImpactPoints = estimated[0]
	claim.ActualImpactPoints = actual[0]
	if err := b.claimRepo.Update(ctx, claim); err != nil {
		return fmt.Errorf("クレーム %s の束縛更新に失敗しました: %w", claim.ID, err)
	}
	if err := b.itemRepo.UpdateStatus(ctx, slice[0].ID, itemStatus); err != nil {
		return fmt.Errorf("アイテム %s の状態更新に失敗しました: %w", slice[0].ID, err)
	}
	slice[0].Status = itemStatus
	result.ClaimsUpdated++

	// 2件目以降のアイテム: 元クレームの内容をコピーした新規レコードを作成する。
	now := time.Now()
	for i := 1; i < quantity; i++ {
		unit := &model.Claim{
			ID:                    uuid.New().String(),
			UserID:                claim.UserID,
			ListingID:             claim.ListingID,
			ItemID:                &slice[i].ID,
			Quantity:              1,
			Status:                claim.Status,
			EstimatedImpactPoints: estimated[i],
			ActualImpactPoints:    actual[i],
			ClaimedAt:             claim.ClaimedAt,
			CollectedAt:           claim.CollectedAt,
			CreatedAt:             now,
			UpdatedAt:             now,
		}
		if err := b.claimRepo.Create(ctx, unit); err != nil {
			return fmt.Errorf("単位クレームの作成に失敗しました（元クレーム %s）: %w", claim.ID, err)
		}
		if err := b.itemRepo.UpdateStatus(ctx, slice[i].ID, itemStatus); err != nil {
			return fmt.Errorf("アイテム %s の状態更新に失敗しました: %w", slice[i].ID, err)
		}
		slice[i].Status = itemStatus
		result.ClaimsCreated++
	}

	return nil
}
