package allocation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/umeats/umeats/internal/model"
	"github.com/umeats/umeats/internal/repository"
)

// Materializer はリスティングの整数数量を個別アイテムに展開する。
type Materializer struct {
	itemRepo repository.ItemRepository
}

// NewMaterializer はMaterializerを生成する。
func NewMaterializer(itemRepo repository.ItemRepository) *Materializer {
	return &Materializer{itemRepo: itemRepo}
}

// Materialize はリスティングの数量Nに対して1..Nの連番を持つN件のアイテムを
// available状態で作成し、item_number昇順で返す。
//
// 実体化済みリスティングへの再実行はALREADY_MATERIALIZEDエラーになる。
// 番号の重複付与を避けるため、暗黙のno-opにはしない。
// 数量が1未満の場合はINVALID_QUANTITYエラーを返す。
func (m *Materializer) Materialize(ctx context.Context, listing *model.Listing) ([]*model.Item, error) {
	if listing.Quantity < 1 {
		return nil, model.NewInvalidQuantityError(listing.ID, listing.Quantity)
	}

	count, err := m.itemRepo.CountByListingID(ctx, listing.ID)
	if err != nil {
		return nil, fmt.Errorf("既存アイテム数の確認に失敗しました: %w", err)
	}
	if count > 0 {
		return nil, model.NewAlreadyMaterializedError(listing.ID)
	}

	now := time.Now()
	items := make([]*model.Item, 0, listing.Quantity)
	for n := 1; n <= listing.Quantity; n++ {
		items = append(items, &model.Item{
			ID:         uuid.New().String(),
			ListingID:  listing.ID,
			ItemNumber: n,
			Status:     model.ItemStatusAvailable,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}

	if err := m.itemRepo.CreateBatch(ctx, items); err != nil {
		return nil, fmt.Errorf("アイテムの実体化に失敗しました: %w", err)
	}

	return items, nil
}
