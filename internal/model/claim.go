// Package model はドメインモデルを定義する。
package model

import "time"

// ClaimStatus はクレーム（受け取り予約）の状態を表す。
type ClaimStatus string

const (
	// ClaimStatusPending は受け取り待ちのクレーム。
	ClaimStatusPending ClaimStatus = "pending"
	// ClaimStatusCollected は受け渡しが完了したクレーム。
	ClaimStatusCollected ClaimStatus = "collected"
	// ClaimStatusCancelled はキャンセルされたクレーム。
	ClaimStatusCancelled ClaimStatus = "cancelled"
)

// Claim は学生によるアイテムの受け取り予約を表す。
//
// リコンサイル前のレガシークレームはItemIDがnilでQuantityが1以上の
// 「数量に対するクレーム」として保存されている。リコンサイル後は
// すべてのクレームがちょうど1つのアイテムを参照し（ItemID非nil、
// Quantity=1）、同一アイテムを複数のクレームが参照することはない。
//
// EstimatedImpactPointsはクレーム時点の見積もり、ActualImpactPointsは
// 受け渡し完了時に確定する実績値。未確定の間はnilを保持する
// （0ではない。「まだ受け取られていない」ことを表す）。
type Claim struct {
	ID                    string
	UserID                string // 退会済みユーザーの履歴行では空文字列
	ListingID             string
	ItemID                *string
	Quantity              int
	Status                ClaimStatus
	EstimatedImpactPoints *float64
	ActualImpactPoints    *float64
	ClaimedAt             time.Time
	CollectedAt           *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// IsLegacy はアイテム未割り当てのレガシークレームかどうかを返す。
func (c *Claim) IsLegacy() bool {
	return c.ItemID == nil
}
