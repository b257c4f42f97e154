// Package model はドメインモデルを定義する。
package model

import "time"

// ItemStatus はアイテム（リスティング1単位分）の状態を表す。
type ItemStatus string

const (
	// ItemStatusAvailable は未受付のアイテム。
	ItemStatusAvailable ItemStatus = "available"
	// ItemStatusClaimed はクレーム済み・未受け取りのアイテム。
	ItemStatusClaimed ItemStatus = "claimed"
	// ItemStatusCollected は受け渡し済みのアイテム。
	ItemStatusCollected ItemStatus = "collected"
)

// Item はリスティングの数量1単位分を表す個別追跡可能なレコード。
// ItemNumberはリスティング内で1始まりの連番で、同一リスティングの
// アイテム番号集合は必ず {1..Quantity} になる（欠番・重複なし）。
type Item struct {
	ID         string
	ListingID  string
	ItemNumber int
	Status     ItemStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
