// Package model はドメインモデルを定義する。
package model

import "time"

// ListingStatus は食品リスティングの状態を表す。
type ListingStatus string

const (
	// ListingStatusActive は受け取り可能なリスティング。
	ListingStatusActive ListingStatus = "active"
	// ListingStatusCompleted は全アイテムの受け渡しが完了したリスティング。
	ListingStatusCompleted ListingStatus = "completed"
	// ListingStatusCancelled は提供団体がキャンセルしたリスティング。
	ListingStatusCancelled ListingStatus = "cancelled"
)

// Listing は団体が提供する余剰食品のリスティングを表す。
// Quantityは1以上。アイテム実体化後はQuantityとitemsテーブルの
// 行数が一致していなければならない。
type Listing struct {
	ID             string
	OrganizationID string
	Title          string
	Description    string // サニタイズ済みHTML
	Quantity       int
	Unit           string // 例: "boxes", "meals"
	AvailableFrom  time.Time
	AvailableUntil time.Time
	Status         ListingStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ListingWithRemaining はリスティングと残り受け取り可能アイテム数を
// 結合したモデル。一覧APIでitemsテーブルと集約JOINして取得される。
type ListingWithRemaining struct {
	Listing
	RemainingItems int
}

// Organization は食品を提供する団体を表す。
// TotalDonationsとTotalImpactPointsはランキング用の累積値で、
// 受け渡し完了時に同一トランザクション内で加算される。
type Organization struct {
	ID                string
	OwnerUserID       string
	Name              string
	Description       string
	TotalDonations    int
	TotalImpactPoints float64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
