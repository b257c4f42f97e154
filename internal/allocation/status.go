// Package allocation はリスティング数量の個別アイテムへの展開と、
// クレームのアイテムへの割り当て（アロケーション＆リコンサイル）を提供する。
//
// 歴史的経緯として、クレームはリスティングの「数量」に対して作成されていた。
// このパッケージはその数量を個別追跡可能なアイテムに展開し（実体化）、
// 各クレームを先着順で具体的なアイテムに束縛し（バインド）、
// 分割時にインパクトポイントの総量を保存する（保存則）。
package allocation

import "github.com/umeats/umeats/internal/model"

// claimToItemStatus はクレーム状態からアイテム状態への明示的な対応表。
// エンティティ境界をまたぐ暗黙の型変換の代わりに使用し、
// 未定義の状態は検出可能なエラーとして扱う。
var claimToItemStatus = map[model.ClaimStatus]model.ItemStatus{
	model.ClaimStatusPending:   model.ItemStatusClaimed,
	model.ClaimStatusCollected: model.ItemStatusCollected,
	// キャンセル済みクレームに割り当てられたアイテムは再度受け取り可能になる。
	model.ClaimStatusCancelled: model.ItemStatusAvailable,
}

// MapClaimStatus はクレーム状態を対応するアイテム状態に変換する。
// 対応表にない状態の場合はUNMAPPED_CLAIM_STATUSエラーを返す。
func MapClaimStatus(status model.ClaimStatus) (model.ItemStatus, error) {
	itemStatus, ok := claimToItemStatus[status]
	if !ok {
		return "", model.NewUnmappedClaimStatusError(status)
	}
	return itemStatus, nil
}
