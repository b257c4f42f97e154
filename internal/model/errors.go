// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, listing, claim, allocation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeAlreadyMaterialized = "ALREADY_MATERIALIZED"
	ErrCodeInvalidQuantity     = "INVALID_QUANTITY"
	ErrCodeInsufficientItems   = "INSUFFICIENT_ITEMS"
	ErrCodeQuantityMismatch    = "QUANTITY_MISMATCH"
	ErrCodeUnmappedClaimStatus = "UNMAPPED_CLAIM_STATUS"
	ErrCodeListingNotFound     = "LISTING_NOT_FOUND"
	ErrCodeListingNotActive    = "LISTING_NOT_ACTIVE"
	ErrCodeListingHasClaims    = "LISTING_HAS_CLAIMS"
	ErrCodeNotListingOwner     = "NOT_LISTING_OWNER"
	ErrCodeItemNotAvailable    = "ITEM_NOT_AVAILABLE"
	ErrCodeClaimNotFound       = "CLAIM_NOT_FOUND"
	ErrCodeClaimNotPending     = "CLAIM_NOT_PENDING"
	ErrCodeForbiddenRole       = "FORBIDDEN_ROLE"
	ErrCodeValidationFailed    = "VALIDATION_FAILED"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
)

// NewAlreadyMaterializedError はアイテム実体化の二重実行エラーを生成する。
// 番号の重複付与を防ぐため、実体化済みリスティングへの再実行は
// 暗黙のno-opではなくエラーとして扱う。
func NewAlreadyMaterializedError(listingID string) *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyMaterialized,
		Message:  fmt.Sprintf("リスティングのアイテムは既に実体化されています: %s", listingID),
		Category: "allocation",
		Action:   "対象リスティングの既存アイテムを確認してください。",
	}
}

// NewInvalidQuantityError は数量が不正な場合のエラーを生成する。
func NewInvalidQuantityError(listingID string, quantity int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidQuantity,
		Message:  fmt.Sprintf("リスティング %s の数量が不正です: %d", listingID, quantity),
		Category: "allocation",
		Action:   "数量には1以上の整数を指定してください。",
	}
}

// NewInsufficientItemsError は未割り当てアイテムの不足を表すエラーを生成する。
// バインド処理では致命的エラーではなく警告として記録され、処理は継続する。
func NewInsufficientItemsError(claimID string, requested, remaining int) *APIError {
	return &APIError{
		Code:     ErrCodeInsufficientItems,
		Message:  fmt.Sprintf("クレーム %s の要求数量 %d に対して残りアイテムは %d 件です", claimID, requested, remaining),
		Category: "allocation",
		Action:   "リスティングの数量とクレーム履歴の整合性を確認してください。",
	}
}

// NewQuantityMismatchError はリスティング数量と実体化済みアイテム数の
// 不一致エラーを生成する。クレーム発生後に数量が編集された場合に検出される。
func NewQuantityMismatchError(listingID string, quantity, itemCount int) *APIError {
	return &APIError{
		Code:     ErrCodeQuantityMismatch,
		Message:  fmt.Sprintf("リスティング %s の数量 %d と実体化済みアイテム数 %d が一致しません", listingID, quantity, itemCount),
		Category: "allocation",
		Action:   "リスティングの数量変更履歴を確認してください。",
	}
}

// NewUnmappedClaimStatusError は対応表にないクレーム状態のエラーを生成する。
func NewUnmappedClaimStatusError(status ClaimStatus) *APIError {
	return &APIError{
		Code:     ErrCodeUnmappedClaimStatus,
		Message:  fmt.Sprintf("アイテム状態への対応が未定義のクレーム状態です: %s", status),
		Category: "allocation",
		Action:   "クレーム状態の値を確認してください。",
	}
}

// NewListingNotFoundError はリスティング未検出エラーを生成する。
func NewListingNotFoundError(listingID string) *APIError {
	return &APIError{
		Code:     ErrCodeListingNotFound,
		Message:  fmt.Sprintf("指定されたリスティングが見つかりません: %s", listingID),
		Category: "listing",
		Action:   "リスティングIDを確認してください。",
	}
}

// NewListingNotActiveError は受付中でないリスティングへの操作エラーを生成する。
func NewListingNotActiveError(listingID string) *APIError {
	return &APIError{
		Code:     ErrCodeListingNotActive,
		Message:  fmt.Sprintf("リスティングは受付中ではありません: %s", listingID),
		Category: "listing",
		Action:   "受付中のリスティングを選択してください。",
	}
}

// NewListingHasClaimsError はアクティブなクレームが残っているリスティングの
// 削除エラーを生成する。
func NewListingHasClaimsError(listingID string) *APIError {
	return &APIError{
		Code:     ErrCodeListingHasClaims,
		Message:  fmt.Sprintf("リスティングには受け取り待ちのクレームが存在します: %s", listingID),
		Category: "listing",
		Action:   "クレームの受け渡しまたはキャンセルの完了後に削除してください。",
	}
}

// NewNotListingOwnerError はリスティング所有者以外による変更エラーを生成する。
func NewNotListingOwnerError() *APIError {
	return &APIError{
		Code:     ErrCodeNotListingOwner,
		Message:  "リスティングを変更できるのは所有団体または管理者のみです。",
		Category: "auth",
		Action:   "所有団体のアカウントでログインしてください。",
	}
}

// NewItemNotAvailableError は受け取り可能なアイテムがない場合のエラーを生成する。
func NewItemNotAvailableError(listingID string) *APIError {
	return &APIError{
		Code:     ErrCodeItemNotAvailable,
		Message:  fmt.Sprintf("リスティングに受け取り可能なアイテムがありません: %s", listingID),
		Category: "claim",
		Action:   "他のリスティングを選択してください。",
	}
}

// NewClaimNotFoundError はクレーム未検出エラーを生成する。
func NewClaimNotFoundError(claimID string) *APIError {
	return &APIError{
		Code:     ErrCodeClaimNotFound,
		Message:  fmt.Sprintf("指定されたクレームが見つかりません: %s", claimID),
		Category: "claim",
		Action:   "クレームIDを確認してください。",
	}
}

// NewClaimNotPendingError は受け取り待ち状態でないクレームへの操作エラーを生成する。
func NewClaimNotPendingError(claimID string) *APIError {
	return &APIError{
		Code:     ErrCodeClaimNotPending,
		Message:  fmt.Sprintf("クレームは受け取り待ち状態ではありません: %s", claimID),
		Category: "claim",
		Action:   "受け取り待ちのクレームに対してのみ実行できます。",
	}
}

// NewForbiddenRoleError はロール不足による操作拒否エラーを生成する。
func NewForbiddenRoleError(required UserRole) *APIError {
	return &APIError{
		Code:     ErrCodeForbiddenRole,
		Message:  fmt.Sprintf("この操作には %s ロールが必要です。", required),
		Category: "auth",
		Action:   "必要なロールを持つアカウントでログインしてください。",
	}
}

// NewValidationFailedError は入力値検証エラーを生成する。
func NewValidationFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("入力値が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewUnauthorizedError は未認証リクエストのエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてから再度お試しください。",
	}
}
