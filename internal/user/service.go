// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/umeats/umeats/internal/model"
	"github.com/umeats/umeats/internal/repository"
)

// PendingClaimCounter はユーザーの受け取り待ちクレーム数の照会インターフェース。
type PendingClaimCounter interface {
	ListByUserID(ctx context.Context, userID string) ([]*model.Claim, error)
}

// Service はユーザー管理のサービス層。
// 退会処理とロール変更のビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	claims      PendingClaimCounter
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	claims PendingClaimCounter,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		claims:      claims,
	}
}

// Withdraw はユーザーの退会処理を実行する。
// 受け取り待ちのクレームが残っている間は退会できない。クレームが
// 参照しているアイテムがclaimedのまま取り残されるのを防ぐため。
// 削除順序: sessions → user（+ CASCADE: identities）
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	claims, err := s.claims.ListByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("クレームの取得に失敗しました: %w", err)
	}
	for _, claim := range claims {
		if claim.Status == model.ClaimStatusPending {
			return model.NewValidationFailedError("受け取り待ちのクレームが残っています")
		}
	}

	slog.Info("退会処理を開始します",
		slog.String("user_id", userID),
	)

	// 1. セッションを削除
	if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("セッションの削除に失敗しました: %w", err)
	}

	// 2. ユーザーを削除（identitiesはCASCADE削除）
	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	// クレーム履歴は受け渡し実績として残す（claims.user_idはON DELETE SET NULL）。

	slog.Info("退会処理が完了しました",
		slog.String("user_id", userID),
	)

	return nil
}

// UpdateRole は指定ユーザーのロールを変更する。管理者のみ実行できる。
func (s *Service) UpdateRole(ctx context.Context, actorUserID, targetUserID string, role model.UserRole) error {
	switch role {
	case model.RoleStudent, model.RoleOrganization, model.RoleAdmin:
	default:
		return model.NewValidationFailedError(fmt.Sprintf("不明なロールです: %s", role))
	}

	actor, err := s.userRepo.FindByID(ctx, actorUserID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if actor == nil {
		return model.NewUserNotFoundError()
	}
	if actor.Role != model.RoleAdmin {
		return model.NewForbiddenRoleError(model.RoleAdmin)
	}

	target, err := s.userRepo.FindByID(ctx, targetUserID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if target == nil {
		return model.NewUserNotFoundError()
	}

	if err := s.userRepo.UpdateRole(ctx, targetUserID, role); err != nil {
		return fmt.Errorf("ロールの更新に失敗しました: %w", err)
	}

	slog.Info("ユーザーのロールを変更しました",
		slog.String("user_id", targetUserID),
		slog.String("role", string(role)),
		slog.String("changed_by", actorUserID),
	)

	return nil
}
