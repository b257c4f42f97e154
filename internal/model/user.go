// Package model はドメインモデルを定義する。
package model

import "time"

// UserRole はユーザーの役割を表す。
type UserRole string

const (
	// RoleStudent は食品を受け取る学生ユーザー。
	RoleStudent UserRole = "student"
	// RoleOrganization は余剰食品を提供する団体の担当者ユーザー。
	RoleOrganization UserRole = "organization"
	// RoleAdmin はプラットフォーム管理者。
	RoleAdmin UserRole = "admin"
)

// User はサービス利用ユーザーを表す。
// 初回ログイン時はstudentロールで作成され、団体担当者・管理者への
// 昇格は管理者操作で行う。
type User struct {
	ID        string
	Email     string
	Name      string
	Role      UserRole
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Identity は外部IdPとの紐付け情報を表す。
// 将来的に複数のIdP（Google, GitHub等）に対応可能な構造。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
