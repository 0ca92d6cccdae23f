// Package model はドメインモデルを定義する。
package model

import "time"

// User はブログに投稿するユーザーを表す。
// PasswordHashはbcryptハッシュであり、平文パスワードは保持しない。
type User struct {
	ID           string
	FullName     string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity はアクセストークンから復元された検証済みの利用者情報。
// 認証ミドルウェアが生成し、サービス層へ明示的に渡す。
type Identity struct {
	UserID   string
	Username string
	Email    string
}

// IsZero は識別情報が空かどうかを返す。
func (i Identity) IsZero() bool {
	return i.UserID == "" && i.Username == ""
}
