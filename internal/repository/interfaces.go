// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/postboard/internal/model"
)

// 一意制約違反を表すエラー。サービス層で409 Conflictに変換する。
var (
	ErrDuplicateEmail    = errors.New("email already exists")
	ErrDuplicateUsername = errors.New("username already exists")
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Create はユーザーを作成する。
	// メールアドレスまたはユーザー名が重複する場合はErrDuplicateEmail/ErrDuplicateUsernameを返す。
	Create(ctx context.Context, user *model.User) error

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByUsername はユーザー名でユーザーを検索する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// FindByEmailOrUsername はメールアドレスまたはユーザー名のいずれかに一致するユーザーを検索する。
	// 空文字列の条件は無視する。見つからない場合はnilを返す。
	FindByEmailOrUsername(ctx context.Context, email, username string) (*model.User, error)
}

// PostRepository は投稿データの永続化インターフェース。
type PostRepository interface {
	// Create は投稿を作成する。
	Create(ctx context.Context, post *model.Post) error

	// FindByID は指定IDの投稿を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Post, error)

	// List は検索条件に一致する投稿をcreated_at降順で取得する。
	List(ctx context.Context, filter model.PostFilter) ([]*model.Post, error)

	// Count は検索語に一致する投稿の総数を返す（ページネーション前の件数）。
	Count(ctx context.Context, search string) (int, error)

	// ListByAuthorID は指定ユーザーの全投稿をcreated_at降順で取得する。
	ListByAuthorID(ctx context.Context, authorID string) ([]*model.Post, error)

	// Update は投稿のタイトル・本文・画像URL・更新日時を保存する。
	Update(ctx context.Context, post *model.Post) error

	// Delete は指定IDの投稿を削除する。
	Delete(ctx context.Context, id string) error
}
