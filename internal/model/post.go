package model

import "time"

// 投稿フィールドの長さ制約（文字数）。
// DBスキーマのCHECK制約と同じ値を使用する。
const (
	PostTitleMinLength   = 5
	PostTitleMaxLength   = 120
	PostContentMinLength = 50
)

// Post はブログ投稿を表す。
// AuthorUsernameは作成時点のユーザー名の非正規化コピーであり、表示用に使う。
// 所有者判定は不変なAuthorIDで行う。
type Post struct {
	ID             string
	Title          string
	Content        string
	ImageURL       string
	AuthorID       string
	AuthorUsername string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsOwnedBy は指定の識別情報がこの投稿の所有者かどうかを返す。
func (p *Post) IsOwnedBy(identity Identity) bool {
	if identity.UserID == "" {
		return false
	}
	return p.AuthorID == identity.UserID
}

// PostFilter は投稿一覧の検索条件。
type PostFilter struct {
	// Search はタイトルまたは投稿者名に対する部分一致（大文字小文字無視）の検索語。
	Search string
	Offset int
	Limit  int
}
