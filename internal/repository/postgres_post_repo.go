package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hitoshi/postboard/internal/model"
)

// PostgresPostRepo はPostgreSQLを使用した投稿リポジトリ。
type PostgresPostRepo struct {
	db *sql.DB
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
func NewPostgresPostRepo(db *sql.DB) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

const selectPostColumns = `
	SELECT id, title, content, image_url, author_id, author_username, created_at, updated_at
	FROM posts`

// searchCondition は検索語を受け取る$1プレースホルダに対するWHERE句。
// 空文字列の場合は全件に一致する。
const searchCondition = `
	WHERE ($1 = '' OR title ILIKE '%' || $1 || '%' ESCAPE '\' OR author_username ILIKE '%' || $1 || '%' ESCAPE '\')`

// likeEscaper はLIKEパターンのメタ文字をリテラルとして扱うためにエスケープする。
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike は検索語をILIKEの部分一致パターンに埋め込める形にエスケープする。
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// Create は投稿を作成する。
func (r *PostgresPostRepo) Create(ctx context.Context, post *model.Post) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO posts (id, title, content, image_url, author_id, author_username, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		post.ID, post.Title, post.Content, post.ImageURL,
		post.AuthorID, post.AuthorUsername, post.CreatedAt, post.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("投稿の作成に失敗しました: %w", err)
	}
	return nil
}

// FindByID は指定IDの投稿を取得する。見つからない場合はnilを返す。
func (r *PostgresPostRepo) FindByID(ctx context.Context, id string) (*model.Post, error) {
	post := &model.Post{}
	err := r.db.QueryRowContext(ctx, selectPostColumns+` WHERE id = $1`, id).Scan(
		&post.ID, &post.Title, &post.Content, &post.ImageURL,
		&post.AuthorID, &post.AuthorUsername, &post.CreatedAt, &post.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("投稿の取得に失敗しました: %w", err)
	}
	return post, nil
}

// List は検索条件に一致する投稿を新しい順に取得する。
// 同一作成日時の投稿はIDの降順で並べ、ページ間で順序が揺れないようにする。
func (r *PostgresPostRepo) List(ctx context.Context, filter model.PostFilter) ([]*model.Post, error) {
	rows, err := r.db.QueryContext(ctx,
		selectPostColumns+searchCondition+`
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2 OFFSET $3`,
		escapeLike(filter.Search), filter.Limit, filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("投稿一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return scanPosts(rows)
}

// Count は検索語に一致する投稿の総数を返す。
func (r *PostgresPostRepo) Count(ctx context.Context, search string) (int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM posts`+searchCondition,
		escapeLike(search),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("投稿件数の取得に失敗しました: %w", err)
	}
	return total, nil
}

// ListByAuthorID は指定ユーザーの全投稿を新しい順に取得する。
func (r *PostgresPostRepo) ListByAuthorID(ctx context.Context, authorID string) ([]*model.Post, error) {
	rows, err := r.db.QueryContext(ctx,
		selectPostColumns+`
		 WHERE author_id = $1
		 ORDER BY created_at DESC, id DESC`,
		authorID,
	)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの投稿一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return scanPosts(rows)
}

// Update は投稿のタイトル・本文・画像URLを上書き更新する。
// 投稿者とcreated_atは変更しない。
func (r *PostgresPostRepo) Update(ctx context.Context, post *model.Post) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE posts SET title = $2, content = $3, image_url = $4, updated_at = $5
		 WHERE id = $1`,
		post.ID, post.Title, post.Content, post.ImageURL, post.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("投稿の更新に失敗しました: %w", err)
	}
	return nil
}

// Delete は指定IDの投稿を削除する。
func (r *PostgresPostRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("投稿の削除に失敗しました: %w", err)
	}
	return nil
}

func scanPosts(rows *sql.Rows) ([]*model.Post, error) {
	posts := make([]*model.Post, 0)
	for rows.Next() {
		post := &model.Post{}
		if err := rows.Scan(
			&post.ID, &post.Title, &post.Content, &post.ImageURL,
			&post.AuthorID, &post.AuthorUsername, &post.CreatedAt, &post.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("投稿行の読み取りに失敗しました: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("投稿一覧の走査に失敗しました: %w", err)
	}
	return posts, nil
}

// compile-time interface check
var _ PostRepository = (*PostgresPostRepo)(nil)
