// Package post はブログ投稿の検索・作成・更新・削除のドメインロジックを提供する。
package post

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hitoshi/postboard/internal/model"
	"github.com/hitoshi/postboard/internal/repository"
	"github.com/hitoshi/postboard/internal/security"
)

// ImageChecker は投稿に添付される画像URLの検証インターフェース。
type ImageChecker interface {
	ValidateURL(rawURL string) error
	Probe(ctx context.Context, rawURL string) error
}

// ListQuery は投稿一覧の検索条件。
type ListQuery struct {
	Search string
	Page   int
	Limit  int
}

// CreateInput は投稿作成の入力。
type CreateInput struct {
	Title    string
	Content  string
	ImageURL string
}

// UpdateInput は投稿更新の入力。nilのフィールドは変更しない。
type UpdateInput struct {
	Title    *string
	Content  *string
	ImageURL *string
}

// ServiceConfig は投稿サービスの設定。
type ServiceConfig struct {
	Pagination Pagination
	// ProbeImages がtrueの場合、画像URLに実際にHEADリクエストを送って確認する。
	ProbeImages bool
}

// Service は投稿のサービス層。
type Service struct {
	repo      repository.PostRepository
	sanitizer security.ContentSanitizer
	images    ImageChecker
	config    ServiceConfig
	now       func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	repo repository.PostRepository,
	sanitizer security.ContentSanitizer,
	images ImageChecker,
	config ServiceConfig,
) *Service {
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		images:    images,
		config:    config,
		now:       time.Now,
	}
}

// Pagination は一覧取得に使うページネーション設定を返す。
func (s *Service) Pagination() Pagination {
	return s.config.Pagination
}

// List は検索語に一致する投稿を新しい順にページ単位で返す。
// totalはページネーション適用前の一致件数。
func (s *Service) List(ctx context.Context, q ListQuery) ([]*model.Post, int, error) {
	page, limit := s.config.Pagination.Normalize(q.Page, q.Limit)
	search := strings.TrimSpace(q.Search)

	total, err := s.repo.Count(ctx, search)
	if err != nil {
		return nil, 0, fmt.Errorf("投稿件数の取得に失敗しました: %w", err)
	}

	posts, err := s.repo.List(ctx, model.PostFilter{
		Search: search,
		Offset: (page - 1) * limit,
		Limit:  limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("投稿一覧の取得に失敗しました: %w", err)
	}

	return posts, total, nil
}

// GetByID は指定IDの投稿を返す。形式が不正なIDも未検出として扱う。
func (s *Service) GetByID(ctx context.Context, id string) (*model.Post, error) {
	return s.findPost(ctx, id)
}

// ListOwned は呼び出し元ユーザーの全投稿を新しい順に返す。
func (s *Service) ListOwned(ctx context.Context, identity model.Identity) ([]*model.Post, error) {
	if identity.IsZero() {
		return nil, model.NewUnauthenticatedError()
	}

	posts, err := s.repo.ListByAuthorID(ctx, identity.UserID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの投稿一覧の取得に失敗しました: %w", err)
	}
	return posts, nil
}

// Create は呼び出し元ユーザーを投稿者として投稿を作成する。
// 投稿者情報は入力ではなく検証済みの識別情報から設定する。
func (s *Service) Create(ctx context.Context, identity model.Identity, in CreateInput) (*model.Post, error) {
	if identity.IsZero() {
		return nil, model.NewUnauthenticatedError()
	}

	title := strings.TrimSpace(in.Title)
	content := s.cleanContent(in.Content)
	imageURL := strings.TrimSpace(in.ImageURL)

	if title == "" || content == "" {
		return nil, model.NewValidationError("タイトルと本文を入力してください。")
	}
	if err := validatePost(title, content); err != nil {
		return nil, err
	}
	if err := s.checkImage(ctx, imageURL); err != nil {
		return nil, err
	}

	now := s.now()
	post := &model.Post{
		ID:             uuid.New().String(),
		Title:          title,
		Content:        content,
		ImageURL:       imageURL,
		AuthorID:       identity.UserID,
		AuthorUsername: identity.Username,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("投稿の作成に失敗しました: %w", err)
	}

	slog.Info("post created",
		slog.String("post_id", post.ID),
		slog.String("user_id", identity.UserID),
	)
	return post, nil
}

// Update は投稿者本人のみが投稿を更新できる。
// 指定されたフィールドだけを置き換え、更新後の投稿全体を再検証する。
func (s *Service) Update(ctx context.Context, identity model.Identity, id string, in UpdateInput) (*model.Post, error) {
	if identity.IsZero() {
		return nil, model.NewUnauthenticatedError()
	}

	post, err := s.findPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if !post.IsOwnedBy(identity) {
		slog.Warn("post update forbidden",
			slog.String("post_id", post.ID),
			slog.String("user_id", identity.UserID),
		)
		return nil, model.NewForbiddenError("編集")
	}

	updated := *post
	if in.Title != nil {
		updated.Title = strings.TrimSpace(*in.Title)
	}
	if in.Content != nil {
		updated.Content = s.cleanContent(*in.Content)
	}
	if in.ImageURL != nil {
		updated.ImageURL = strings.TrimSpace(*in.ImageURL)
	}

	if err := validatePost(updated.Title, updated.Content); err != nil {
		return nil, err
	}
	if updated.ImageURL != post.ImageURL {
		if err := s.checkImage(ctx, updated.ImageURL); err != nil {
			return nil, err
		}
	}

	updated.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, &updated); err != nil {
		return nil, fmt.Errorf("投稿の更新に失敗しました: %w", err)
	}

	slog.Info("post updated",
		slog.String("post_id", updated.ID),
		slog.String("user_id", identity.UserID),
	)
	return &updated, nil
}

// Delete は投稿者本人のみが投稿を削除できる。
func (s *Service) Delete(ctx context.Context, identity model.Identity, id string) error {
	if identity.IsZero() {
		return model.NewUnauthenticatedError()
	}

	post, err := s.findPost(ctx, id)
	if err != nil {
		return err
	}
	if !post.IsOwnedBy(identity) {
		slog.Warn("post delete forbidden",
			slog.String("post_id", post.ID),
			slog.String("user_id", identity.UserID),
		)
		return model.NewForbiddenError("削除")
	}

	if err := s.repo.Delete(ctx, post.ID); err != nil {
		return fmt.Errorf("投稿の削除に失敗しました: %w", err)
	}

	slog.Info("post deleted",
		slog.String("post_id", post.ID),
		slog.String("user_id", identity.UserID),
	)
	return nil
}

func (s *Service) findPost(ctx context.Context, id string) (*model.Post, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewPostNotFoundError(id)
	}

	post, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("投稿の取得に失敗しました: %w", err)
	}
	if post == nil {
		return nil, model.NewPostNotFoundError(id)
	}
	return post, nil
}

// cleanContent は本文を無害化し、前後の空白を除去する。
func (s *Service) cleanContent(raw string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(strings.TrimSpace(raw)))
}

// checkImage は空でない画像URLを検証する。
func (s *Service) checkImage(ctx context.Context, imageURL string) error {
	if imageURL == "" {
		return nil
	}
	if err := s.images.ValidateURL(imageURL); err != nil {
		slog.Debug("image URL rejected", slog.String("reason", err.Error()))
		return model.NewInvalidImageURLError("公開されたhttp(s)のURLではありません")
	}
	if !s.config.ProbeImages {
		return nil
	}
	if err := s.images.Probe(ctx, imageURL); err != nil {
		slog.Debug("image URL probe failed", slog.String("reason", err.Error()))
		return model.NewInvalidImageURLError("画像を取得できませんでした")
	}
	return nil
}

// validatePost はタイトルと本文の文字数を検証する。
func validatePost(title, content string) error {
	titleLen := utf8.RuneCountInString(title)
	if titleLen < model.PostTitleMinLength || titleLen > model.PostTitleMaxLength {
		return model.NewValidationError(fmt.Sprintf(
			"タイトルは%d〜%d文字で入力してください。", model.PostTitleMinLength, model.PostTitleMaxLength))
	}
	if utf8.RuneCountInString(content) < model.PostContentMinLength {
		return model.NewValidationError(fmt.Sprintf(
			"本文は%d文字以上で入力してください。", model.PostContentMinLength))
	}
	return nil
}
