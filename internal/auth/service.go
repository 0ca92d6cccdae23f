// Package auth はパスワード認証とアクセストークンの発行・検証を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hitoshi/postboard/internal/model"
	"github.com/hitoshi/postboard/internal/repository"
)

// PasswordMinLength はパスワードの最小文字数。
const PasswordMinLength = 6

var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// RegisterInput はユーザー登録の入力。
type RegisterInput struct {
	FullName string
	Username string
	Email    string
	Password string
}

// LoginInput はログインの入力。EmailとUsernameはいずれか一方があればよい。
type LoginInput struct {
	Email    string
	Username string
	Password string
}

// AuthResult は登録・ログイン成功時に返すユーザーとアクセストークン。
type AuthResult struct {
	User      *model.User
	Token     string
	ExpiresAt time.Time
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo repository.UserRepository
	hasher   *PasswordHasher
	tokens   *TokenIssuer

	dummyOnce sync.Once
	dummyHash string
}

// NewService はServiceを生成する。
func NewService(userRepo repository.UserRepository, hasher *PasswordHasher, tokens *TokenIssuer) *Service {
	return &Service{
		userRepo: userRepo,
		hasher:   hasher,
		tokens:   tokens,
	}
}

// Register はユーザーを登録し、アクセストークンを発行する。
// メールアドレスは前後の空白を除去して小文字に正規化する。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	fullName := strings.TrimSpace(in.FullName)
	username := strings.TrimSpace(in.Username)
	email := normalizeEmail(in.Email)

	if fullName == "" || username == "" || email == "" || in.Password == "" {
		return nil, model.NewValidationError("全ての項目を入力してください。")
	}
	if !emailPattern.MatchString(email) {
		return nil, model.NewValidationError("メールアドレスの形式が正しくありません。")
	}
	if utf8.RuneCountInString(in.Password) < PasswordMinLength {
		return nil, model.NewValidationError(fmt.Sprintf("パスワードは%d文字以上で入力してください。", PasswordMinLength))
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil {
		return nil, model.NewConflictError("メールアドレス")
	}
	existing, err = s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if existing != nil {
		return nil, model.NewConflictError("ユーザー名")
	}

	hash, err := s.hasher.Hash(in.Password)
	if errors.Is(err, ErrPasswordTooLong) {
		return nil, model.NewValidationError("パスワードが長すぎます（72バイト以内で入力してください）。")
	}
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.New().String(),
		FullName:     fullName,
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// 事前チェックと挿入の間に競合した登録は一意制約違反として検出する
	if err := s.userRepo.Create(ctx, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateEmail):
			return nil, model.NewConflictError("メールアドレス")
		case errors.Is(err, repository.ErrDuplicateUsername):
			return nil, model.NewConflictError("ユーザー名")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)

	return s.issue(user)
}

// Login はメールアドレスまたはユーザー名とパスワードで認証し、アクセストークンを発行する。
// ユーザー不在とパスワード不一致はいずれもInvalidCredentialsとして返す。
func (s *Service) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	email := normalizeEmail(in.Email)
	username := strings.TrimSpace(in.Username)

	if (email == "" && username == "") || in.Password == "" {
		return nil, model.NewValidationError("メールアドレスまたはユーザー名とパスワードを入力してください。")
	}

	user, err := s.userRepo.FindByEmailOrUsername(ctx, email, username)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		// 応答時間からユーザーの存在を推測されないよう、ダミーハッシュとも照合する
		s.hasher.Matches(s.dummyPasswordHash(), in.Password)
		slog.Warn("login failed: user not found")
		return nil, model.NewInvalidCredentialsError()
	}
	if !s.hasher.Matches(user.PasswordHash, in.Password) {
		slog.Warn("login failed: password mismatch", slog.String("user_id", user.ID))
		return nil, model.NewInvalidCredentialsError()
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))
	return s.issue(user)
}

// CurrentUser は検証済みの識別情報に対応するユーザーを取得する。
func (s *Service) CurrentUser(ctx context.Context, identity model.Identity) (*model.User, error) {
	if identity.IsZero() {
		return nil, model.NewUnauthenticatedError()
	}

	user, err := s.userRepo.FindByID(ctx, identity.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// TokenTTL はアクセストークンの有効期間を返す。
func (s *Service) TokenTTL() time.Duration {
	return s.tokens.TTL()
}

func (s *Service) issue(user *model.User) (*AuthResult, error) {
	token, expiresAt, err := s.tokens.Issue(model.Identity{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &AuthResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// dummyPasswordHash はユーザー不在時の照合に使うハッシュを初回のみ生成して返す。
func (s *Service) dummyPasswordHash() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(uuid.New().String())
		if err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
