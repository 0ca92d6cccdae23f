package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/postboard/internal/auth"
	"github.com/hitoshi/postboard/internal/metrics"
	"github.com/hitoshi/postboard/internal/middleware"
	"github.com/hitoshi/postboard/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.AuthResult, error)
	Login(ctx context.Context, in auth.LoginInput) (*auth.AuthResult, error)
	CurrentUser(ctx context.Context, identity model.Identity) (*model.User, error)
}

// AuthMetrics は認証ハンドラーが記録するメトリクス。
type AuthMetrics interface {
	RecordAuthAttempt(action, outcome string)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain string
	CookieSecure bool
}

// AuthHandler は登録・ログイン関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
	metrics AuthMetrics
	now     func() time.Time
}

// NewAuthHandler はAuthHandlerを生成する。metricsがnilの場合は記録しない。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig, m AuthMetrics) *AuthHandler {
	if m == nil {
		m = nopCollector{}
	}
	return &AuthHandler{
		service: service,
		config:  config,
		metrics: m,
		now:     time.Now,
	}
}

type registerRequest struct {
	FullName string `json:"fullName"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// authUserResponse は登録・ログイン成功時に返すユーザー情報とトークン。
type authUserResponse struct {
	ID          string `json:"id"`
	FullName    string `json:"fullName"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	AccessToken string `json:"accessToken"`
}

type authResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Data    authUserResponse `json:"data"`
}

type meUserResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type meResponse struct {
	Success bool           `json:"success"`
	Data    meUserResponse `json:"data"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Register はユーザー登録を処理する。
// POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	result, err := h.service.Register(r.Context(), auth.RegisterInput{
		FullName: req.FullName,
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	h.metrics.RecordAuthAttempt("register", metrics.Outcome(err))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.setAccessTokenCookie(w, result)
	writeJSON(w, http.StatusCreated, authResponse{
		Success: true,
		Message: "アカウントを作成しました。",
		Data:    toAuthUserResponse(result),
	})
}

// Login はメールアドレスまたはユーザー名とパスワードでログインする。
// POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	result, err := h.service.Login(r.Context(), auth.LoginInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	h.metrics.RecordAuthAttempt("login", metrics.Outcome(err))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.setAccessTokenCookie(w, result)
	writeJSON(w, http.StatusOK, authResponse{
		Success: true,
		Message: "ログインしました。",
		Data:    toAuthUserResponse(result),
	})
}

// Logout はアクセストークンCookieを削除する。
// トークンはステートレスなため、サーバー側で無効化するものはない。
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessTokenCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, messageResponse{
		Success: true,
		Message: "ログアウトしました。",
	})
}

// Me は現在のログインユーザー情報を返す。
// GET /api/v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}

	user, err := h.service.CurrentUser(r.Context(), identity)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		Success: true,
		Data: meUserResponse{
			ID:       user.ID,
			Username: user.Username,
			Email:    user.Email,
		},
	})
}

// setAccessTokenCookie はアクセストークンをHttpOnly Cookieに設定する。
// 有効期間はトークンの有効期限に合わせる。
func (h *AuthHandler) setAccessTokenCookie(w http.ResponseWriter, result *auth.AuthResult) {
	maxAge := int(result.ExpiresAt.Sub(h.now()).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessTokenCookieName,
		Value:    result.Token,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   maxAge,
		Expires:  result.ExpiresAt,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func toAuthUserResponse(result *auth.AuthResult) authUserResponse {
	return authUserResponse{
		ID:          result.User.ID,
		FullName:    result.User.FullName,
		Username:    result.User.Username,
		Email:       result.User.Email,
		AccessToken: result.Token,
	}
}
