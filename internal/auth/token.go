package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hitoshi/postboard/internal/model"
)

// ErrInvalidToken はアクセストークンの検証に失敗したことを表す。
// 署名不一致・期限切れ・形式不正などの理由は区別しない。
var ErrInvalidToken = errors.New("invalid access token")

// TokenConfig はTokenIssuerの設定。
type TokenConfig struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
	// Now は現在時刻を返す関数。nilの場合はtime.Nowを使う。
	Now func() time.Time
}

// TokenIssuer はHS256署名のアクセストークンを発行・検証する。
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// accessClaims はアクセストークンのペイロード。
type accessClaims struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

// NewTokenIssuer はTokenIssuerを生成する。
func NewTokenIssuer(cfg TokenConfig) *TokenIssuer {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &TokenIssuer{
		secret: cfg.Secret,
		issuer: cfg.Issuer,
		ttl:    cfg.TTL,
		now:    now,
	}
}

// TTL はトークンの有効期間を返す。Cookieの有効期間にも使う。
func (t *TokenIssuer) TTL() time.Duration {
	return t.ttl
}

// Issue は識別情報を埋め込んだアクセストークンを発行する。
func (t *TokenIssuer) Issue(identity model.Identity) (string, time.Time, error) {
	if identity.UserID == "" {
		return "", time.Time{}, fmt.Errorf("user ID is required to issue a token")
	}

	issuedAt := t.now()
	expiresAt := issuedAt.Add(t.ttl)

	claims := accessClaims{
		ID:       identity.UserID,
		Username: identity.Username,
		Email:    identity.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify はアクセストークンを検証し、埋め込まれた識別情報を返す。
// 検証に失敗した場合はErrInvalidTokenをラップしたエラーを返す。
func (t *TokenIssuer) Verify(token string) (model.Identity, error) {
	claims := &accessClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return model.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return model.Identity{}, ErrInvalidToken
	}
	if claims.ID == "" || claims.Subject != claims.ID {
		return model.Identity{}, fmt.Errorf("%w: subject does not match id claim", ErrInvalidToken)
	}

	return model.Identity{
		UserID:   claims.ID,
		Username: claims.Username,
		Email:    claims.Email,
	}, nil
}
