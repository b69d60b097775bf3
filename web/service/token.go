package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/siteops/portal/database"
	"github.com/siteops/portal/database/model"
	"github.com/siteops/portal/util/common"
)

const tokenIssuer = "siteops"

// Claims are embedded in every session token. Version must match the user's
// stored token version for the token to stay valid.
type Claims struct {
	UserId  int        `json:"uid"`
	Name    string     `json:"name"`
	Role    model.Role `json:"role"`
	Version int        `json:"ver"`
	jwt.RegisteredClaims

	// MustChangePassword is loaded from the user row by Validate.
	MustChangePassword bool `json:"-"`
}

// Actor returns the acting user described by the claims.
func (c *Claims) Actor() Actor {
	return Actor{UserId: c.UserId, Name: c.Name, Role: c.Role, MustChangePassword: c.MustChangePassword}
}

// TokenService issues and validates signed, versioned session tokens.
type TokenService struct {
	db     *gorm.DB
	secret []byte
	ttl    time.Duration
	now    Clock
}

func NewTokenService(db *gorm.DB, secret []byte, ttl time.Duration, now Clock) *TokenService {
	if now == nil {
		now = SystemClock
	}
	return &TokenService{db: db, secret: secret, ttl: ttl, now: now}
}

// Issue signs a token for u carrying its current token version.
func (s *TokenService) Issue(u *model.User) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	claims := &Claims{
		UserId:  u.Id,
		Name:    u.Name(),
		Role:    u.Role,
		Version: u.TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   strconv.Itoa(u.Id),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, common.Internal(err)
	}
	return tok, expires, nil
}

// Validate checks signature and expiry, then compares the embedded token
// version with the stored one. Inactive or missing users and version
// mismatches fail with ErrTokenInvalid. The returned claims carry the
// user's current must-change-password flag.
func (s *TokenService) Validate(ctx context.Context, raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrTokenInvalid
	}

	var u model.User
	err = s.db.WithContext(ctx).
		Select("id", "username", "display_name", "role", "active", "token_version", "must_change_password").
		First(&u, claims.UserId).Error
	if database.IsNotFound(err) {
		return nil, common.ErrTokenInvalid
	} else if err != nil {
		return nil, common.Internal(err)
	}
	if !u.Active || u.TokenVersion != claims.Version {
		return nil, common.ErrTokenInvalid
	}
	claims.MustChangePassword = u.MustChangePassword
	return claims, nil
}

// Refresh reissues a valid token with the same version and a new expiry.
func (s *TokenService) Refresh(ctx context.Context, raw string) (string, time.Time, error) {
	claims, err := s.Validate(ctx, raw)
	if err != nil {
		return "", time.Time{}, err
	}
	return s.Issue(&model.User{
		Id:           claims.UserId,
		DisplayName:  claims.Name,
		Role:         claims.Role,
		TokenVersion: claims.Version,
	})
}

// bumpTokenVersion invalidates every token issued to userId so far.
func bumpTokenVersion(tx *gorm.DB, userId int) error {
	return tx.Model(&model.User{}).Where("id = ?", userId).
		UpdateColumn("token_version", gorm.Expr("token_version + 1")).Error
}
