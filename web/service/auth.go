package service

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"
	"github.com/xlzd/gotp"
	"gorm.io/gorm"

	"github.com/siteops/portal/database"
	"github.com/siteops/portal/database/model"
	"github.com/siteops/portal/logger"
	"github.com/siteops/portal/util/common"
	"github.com/siteops/portal/util/crypto"
)

// LoginResult is returned by a successful login or password change.
type LoginResult struct {
	Token              string    `json:"token"`
	ExpiresAt          time.Time `json:"expiresAt"`
	User               UserDTO   `json:"user"`
	MustChangePassword bool      `json:"mustChangePassword"`
}

type AuthService struct {
	db     *gorm.DB
	tokens *TokenService
	now    Clock
}

func NewAuthService(db *gorm.DB, tokens *TokenService, now Clock) *AuthService {
	if now == nil {
		now = SystemClock
	}
	return &AuthService{db: db, tokens: tokens, now: now}
}

// Login checks credentials and the optional TOTP code, records the login
// time and issues a token. All credential failures look the same to the
// caller.
func (s *AuthService) Login(ctx context.Context, username, password, twoFactorCode string) (*LoginResult, error) {
	db := s.db.WithContext(ctx)
	var u model.User
	err := db.Where("username = ?", strings.TrimSpace(username)).First(&u).Error
	if database.IsNotFound(err) {
		return nil, common.ErrUnauthenticated
	} else if err != nil {
		return nil, common.Internal(err)
	}

	if !crypto.CheckPasswordHash(u.PasswordHash, password) {
		logger.Warningf("failed login for %q", u.Username)
		return nil, common.ErrUnauthenticated
	}
	if !u.Active {
		logger.Warningf("login attempt for inactive user %q", u.Username)
		return nil, common.ErrUnauthenticated
	}
	if u.TotpSecret != "" && !s.checkCode(u.TotpSecret, twoFactorCode) {
		logger.Warningf("failed two-factor check for %q", u.Username)
		return nil, common.ErrUnauthenticated
	}

	now := s.now()
	if err := db.Model(&model.User{}).Where("id = ?", u.Id).UpdateColumn("last_login_at", now).Error; err != nil {
		return nil, common.Internal(err)
	}
	u.LastLoginAt = &now

	return s.result(&u)
}

// ChangePassword verifies the current password, stores the new one,
// increments the token version and clears the must-change flag. The returned
// token carries the new version; every earlier token stops validating.
func (s *AuthService) ChangePassword(ctx context.Context, actor Actor, oldPassword, newPassword string) (*LoginResult, error) {
	if err := crypto.CheckPasswordPolicy(newPassword); err != nil {
		return nil, common.Invalid("%v", err)
	}
	if oldPassword == newPassword {
		return nil, common.Invalid("new password must differ from the current one")
	}

	var u model.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&u, actor.UserId).Error; err != nil {
			if database.IsNotFound(err) {
				return common.ErrUnauthenticated
			}
			return err
		}
		if !crypto.CheckPasswordHash(u.PasswordHash, oldPassword) {
			return common.Invalid("current password is wrong")
		}
		hash, err := crypto.HashPasswordAsBcrypt(newPassword)
		if err != nil {
			return err
		}
		if err := tx.Model(&model.User{}).Where("id = ?", u.Id).Updates(map[string]any{
			"password_hash":        hash,
			"must_change_password": false,
		}).Error; err != nil {
			return err
		}
		if err := bumpTokenVersion(tx, u.Id); err != nil {
			return err
		}
		return tx.First(&u, u.Id).Error
	})
	if err != nil {
		return nil, common.Internal(err)
	}
	logger.Infof("user %q changed password", u.Username)
	return s.result(&u)
}

// LogoutEverywhere invalidates every token issued to the actor.
func (s *AuthService) LogoutEverywhere(ctx context.Context, actor Actor) error {
	if err := bumpTokenVersion(s.db.WithContext(ctx), actor.UserId); err != nil {
		return common.Internal(err)
	}
	logger.Infof("user %d logged out everywhere", actor.UserId)
	return nil
}

// TwoFactorSetup carries a freshly generated TOTP secret.
type TwoFactorSetup struct {
	Secret string `json:"secret"`
	URI    string `json:"uri"`
	// QRCode is the URI rendered as a PNG data URL.
	QRCode string `json:"qrCode"`
}

// EnableTwoFactor generates and stores a TOTP secret for the actor. Logins
// require a code from then on.
func (s *AuthService) EnableTwoFactor(ctx context.Context, actor Actor) (*TwoFactorSetup, error) {
	var u model.User
	if err := s.db.WithContext(ctx).First(&u, actor.UserId).Error; err != nil {
		return nil, common.Internal(err)
	}
	if u.TotpSecret != "" {
		return nil, common.Conflict("two-factor authentication is already enabled")
	}
	secret := gotp.RandomSecret(32)
	uri := gotp.NewDefaultTOTP(secret).ProvisioningUri(u.Username, tokenIssuer)
	png, err := qrcode.Encode(uri, qrcode.Medium, 256)
	if err != nil {
		return nil, common.Internal(err)
	}
	if err := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", u.Id).
		UpdateColumn("totp_secret", secret).Error; err != nil {
		return nil, common.Internal(err)
	}
	return &TwoFactorSetup{
		Secret: secret,
		URI:    uri,
		QRCode: "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
	}, nil
}

// DisableTwoFactor removes the TOTP secret after checking a current code.
func (s *AuthService) DisableTwoFactor(ctx context.Context, actor Actor, code string) error {
	var u model.User
	if err := s.db.WithContext(ctx).First(&u, actor.UserId).Error; err != nil {
		return common.Internal(err)
	}
	if u.TotpSecret == "" {
		return common.Conflict("two-factor authentication is not enabled")
	}
	if !s.checkCode(u.TotpSecret, code) {
		return common.Invalid("two-factor code is wrong")
	}
	return common.Internal(s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", u.Id).
		UpdateColumn("totp_secret", "").Error)
}

func (s *AuthService) checkCode(secret, code string) bool {
	return gotp.NewDefaultTOTP(secret).At(s.now().Unix()) == strings.TrimSpace(code)
}

func (s *AuthService) result(u *model.User) (*LoginResult, error) {
	tok, expires, err := s.tokens.Issue(u)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		Token:              tok,
		ExpiresAt:          expires,
		User:               toDTO(u),
		MustChangePassword: u.MustChangePassword,
	}, nil
}
