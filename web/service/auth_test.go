package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xlzd/gotp"

	"github.com/siteops/portal/database/model"
	"github.com/siteops/portal/util/common"
)

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.userWithPassword(t, "foreman", "concrete-1", model.RoleStandard)

	res, err := f.core.Auth.Login(ctx, "foreman", "concrete-1", "")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "foreman", res.User.Username)
	require.NotNil(t, res.User.LastLoginAt)
	assert.True(t, res.User.LastLoginAt.Equal(f.now))

	var stored model.User
	require.NoError(t, f.db.Where("username = ?", "foreman").First(&stored).Error)
	require.NotNil(t, stored.LastLoginAt)

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"wrong password", "foreman", "concrete-2"},
		{"unknown user", "nobody", "concrete-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.core.Auth.Login(ctx, tt.username, tt.password, "")
			assert.ErrorIs(t, err, common.ErrUnauthenticated)
		})
	}

	t.Run("inactive", func(t *testing.T) {
		require.NoError(t, f.db.Model(&stored).UpdateColumn("active", false).Error)
		_, err := f.core.Auth.Login(ctx, "foreman", "concrete-1", "")
		assert.ErrorIs(t, err, common.ErrUnauthenticated)
	})
}

func TestChangePasswordRotatesTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.userWithPassword(t, "surveyor", "old-password", model.RoleStandard)
	require.NoError(t, f.db.Model(u).UpdateColumn("must_change_password", true).Error)

	login, err := f.core.Auth.Login(ctx, "surveyor", "old-password", "")
	require.NoError(t, err)
	assert.True(t, login.MustChangePassword)
	actor := ActorOf(u)

	_, err = f.core.Auth.ChangePassword(ctx, actor, "wrong", "new-password")
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
	_, err = f.core.Auth.ChangePassword(ctx, actor, "old-password", "short")
	assert.ErrorIs(t, err, common.ErrInvalidArgument)

	res, err := f.core.Auth.ChangePassword(ctx, actor, "old-password", "new-password")
	require.NoError(t, err)
	assert.False(t, res.MustChangePassword)

	_, err = f.core.Tokens.Validate(ctx, login.Token)
	assert.ErrorIs(t, err, common.ErrTokenInvalid)
	_, err = f.core.Tokens.Validate(ctx, res.Token)
	assert.NoError(t, err)

	_, err = f.core.Auth.Login(ctx, "surveyor", "new-password", "")
	assert.NoError(t, err)
}

func TestLogoutEverywhere(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.userWithPassword(t, "clerk", "password-1", model.RoleStandard)
	a, err := f.core.Auth.Login(ctx, "clerk", "password-1", "")
	require.NoError(t, err)
	b, err := f.core.Auth.Login(ctx, "clerk", "password-1", "")
	require.NoError(t, err)

	require.NoError(t, f.core.Auth.LogoutEverywhere(ctx, ActorOf(u)))
	for _, tok := range []string{a.Token, b.Token} {
		_, err := f.core.Tokens.Validate(ctx, tok)
		assert.ErrorIs(t, err, common.ErrTokenInvalid)
	}
}

func TestTwoFactor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.userWithPassword(t, "engineer", "password-1", model.RoleStandard)
	actor := ActorOf(u)

	setup, err := f.core.Auth.EnableTwoFactor(ctx, actor)
	require.NoError(t, err)
	assert.Contains(t, setup.URI, "otpauth://")
	assert.True(t, strings.HasPrefix(setup.QRCode, "data:image/png;base64,"))
	_, err = f.core.Auth.EnableTwoFactor(ctx, actor)
	assert.ErrorIs(t, err, common.ErrConflict)

	code := gotp.NewDefaultTOTP(setup.Secret).At(f.now.Unix())
	_, err = f.core.Auth.Login(ctx, "engineer", "password-1", "")
	assert.ErrorIs(t, err, common.ErrUnauthenticated)
	_, err = f.core.Auth.Login(ctx, "engineer", "password-1", code)
	assert.NoError(t, err)

	assert.ErrorIs(t, f.core.Auth.DisableTwoFactor(ctx, actor, "000000x"), common.ErrInvalidArgument)
	require.NoError(t, f.core.Auth.DisableTwoFactor(ctx, actor, code))
	_, err = f.core.Auth.Login(ctx, "engineer", "password-1", "")
	assert.NoError(t, err)
}
