package service

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/siteops/portal/database"
	"github.com/siteops/portal/database/model"
	"github.com/siteops/portal/logger"
	"github.com/siteops/portal/util/common"
	"github.com/siteops/portal/util/crypto"
)

// UserAdminService lets administrators manage accounts. Every change that
// alters what a token may claim increments the user's token version.
type UserAdminService struct {
	db *gorm.DB
}

func NewUserAdminService(db *gorm.DB) *UserAdminService {
	return &UserAdminService{db: db}
}

type UserDTO struct {
	Id                 int        `json:"id"`
	Username           string     `json:"username"`
	DisplayName        string     `json:"displayName"`
	Role               model.Role `json:"role"`
	Active             bool       `json:"active"`
	MustChangePassword bool       `json:"mustChangePassword"`
	TwoFactor          bool       `json:"twoFactor"`
	LastLoginAt        *time.Time `json:"lastLoginAt"`
}

func toDTO(u *model.User) UserDTO {
	return UserDTO{
		Id:                 u.Id,
		Username:           u.Username,
		DisplayName:        u.Name(),
		Role:               u.Role,
		Active:             u.Active,
		MustChangePassword: u.MustChangePassword,
		TwoFactor:          u.TotpSecret != "",
		LastLoginAt:        u.LastLoginAt,
	}
}

type CreateUserInput struct {
	Username    string     `json:"username" binding:"required"`
	DisplayName string     `json:"displayName"`
	Password    string     `json:"password" binding:"required"`
	Role        model.Role `json:"role"`
}

func (s *UserAdminService) ListUsers(ctx context.Context) ([]UserDTO, error) {
	var users []model.User
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&users).Error; err != nil {
		return nil, common.Internal(err)
	}
	out := make([]UserDTO, 0, len(users))
	for i := range users {
		out = append(out, toDTO(&users[i]))
	}
	return out, nil
}

func (s *UserAdminService) GetUser(ctx context.Context, id int) (UserDTO, error) {
	u, err := s.load(s.db.WithContext(ctx), id)
	if err != nil {
		return UserDTO{}, err
	}
	return toDTO(u), nil
}

// CreateUser adds an active account that must change its password at first
// login.
func (s *UserAdminService) CreateUser(ctx context.Context, in CreateUserInput) (UserDTO, error) {
	username := strings.TrimSpace(in.Username)
	if len(username) < 3 {
		return UserDTO{}, common.Invalid("username must be at least 3 characters")
	}
	if in.Role == "" {
		in.Role = model.RoleStandard
	}
	if !in.Role.Valid() {
		return UserDTO{}, common.Invalid("unknown role %q", in.Role)
	}
	if err := crypto.CheckPasswordPolicy(in.Password); err != nil {
		return UserDTO{}, common.Invalid("%v", err)
	}
	hash, err := crypto.HashPasswordAsBcrypt(in.Password)
	if err != nil {
		return UserDTO{}, common.Internal(err)
	}

	db := s.db.WithContext(ctx)
	var count int64
	if err := db.Model(&model.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return UserDTO{}, common.Internal(err)
	}
	if count > 0 {
		return UserDTO{}, common.Invalid("username %q is taken", username)
	}

	u := &model.User{
		Username:           username,
		DisplayName:        strings.TrimSpace(in.DisplayName),
		PasswordHash:       hash,
		Role:               in.Role,
		Active:             true,
		TokenVersion:       1,
		MustChangePassword: true,
	}
	if err := db.Create(u).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return UserDTO{}, common.Invalid("username %q is taken", username)
		}
		return UserDTO{}, common.Internal(err)
	}
	logger.Infof("created user %q (%s)", u.Username, u.Role)
	return toDTO(u), nil
}

// UpdateUserRole changes the role tag. Promotion to admin drops the user's
// permission rows since they are never consulted for admins.
func (s *UserAdminService) UpdateUserRole(ctx context.Context, actor Actor, id int, role model.Role) (UserDTO, error) {
	if !role.Valid() {
		return UserDTO{}, common.Invalid("unknown role %q", role)
	}
	if id == actor.UserId && role != model.RoleAdmin {
		return UserDTO{}, common.Invalid("administrators cannot demote themselves")
	}
	var u *model.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if u, err = s.load(tx, id); err != nil {
			return err
		}
		if u.Role == role {
			return common.Conflict("user already has role %q", role)
		}
		if err := tx.Model(&model.User{}).Where("id = ?", id).UpdateColumn("role", role).Error; err != nil {
			return err
		}
		if role == model.RoleAdmin {
			if err := tx.Where("user_id = ?", id).Delete(&model.Permission{}).Error; err != nil {
				return err
			}
		}
		if err := bumpTokenVersion(tx, id); err != nil {
			return err
		}
		u.Role = role
		return nil
	})
	if err != nil {
		return UserDTO{}, common.Internal(err)
	}
	logger.Infof("user %q role set to %s by %d", u.Username, role, actor.UserId)
	return toDTO(u), nil
}

// SetActive activates or deactivates an account. Deactivation invalidates its
// tokens.
func (s *UserAdminService) SetActive(ctx context.Context, actor Actor, id int, active bool) (UserDTO, error) {
	if id == actor.UserId && !active {
		return UserDTO{}, common.Invalid("administrators cannot deactivate themselves")
	}
	var u *model.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if u, err = s.load(tx, id); err != nil {
			return err
		}
		if u.Active == active {
			return common.Conflict("user is already in the requested state")
		}
		if err := tx.Model(&model.User{}).Where("id = ?", id).UpdateColumn("active", active).Error; err != nil {
			return err
		}
		u.Active = active
		return bumpTokenVersion(tx, id)
	})
	if err != nil {
		return UserDTO{}, common.Internal(err)
	}
	return toDTO(u), nil
}

// ResetPassword sets a new password chosen by an administrator, forces a
// change at next login and invalidates existing tokens.
func (s *UserAdminService) ResetPassword(ctx context.Context, id int, newPassword string) error {
	if err := crypto.CheckPasswordPolicy(newPassword); err != nil {
		return common.Invalid("%v", err)
	}
	hash, err := crypto.HashPasswordAsBcrypt(newPassword)
	if err != nil {
		return common.Internal(err)
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.load(tx, id); err != nil {
			return err
		}
		if err := tx.Model(&model.User{}).Where("id = ?", id).Updates(map[string]any{
			"password_hash":        hash,
			"must_change_password": true,
		}).Error; err != nil {
			return err
		}
		return bumpTokenVersion(tx, id)
	})
	return common.Internal(err)
}

// ResetPasswordByName is ResetPassword keyed by username, for the CLI.
func (s *UserAdminService) ResetPasswordByName(ctx context.Context, username, newPassword string) error {
	var u model.User
	err := s.db.WithContext(ctx).Select("id").Where("username = ?", username).First(&u).Error
	if database.IsNotFound(err) {
		return common.NotFound("user", username)
	} else if err != nil {
		return common.Internal(err)
	}
	return s.ResetPassword(ctx, u.Id, newPassword)
}

func (s *UserAdminService) load(tx *gorm.DB, id int) (*model.User, error) {
	var u model.User
	err := tx.First(&u, id).Error
	if database.IsNotFound(err) {
		return nil, common.NotFound("user", id)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
