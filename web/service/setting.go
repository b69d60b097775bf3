package service

import (
	"github.com/siteops/portal/config"
	"github.com/siteops/portal/database"
	"github.com/siteops/portal/database/model"
	"github.com/siteops/portal/logger"
	"github.com/siteops/portal/util/random"

	"gorm.io/gorm"
)

const secretKey = "jwtSecret"

// SettingService reads and writes key/value settings stored in the database.
type SettingService struct {
	db *gorm.DB
}

func NewSettingService(db *gorm.DB) *SettingService {
	if db == nil {
		db = database.GetDB()
	}
	return &SettingService{db: db}
}

func (s *SettingService) getSetting(key string) (*model.Setting, error) {
	setting := &model.Setting{}
	err := s.db.Model(model.Setting{}).Where("key = ?", key).First(setting).Error
	if err != nil {
		return nil, err
	}
	return setting, nil
}

func (s *SettingService) saveSetting(key string, value string) error {
	setting, err := s.getSetting(key)
	if database.IsNotFound(err) {
		return s.db.Create(&model.Setting{
			Key:   key,
			Value: value,
		}).Error
	} else if err != nil {
		return err
	}
	setting.Value = value
	return s.db.Save(setting).Error
}

// GetSecret returns the token signing secret. PORTAL_JWT_SECRET wins;
// otherwise a secret is generated on first use and persisted.
func (s *SettingService) GetSecret() ([]byte, error) {
	if secret := config.GetJWTSecret(); secret != "" {
		return []byte(secret), nil
	}
	setting, err := s.getSetting(secretKey)
	if err == nil && setting.Value != "" {
		return []byte(setting.Value), nil
	}
	if err != nil && !database.IsNotFound(err) {
		return nil, err
	}
	secret := random.Seq(64)
	if err := s.saveSetting(secretKey, secret); err != nil {
		return nil, err
	}
	logger.Info("generated a new token signing secret")
	return []byte(secret), nil
}

// RotateSecret replaces the stored signing secret, invalidating every token
// issued so far. It has no effect while PORTAL_JWT_SECRET is set.
func (s *SettingService) RotateSecret() error {
	if config.GetJWTSecret() != "" {
		logger.Warning("PORTAL_JWT_SECRET is set, stored secret rotation has no effect")
	}
	return s.saveSetting(secretKey, random.Seq(64))
}
