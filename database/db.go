package database

import (
	"errors"
	"log"
	"os"

	"github.com/siteops/portal/config"
	"github.com/siteops/portal/database/model"
	"github.com/siteops/portal/util/crypto"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var db *gorm.DB

const (
	defaultUsername = "admin"
	defaultPassword = "admin"
)

// DefaultModules is the static module reference data seeded at start.
var DefaultModules = []model.Module{
	{Name: "dashboard", Title: "Dashboard", Position: 10, Active: true},
	{Name: "time_entries", Title: "Time entries", Position: 20, Active: true},
	{Name: "registries", Title: "Base registries", Position: 30, Active: true},
	{Name: "tasks", Title: "Tasks", Position: 40, Active: true},
	{Name: "users", Title: "Users & permissions", Position: 90, AdminOnly: true, Active: true},
}

func initModels() error {
	models := []any{
		&model.User{},
		&model.Module{},
		&model.Permission{},
		&model.Setting{},
		&model.Task{},
		&model.TaskMember{},
		&model.ChecklistItem{},
		&model.Comment{},
		&model.Attachment{},
		&model.Label{},
		&model.TaskLabel{},
		&model.Activity{},
	}
	for _, m := range models {
		if err := db.AutoMigrate(m); err != nil {
			log.Printf("Error auto migrating model: %v", err)
			return err
		}
	}
	return nil
}

func initModules() error {
	for _, m := range DefaultModules {
		var count int64
		if err := db.Model(&model.Module{}).Where("name = ?", m.Name).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		module := m
		if err := db.Create(&module).Error; err != nil {
			return err
		}
	}
	return nil
}

// initUser creates the first administrator when the users table is empty.
// The password comes from PORTAL_ADMIN_PASSWORD and must be changed at first
// login.
func initUser() error {
	empty, err := isTableEmpty("users")
	if err != nil {
		log.Printf("Error checking if users table is empty: %v", err)
		return err
	}
	if !empty {
		return nil
	}
	password := os.Getenv("PORTAL_ADMIN_PASSWORD")
	if password == "" {
		password = defaultPassword
	}
	hash, err := crypto.HashPasswordAsBcrypt(password)
	if err != nil {
		return err
	}
	user := &model.User{
		Username:           defaultUsername,
		DisplayName:        "Administrator",
		PasswordHash:       hash,
		Role:               model.RoleAdmin,
		Active:             true,
		TokenVersion:       1,
		MustChangePassword: true,
	}
	return db.Create(user).Error
}

func isTableEmpty(tableName string) (bool, error) {
	var count int64
	err := db.Table(tableName).Count(&count).Error
	return count == 0, err
}

// InitDB opens the configured database, migrates the schema and seeds the
// reference data.
func InitDB(dbConfig *config.DatabaseConfig) error {
	if err := dbConfig.Validate(); err != nil {
		return err
	}
	if err := dbConfig.Prepare(); err != nil {
		return err
	}

	var gormLogger logger.Interface
	if config.IsDebug() {
		gormLogger = logger.Default
	} else {
		gormLogger = logger.Discard
	}

	c := &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		TranslateError:         true,
	}

	var dialector gorm.Dialector
	switch dbConfig.Type {
	case config.DatabaseTypePostgreSQL:
		dialector = postgres.Open(dbConfig.DSN())
	default:
		dialector = sqlite.Open(dbConfig.DSN())
	}

	var err error
	db, err = gorm.Open(dialector, c)
	if err != nil {
		return err
	}

	if dbConfig.Type == config.DatabaseTypeSQLite {
		if err := db.Exec("PRAGMA foreign_keys = ON;").Error; err != nil {
			return err
		}
	}

	if err := initModels(); err != nil {
		return err
	}
	if err := initModules(); err != nil {
		return err
	}
	return initUser()
}

func CloseDB() error {
	if db == nil {
		return nil
	}
	if db.Dialector.Name() == "sqlite" {
		if err := Checkpoint(); err != nil {
			log.Printf("error executing checkpoint: %v", err)
		}
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	db = nil
	return sqlDB.Close()
}

func GetDB() *gorm.DB {
	return db
}

func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsUniqueViolation reports whether err comes from a unique constraint.
func IsUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func Checkpoint() error {
	return db.Exec("PRAGMA wal_checkpoint;").Error
}
