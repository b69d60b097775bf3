package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
)

// DatabaseType selects the gorm driver.
type DatabaseType string

const (
	DatabaseTypeSQLite     DatabaseType = "sqlite"
	DatabaseTypePostgreSQL DatabaseType = "postgres"
)

// DatabaseConfig describes the relational store. Only the section matching
// Type is used.
type DatabaseConfig struct {
	Type     DatabaseType   `json:"type"`
	SQLite   SQLiteConfig   `json:"sqlite"`
	Postgres PostgresConfig `json:"postgres"`
}

type SQLiteConfig struct {
	Path string `json:"path"`
}

type PostgresConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	Username string `json:"username"`
	Password string `json:"-"`
	SSLMode  string `json:"sslMode"`
}

// GetDatabaseConfig reads PORTAL_DB_* variables. The default is an sqlite file
// in the database folder.
func GetDatabaseConfig() *DatabaseConfig {
	c := &DatabaseConfig{
		Type:   DatabaseType(envOr("PORTAL_DB_TYPE", string(DatabaseTypeSQLite))),
		SQLite: SQLiteConfig{Path: envOr("PORTAL_DB_PATH", GetDBPath())},
		Postgres: PostgresConfig{
			Host:     envOr("PORTAL_DB_HOST", "localhost"),
			Port:     5432,
			Database: envOr("PORTAL_DB_NAME", "siteops"),
			Username: envOr("PORTAL_DB_USER", "siteops"),
			Password: os.Getenv("PORTAL_DB_PASSWORD"),
			SSLMode:  envOr("PORTAL_DB_SSLMODE", "disable"),
		},
	}
	if v := os.Getenv("PORTAL_DB_PORT"); v != "" {
		// an unparsable port is reported by Validate
		c.Postgres.Port, _ = strconv.Atoi(v)
	}
	return c
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// DSN returns the connection string for the configured driver.
func (c *DatabaseConfig) DSN() string {
	if c.Type == DatabaseTypePostgreSQL {
		p := c.Postgres
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(p.Username, p.Password),
			Host:     fmt.Sprintf("%s:%d", p.Host, p.Port),
			Path:     "/" + p.Database,
			RawQuery: url.Values{"sslmode": {p.SSLMode}, "TimeZone": {"UTC"}}.Encode(),
		}
		return u.String()
	}
	return c.SQLite.Path + "?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on"
}

// Validate reports every problem of the configuration at once.
func (c *DatabaseConfig) Validate() error {
	switch c.Type {
	case DatabaseTypeSQLite:
		if c.SQLite.Path == "" {
			return errors.New("sqlite path is empty")
		}
		return nil
	case DatabaseTypePostgreSQL:
		var errs []error
		if c.Postgres.Host == "" {
			errs = append(errs, errors.New("postgres host is empty"))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, errors.New("postgres database is empty"))
		}
		if c.Postgres.Username == "" {
			errs = append(errs, errors.New("postgres user is empty"))
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Errorf("postgres port %d is out of range", c.Postgres.Port))
		}
		return errors.Join(errs...)
	default:
		return fmt.Errorf("unsupported database type %q", c.Type)
	}
}

// Prepare creates the folder of an sqlite file.
func (c *DatabaseConfig) Prepare() error {
	if c.Type != DatabaseTypeSQLite {
		return nil
	}
	return os.MkdirAll(filepath.Dir(c.SQLite.Path), 0o750)
}
