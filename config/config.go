// Package config exposes runtime settings of the portal. Values come from
// PORTAL_* environment variables, optionally preloaded from a .env file.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

//go:embed version
var version string

//go:embed name
var name string

type LogLevel string

const (
	Debug  LogLevel = "debug"
	Info   LogLevel = "info"
	Notice LogLevel = "notice"
	Warn   LogLevel = "warn"
	Error  LogLevel = "error"
)

const (
	defaultTokenTTL  = 12 * time.Hour
	defaultMaxUpload = 10 << 20
	defaultPort      = 8080
)

// LoadEnvFile preloads variables from the given .env files. Missing files are
// ignored so a bare environment keeps working.
func LoadEnvFile(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

func GetVersion() string {
	return strings.TrimSpace(version)
}

func GetName() string {
	return strings.TrimSpace(name)
}

func GetLogLevel() LogLevel {
	if IsDebug() {
		return Debug
	}
	logLevel := os.Getenv("PORTAL_LOG_LEVEL")
	if logLevel == "" {
		return Info
	}
	return LogLevel(logLevel)
}

func IsDebug() bool {
	return os.Getenv("PORTAL_DEBUG") == "true"
}

func GetDBFolderPath() string {
	dbFolderPath := os.Getenv("PORTAL_DB_FOLDER")
	if dbFolderPath == "" {
		dbFolderPath = "/etc/siteops"
	}
	return dbFolderPath
}

func GetDBPath() string {
	return fmt.Sprintf("%s/%s.db", GetDBFolderPath(), GetName())
}

func GetLogFolder() string {
	logFolderPath := os.Getenv("PORTAL_LOG_FOLDER")
	if logFolderPath == "" {
		logFolderPath = "/var/log/siteops"
	}
	return logFolderPath
}

// GetUploadFolder is the root directory of the local blob store.
func GetUploadFolder() string {
	folder := os.Getenv("PORTAL_UPLOAD_FOLDER")
	if folder == "" {
		folder = filepath.Join(GetDBFolderPath(), "uploads")
	}
	return folder
}

// GetMaxUploadSize returns the attachment size ceiling in bytes.
func GetMaxUploadSize() int64 {
	raw := os.Getenv("PORTAL_MAX_UPLOAD")
	if raw == "" {
		return defaultMaxUpload
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return defaultMaxUpload
	}
	return n
}

// GetJWTSecret returns the token signing secret. An empty value means the
// caller must generate and persist one.
func GetJWTSecret() string {
	return os.Getenv("PORTAL_JWT_SECRET")
}

func GetTokenTTL() time.Duration {
	raw := os.Getenv("PORTAL_TOKEN_TTL")
	if raw == "" {
		return defaultTokenTTL
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return defaultTokenTTL
	}
	return d
}

func GetListen() string {
	return os.Getenv("PORTAL_LISTEN")
}

// GetCertFile and GetKeyFile name the TLS key pair. Both empty serves HTTP.
func GetCertFile() string {
	return os.Getenv("PORTAL_CERT_FILE")
}

func GetKeyFile() string {
	return os.Getenv("PORTAL_KEY_FILE")
}

func GetPort() int {
	raw := os.Getenv("PORTAL_PORT")
	if raw == "" {
		return defaultPort
	}
	port, err := strconv.Atoi(raw)
	if err != nil || port <= 0 || port > 65535 {
		return defaultPort
	}
	return port
}

// GetRedisAddr returns the external redis address. Empty means the embedded
// server is used.
func GetRedisAddr() string {
	return os.Getenv("PORTAL_REDIS_ADDR")
}

// GetAllowedOrigins returns the CORS origin list, comma separated in env.
func GetAllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(os.Getenv("PORTAL_CORS_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"http://localhost:3000"}
	}
	return out
}

// GetLoginRateLimit is the number of login attempts allowed per minute and IP.
func GetLoginRateLimit() int {
	raw := os.Getenv("PORTAL_LOGIN_RATE")
	if raw == "" {
		return 10
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 10
	}
	return n
}
