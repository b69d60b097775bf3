// Package entity defines the data structures exchanged by the web layer.
package entity

import (
	"crypto/tls"
	"math"
	"net"
	"time"

	"github.com/siteops/portal/util/common"
)

// Msg represents a standard API response message with success status, message text, and optional data object.
type Msg struct {
	Success bool   `json:"success"` // Indicates if the operation was successful
	Msg     string `json:"msg"`     // Response message text
	Obj     any    `json:"obj"`     // Optional data object
}

// PageResult is one page of a listing together with the total row count.
type PageResult struct {
	Items    any   `json:"items"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
}

// ServerSetting is the effective runtime configuration of the portal.
type ServerSetting struct {
	Listen        string        `json:"listen"`
	Port          int           `json:"port"`
	CertFile      string        `json:"certFile"`
	KeyFile       string        `json:"keyFile"`
	DBType        string        `json:"dbType"`
	UploadFolder  string        `json:"uploadFolder"`
	MaxUploadSize int64         `json:"maxUploadSize"`
	TokenTTL      time.Duration `json:"tokenTtl"`
	RedisAddr     string        `json:"redisAddr"`
	CorsOrigins   []string      `json:"corsOrigins"`
	LoginRate     int           `json:"loginRate"`
}

func (s *ServerSetting) CheckValid() error {
	if s.Listen != "" {
		ip := net.ParseIP(s.Listen)
		if ip == nil {
			return common.NewError("listen is not valid ip:", s.Listen)
		}
	}

	if s.Port <= 0 || s.Port > math.MaxUint16 {
		return common.NewError("port is not a valid port:", s.Port)
	}

	if s.CertFile != "" || s.KeyFile != "" {
		_, err := tls.LoadX509KeyPair(s.CertFile, s.KeyFile)
		if err != nil {
			return common.NewErrorf("cert file <%v> or key file <%v> invalid: %v", s.CertFile, s.KeyFile, err)
		}
	}

	if s.MaxUploadSize <= 0 {
		return common.NewError("max upload size must be positive:", s.MaxUploadSize)
	}

	if s.TokenTTL < time.Minute {
		return common.NewError("token ttl is too short:", s.TokenTTL)
	}

	if s.UploadFolder == "" {
		return common.NewError("upload folder is not set")
	}

	return nil
}
