// Package web provides the HTTP server of the portal: routing, middleware,
// translations and background job scheduling.
package web

import (
	"context"
	"crypto/tls"
	"embed"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/siteops/portal/config"
	"github.com/siteops/portal/database"
	"github.com/siteops/portal/logger"
	"github.com/siteops/portal/util/blob"
	"github.com/siteops/portal/util/common"
	"github.com/siteops/portal/web/cache"
	"github.com/siteops/portal/web/controller"
	"github.com/siteops/portal/web/entity"
	"github.com/siteops/portal/web/job"
	"github.com/siteops/portal/web/locale"
	"github.com/siteops/portal/web/middleware"
	"github.com/siteops/portal/web/network"
	"github.com/siteops/portal/web/service"
)

//go:embed translation/*
var i18nFS embed.FS

// Settings returns the effective runtime configuration.
func Settings() *entity.ServerSetting {
	return &entity.ServerSetting{
		Listen:        config.GetListen(),
		Port:          config.GetPort(),
		CertFile:      config.GetCertFile(),
		KeyFile:       config.GetKeyFile(),
		DBType:        string(config.GetDatabaseConfig().Type),
		UploadFolder:  config.GetUploadFolder(),
		MaxUploadSize: config.GetMaxUploadSize(),
		TokenTTL:      config.GetTokenTTL(),
		RedisAddr:     config.GetRedisAddr(),
		CorsOrigins:   config.GetAllowedOrigins(),
		LoginRate:     config.GetLoginRateLimit(),
	}
}

// Server represents the portal web server with its services and scheduled jobs.
type Server struct {
	httpServer *http.Server
	listener   net.Listener

	db       *gorm.DB
	core     *service.Core
	blobs    *blob.LocalStore
	settings *entity.ServerSetting
	api      *controller.APIController

	cron *cron.Cron

	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a new web server instance with a cancellable context.
func NewServer() *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{ctx: ctx, cancel: cancel}
}

// initCore builds the services over the opened database.
func (s *Server) initCore() error {
	s.db = database.GetDB()
	secret, err := service.NewSettingService(s.db).GetSecret()
	if err != nil {
		return err
	}
	s.blobs, err = blob.NewLocalStore(s.settings.UploadFolder)
	if err != nil {
		return err
	}
	s.core = service.NewCore(s.db, service.Options{
		Secret:        secret,
		TokenTTL:      s.settings.TokenTTL,
		MaxUploadSize: s.settings.MaxUploadSize,
		Blobs:         s.blobs,
		Clock:         service.SystemClock,
	})
	return nil
}

// initRouter initializes Gin, registers middleware and controllers and
// returns the configured engine.
func (s *Server) initRouter() *gin.Engine {
	if config.IsDebug() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.DefaultWriter = io.Discard
		gin.DefaultErrorWriter = io.Discard
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	// Uploads larger than this spill to temporary files.
	engine.MaxMultipartMemory = 8 << 20

	engine.Use(cors.New(cors.Config{
		AllowOrigins:     s.settings.CorsOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept-Language"},
		ExposeHeaders:    []string{"Content-Disposition", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	// Attachment downloads are served as stored.
	engine.Use(gzip.Gzip(
		gzip.DefaultCompression,
		gzip.WithExcludedPathsRegexs([]string{`/attachments/\d+$`}),
	))
	engine.Use(locale.LocalizerMiddleware())

	api := engine.Group("/api/v1")
	api.Use(middleware.AccessLogMiddleware())
	loginGuard := middleware.RateLimitMiddleware(middleware.LoginRateLimitConfig(s.settings.LoginRate))
	s.api = controller.NewAPIController(api, s.core, loginGuard)

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, entity.Msg{Success: true, Obj: gin.H{"version": config.GetVersion()}})
	})

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, entity.Msg{Success: false, Msg: locale.I18n(c, "error.notFound")})
	})

	return engine
}

// startTask schedules background jobs.
func (s *Server) startTask() {
	if _, err := s.cron.AddJob("@every 30m", job.NewOrphanBlobJob(s.db, s.blobs, service.SystemClock)); err != nil {
		logger.Warning("add orphan blob job failed:", err)
	}
	if s.db.Dialector.Name() == "sqlite" {
		if _, err := s.cron.AddFunc("@daily", func() {
			if err := database.Checkpoint(); err != nil {
				logger.Warning("database checkpoint failed:", err)
			}
		}); err != nil {
			logger.Warning("add checkpoint job failed:", err)
		}
	}
}

// Start initializes and starts the web server.
func (s *Server) Start() (err error) {
	defer func() {
		if err != nil {
			_ = s.Stop()
		}
	}()

	s.settings = Settings()
	if err = s.settings.CheckValid(); err != nil {
		return err
	}
	if err = locale.InitLocalizer(i18nFS); err != nil {
		return err
	}
	if err = cache.InitRedis(s.ctx, s.settings.RedisAddr); err != nil {
		return err
	}
	if err = s.initCore(); err != nil {
		return err
	}

	s.cron = cron.New(cron.WithLocation(time.UTC))
	s.cron.Start()

	engine := s.initRouter()

	listenAddr := net.JoinHostPort(s.settings.Listen, strconv.Itoa(s.settings.Port))
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}

	if s.settings.CertFile != "" || s.settings.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(s.settings.CertFile, s.settings.KeyFile)
		if err != nil {
			listener.Close()
			return err
		}
		listener = network.NewRedirectListener(listener)
		listener = tls.NewListener(listener, &tls.Config{Certificates: []tls.Certificate{cert}})
		logger.Info("Web server running HTTPS on", listener.Addr())
	} else {
		logger.Info("Web server running HTTP on", listener.Addr())
	}

	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Error("web server stopped:", err)
		}
	}()

	s.startTask()
	return nil
}

// Stop gracefully shuts down the web server and the cron scheduler.
func (s *Server) Stop() error {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	var err1, err2 error
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err1 = s.httpServer.Shutdown(ctx)
	} else if s.listener != nil {
		err1 = s.listener.Close()
	}
	s.cancel()
	err2 = cache.Close()
	return common.Combine(err1, err2)
}
