package main

import (
	"context"
	"fmt"
	"os"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"

	"gear-market/internal/core/auth"
	"gear-market/internal/core/cache"
	"gear-market/internal/core/config"
	"gear-market/internal/core/database"
	"gear-market/internal/core/logger"
	"gear-market/internal/core/password"
	"gear-market/internal/core/server"
	"gear-market/internal/core/storage"
	"gear-market/internal/repo"
	"gear-market/internal/service"
	"gear-market/internal/transport/http/handler"
	"gear-market/internal/transport/http/router"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load(os.Getenv("CONFIG_PATH"))
	log, cleanup := logger.FromConfig(cfg.Log,
		zap.String("app", cfg.App.Name), zap.String("env", cfg.App.Env), zap.String("bin", "api"))
	defer cleanup()
	defer logger.RedirectStdLog(log, zapcore.InfoLevel)()
	if cfg.App.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DefaultErrorWriter = logger.ToWriter(log, zapcore.ErrorLevel)

	// 数据库（失败会直接 Fatal）
	db := mustOpenDB(cfg, log)
	log.Info("database connected", zap.String("driver", cfg.DB.Driver))

	// 自动迁移
	if cfg.DB.AutoMigrate {
		if err := repo.AutoMigrate(db); err != nil {
			log.Fatal("automigrate failed", zap.Error(err))
		}
		log.Info("automigrate done")
	}

	// JWT：access/refresh 分别签名
	jwter := &auth.JWTer{
		Secret:        []byte(cfg.JWT.Secret),
		RefreshSecret: []byte(cfg.JWT.RefreshSecret),
		Issuer:        cfg.JWT.Issuer,
		TTL:           cfg.AccessTTL(),
		RefreshTTL:    cfg.RefreshTTL(),
	}

	// 文件存储（local / s3）
	store, err := storage.New(cfg.Storage)
	if err != nil {
		log.Fatal("storage init failed", zap.Error(err))
	}

	// 依赖
	accounts := service.NewAccountService(repo.NewUserRepo(db), jwter, password.FromConfig(cfg.Password), store, log)
	catalog := service.NewProductService(repo.NewProductRepo(db), store, cfg.Upload.MaxImages, log)
	catalog.MaxImageBytes = int64(cfg.Upload.MaxImageMB) << 20
	var products service.Products = catalog

	// Redis 可选：配置了地址才缓存列表
	if cfg.Redis.Addr != "" {
		c := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer func() { _ = c.Close() }()
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := c.Ping(ctx); err != nil {
			log.Warn("redis unavailable, list cache disabled", zap.Error(err))
		} else {
			products = service.NewCachedProducts(products, c, cfg.ListCacheTTL(), log)
			log.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
		}
		cancel()
	}

	// 路由（用户端）
	opts := router.Options{
		BasePath:     cfg.App.HTTP.BasePath,
		JWT:          jwter,
		Limits:       cfg.Limits,
		MaxBodyBytes: int64(cfg.Upload.MaxBodyMB) << 20,
	}
	if local, ok := store.(*storage.Local); ok && cfg.Storage.BaseURL != "" {
		opts.MediaDir, opts.MediaURL = local.Root(), cfg.Storage.BaseURL
	}
	reg := router.NewRegistry(
		handler.NewAccountHandler(accounts, log),
		handler.NewProductHandler(products, log),
	)
	r := router.NewAPIEngine(log, opts, reg)

	// HTTP Server
	addr := server.Addr(cfg.App.HTTP.Host, cfg.App.HTTP.Port)
	srv := server.BuildServer(
		addr, r,
		time.Duration(cfg.App.HTTP.ReadTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.WriteTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.IdleTimeoutSec)*time.Second,
	)

	// 启动日志
	host4human := cfg.App.HTTP.Host
	if host4human == "" || host4human == "0.0.0.0" {
		host4human = "127.0.0.1"
	}
	baseURL := "http://" + host4human + ":" + fmt.Sprint(cfg.App.HTTP.Port)
	log.Info("gear-market api starting",
		zap.String("addr", addr),
		zap.String("open", baseURL),
		zap.String("health", baseURL+"/health"),
		zap.String("api", baseURL+opts.BasePath),
		zap.String("storage", cfg.Storage.Type),
	)

	// 阻塞运行，收到信号后优雅关闭
	if err := server.Run(context.Background(), srv, log, 10*time.Second); err != nil {
		log.Fatal("api FAILED", zap.Error(err))
	}
}

func mustOpenDB(cfg *config.Config, l *zap.Logger) *gorm.DB {
	db, err := database.NewGorm(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		Username:           cfg.DB.Username,
		Password:           cfg.DB.Password,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		LogLevel:           cfg.DB.LogLevel,
		Log:                l,
	})
	if err != nil {
		l.Fatal("db open", zap.Error(err))
	}
	return db
}
