package main

import (
	"context"
	"fmt"
	"os"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"

	"gear-market/internal/core/auth"
	"gear-market/internal/core/cache"
	"gear-market/internal/core/config"
	"gear-market/internal/core/database"
	"gear-market/internal/core/logger"
	"gear-market/internal/core/server"
	"gear-market/internal/core/storage"
	"gear-market/internal/repo"
	"gear-market/internal/service"
	"gear-market/internal/transport/http/handler"
	"gear-market/internal/transport/http/router"
)

// 用法：
//
//	admin                    启动后台 HTTP
//	admin promote <username> 把用户设为 staff（首个管理员靠它创建）
func main() {
	_ = godotenv.Load()
	cfg := config.Load(os.Getenv("CONFIG_PATH"))
	log, cleanup := logger.FromConfig(cfg.Log,
		zap.String("app", cfg.App.Name), zap.String("env", cfg.App.Env), zap.String("bin", "admin"))
	defer cleanup()
	defer logger.RedirectStdLog(log, zapcore.InfoLevel)()

	// DB 连接（失败直接 Fatal）
	db := mustOpenDB(cfg, log)
	log.Info("database connected", zap.String("driver", cfg.DB.Driver))

	store, err := storage.New(cfg.Storage)
	if err != nil {
		log.Fatal("storage init failed", zap.Error(err))
	}

	// 依赖
	users := repo.NewUserRepo(db)
	catalog := service.NewProductService(repo.NewProductRepo(db), store, cfg.Upload.MaxImages, log)
	adminSvc := service.NewAdminService(users, catalog, log)

	// 子命令：promote
	if len(os.Args) > 1 {
		if os.Args[1] != "promote" || len(os.Args) != 3 {
			fmt.Fprintln(os.Stderr, "usage: admin [promote <username>]")
			os.Exit(2)
		}
		if err := adminSvc.Promote(context.Background(), os.Args[2]); err != nil {
			log.Fatal("promote failed", zap.String("username", os.Args[2]), zap.Error(err))
		}
		log.Info("user promoted to staff", zap.String("username", os.Args[2]))
		return
	}

	// 下架商品后让用户端列表缓存失效
	if cfg.Redis.Addr != "" {
		c := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer func() { _ = c.Close() }()
		cached := service.NewCachedProducts(catalog, c, cfg.ListCacheTTL(), log)
		adminSvc.OnProductRemoved = cached.Invalidate
	}

	jwter := &auth.JWTer{
		Secret:        []byte(cfg.JWT.Secret),
		RefreshSecret: []byte(cfg.JWT.RefreshSecret),
		Issuer:        cfg.JWT.Issuer,
		TTL:           cfg.AccessTTL(),
		RefreshTTL:    cfg.RefreshTTL(),
	}

	// 路由（后台端）
	opts := router.Options{JWT: jwter, Limits: cfg.Limits}
	r := router.NewAdminEngine(log, opts, router.NewRegistry(handler.NewAdminHandler(adminSvc, log)))

	// HTTP Server
	addr := server.Addr(cfg.App.Admin.Host, cfg.App.Admin.Port)
	srv := server.BuildServer(addr, r, 5*time.Second, 10*time.Second, 60*time.Second)

	// 启动前打印可点击地址
	host4human := cfg.App.Admin.Host
	if host4human == "" || host4human == "0.0.0.0" {
		host4human = "127.0.0.1"
	}
	baseURL := "http://" + host4human + ":" + fmt.Sprint(cfg.App.Admin.Port)
	log.Info("admin api starting",
		zap.String("addr", addr),
		zap.String("open", baseURL),
		zap.String("health", baseURL+"/health"),
		zap.String("admin_v1", baseURL+"/admin/v1"),
	)

	// 阻塞运行，收到信号后优雅关闭
	if err := server.Run(context.Background(), srv, log, 10*time.Second); err != nil {
		log.Fatal("admin api FAILED", zap.Error(err))
	}
}

func mustOpenDB(cfg *config.Config, l *zap.Logger) *gorm.DB {
	db, err := database.NewGorm(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		Username:           cfg.DB.Username, // 传入用户名
		Password:           cfg.DB.Password, // 传入密码
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		LogLevel:           cfg.DB.LogLevel,
		Log:                l,
	})
	if err != nil {
		l.Fatal("db open", zap.Error(err)) // 失败日志
	}
	return db
}
