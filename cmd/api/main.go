package main

import (
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	httpadp "pricing-workbench/internal/adapter/http"
	"pricing-workbench/internal/adapter/middleware"
	"pricing-workbench/internal/adapter/repository/mysql"
	"pricing-workbench/internal/config"
	"pricing-workbench/internal/infrastructure/cache"
	"pricing-workbench/internal/infrastructure/db"
	"pricing-workbench/internal/usecase/session"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	gdb, err := db.OpenGorm(cfg.MySQLDSN(), logger)
	if err != nil {
		logger.Fatal("mysql connect failed", zap.Error(err))
	}
	rdb, err := cache.OpenRedis(cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Fatal("redis connect failed", zap.Error(err))
	}

	loanRepo := mysql.NewLoanRepository(gdb)
	configRepo := mysql.NewFeeConfigRepository(gdb)
	snapRepo := mysql.NewSnapshotRepository(gdb)
	uow := mysql.NewGormUoW(gdb)

	mgr := session.NewManager(loanRepo, configRepo, snapRepo, uow, logger)
	snapCache := cache.NewSnapshotCache(rdb, time.Duration(cfg.SnapshotCacheTTLSecs)*time.Second)

	h := httpadp.NewHandler()
	sh := httpadp.NewSessionHandler(mgr, snapCache)
	ph := httpadp.NewPlaybackHandler(mgr, snapCache)

	e := echo.New()
	e.HideBanner = true
	e.Validator = httpadp.NewValidator()
	e.Use(echomw.Logger(), echomw.Recover())

	idemp := middleware.Idempotency(rdb, time.Duration(cfg.IdempTTLSecs)*time.Second, logger)

	// routes
	e.GET("/health", h.Health)

	p := e.Group("/portfolios/:portfolio_id")
	p.GET("/loans", sh.GetLoans)
	p.GET("/preview", sh.GetPreview)
	p.POST("/changes/field", sh.TrackField)
	p.POST("/changes/fee", sh.TrackFee)
	p.POST("/revert", sh.Revert)
	p.POST("/save", sh.Save, idemp)
	p.DELETE("/session", sh.CloseSession)

	p.GET("/snapshots", ph.ListSnapshots)
	p.GET("/playback", ph.View)
	p.POST("/playback/enter", ph.Enter)
	p.POST("/playback/exit", ph.Exit)
	p.POST("/playback/next", ph.Next)
	p.POST("/playback/previous", ph.Previous)

	addr := ":" + cfg.AppPort
	logger.Info("listening", zap.String("addr", addr))
	if err := e.Start(addr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
