package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"entitlement-service/internal/biz"
	"entitlement-service/internal/conf"

	"github.com/gaoyong06/go-pkg/logger"
	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/env"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	_ "go.uber.org/automaxprocs"
)

// defaultUsageRetentionSpec 每天 03:00 执行（秒级 cron 表达式）
const defaultUsageRetentionSpec = "0 0 3 * * *"

// CronApp Cron 应用结构
type CronApp struct {
	config    *biz.EntitlementConfig
	retention *biz.UsageRetentionUseCase
}

var (
	flagconf string
	flagonce bool
)

func init() {
	flag.StringVar(&flagconf, "conf", "../../configs/config.yaml", "config path, eg: -conf config.yaml")
	flag.BoolVar(&flagonce, "once", false, "run the usage retention job once and exit")
}

func main() {
	flag.Parse()

	_ = godotenv.Load()

	// 初始化配置
	c := config.New(
		config.WithSource(
			file.NewSource(flagconf),
			env.NewSource("ENTITLEMENT_"),
		),
	)
	defer c.Close()

	if err := c.Load(); err != nil {
		panic(err)
	}

	var bc conf.Bootstrap
	if err := c.Scan(&bc); err != nil {
		panic(err)
	}

	// 初始化日志 (使用 go-pkg/logger)
	logConfig := &logger.Config{
		Level:         "info",
		Format:        "json",
		Output:        "stdout",
		FilePath:      "logs/entitlement-cron.log",
		MaxSize:       100,
		MaxAge:        30,
		MaxBackups:    10,
		Compress:      true,
		EnableConsole: true,
	}

	loggerInstance := logger.NewLogger(logConfig)

	// 添加基本字段
	loggerInstance = log.With(loggerInstance,
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service.name", "entitlement-cron",
	)

	logHelper := log.NewHelper(loggerInstance)

	// 初始化应用
	app, cleanup, err := wireApp(&bc, loggerInstance)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	purgeUsage := func() {
		logHelper.Info("[CRON] Starting usage retention...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		cutoff, deleted, err := app.retention.PurgeUsage(ctx)
		if err != nil {
			logHelper.Errorf("[CRON] Error purging usage counters: %v", err)
			return
		}
		logHelper.Infof("[CRON] Finished usage retention: cutoff=%s, deleted=%d", cutoff, deleted)
	}

	if flagonce {
		purgeUsage()
		return
	}

	spec := defaultUsageRetentionSpec
	if bc.Cron != nil && bc.Cron.UsageRetentionSpec != "" {
		spec = bc.Cron.UsageRetentionSpec
	}

	// 创建定时任务调度器（支持秒级调度），使用日按配置时区切分，调度也使用同一时区
	cronScheduler := cron.New(cron.WithSeconds(), cron.WithLocation(app.config.Location))

	if _, err := cronScheduler.AddFunc(spec, purgeUsage); err != nil {
		logHelper.Errorf("Failed to add usage retention job: %v", err)
		os.Exit(1)
	}

	// 启动定时任务
	cronScheduler.Start()
	logHelper.Info("========================================")
	logHelper.Info("Cron jobs started successfully")
	logHelper.Info("Scheduled jobs:")
	logHelper.Infof("  - Usage retention: %s (%s)", spec, app.config.Location)
	logHelper.Info("========================================")

	// 优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logHelper.Info("Shutting down gracefully...")

	// 停止定时任务
	ctx := cronScheduler.Stop()
	select {
	case <-ctx.Done():
		logHelper.Info("Cron jobs stopped gracefully")
	case <-time.After(5 * time.Second):
		logHelper.Info("Cron jobs forced to stop after timeout")
	}
}
