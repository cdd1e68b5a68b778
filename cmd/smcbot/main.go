package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"smcbot/internal/agent"
	"smcbot/internal/config"
	"smcbot/internal/gateway/binance"
	"smcbot/internal/logger"
	"smcbot/internal/report"
	"smcbot/internal/smc"
	"smcbot/internal/store"
	"smcbot/internal/transport/http/api"
)

func main() {
	var (
		configPath = flag.String("config", "config.toml", "配置文件路径")
		offline    = flag.Bool("report", false, "离线模式：拉取历史、输出结构报表后退出")
	)
	flag.Parse()
	logger.SetLevelFromEnv()

	loader := config.NewLoader(*configPath)
	settings, err := loader.Load()
	if err != nil {
		logger.Errorf("加载配置失败: %v", err)
		os.Exit(1)
	}

	src, err := binance.New(binance.Config{
		APIKey:    os.Getenv("BINANCE_API_KEY"),
		APISecret: os.Getenv("BINANCE_API_SECRET"),
	})
	if err != nil {
		logger.Errorf("初始化行情源失败: %v", err)
		os.Exit(1)
	}
	defer src.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *offline {
		if err := runOffline(ctx, src, settings); err != nil {
			logger.Errorf("离线报表失败: %v", err)
			os.Exit(1)
		}
		return
	}

	if err := runAgent(ctx, src, loader, settings); err != nil {
		logger.Errorf("运行失败: %v", err)
		os.Exit(1)
	}
}

// runAgent 常驻模式：实时订阅 + HTTP 控制面。
func runAgent(ctx context.Context, src *binance.Source, loader *config.Loader, settings config.Settings) error {
	var db *store.SQLiteStore
	if settings.SQLitePath != "" {
		var err error
		db, err = store.OpenSQLite(settings.SQLitePath)
		if err != nil {
			return fmt.Errorf("打开 sqlite 失败: %w", err)
		}
		defer db.Close()
	}

	runner, err := agent.NewRunner(agent.Params{
		Source:       src,
		DB:           db,
		Symbol:       settings.Symbol,
		Interval:     settings.Interval,
		HistoryLimit: settings.HistoryLimit,
		Strategy:     settings.Strategy,
	})
	if err != nil {
		return err
	}
	if err := runner.Start(ctx); err != nil {
		return err
	}
	defer runner.Stop()

	server, err := api.NewServer(api.ServerConfig{
		Addr:    settings.HTTPAddr,
		Runner:  runner,
		Loader:  loader,
		BaseCtx: ctx,
	})
	if err != nil {
		return err
	}

	logger.Infof("smcbot 启动: %s %s, HTTP %s", settings.Symbol, settings.Interval, settings.HTTPAddr)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Start(gctx) })
	return g.Wait()
}

// runOffline 一次性模式：批量检测全部历史并落盘 HTML 报表。
func runOffline(ctx context.Context, src *binance.Source, settings config.Settings) error {
	candles, err := src.FetchHistory(ctx, settings.Symbol, settings.Interval, settings.HistoryLimit)
	if err != nil {
		return fmt.Errorf("拉取历史失败: %w", err)
	}

	engine := smc.NewEngine(settings.Strategy)
	events := engine.Replay(candles)
	blocks, err := engine.OrderBlocks(candles)
	if err != nil {
		return err
	}
	gaps, err := engine.FVGs(candles)
	if err != nil {
		return err
	}
	eqh, eql, err := engine.EqualHighsLows(candles)
	if err != nil {
		return err
	}

	data := report.Data{
		Symbol:      settings.Symbol,
		Interval:    settings.Interval,
		Candles:     candles,
		Events:      events,
		OrderBlocks: blocks,
		FVGs:        gaps,
		EQH:         eqh,
		EQL:         eql,
	}
	fmt.Print(report.Summary(data))

	if err := os.MkdirAll(settings.ReportDir, 0o755); err != nil {
		return err
	}
	name := fmt.Sprintf("%s-%s-%s.html", settings.Symbol, settings.Interval,
		time.Now().Format("20060102-150405"))
	path := filepath.Join(settings.ReportDir, name)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := report.RenderHTML(f, data); err != nil {
		return err
	}
	logger.Infof("报表已生成: %s (%d 个结构事件)", path, len(events))
	return nil
}
