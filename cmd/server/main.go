package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/perpdash/perpdash/internal/journal"
	"github.com/perpdash/perpdash/internal/server"
	"github.com/perpdash/perpdash/internal/session"
	"github.com/perpdash/perpdash/internal/wallet"
	"github.com/perpdash/perpdash/pkg/config"
	"github.com/perpdash/perpdash/pkg/logger"
	"github.com/perpdash/perpdash/pkg/secretstore"
	"github.com/perpdash/perpdash/pkg/shutdown"
	venueclient "github.com/perpdash/perpdash/venue/client"
)

func main() {
	// Load .env (best-effort). If missing, fall back to real env vars.
	_ = godotenv.Load()

	var (
		configPath = flag.String("config", os.Getenv("PERPDASH_CONFIG"), "YAML config file path")
		autoInit   = flag.Bool("auto-init", true, "connect the venue session on startup")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: cfg.Log.File,
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAgeDays,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	w, cleanup, err := loadWallet(cfg)
	if err != nil {
		logger.Errorf("加载钱包失败: %v", err)
		os.Exit(1)
	}
	defer cleanup()

	j, err := journal.Open(cfg.Server.JournalDBPath)
	if err != nil {
		logger.Errorf("打开活动流水失败: %v", err)
		os.Exit(1)
	}

	connector := venueclient.NewConnector(cfg.Venue.Endpoint, cfg.Venue.WSEndpoint)
	store := session.New(connector,
		session.WithPollInterval(time.Duration(cfg.PollIntervalSeconds)*time.Second),
		session.WithRecorder(j),
	)

	if *autoInit {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := store.InitSession(ctx, w); err != nil {
			// 面板可以先起来，之后通过 /api/session/init 重连
			logger.Warnf("启动时建立会话失败: %v", err)
		}
		cancel()
	}

	httpSrv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           server.New(store, j, w).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	mgr := shutdown.NewManager()
	mgr.OnShutdown(func(ctx context.Context) { _ = httpSrv.Shutdown(ctx) })
	mgr.OnShutdown(func(ctx context.Context) { _ = store.Close() })
	mgr.OnShutdown(func(ctx context.Context) { _ = j.Close() })

	go func() {
		logger.Infof("perpdash 网关: %s 监听: %s", cfg.Venue.Endpoint, cfg.Server.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("HTTP 服务异常: %v", err)
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	<-stopCh

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	mgr.Shutdown(ctx)

	fmt.Println("server stopped")
}

// loadWallet 构造钱包能力：环境变量注入的私钥优先，否则读 badger 密钥库
func loadWallet(cfg *config.Config) (wallet.Capability, func(), error) {
	if cfg.Wallet.PrivateKey != "" {
		w, err := wallet.FromBase58(cfg.Wallet.PrivateKey)
		return w, func() {}, err
	}

	keyBytes, err := secretstore.ParseKey(cfg.Wallet.SecretKey)
	if err != nil {
		return wallet.Capability{}, func() {}, err
	}
	store, err := secretstore.Open(secretstore.OpenOptions{
		Path:          cfg.Wallet.KeystorePath,
		EncryptionKey: keyBytes,
		ReadOnly:      true,
	})
	if err != nil {
		return wallet.Capability{}, func() {}, err
	}
	w, err := wallet.FromKeystore(store)
	if err != nil {
		_ = store.Close()
		return wallet.Capability{}, func() {}, err
	}
	return w, func() { _ = store.Close() }, nil
}
