package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
	"github.com/redis/go-redis/v9"

	"github.com/glebk/status-board/internal/api"
	"github.com/glebk/status-board/internal/bot"
	"github.com/glebk/status-board/internal/config"
	"github.com/glebk/status-board/internal/domain"
	"github.com/glebk/status-board/internal/feed"
	"github.com/glebk/status-board/internal/repository/postgres"
	"github.com/glebk/status-board/internal/repository/sqlite"
	"github.com/glebk/status-board/internal/service"
	"github.com/glebk/status-board/internal/websocket"
)

func main() {
	flag.Parse()
	defer glog.Flush()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		glog.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize store
	repo, closeStore, err := openStore(cfg)
	if err != nil {
		glog.Fatalf("Failed to initialize store: %v", err)
	}
	defer closeStore()

	// Initialize change feed
	changes, closeFeed, err := openFeed(ctx, cfg)
	if err != nil {
		glog.Fatalf("Failed to initialize change feed: %v", err)
	}
	defer closeFeed()

	// Initialize service
	statusService := service.NewStatusService(repo, changes, service.Credentials{
		SharedPassword: cfg.SharedPassword,
		AdminName:      cfg.AdminName,
	})
	if cfg.AdminName == "" {
		glog.Warning("ADMIN_NAME is empty, clear-all is disabled")
	}

	// Initialize bot
	if cfg.Telegram.Enabled() {
		telegramBot, err := bot.New(cfg.Telegram.Token, statusService, changes, cfg)
		if err != nil {
			glog.Fatalf("Failed to initialize bot: %v", err)
		}
		go func() {
			glog.Info("Bot started")
			if err := telegramBot.Start(ctx); err != nil {
				glog.Errorf("Bot stopped with error: %v", err)
			}
		}()
	}

	// Initialize HTTP server
	wsHub := websocket.NewHub(changes, domain.StatusTable)
	defer wsHub.Close()

	router := api.NewRouter(api.RouterConfig{
		AllowedOrigins:  cfg.AllowedOrigins,
		AllowAllOrigins: cfg.AllowAllOrigins(),
	}, api.New(statusService, wsHub.HandleConnection))

	server := api.NewServer(cfg.Port, router)
	if err := server.Start(ctx); err != nil {
		glog.Errorf("Server stopped with error: %v", err)
	}
	glog.Info("Shutting down gracefully...")
}

func openStore(cfg *config.Config) (domain.StatusRepository, func(), error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		db, err := postgres.Connect(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.Migrate(db); err != nil {
			return nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get sql.DB: %w", err)
		}
		glog.Info("Store: postgres")
		return postgres.NewStatusRepository(db), func() { sqlDB.Close() }, nil
	default:
		db, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return nil, nil, err
		}
		glog.Infof("Store: sqlite at %s", cfg.DatabasePath)
		return sqlite.NewStatusRepository(db), func() { db.Close() }, nil
	}
}

func openFeed(ctx context.Context, cfg *config.Config) (feed.Feed, func(), error) {
	switch cfg.FeedDriver {
	case config.FeedRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		f, err := feed.NewRedisFeed(ctx, client, feed.DefaultRedisChannel)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		glog.Infof("Change feed: redis at %s", cfg.RedisAddr)
		return f, func() {
			f.Close()
			client.Close()
		}, nil
	default:
		glog.Info("Change feed: in-process")
		hub := feed.NewHub()
		return hub, func() { hub.Close() }, nil
	}
}
