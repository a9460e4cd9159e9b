package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/MrSnakeDoc/madeline/internal/bot"
	"github.com/MrSnakeDoc/madeline/internal/config"
	"github.com/MrSnakeDoc/madeline/internal/domain"
	"github.com/MrSnakeDoc/madeline/internal/httpserver"
	"github.com/MrSnakeDoc/madeline/internal/httpserver/deps"
	"github.com/MrSnakeDoc/madeline/internal/index"
	"github.com/MrSnakeDoc/madeline/internal/logger"
	"github.com/MrSnakeDoc/madeline/internal/redis"
	"github.com/MrSnakeDoc/madeline/internal/samp"
	"github.com/MrSnakeDoc/madeline/internal/scheduler"
	"github.com/MrSnakeDoc/madeline/internal/store/sqlite"
	redisstore "github.com/MrSnakeDoc/madeline/internal/store/redis"
	"github.com/MrSnakeDoc/madeline/internal/version"
	"github.com/MrSnakeDoc/madeline/internal/wiki"
)

type App struct {
	cfg        *config.Config
	logger     logger.Logger
	session    *discordgo.Session
	server     *httpserver.Server
	sweeper    *scheduler.Sweeper
	closeStore func() error
	connected  atomic.Bool
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)
	start := time.Now()

	repo, closeStore, err := openRepository(context.Background(), cfg, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to open %s store: %v", cfg.StoreDriver, err)
		os.Exit(1)
	}
	store := domain.NewBookmarkStore(repo, nil)
	loggerClient.Info("bookmark store ready", logger.String("driver", cfg.StoreDriver))

	httpClient := &http.Client{Timeout: 10 * time.Second}
	searcher, err := wiki.NewClient(httpClient, cfg.WikiAPIURL, cfg.WikiSiteURL)
	if err != nil {
		loggerClient.Errorf("Invalid wiki configuration: %v", err)
		os.Exit(1)
	}
	querier := samp.NewClient(cfg.QueryTimeout, nil, loggerClient)

	pages := bot.NewPaginator(cfg.PaginatorTimeout, nil, loggerClient)
	commands := bot.NewCommandIndex()
	handlers := bot.NewHandlers(store, querier, searcher, pages, commands, nil)
	cooldowns := bot.NewCooldowns()

	router := bot.NewRouter(loggerClient)
	bot.Routes(router, handlers, cooldowns, nil)

	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		loggerClient.Errorf("Failed to create Discord session: %v", err)
		os.Exit(1)
	}
	session.Identify.Intents = discordgo.IntentsGuilds

	a := &App{
		cfg:        cfg,
		logger:     loggerClient,
		session:    session,
		closeStore: closeStore,
	}

	session.AddHandler(router.HandleInteraction)
	session.AddHandler(a.onReady(commands))
	session.AddHandler(func(*discordgo.Session, *discordgo.Resumed) { a.connected.Store(true) })
	session.AddHandler(func(*discordgo.Session, *discordgo.Disconnect) {
		a.connected.Store(false)
		loggerClient.Warn("discord gateway disconnected")
	})

	targets := []scheduler.Target{{Name: "paginator", Sweepable: pages}}
	for _, c := range cooldowns.All() {
		targets = append(targets, scheduler.Target{Name: "cooldown:" + c.Name(), Sweepable: c})
	}
	a.sweeper = scheduler.NewSweeper(loggerClient, cfg.SweepInterval, targets...)

	if cfg.HTTPEnabled {
		a.server = httpserver.New(cfg.ListenPort, deps.Deps{
			Logger:       loggerClient,
			StartTime:    start,
			Version:      version.Version,
			Commit:       version.Commit,
			BuildDate:    version.BuildDate,
			GoVersion:    version.GoVersion,
			TimeNow:      time.Now,
			AllowedCIDRS: cfg.AllowedCIDRS,
			TrustProxy:   cfg.TrustProxy,
			StoreDriver:  cfg.StoreDriver,
			Store:        store,
			Gateway:      a.connected.Load,
			Sessions:     pages.Len,
		})
	}

	return a
}

// openRepository builds the bookmark backend named by cfg.StoreDriver.
func openRepository(ctx context.Context, cfg *config.Config, log logger.Logger) (domain.BookmarkRepository, func() error, error) {
	switch cfg.StoreDriver {
	case config.DriverRedis:
		log.Infof("Connecting to Redis at %s", cfg.RedisAddr)
		client, err := redis.New(ctx, redis.ConnectOptions{
			Addr:           cfg.RedisAddr,
			User:           cfg.RedisUser,
			Password:       cfg.RedisPassword,
			DB:             cfg.RedisDB,
			DialTimeout:    cfg.RedisDT,
			ReadTimeout:    cfg.RedisRT,
			WriteTimeout:   cfg.RedisWT,
			PoolSize:       cfg.RedisPoolSize,
			ConnectTimeout: cfg.RedisConnectTimeout,
			RetryInterval:  cfg.RedisRetryInterval,
			MaxWait:        cfg.RedisMaxWait,
			PingTimeout:    cfg.RedisPingTimeout,
			WarnThreshold:  cfg.RedisWarnThreshold,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		return redisstore.NewStore(client), client.Close, nil

	case config.DriverSQLite:
		s, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	case config.DriverMemory:
		log.Warn("memory store selected, bookmarks are lost on restart")
		return index.NewMemoryIndex(), func() error { return nil }, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

// onReady publishes the commands once and marks the gateway as up.
func (a *App) onReady(commands *bot.CommandIndex) func(*discordgo.Session, *discordgo.Ready) {
	var once sync.Once
	return func(s *discordgo.Session, r *discordgo.Ready) {
		a.connected.Store(true)
		a.logger.Info("connected to discord",
			logger.String("user", r.User.Username),
			logger.Int("guilds", len(r.Guilds)))

		if err := s.UpdateStatusComplex(discordgo.UpdateStatusData{Status: string(discordgo.StatusIdle)}); err != nil {
			a.logger.Warn("failed to set presence", logger.Error(err))
		}

		once.Do(func() {
			appID := a.cfg.DiscordAppID
			if appID == "" {
				appID = r.User.ID
			}
			created, err := bot.Register(s, appID, a.cfg.DiscordGuildID, commands)
			if err != nil {
				a.logger.Error("failed to register commands", logger.Error(err))
				return
			}
			scope := "global"
			if a.cfg.DiscordGuildID != "" {
				scope = "guild " + a.cfg.DiscordGuildID
			}
			a.logger.Info("commands registered",
				logger.Int("count", len(created)),
				logger.String("scope", scope))
		})
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting madeline %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.session.Open(); err != nil {
		a.close()
		return fmt.Errorf("failed to open discord gateway: %w", err)
	}

	a.sweeper.Start(ctx)
	a.logger.Info("sweeper started", logger.Duration("interval", a.cfg.SweepInterval))

	errCh := make(chan error, 1)
	if a.server != nil {
		go func() {
			if err := a.server.Start(); err != nil {
				errCh <- fmt.Errorf("http server error: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
	}

	a.sweeper.Stop()

	if a.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		if err := a.server.Stop(shutdownCtx); err != nil {
			a.logger.Warnf("failed to stop http server: %v", err)
		}
	}

	if err := a.session.Close(); err != nil {
		a.logger.Warnf("failed to close discord session: %v", err)
	}
	a.close()

	if runErr != nil {
		return runErr
	}
	a.logger.Info("✅ madeline stopped cleanly")
	return nil
}

func (a *App) close() {
	if err := a.closeStore(); err != nil {
		a.logger.Warnf("failed to close %s store: %v", a.cfg.StoreDriver, err)
		return
	}
	a.logger.Info("✅ store closed cleanly", logger.String("driver", a.cfg.StoreDriver))
}
