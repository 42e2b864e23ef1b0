package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"wagerbot/internal/api"
	"wagerbot/internal/commands"
	"wagerbot/internal/consensus"
	"wagerbot/internal/database"
	"wagerbot/internal/events"
	"wagerbot/internal/logger"
	"wagerbot/internal/notify"
	"wagerbot/internal/wager"
	"wagerbot/pkg/config"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = godotenv.Load()

	configPath := os.Getenv("WAGERBOT_CONFIG")
	if configPath == "" {
		configPath = "config.json"
	}
	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	lg, err := logger.New("wagerbot", cfg.Logging.Env, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer lg.Sync()

	if err := run(cfg, lg); err != nil {
		lg.Fatal("bot stopped", zap.Error(err))
	}
}

// loadConfig reads and validates the configuration at path.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func run(cfg *config.Config, lg *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	store, err := database.Open(ctx, cfg.Database, lg)
	if err != nil {
		return err
	}
	defer store.Close()

	dg, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return err
	}

	// Status event sinks. Network sinks get their own queue so a slow
	// broker never holds up an interaction.
	type sink struct {
		q     *notify.Queue
		close func() error
	}
	var (
		sinks  events.Multi
		queues []sink
	)
	queued := func(name string, n events.Notifier, closeFn func() error) {
		q := notify.NewQueue(name, n, notify.DefaultQueueSize, lg)
		queues = append(queues, sink{q: q, close: closeFn})
		sinks = append(sinks, q)
	}
	// Drain each queue before closing the client behind it.
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		for _, s := range queues {
			if err := s.q.Close(drainCtx); err != nil {
				lg.Warn("status events left undelivered", zap.Error(err))
			}
			if s.close != nil {
				if err := s.close(); err != nil {
					lg.Warn("failed to close sink", zap.Error(err))
				}
			}
		}
	}()

	if cfg.Notify.Announce {
		queued("discord", notify.NewAnnouncer(dg, cfg.Bot.CurrencySymbol, lg), nil)
	}
	hooks := notify.NewWebhook(store, cfg.Notify.Webhooks.Timeout, lg)
	if cfg.Notify.Webhooks.Enabled {
		sinks = append(sinks, hooks)
	}
	defer hooks.Wait()

	if cfg.Notify.Redis.Enabled {
		rdb, err := notify.ConnectRedis(ctx, cfg.Notify.Redis.Addr)
		if err != nil {
			return err
		}
		pub := notify.NewRedis(rdb, cfg.Notify.Redis.Channel, lg)
		queued("redis", pub, pub.Close)
	}
	if cfg.Notify.Kafka.Enabled {
		k := notify.NewKafka(notify.NewKafkaWriter(strings.Split(cfg.Notify.Kafka.Brokers, ","), cfg.Notify.Kafka.Topic), lg)
		queued("kafka", k, k.Close)
	}

	manager := wager.NewManager(store, lg, wager.WithNotifier(sinks))
	coord := consensus.New(store, manager, lg,
		consensus.WithRequestTTL(cfg.Consensus.RequestTTL),
		consensus.WithNotifier(sinks),
	)

	if cfg.API.Enabled {
		srv := api.NewServer(manager, store, lg)
		go func() {
			if err := srv.Start(ctx, cfg.API.Addr); err != nil {
				lg.Error("API server failed", zap.Error(err))
			}
		}()
	} else {
		lg.Info("API is disabled in config")
	}

	handler := commands.NewHandler(cfg, manager, coord, store, hooks, lg)
	handler.Register(dg)
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsMessageContent

	if err := dg.Open(); err != nil {
		return err
	}
	defer dg.Close()

	lg.Info("registering slash commands", zap.String("guild_id", cfg.Discord.GuildID))
	registered, err := dg.ApplicationCommandBulkOverwrite(dg.State.User.ID, cfg.Discord.GuildID, commands.SlashCommands)
	if err != nil {
		return err
	}

	lg.Info("bot is now running, press CTRL-C to exit", zap.String("user", dg.State.User.Username))
	<-ctx.Done()

	if cfg.Discord.RemoveCommandsOnExit {
		for _, c := range registered {
			if err := dg.ApplicationCommandDelete(dg.State.User.ID, cfg.Discord.GuildID, c.ID); err != nil {
				lg.Warn("failed to remove command", zap.String("command", c.Name), zap.Error(err))
			}
		}
	}
	lg.Info("shutting down")
	return nil
}
