package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"skillexchange/internal/config"
	"skillexchange/internal/infrastructure/cache"
	"skillexchange/internal/infrastructure/database"
	"skillexchange/internal/infrastructure/lock"
	"skillexchange/internal/service"
	"skillexchange/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "skillexchange",
	Short:         "SkillExchange wallet and ledger service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.yaml", "Path to the YAML config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app holds the dependencies shared by every subcommand.
type app struct {
	cfg    *config.Config
	db     *gorm.DB
	rdb    *redis.Client
	locker lock.Locker
	ledger *service.LedgerService
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if err := idgen.Init(cfg.Server.WorkerID); err != nil {
		return nil, err
	}

	db, err := database.Open(&cfg.Database)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, db: db, locker: lock.NewLocalLocker()}
	if cfg.Redis.Enabled {
		a.rdb, err = cache.NewRedis(ctx, &cfg.Redis)
		if err != nil {
			_ = database.Close(db)
			return nil, err
		}
		a.locker = lock.NewRedisLocker(a.rdb, cfg.Redis.LockTTL)
	} else {
		log.Println("[Server] redis disabled, using in-process locks")
	}

	topic := ""
	if cfg.Kafka.Enabled {
		topic = cfg.Kafka.Topic.LedgerEvents
	}
	a.ledger = service.NewLedgerService(db, a.locker, topic)
	return a, nil
}

func (a *app) close() {
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			log.Printf("[Server] close redis err=%v", err)
		}
	}
	if err := database.Close(a.db); err != nil {
		log.Printf("[Server] close database err=%v", err)
	}
}
