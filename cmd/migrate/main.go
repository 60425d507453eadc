package main

import (
	"errors"
	"flag"
	"os"

	"go.uber.org/zap"

	"github.com/ivankudzin/phoneauth/internal/config"
	"github.com/ivankudzin/phoneauth/internal/db/migrate"
	"github.com/ivankudzin/phoneauth/internal/infra/logger"
)

func main() {
	direction := flag.String("direction", migrate.DirectionUp, "migration direction: up or down")
	flag.Parse()

	cfgPath := os.Getenv("APP_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = log.Sync()
	}()

	if err := migrate.Run(cfg.Postgres.DSN, *direction); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("schema already up to date", zap.String("direction", *direction))
			return
		}
		log.Fatal("run migrations", zap.String("direction", *direction), zap.Error(err))
	}

	log.Info("migrations applied", zap.String("direction", *direction))
}
