package cmd

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"loan-risk/config"
	"loan-risk/events"
	"loan-risk/repository"
	"loan-risk/service"
)

// dependencies are the collaborators shared by every command.
type dependencies struct {
	service *service.SimulationService
	closers []func() error
}

func (d *dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			log.WithError(err).Warn("failed to close dependency")
		}
	}
}

func buildDependencies(ctx context.Context, cfg config.Config) (*dependencies, error) {
	deps := &dependencies{}

	var cache repository.CacheRepository = repository.NewMemoryCache()
	if cfg.Redis.Addr != "" {
		redisCache := repository.NewRedisCache(cfg.Redis.Addr, cfg.Redis.TTL)
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := redisCache.Ping(pingCtx)
		cancel()
		if err != nil {
			// sin redis se usa la caché en memoria
			log.WithError(err).WithField("addr", cfg.Redis.Addr).Warn("redis unavailable, using in-memory cache")
			redisCache.Close()
		} else {
			cache = redisCache
			deps.closers = append(deps.closers, redisCache.Close)
		}
	}

	var runs repository.RunRepository = repository.NewBoundedRunRepositoryMemory(cfg.Database.MemoryRuns, cfg.Database.MemorySamples)
	if cfg.Database.DSN != "" {
		gormRuns, err := repository.OpenSQLiteRunRepository(cfg.Database.DSN)
		if err != nil {
			deps.Close()
			return nil, err
		}
		runs = gormRuns
		deps.closers = append(deps.closers, gormRuns.Close)
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		deps.closers = append(deps.closers, publisher.Close)
	}

	ai, err := service.NewAIService(ctx, cfg.AI.APIKey, cfg.AI.Model)
	if err != nil {
		deps.Close()
		return nil, err
	}

	deps.service = service.NewSimulationService(
		repository.NewFilePortfolioRepository(cfg.Portfolio.File),
		runs, cache, publisher, ai,
		service.Options{
			Simulations: cfg.Simulation.Count,
			Workers:     cfg.Simulation.Workers,
		},
	)

	log.WithFields(log.Fields{
		"portfolio": cfg.Portfolio.File,
		"redis":     cfg.Redis.Addr != "",
		"database":  cfg.Database.DSN != "",
		"kafka":     len(cfg.Kafka.Brokers) > 0,
		"ai":        ai.Enabled(),
	}).Debug("dependencies ready")
	return deps, nil
}
