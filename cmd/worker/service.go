package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/harvestlink-backend/pkg/config"
	"github.com/angelmondragon/harvestlink-backend/pkg/logger"
)

const heartbeatInterval = 30 * time.Second

type pinger interface {
	Ping(context.Context) error
}

type runner interface {
	Run(context.Context) error
}

type dependency struct {
	name string
	ping pinger
}

type ServiceParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         pinger
	Redis      pinger
	PubSub     pinger
	OrderRelay runner
}

// Service runs the order chat relay next to a database heartbeat. Readiness
// is checked once before any consumer starts pulling.
type Service struct {
	logg      *logger.Logger
	deps      []dependency
	consumers map[string]runner
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.Redis == nil:
		return nil, errors.New("redis client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.OrderRelay == nil:
		return nil, errors.New("order relay consumer is required")
	}

	return &Service{
		logg: params.Logger,
		deps: []dependency{
			{name: "database", ping: params.DB},
			{name: "redis", ping: params.Redis},
			{name: "pubsub", ping: params.PubSub},
		},
		consumers: map[string]runner{"order-relay": params.OrderRelay},
	}, nil
}

func (s *Service) checkDependencies(ctx context.Context) error {
	for _, dep := range s.deps {
		if err := dep.ping.Ping(ctx); err != nil {
			s.logg.Error(s.logg.WithField(ctx, "dependency", dep.name), "worker dependency unavailable", err)
			return fmt.Errorf("%s ping failed: %w", dep.name, err)
		}
	}
	s.logg.Info(ctx, "worker dependencies ready")
	return nil
}

// Run blocks until a consumer fails or ctx is canceled. The first consumer
// error cancels the others.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.checkDependencies(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for name, consumer := range s.consumers {
		g.Go(func() error {
			err := consumer.Run(gctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logg.Error(s.logg.WithField(gctx, "consumer", name), "consumer stopped", err)
				return fmt.Errorf("%s: %w", name, err)
			}
			return err
		})
	}
	g.Go(func() error {
		s.heartbeat(gctx)
		return gctx.Err()
	})

	err := g.Wait()
	if ctx.Err() != nil {
		s.logg.Info(ctx, "worker context canceled")
		return ctx.Err()
	}
	return err
}

func (s *Service) heartbeat(ctx context.Context) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, dep := range s.deps {
				if err := dep.ping.Ping(ctx); err != nil {
					s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"dependency": dep.name, "error": err.Error()}), "worker heartbeat failed")
				}
			}
		}
	}
}
