package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/austere-albatross/eventstore"
	"github.com/austere-albatross/eventstore/aggregate"
	"github.com/austere-albatross/eventstore/ambar"
	"github.com/austere-albatross/eventstore/ambar/echoambar"
	"github.com/austere-albatross/eventstore/internal/config"
	"github.com/austere-albatross/eventstore/internal/logger"
	"github.com/austere-albatross/eventstore/organization"
	"github.com/austere-albatross/eventstore/readmodel"
	"github.com/austere-albatross/eventstore/redisbus"
	"github.com/austere-albatross/eventstore/workflow"
)

func main() {
	configPath := flag.String("config", os.Getenv("AUSTERE_CONFIG"), "path to the yaml config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return err
	}

	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	enc := eventstore.NewJSONEncoder(append(organization.Payloads(), workflow.Payloads()...)...)

	storeOpts := []eventstore.Option{eventstore.WithLogger(log)}

	if cfg.Store.PostgresDSN != "" {
		storeOpts = append(storeOpts, eventstore.WithPostgresDB(cfg.Store.PostgresDSN))
	} else {
		storeOpts = append(storeOpts, eventstore.WithSQLiteDB(cfg.Store.SQLitePath))
	}

	store, err := eventstore.New(enc, storeOpts...)
	if err != nil {
		return fmt.Errorf("open event store: %w", err)
	}

	defer store.Close()

	publisher := aggregate.NewPublisher(aggregate.WithPublisherLogger(log))

	var names organization.NameReadModel

	if cfg.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}

		names = readmodel.NewRedis(rdb, cfg.Redis.NamesKey)

		publisher.Subscribe(redisbus.New(rdb, redisbus.WithChannel(cfg.Redis.Channel), redisbus.WithLogger(log)))
	} else {
		names, err = readmodel.NewSQL(store.DB())
		if err != nil {
			return fmt.Errorf("open name read model: %w", err)
		}
	}

	nameProjection := readmodel.NewNameProjection(names)

	publisher.Subscribe(nameProjection)

	projector := eventstore.NewProjector(
		store,
		eventstore.WithProjectorLogger(log),
		eventstore.WithRetryDelay(cfg.Projection.RetryDelay),
		eventstore.WithSubscriptionOpts(eventstore.WithPollInterval(cfg.Projection.PollInterval)),
	)

	projector.Add(nameProjection.Projection(ctx))

	workflows := aggregate.NewStore[*workflow.Workflow](store, aggregate.WithPublisher(publisher))

	h := &api{
		createOrg:   organization.NewCreateHandler(store, publisher),
		registerOrg: organization.NewRegisterHandler(store, publisher, organization.NewUniquenessService(names)),
		createWf:    workflow.NewCreateHandler(store, publisher),
		renameStep:  workflow.NewRenameStepHandler(workflows, aggregate.WithAttempts(cfg.Commands.Attempts)),
		workflows:   workflows,
		log:         log,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	h.routes(e)

	e.POST("/projections/organization-names", echoambar.Wrap(ambar.New(enc))(nameProjection.Projection(ctx)))

	go func() {
		if err := projector.Run(ctx); err != nil {
			log.Error("projector stopped", "error", err)
		}
	}()

	errc := make(chan error, 1)

	go func() {
		log.Info("http server listening", "addr", cfg.HTTP.Addr)

		if err := e.Start(cfg.HTTP.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	return e.Shutdown(shutdownCtx)
}
