package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/meghashyamc/clinicsearch/clients/medicinesapi"
	"github.com/meghashyamc/clinicsearch/config"
	"github.com/meghashyamc/clinicsearch/db/clinicdb"
	"github.com/meghashyamc/clinicsearch/db/kvdb"
	"github.com/meghashyamc/clinicsearch/db/searchdb"
	"github.com/meghashyamc/clinicsearch/events"
	"github.com/meghashyamc/clinicsearch/logger"
	"github.com/meghashyamc/clinicsearch/services/highlight"
	"github.com/meghashyamc/clinicsearch/services/index"
	"github.com/meghashyamc/clinicsearch/services/search"
	"github.com/meghashyamc/clinicsearch/validation"
)

const shutdownTimeout = 10 * time.Second

type server struct {
	cfg        *config.Config
	router     *gin.Engine
	httpServer *http.Server
	kvdb       kvdb.DB
	searchdb   searchdb.DB
	clinicdb   clinicdb.DB
	redisBus   *events.RedisBus
	bus        events.Bus
	index      *index.Service
	search     *search.Service
	highlight  *highlight.Correlator
	validator  *validation.Validator
	logger     logger.Logger
}

// Run serves the API until ctx is done or the process is interrupted.
func Run(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)

	s := &server{
		cfg:    cfg,
		logger: logger.NewWithLevel(cfg.GetLogLevel()),
	}
	defer func() {
		cancel()
		s.close()
	}()

	if err := s.setupDependencies(ctx); err != nil {
		return err
	}
	s.setupRouter(ctx)
	s.setupHTTPServer(ctx)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		s.logger.Info("starting http server", "addr", s.httpServer.Addr, "env", cfg.Env())
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server failed", "err", err.Error())
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		return s.shutdown()
	})

	return group.Wait()
}

func (s *server) setupDependencies(ctx context.Context) error {
	kvDB, err := kvdb.New(s.logger, s.cfg)
	if err != nil {
		s.logger.Error("error creating kvDB", "err", err.Error())
		return err
	}
	s.kvdb = kvDB
	searchDB, err := searchdb.New(s.logger, s.cfg)
	if err != nil {
		s.logger.Error("error creating searchDB", "err", err.Error())
		return err
	}
	s.searchdb = searchDB
	clinicDB, err := clinicdb.New(s.logger, s.cfg)
	if err != nil {
		s.logger.Error("error creating clinicDB", "err", err.Error())
		return err
	}
	s.clinicdb = clinicDB
	if err := s.seedClinicDB(ctx); err != nil {
		return err
	}
	s.validator, err = validation.New(s.logger)
	if err != nil {
		s.logger.Error("error creating validator", "err", err.Error())
		return err
	}

	s.setupBus(ctx)

	idx := index.NewIndex()
	s.index = index.New(s.logger, idx, s.clinicdb, medicinesapi.New(s.logger, s.cfg), s.searchdb, s.kvdb)
	if err := s.index.Build(ctx); err != nil {
		s.logger.Error("error building search index", "err", err.Error())
		return err
	}
	if err := s.index.ScheduleMedicinesRefresh(ctx, s.cfg.GetMedicinesRefreshCron()); err != nil {
		return err
	}

	s.search = search.New(s.logger, idx, s.searchdb)
	s.highlight = highlight.New(s.logger, s.cfg, s.kvdb, s.bus, nil)
	if err := s.highlight.ScheduleSweep(ctx, s.cfg.GetHighlightSweepInterval()); err != nil {
		return err
	}

	return nil
}

func (s *server) seedClinicDB(ctx context.Context) error {
	fixturesPath := s.cfg.GetFixturesPath()
	if fixturesPath == "" {
		return nil
	}

	fixtures, err := clinicdb.LoadFixtures(fixturesPath)
	if err != nil {
		s.logger.Error("error loading fixtures", "path", fixturesPath, "err", err.Error())
		return err
	}
	if err := s.clinicdb.Seed(ctx, fixtures); err != nil {
		s.logger.Error("error seeding clinicDB", "path", fixturesPath, "err", err.Error())
		return err
	}

	s.logger.Info("seeded clinic database", "path", fixturesPath)
	return nil
}

// setupBus uses redis when it is configured and reachable, and the in-process
// hub otherwise.
func (s *server) setupBus(ctx context.Context) {
	hub := events.NewHub(s.logger)
	s.bus = hub

	if s.cfg.GetRedisAddr() == "" {
		return
	}

	redisBus, err := events.NewRedisBus(s.logger, s.cfg, hub)
	if err != nil {
		s.logger.Warn("falling back to in-process event bus", "err", err.Error())
		return
	}
	if err := redisBus.StartForwarder(ctx); err != nil {
		s.logger.Warn("falling back to in-process event bus", "err", err.Error())
		redisBus.Close()
		return
	}

	s.redisBus = redisBus
	s.bus = redisBus
}

func (s *server) setupRouter(ctx context.Context) {
	router := newRouter()

	router.Use(loggingMiddleware(s.logger))

	setupRoutes(ctx, router, s)

	s.router = router
}

// Requests inherit ctx so that open highlight streams end on shutdown.
func (s *server) setupHTTPServer(ctx context.Context) {
	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%s", s.cfg.GetPort()),
		Handler:     s.router.Handler(),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
}

func (s *server) shutdown() error {
	s.logger.Info("starting to shut down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("error shutting down http server", "err", err)
		return err
	}
	s.logger.Info("shut down http server successfully")
	return nil
}

// close releases whatever setupDependencies managed to open.
func (s *server) close() {
	if s.index != nil {
		s.index.Wait()
	}
	if s.redisBus != nil {
		s.redisBus.Close()
	}
	if s.clinicdb != nil {
		s.clinicdb.Close()
	}
	if s.searchdb != nil {
		s.searchdb.Close()
	}
	if s.kvdb != nil {
		s.kvdb.Close()
	}
}
