package cmd

import (
	"context"
	"errors"
	"log"
	httpNet "net/http"
	"os"
	"os/signal"
	"syscall"

	"portfolio-tracker/internal/delivery/http"
	"portfolio-tracker/internal/repository"
	"portfolio-tracker/internal/service"
	"portfolio-tracker/pkg/logger"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the portfolio API, price reconciliation and schedules",
	Run:   Start,
}

func Start(cmd *cobra.Command, args []string) {
	// Create a context that is canceled on interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appDep, err := NewAppDependency(ctx)
	if err != nil {
		log.Fatalf("Failed to create app dependency: %v", err)
	}

	repo, err := repository.NewRepository(ctx, appDep.cfg, appDep.cache, appDep.db.DB, appDep.log)
	if err != nil {
		log.Fatalf("Failed to create repository: %v", err)
	}

	services, err := service.NewService(ctx, appDep.cfg, appDep.log, repo)
	if err != nil {
		log.Fatalf("Failed to create services: %v", err)
	}
	httpHandler := http.NewHttpAPIHandler(ctx, appDep.echo, appDep.validator, services, appDep.log)
	apiServer := NewHTTPServer(ctx, appDep, httpHandler)

	if err := services.MarketService.RefreshHolidays(ctx); err != nil {
		appDep.log.Warn("Starting without market holidays", logger.ErrorField(err))
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := apiServer.Start(); err != nil && !errors.Is(err, httpNet.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := services.SchedulerService.Start(gCtx); err != nil {
			return err
		}
		<-gCtx.Done()
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		appDep.log.Info("Shutting down gracefully...")
		return apiServer.Stop()
	})

	if err := g.Wait(); err != nil {
		appDep.log.Error("Service stopped with error", logger.ErrorField(err))
	}

	services.Close()
	if err := repo.Close(); err != nil {
		appDep.log.Warn("Failed to close repository", logger.ErrorField(err))
	}
	if err := appDep.Close(); err != nil {
		log.Fatalf("Failed to close app dependency: %v", err)
	}
}
