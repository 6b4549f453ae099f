package api

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/livepeer/catalyst-ingest/config"
	"github.com/livepeer/catalyst-ingest/handlers"
	"github.com/livepeer/catalyst-ingest/log"
	"github.com/livepeer/catalyst-ingest/metrics"
	"github.com/livepeer/catalyst-ingest/middleware"
	"github.com/livepeer/catalyst-ingest/pipeline"
)

func ListenAndServe(ctx context.Context, cli config.Cli, coordinator *pipeline.Coordinator) error {
	router := NewIngestAPIRouter(cli, coordinator)
	server := http.Server{Addr: cli.HTTPAddress, Handler: router}
	ctx, cancel := context.WithCancel(ctx)

	log.LogNoRequestID(
		"Starting Catalyst Ingest API!",
		"version", config.Version,
		"host", cli.HTTPAddress,
	)

	var err error
	go func() {
		err = server.ListenAndServe()
		cancel()
	}()

	<-ctx.Done()
	if err != nil {
		return err
	}

	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

func NewIngestAPIRouter(cli config.Cli, coordinator *pipeline.Coordinator) *httprouter.Router {
	router := httprouter.New()
	withLogging := middleware.LogRequest()
	withAuth := middleware.IsAuthorized
	capacity := &middleware.CapacityMiddleware{MaxInFlightJobs: cli.MaxInFlightJobs}

	ingestHandlers := handlers.NewIngestHandlers(coordinator, cli.UploadDir(), cli.MaxUploadBytes)

	// Simple endpoint for healthchecks
	router.GET("/ok", withLogging(ingestHandlers.Ok()))
	router.Handler(http.MethodGet, "/metrics", metrics.Handler())

	router.POST("/api/ingest",
		withLogging(
			withAuth(
				cli.APIToken,
				capacity.HasCapacity(
					coordinator,
					ingestHandlers.StartIngest(),
				),
			),
		),
	)
	router.GET("/api/ingest", withLogging(withAuth(cli.APIToken, ingestHandlers.ListActiveJobs())))
	router.GET("/api/ingest/:id", withLogging(withAuth(cli.APIToken, ingestHandlers.GetJob())))
	router.DELETE("/api/ingest/:id", withLogging(withAuth(cli.APIToken, ingestHandlers.ClearJob())))

	return router
}
