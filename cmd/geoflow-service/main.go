package main

import (
	"fmt"
	"os"

	"github.com/topodata/geoflow/internal/auth"
	"github.com/topodata/geoflow/internal/config"
	"github.com/topodata/geoflow/internal/db"
	"github.com/topodata/geoflow/internal/excel"
	httphandler "github.com/topodata/geoflow/internal/http"
	"github.com/topodata/geoflow/internal/http/middleware"
	"github.com/topodata/geoflow/internal/logger"
	"github.com/topodata/geoflow/internal/pdf"
	"github.com/topodata/geoflow/internal/repository"
	"github.com/topodata/geoflow/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)

	database, err := db.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	workflowRepo := repository.NewWorkflowRepository(database)
	financeRepo := repository.NewFinanceRepository(database)
	recordRepo := repository.NewRecordRepository(database)

	workflowService := service.NewWorkflowService(workflowRepo, pdf.NewGenerator(), cfg.Workflow.AutosaveInterval, log)
	financeService := service.NewFinanceService(financeRepo, excel.NewGenerator())

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	handler := httphandler.NewHandler(workflowService, financeService, recordRepo, log)
	authMiddleware := middleware.Auth(tokenParser)
	router := httphandler.NewRouter(handler, authMiddleware, cfg.Environment, cfg.HTTP.AllowedOrigins)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	log.Info().Str("addr", addr).Msg("starting geoflow service")

	if err := router.Run(addr); err != nil {
		workflowService.Saver().Cancel()
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}
