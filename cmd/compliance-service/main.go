package main

import (
	"context"
	"fmt"
	"os"

	"github.com/samwel-gachiri/agribackup-sub003/internal/auth"
	"github.com/samwel-gachiri/agribackup-sub003/internal/config"
	"github.com/samwel-gachiri/agribackup-sub003/internal/db"
	"github.com/samwel-gachiri/agribackup-sub003/internal/excel"
	httphandler "github.com/samwel-gachiri/agribackup-sub003/internal/http"
	"github.com/samwel-gachiri/agribackup-sub003/internal/http/middleware"
	"github.com/samwel-gachiri/agribackup-sub003/internal/ledger"
	"github.com/samwel-gachiri/agribackup-sub003/internal/logger"
	"github.com/samwel-gachiri/agribackup-sub003/internal/pdf"
	"github.com/samwel-gachiri/agribackup-sub003/internal/repository"
	"github.com/samwel-gachiri/agribackup-sub003/internal/risk"
	"github.com/samwel-gachiri/agribackup-sub003/internal/service"
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

	transferRepo := repository.NewTransferRepository(database)
	batchRepo := repository.NewBatchRepository(database)
	assessmentRepo := repository.NewAssessmentRepository(database)
	pipelineRepo := repository.NewPipelineRepository(database)
	notarizationRepo := repository.NewNotarizationRepository(database)

	ledgerClient := ledger.NewHTTPClient(cfg.Ledger.BaseURL, cfg.Ledger.APIKey, cfg.Ledger.CallTimeout)
	notarizer := ledger.NewNotarizer(
		ledgerClient,
		notarizationRepo,
		log,
		cfg.Ledger.RetryInterval,
		cfg.Ledger.CallTimeout,
		cfg.Ledger.MaxAttempts,
	)

	engine := risk.NewEngine(risk.NewReferenceData())

	transferService := service.NewTransferService(transferRepo, batchRepo, notarizer, log)
	riskService := service.NewRiskService(engine, batchRepo, batchRepo, assessmentRepo, notarizer, log)
	pipelineService := service.NewPipelineService(pipelineRepo, batchRepo, batchRepo, transferRepo, riskService, log)
	reportService := service.NewReportService(batchRepo, batchRepo, assessmentRepo, transferRepo, pdf.NewGenerator(), excel.NewGenerator())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go notarizer.Run(ctx)

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	handler := httphandler.NewHandler(transferService, riskService, pipelineService, reportService, notarizationRepo, log)
	authMiddleware := middleware.Auth(tokenParser)
	router := httphandler.NewRouter(handler, authMiddleware, cfg.Environment)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	log.Info().Str("addr", addr).Msg("starting compliance service")

	if err := router.Run(addr); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}
