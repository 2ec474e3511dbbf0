package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/tu-usuario/facturacion-pro/internal/application/auth"
	"github.com/tu-usuario/facturacion-pro/internal/application/billing"
	"github.com/tu-usuario/facturacion-pro/internal/application/scraping"
	infraocr "github.com/tu-usuario/facturacion-pro/internal/infrastructure/ocr"
	infrapdf "github.com/tu-usuario/facturacion-pro/internal/infrastructure/pdf"
	"github.com/tu-usuario/facturacion-pro/internal/infrastructure/postgres"
	"github.com/tu-usuario/facturacion-pro/internal/infrastructure/queue"
	infrasunat "github.com/tu-usuario/facturacion-pro/internal/infrastructure/sunat"
	httpRouter "github.com/tu-usuario/facturacion-pro/internal/interfaces/http"
	"github.com/tu-usuario/facturacion-pro/pkg/config"
	"github.com/tu-usuario/facturacion-pro/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	userRepo := postgres.NewUserRepository(pool)
	credRepo := postgres.NewSOLCredentialRepository(pool)
	invoiceRepo := postgres.NewInvoiceRepository(pool)
	supplierRepo := postgres.NewSupplierRepository(pool)
	docRepo := postgres.NewDocumentRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	upsertUC := billing.NewUpsertInvoiceUseCase(txRunner, log)
	procesarUC := billing.NewProcesarFacturasUseCase(upsertUC, log)
	consultasUC := billing.NewConsultaFacturasUseCase(txRunner, invoiceRepo, supplierRepo, docRepo, log)
	reconocerUC := billing.NewReconocerFacturaUseCase(infraocr.NewTesseractReconocedor(log), upsertUC, log)
	pdfUC := billing.NewPDFUseCase(invoiceRepo, supplierRepo, docRepo, infrapdf.NewMarotoPDFGenerator())

	authUC := auth.NewAuthUseCase(userRepo, credRepo, cfg.JWT)

	// Cola de jobs: Redis si responde, memoria si no.
	jobQueue := queue.New(ctx, cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB, queue.Options{
		MaxAttempts:        cfg.Queue.MaxAttempts,
		BaseDelay:          cfg.Queue.BaseDelay,
		LeaseDuration:      cfg.Queue.LeaseDuration,
		CompletedRetention: cfg.Queue.CompletedRetention,
		FailedRetention:    cfg.Queue.FailedRetention,
	}, log)
	jobsUC := scraping.NewJobsUseCase(jobQueue, credRepo, log)

	gateway := httpRouter.NewGateway(log)

	// Worker de scraping: portal SOL → XML UBL → upsert de la factura.
	retriever := infrasunat.NewPortalRetriever(cfg.Scraping.Headless, log)
	transformer := infrasunat.NewUBLTransformer(log)
	worker := scraping.NewWorker(retriever, transformer, upsertUC, gateway, log)
	jobQueue.Start(ctx, cfg.Queue.Workers, worker.Process)

	sireClient := infrasunat.NewClient(cfg.SUNAT, log)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
		BodyLimit:    10 * 1024 * 1024, // fotos de comprobantes
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Facturación Pro API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		AuthUC:      authUC,
		ProcesarUC:  procesarUC,
		ReconocerUC: reconocerUC,
		ConsultasUC: consultasUC,
		PDFUC:       pdfUC,
		JobsUC:      jobsUC,
		SIRE:        sireClient,
		Gateway:     gateway,
		JWTSecret:   cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	// Primero se detienen los workers; los jobs activos se recuperan por lease
	// en el próximo arranque.
	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
