package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tu-usuario/facturacion-pro/internal/application/auth"
	"github.com/tu-usuario/facturacion-pro/internal/application/billing"
	"github.com/tu-usuario/facturacion-pro/internal/application/scraping"
	"github.com/tu-usuario/facturacion-pro/internal/domain/entity"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	AuthUC      *auth.AuthUseCase
	ProcesarUC  *billing.ProcesarFacturasUseCase
	ReconocerUC *billing.ReconocerFacturaUseCase
	ConsultasUC *billing.ConsultaFacturasUseCase
	PDFUC       *billing.PDFUseCase
	JobsUC      *scraping.JobsUseCase
	SIRE        ReporteSIRE
	Gateway     *Gateway
	JWTSecret   string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Auth (público)
	authGroup := api.Group("/auth")
	authHandler := NewAuthHandler(deps.AuthUC)
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))

	// Credencial Clave SOL del usuario autenticado
	protected.Put("/auth/credencial-sol", authHandler.GuardarCredencialSOL)

	// Facturas de compra (protegido)
	facturas := protected.Group("/facturas")
	facturaHandler := NewFacturaHandler(deps.ProcesarUC, deps.ReconocerUC, deps.ConsultasUC, deps.PDFUC)
	facturas.Post("/procesar", facturaHandler.Procesar)
	facturas.Post("/reconocer", facturaHandler.Reconocer)
	facturas.Get("/", facturaHandler.List)
	facturas.Get("/:serie/:numero", facturaHandler.GetByNumero)
	facturas.Put("/:id/marcar-detalle", facturaHandler.MarcarConDetalle)
	facturas.Put("/:id/registrar", facturaHandler.Registrar)
	facturas.Put("/:id/contabilizar", facturaHandler.Contabilizar)
	facturas.Get("/:id/pdf", facturaHandler.DownloadPDF)

	// Jobs de scraping (protegido; purge solo admin)
	jobs := protected.Group("/scraping/jobs")
	scrapingHandler := NewScrapingHandler(deps.JobsUC)
	jobs.Post("/", scrapingHandler.Enqueue)
	jobs.Get("/:id", scrapingHandler.Status)
	jobs.Delete("/", RequireRole(entity.RoleAdmin), scrapingHandler.Purge)

	// Reportes SIRE (protegido)
	sunatHandler := NewSUNATHandler(deps.SIRE)
	protected.Get("/sunat/reporte/:periodo", sunatHandler.DescargarReporte)

	// Websocket de progreso de jobs
	app.Use("/ws", UpgradeRequired)
	app.Get("/ws", deps.Gateway.Handler())
}
