package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/tu-usuario/facturacion-pro/internal/application/dto"
	"github.com/tu-usuario/facturacion-pro/internal/application/scraping"
	"github.com/tu-usuario/facturacion-pro/internal/domain"
)

// ScrapingHandler maneja el ciclo de vida de los jobs de scraping (protegido).
type ScrapingHandler struct {
	uc *scraping.JobsUseCase
}

// NewScrapingHandler construye el handler.
func NewScrapingHandler(uc *scraping.JobsUseCase) *ScrapingHandler {
	return &ScrapingHandler{uc: uc}
}

// Enqueue encola la descarga de un comprobante desde el portal SOL. El submit
// es síncrono y solo devuelve el job ID; el resultado llega por el websocket
// o consultando el estado del job.
// POST /api/scraping/jobs
func (h *ScrapingHandler) Enqueue(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.EnqueueScrapingRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	out, err := h.uc.Enqueue(c.Context(), userID, in)
	if err != nil {
		if err == domain.ErrInvalidInput {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "rucEmisor y numero son requeridos"})
		}
		if err == domain.ErrCredentialsMissing {
			return c.Status(fiber.StatusPreconditionFailed).JSON(dto.ErrorResponse{Code: "SIN_CREDENCIAL_SOL", Message: "registre su credencial Clave SOL antes de usar el scraping"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.Status(fiber.StatusAccepted).JSON(out)
}

// Status consulta el estado puntual de un job.
// GET /api/scraping/jobs/:id
func (h *ScrapingHandler) Status(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id requerido"})
	}
	out, err := h.uc.Status(c.Context(), id)
	if err != nil {
		if err == domain.ErrJobNotFound {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "job no encontrado o ya purgado"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(out)
}

// Purge elimina todos los jobs de la cola. La ruta va detrás de
// RequireRole("admin").
// DELETE /api/scraping/jobs
func (h *ScrapingHandler) Purge(c *fiber.Ctx) error {
	if err := h.uc.Purge(c.Context()); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.SendStatus(fiber.StatusNoContent)
}
