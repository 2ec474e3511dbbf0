package http

import (
	"context"
	"fmt"
	"regexp"

	"github.com/gofiber/fiber/v2"
	"github.com/tu-usuario/facturacion-pro/internal/application/dto"
)

// ReporteSIRE puerto del cliente SIRE: descarga la propuesta del Registro de
// Compras de un periodo como texto plano.
type ReporteSIRE interface {
	DescargarPropuesta(ctx context.Context, periodo string) (string, error)
}

// SUNATHandler expone los reportes SIRE (protegido).
type SUNATHandler struct {
	sire ReporteSIRE
}

// NewSUNATHandler construye el handler.
func NewSUNATHandler(sire ReporteSIRE) *SUNATHandler {
	return &SUNATHandler{sire: sire}
}

var rePeriodo = regexp.MustCompile(`^\d{6}$`)

// DescargarReporte descarga la propuesta del Registro de Compras del periodo
// indicado (YYYYMM) y la devuelve como archivo de texto.
// GET /api/sunat/reporte/:periodo
func (h *SUNATHandler) DescargarReporte(c *fiber.Ctx) error {
	periodo := c.Params("periodo")
	if !rePeriodo.MatchString(periodo) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "periodo inválido: se espera YYYYMM"})
	}
	contenido, err := h.sire.DescargarPropuesta(c.Context(), periodo)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Code: "SIRE_ERROR", Message: err.Error()})
	}
	c.Set(fiber.HeaderContentType, "text/plain; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", "propuesta_"+periodo+".txt"))
	return c.SendString(contenido)
}
