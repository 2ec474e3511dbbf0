package http

import (
	"context"
	"fmt"
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/tu-usuario/facturacion-pro/internal/application/billing"
	"github.com/tu-usuario/facturacion-pro/internal/application/dto"
	"github.com/tu-usuario/facturacion-pro/internal/domain"
)

// FacturaHandler maneja las peticiones HTTP de facturas de compra (protegido).
type FacturaHandler struct {
	procesar  *billing.ProcesarFacturasUseCase
	reconocer *billing.ReconocerFacturaUseCase
	consultas *billing.ConsultaFacturasUseCase
	pdf       *billing.PDFUseCase
}

// NewFacturaHandler construye el handler.
func NewFacturaHandler(
	procesar *billing.ProcesarFacturasUseCase,
	reconocer *billing.ReconocerFacturaUseCase,
	consultas *billing.ConsultaFacturasUseCase,
	pdf *billing.PDFUseCase,
) *FacturaHandler {
	return &FacturaHandler{procesar: procesar, reconocer: reconocer, consultas: consultas, pdf: pdf}
}

// Procesar registra un lote de facturas (carga masiva). Cada factura se
// procesa de forma independiente: un error en una no aborta el resto.
// POST /api/facturas/procesar
func (h *FacturaHandler) Procesar(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.CrearFacturaRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if len(in.Facturas) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "el lote no tiene facturas"})
	}
	resultados := h.procesar.Procesar(c.Context(), userID, in)
	return c.Status(fiber.StatusCreated).JSON(dto.ProcesarFacturasResponse{
		Message:    fmt.Sprintf("%d factura(s) procesada(s)", len(resultados)),
		Resultados: resultados,
	})
}

// Reconocer crea una factura a partir de la foto de un comprobante.
// POST /api/facturas/reconocer (multipart, campo "imagen")
func (h *FacturaHandler) Reconocer(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	fileHeader, err := c.FormFile("imagen")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "se requiere el archivo 'imagen'"})
	}
	f, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "no se pudo leer la imagen"})
	}
	defer f.Close()
	imagen, err := io.ReadAll(f)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "no se pudo leer la imagen"})
	}

	out, err := h.reconocer.Reconocer(c.Context(), userID, imagen)
	if err != nil {
		if err == domain.ErrInvalidInput {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "OCR_INSUFICIENTE", Message: "no se detectaron RUC y número de comprobante en la imagen"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// List devuelve las facturas del usuario con la distribución de estados.
// GET /api/facturas
func (h *FacturaHandler) List(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	out, err := h.consultas.ListByUser(userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(out)
}

// GetByNumero busca una factura por serie y número. La clave se normaliza,
// así que /F001/103077 y /f1/00103077 devuelven el mismo comprobante.
// GET /api/facturas/:serie/:numero
func (h *FacturaHandler) GetByNumero(c *fiber.Ctx) error {
	serie, numero := c.Params("serie"), c.Params("numero")
	if serie == "" || numero == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "serie y número son requeridos"})
	}
	out, err := h.consultas.GetByNumero(serie, numero)
	if err != nil {
		if err == domain.ErrNotFound {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "factura no encontrada"})
		}
		if err == domain.ErrInvalidInput {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "serie o número inválidos"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(out)
}

// MarcarConDetalle avanza la factura a CON_DETALLE.
// PUT /api/facturas/:id/marcar-detalle
func (h *FacturaHandler) MarcarConDetalle(c *fiber.Ctx) error {
	return h.transicion(c, h.consultas.MarcarConDetalle)
}

// Registrar avanza la factura a REGISTRADO.
// PUT /api/facturas/:id/registrar
func (h *FacturaHandler) Registrar(c *fiber.Ctx) error {
	return h.transicion(c, h.consultas.Registrar)
}

// Contabilizar avanza la factura a CONTABILIZADO.
// PUT /api/facturas/:id/contabilizar
func (h *FacturaHandler) Contabilizar(c *fiber.Ctx) error {
	return h.transicion(c, h.consultas.Contabilizar)
}

func (h *FacturaHandler) transicion(c *fiber.Ctx, fn func(ctx context.Context, id string) (*dto.FacturaResponse, error)) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id requerido"})
	}
	out, err := fn(c.Context(), id)
	if err != nil {
		if err == domain.ErrNotFound {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "factura no encontrada"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(out)
}

// DownloadPDF descarga el PDF de la factura: el oficial del emisor si el
// scraping lo trajo, o la representación impresa generada.
// GET /api/facturas/:id/pdf
func (h *FacturaHandler) DownloadPDF(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id requerido"})
	}
	pdfBytes, filename, err := h.pdf.DownloadInvoicePDF(c.Context(), id)
	if err != nil {
		if err == domain.ErrNotFound {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "factura no encontrada"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Send(pdfBytes)
}
