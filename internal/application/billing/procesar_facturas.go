package billing

import (
	"context"
	"time"

	"github.com/tu-usuario/facturacion-pro/internal/application/dto"
	"github.com/tu-usuario/facturacion-pro/pkg/logger"
)

// ProcesarFacturasUseCase procesa lotes de la carga masiva. Cada factura del
// lote pasa por el mismo upsert canónico; un error en una no aborta el resto.
type ProcesarFacturasUseCase struct {
	upsert *UpsertInvoiceUseCase
	log    *logger.Logger
}

// NewProcesarFacturasUseCase construye el caso de uso.
func NewProcesarFacturasUseCase(upsert *UpsertInvoiceUseCase, log *logger.Logger) *ProcesarFacturasUseCase {
	return &ProcesarFacturasUseCase{upsert: upsert, log: log}
}

// Procesar recorre el lote y devuelve un resultado por factura. Re-enviar una
// factura existente confirma su registro (REGISTRADO) salvo que ya esté
// CONTABILIZADO.
func (uc *ProcesarFacturasUseCase) Procesar(ctx context.Context, userID string, in dto.CrearFacturaRequest) []dto.ResultadoFactura {
	resultados := make([]dto.ResultadoFactura, 0, len(in.Facturas))
	for _, f := range in.Facturas {
		items := make([]dto.ProductoInput, len(f.Productos))
		copy(items, f.Productos)

		res, err := uc.upsert.Upsert(ctx, UpsertInvoiceInput{
			Origen:        OrigenCargaMasiva,
			UserID:        userID,
			SupplierRUC:   f.RUCEmisor,
			RazonSocial:   f.RazonSocial,
			Serie:         f.Serie,
			Numero:        f.Numero,
			TipoDocumento: f.TipoDocumento,
			Moneda:        f.Moneda,
			FechaEmision:  ParseFecha(f.FechaEmision),
			Subtotal:      f.CostoTotal,
			IGV:           f.IGV,
			Total:         f.ImporteTotal,
			Items:         items,
		})
		if err != nil {
			uc.log.Error().Err(err).
				Str("serie", f.Serie).Str("numero", f.Numero).
				Msg("error procesando factura del lote")
			resultados = append(resultados, dto.ResultadoFactura{
				NumeroComprobante: f.Serie + "-" + f.Numero,
				Error:             err.Error(),
			})
			continue
		}
		resultados = append(resultados, dto.ResultadoFactura{
			NumeroComprobante: res.NumeroComprobante,
			Creada:            res.Creada,
			Estado:            res.Estado.Display(),
		})
	}
	return resultados
}

// ParseFecha acepta los dos formatos que circulan en los productores:
// dd/mm/yyyy (carga masiva) y yyyy-mm-dd (XML UBL, OCR). Fecha inválida
// devuelve cero y el upsert usa la fecha actual.
func ParseFecha(s string) time.Time {
	for _, layout := range []string{"02/01/2006", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
