package billing

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tu-usuario/facturacion-pro/internal/application/dto"
	"github.com/tu-usuario/facturacion-pro/internal/domain"
	"github.com/tu-usuario/facturacion-pro/internal/domain/entity"
	"github.com/tu-usuario/facturacion-pro/internal/domain/factura"
	"github.com/tu-usuario/facturacion-pro/internal/domain/repository"
	"github.com/tu-usuario/facturacion-pro/pkg/logger"
)

// Origen del upsert: los tres productores convergen en el mismo almacén con
// la misma normalización de clave y la misma máquina de estados.
type Origen string

const (
	OrigenOCR         Origen = "ocr"
	OrigenCargaMasiva Origen = "carga_masiva"
	OrigenScraping    Origen = "scraping"
)

// UpsertInvoiceInput entrada canónica del almacén de facturas.
// Items nil significa "no tocar las líneas"; una lista (aún vacía) las
// reemplaza en bloque. Documento nil significa "no tocar el documento".
type UpsertInvoiceInput struct {
	Origen        Origen
	UserID        string
	SupplierRUC   string
	RazonSocial   string
	Serie         string
	Numero        string
	TipoDocumento string
	Moneda        string
	FechaEmision  time.Time
	Subtotal      decimal.Decimal
	IGV           decimal.Decimal
	Total         decimal.Decimal
	Items         []dto.ProductoInput
	Documento     *entity.ElectronicDocument
	// EstadoPropuesto opcional: se aplica con la guarda anti-regresión
	// (una propuesta menor al estado actual se ignora con una advertencia).
	EstadoPropuesto factura.Estado
}

// UpsertInvoiceResult indica si la llamada creó una fila nueva o fusionó
// sobre una existente, para que el caller reporte "creada" vs "ya registrada"
// sin una segunda lectura.
type UpsertInvoiceResult struct {
	InvoiceID         string
	NumeroComprobante string
	Creada            bool
	Estado            factura.Estado
}

// UpsertInvoiceUseCase es el único punto de escritura de facturas: idempotente
// por clave normalizada, con proveedor primero y máquina de estados aplicada
// dentro de la misma transacción.
type UpsertInvoiceUseCase struct {
	txRunner FacturacionTxRunner
	log      *logger.Logger
}

// NewUpsertInvoiceUseCase construye el caso de uso.
func NewUpsertInvoiceUseCase(txRunner FacturacionTxRunner, log *logger.Logger) *UpsertInvoiceUseCase {
	return &UpsertInvoiceUseCase{txRunner: txRunner, log: log}
}

// Upsert crea o fusiona la factura identificada por la clave normalizada.
//
// Reglas:
//   - proveedor upsert antes que la factura (crear si falta, refrescar razón);
//   - si no existe: insertar en CONSULTADO con la cabecera recibida;
//   - si existe: actualizar cabecera; si vienen líneas, reemplazarlas en
//     bloque y promover CONSULTADO→CON_DETALLE; si el origen es carga masiva
//     o scraping, confirmar REGISTRADO (no-op si ya está CONTABILIZADO);
//   - el documento electrónico se upserta con independencia del estado.
//
// Un fallo transitorio del almacén se propaga al caller, nunca se traga:
// un reemplazo de líneas seguido de una escritura de estado fallida dejaría
// ambos desincronizados.
func (uc *UpsertInvoiceUseCase) Upsert(ctx context.Context, in UpsertInvoiceInput) (*UpsertInvoiceResult, error) {
	// Validación antes de cualquier escritura.
	if strings.TrimSpace(in.SupplierRUC) == "" || strings.TrimSpace(in.Numero) == "" {
		return nil, domain.ErrInvalidInput
	}

	key := factura.NormalizeKey(in.Serie, in.Numero)
	var res UpsertInvoiceResult

	err := uc.txRunner.RunFacturacion(ctx, key.String(), func(
		supplierRepo repository.SupplierRepository,
		invoiceRepo repository.InvoiceRepository,
		docRepo repository.DocumentRepository,
	) error {
		now := time.Now()

		razon := strings.TrimSpace(in.RazonSocial)
		if razon == "" {
			razon = "Proveedor " + in.SupplierRUC
		}
		if err := supplierRepo.Upsert(&entity.Supplier{
			RUC:         in.SupplierRUC,
			RazonSocial: razon,
			CreatedAt:   now,
			UpdatedAt:   now,
		}); err != nil {
			return err
		}

		inv, err := invoiceRepo.GetByNumeroComprobante(key.String())
		if err != nil {
			return err
		}

		if inv == nil {
			inv = &entity.Invoice{
				ID:                uuid.New().String(),
				UserID:            in.UserID,
				SupplierRUC:       in.SupplierRUC,
				Serie:             key.Serie,
				Numero:            key.Numero,
				NumeroComprobante: key.String(),
				TipoDocumento:     defaultStr(in.TipoDocumento, "01"),
				Moneda:            defaultStr(in.Moneda, "PEN"),
				FechaEmision:      defaultFecha(in.FechaEmision, now),
				Subtotal:          in.Subtotal,
				IGV:               in.IGV,
				Total:             in.Total,
				Estado:            factura.EstadoConsultado,
				CreatedAt:         now,
				UpdatedAt:         now,
			}
			if err := invoiceRepo.Create(inv); err != nil {
				return err
			}
			res.Creada = true
		} else {
			mergeHeader(inv, in, now)
			if err := invoiceRepo.UpdateHeader(inv); err != nil {
				return err
			}
		}

		estado := inv.Estado
		if in.Items != nil {
			items := make([]*entity.InvoiceItem, 0, len(in.Items))
			for _, p := range in.Items {
				items = append(items, &entity.InvoiceItem{
					ID:            uuid.New().String(),
					InvoiceID:     inv.ID,
					Descripcion:   p.Descripcion,
					Cantidad:      p.Cantidad,
					CostoUnitario: p.CostoUnitario,
					UnidadMedida:  p.UnidadMedida,
				})
			}
			if err := invoiceRepo.ReplaceItems(inv.ID, items); err != nil {
				return err
			}
			// Adjuntar detalle solo promueve una factura ya almacenada en
			// CONSULTADO; en el alta las líneas quedan adjuntas pero el
			// estado inicial no se mueve.
			if !res.Creada {
				estado = factura.ConDetalle(estado)
			}
		}

		if !res.Creada && (in.Origen == OrigenCargaMasiva || in.Origen == OrigenScraping) {
			estado = factura.ConfirmarRegistro(estado)
		}

		if in.EstadoPropuesto != "" {
			nuevo, cambio := factura.Avanzar(estado, in.EstadoPropuesto)
			if !cambio {
				uc.log.Warn().
					Str("comprobante", key.String()).
					Str("actual", string(estado)).
					Str("propuesto", string(in.EstadoPropuesto)).
					Msg("intento de regresión de estado ignorado")
			}
			estado = nuevo
		}

		if estado != inv.Estado {
			if err := invoiceRepo.UpdateEstado(inv.ID, estado); err != nil {
				return err
			}
		}

		if in.Documento != nil {
			in.Documento.InvoiceID = inv.ID
			if in.Documento.ID == "" {
				in.Documento.ID = uuid.New().String()
			}
			if in.Documento.ReceivedAt.IsZero() {
				in.Documento.ReceivedAt = now
			}
			if err := docRepo.Upsert(in.Documento); err != nil {
				return err
			}
		}

		res.InvoiceID = inv.ID
		res.NumeroComprobante = key.String()
		res.Estado = estado
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// mergeHeader aplica sobre la factura existente solo los campos de cabecera
// que el productor trae informados; los montos en cero y strings vacíos no
// pisan valores previos (el OCR, por ejemplo, rara vez trae todo).
func mergeHeader(inv *entity.Invoice, in UpsertInvoiceInput, now time.Time) {
	if in.Moneda != "" {
		inv.Moneda = in.Moneda
	}
	if in.TipoDocumento != "" {
		inv.TipoDocumento = in.TipoDocumento
	}
	if !in.FechaEmision.IsZero() {
		inv.FechaEmision = in.FechaEmision
	}
	if !in.Subtotal.IsZero() {
		inv.Subtotal = in.Subtotal
	}
	if !in.IGV.IsZero() {
		inv.IGV = in.IGV
	}
	if !in.Total.IsZero() {
		inv.Total = in.Total
	}
	inv.UpdatedAt = now
}

func defaultStr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func defaultFecha(f, def time.Time) time.Time {
	if f.IsZero() {
		return def
	}
	return f
}
