package billing

import (
	"context"

	"github.com/tu-usuario/facturacion-pro/internal/application/dto"
	"github.com/tu-usuario/facturacion-pro/internal/domain"
	"github.com/tu-usuario/facturacion-pro/internal/domain/entity"
	"github.com/tu-usuario/facturacion-pro/internal/domain/factura"
	"github.com/tu-usuario/facturacion-pro/internal/domain/repository"
	"github.com/tu-usuario/facturacion-pro/pkg/logger"
)

// ConsultaFacturasUseCase lecturas y transiciones explícitas de estado. Las
// lecturas van directo a los repositorios; las transiciones usan la misma
// máquina de estados que el upsert y se serializan por la misma clave de
// comprobante, para que no puedan intercalarse con un upsert concurrente.
type ConsultaFacturasUseCase struct {
	txRunner     FacturacionTxRunner
	invoiceRepo  repository.InvoiceRepository
	supplierRepo repository.SupplierRepository
	docRepo      repository.DocumentRepository
	log          *logger.Logger
}

// NewConsultaFacturasUseCase construye el caso de uso.
func NewConsultaFacturasUseCase(
	txRunner FacturacionTxRunner,
	invoiceRepo repository.InvoiceRepository,
	supplierRepo repository.SupplierRepository,
	docRepo repository.DocumentRepository,
	log *logger.Logger,
) *ConsultaFacturasUseCase {
	return &ConsultaFacturasUseCase{
		txRunner:     txRunner,
		invoiceRepo:  invoiceRepo,
		supplierRepo: supplierRepo,
		docRepo:      docRepo,
		log:          log,
	}
}

// GetByNumero busca una factura por su clave. Acepta cualquier variante de la
// serie y el correlativo: "F001-103077" y "f1 000103077" resuelven la misma
// fila.
func (uc *ConsultaFacturasUseCase) GetByNumero(serie, numero string) (*dto.FacturaResponse, error) {
	key := factura.NormalizeKey(serie, numero)
	inv, err := uc.invoiceRepo.GetByNumeroComprobante(key.String())
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, domain.ErrNotFound
	}

	items, err := uc.invoiceRepo.GetItems(inv.ID)
	if err != nil {
		return nil, err
	}
	doc, err := uc.docRepo.GetByInvoiceID(inv.ID)
	if err != nil {
		return nil, err
	}

	resp := uc.toResponse(inv, doc != nil)
	resp.Items = make([]dto.ItemResponse, 0, len(items))
	for _, it := range items {
		resp.Items = append(resp.Items, dto.ItemResponse{
			Descripcion:   it.Descripcion,
			Cantidad:      it.Cantidad,
			CostoUnitario: it.CostoUnitario,
			UnidadMedida:  it.UnidadMedida,
		})
	}
	return resp, nil
}

// ListByUser lista las facturas del usuario con la distribución de estados
// para el tablero. Las líneas no se incluyen en el listado.
func (uc *ConsultaFacturasUseCase) ListByUser(userID string) (*dto.ListaFacturasResponse, error) {
	invoices, err := uc.invoiceRepo.ListByUser(userID)
	if err != nil {
		return nil, err
	}

	resp := &dto.ListaFacturasResponse{
		Count:        len(invoices),
		Distribucion: make(map[string]int),
		Facturas:     make([]dto.FacturaResponse, 0, len(invoices)),
	}
	for _, inv := range invoices {
		resp.Distribucion[inv.Estado.Display()]++
		doc, err := uc.docRepo.GetByInvoiceID(inv.ID)
		if err != nil {
			return nil, err
		}
		resp.Facturas = append(resp.Facturas, *uc.toResponse(inv, doc != nil))
	}
	return resp, nil
}

// MarcarConDetalle promueve CONSULTADO → CON_DETALLE. Sobre cualquier otro
// estado es un no-op.
func (uc *ConsultaFacturasUseCase) MarcarConDetalle(ctx context.Context, id string) (*dto.FacturaResponse, error) {
	return uc.transicion(ctx, id, factura.ConDetalle)
}

// Registrar confirma REGISTRADO salvo que la factura ya esté CONTABILIZADO.
func (uc *ConsultaFacturasUseCase) Registrar(ctx context.Context, id string) (*dto.FacturaResponse, error) {
	return uc.transicion(ctx, id, factura.ConfirmarRegistro)
}

// Contabilizar mueve la factura al estado terminal CONTABILIZADO.
func (uc *ConsultaFacturasUseCase) Contabilizar(ctx context.Context, id string) (*dto.FacturaResponse, error) {
	return uc.transicion(ctx, id, factura.Contabilizar)
}

// transicion aplica fn al estado de la factura dentro de la transacción
// serializada por su clave de comprobante: el estado se relee bajo el lock,
// así la escritura nunca se intercala con un upsert concurrente de la misma
// clave (que también lee y escribe el estado bajo ese lock).
func (uc *ConsultaFacturasUseCase) transicion(ctx context.Context, id string, fn func(factura.Estado) factura.Estado) (*dto.FacturaResponse, error) {
	inv, err := uc.invoiceRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, domain.ErrNotFound
	}

	err = uc.txRunner.RunFacturacion(ctx, inv.NumeroComprobante, func(
		_ repository.SupplierRepository,
		invoiceRepo repository.InvoiceRepository,
		_ repository.DocumentRepository,
	) error {
		inv, err = invoiceRepo.GetByID(id)
		if err != nil {
			return err
		}
		if inv == nil {
			return domain.ErrNotFound
		}
		nuevo := fn(inv.Estado)
		if nuevo == inv.Estado {
			return nil
		}
		if err := invoiceRepo.UpdateEstado(inv.ID, nuevo); err != nil {
			return err
		}
		inv.Estado = nuevo
		return nil
	})
	if err != nil {
		return nil, err
	}

	doc, err := uc.docRepo.GetByInvoiceID(inv.ID)
	if err != nil {
		return nil, err
	}
	return uc.toResponse(inv, doc != nil), nil
}

func (uc *ConsultaFacturasUseCase) toResponse(inv *entity.Invoice, tieneDoc bool) *dto.FacturaResponse {
	razon := ""
	if sup, err := uc.supplierRepo.GetByRUC(inv.SupplierRUC); err == nil && sup != nil {
		razon = sup.RazonSocial
	}
	return &dto.FacturaResponse{
		ID:                inv.ID,
		NumeroComprobante: inv.NumeroComprobante,
		SupplierRUC:       inv.SupplierRUC,
		RazonSocial:       razon,
		Moneda:            inv.Moneda,
		FechaEmision:      inv.FechaEmision,
		Subtotal:          inv.Subtotal,
		IGV:               inv.IGV,
		Total:             inv.Total,
		Estado:            inv.Estado.Display(),
		EstadoInterno:     string(inv.Estado),
		TieneDocumento:    tieneDoc,
	}
}
