package billing

import (
	"context"

	"github.com/tu-usuario/facturacion-pro/internal/domain/repository"
)

// FacturacionTxRunner ejecuta una función dentro de una transacción que
// serializa todas las escrituras de una misma clave de comprobante: dos
// upserts concurrentes sobre la misma clave ven el estado completo anterior
// o el nuevo, nunca una mezcla de cabecera y líneas. Claves distintas corren
// en paralelo.
type FacturacionTxRunner interface {
	RunFacturacion(ctx context.Context, claveComprobante string, fn func(
		supplierRepo repository.SupplierRepository,
		invoiceRepo repository.InvoiceRepository,
		docRepo repository.DocumentRepository,
	) error) error
}
