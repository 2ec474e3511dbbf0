package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tu-usuario/facturacion-pro/internal/application/billing"
	"github.com/tu-usuario/facturacion-pro/internal/domain/repository"
)

var _ billing.FacturacionTxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// RunFacturacion inicia una transacción, toma el advisory lock de la clave del
// comprobante y ejecuta fn con repos atados a la tx. El lock serializa los
// upserts concurrentes de una misma clave (OCR, carga masiva y scraping pueden
// llegar a la vez); claves distintas no se bloquean entre sí. Se libera solo
// al cerrar la transacción.
func (r *TxRunner) RunFacturacion(ctx context.Context, claveComprobante string, fn func(
	supplierRepo repository.SupplierRepository,
	invoiceRepo repository.InvoiceRepository,
	docRepo repository.DocumentRepository,
) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, claveComprobante); err != nil {
		return fmt.Errorf("advisory lock: %w", err)
	}

	supplierRepo := NewSupplierRepository(tx)
	invoiceRepo := NewInvoiceRepository(tx)
	docRepo := NewDocumentRepository(tx)

	if err := fn(supplierRepo, invoiceRepo, docRepo); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
