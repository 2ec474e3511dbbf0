package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tu-usuario/facturacion-pro/internal/domain/entity"
	"github.com/tu-usuario/facturacion-pro/internal/domain/factura"
	"github.com/tu-usuario/facturacion-pro/internal/domain/repository"
)

var _ repository.InvoiceRepository = (*InvoiceRepo)(nil)

// InvoiceRepo implementación de InvoiceRepository (usable con pool o tx).
type InvoiceRepo struct {
	q Querier
}

// NewInvoiceRepository construye el adaptador. Pasar pool o tx (Querier).
func NewInvoiceRepository(q Querier) *InvoiceRepo {
	return &InvoiceRepo{q: q}
}

const invoiceColumns = `id, user_id, supplier_ruc, serie, numero, numero_comprobante,
	       tipo_documento, moneda, fecha_emision, subtotal, igv, total, estado,
	       created_at, updated_at`

// Create persiste la cabecera de la factura.
func (r *InvoiceRepo) Create(invoice *entity.Invoice) error {
	if invoice.ID == "" {
		invoice.ID = uuid.New().String()
	}
	query := `
		INSERT INTO invoices (id, user_id, supplier_ruc, serie, numero, numero_comprobante,
			tipo_documento, moneda, fecha_emision, subtotal, igv, total, estado, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err := r.q.Exec(context.Background(), query,
		invoice.ID, invoice.UserID, invoice.SupplierRUC, invoice.Serie, invoice.Numero,
		invoice.NumeroComprobante, invoice.TipoDocumento, invoice.Moneda, invoice.FechaEmision,
		invoice.Subtotal, invoice.IGV, invoice.Total, string(invoice.Estado),
		invoice.CreatedAt, invoice.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("numero de comprobante ya existe: %w", err)
		}
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

// UpdateHeader actualiza la cabecera sin tocar el estado.
func (r *InvoiceRepo) UpdateHeader(invoice *entity.Invoice) error {
	query := `
		UPDATE invoices
		SET tipo_documento = $2,
		    moneda         = $3,
		    fecha_emision  = $4,
		    subtotal       = $5,
		    igv            = $6,
		    total          = $7,
		    updated_at     = $8
		WHERE id = $1`
	_, err := r.q.Exec(context.Background(), query,
		invoice.ID, invoice.TipoDocumento, invoice.Moneda, invoice.FechaEmision,
		invoice.Subtotal, invoice.IGV, invoice.Total, invoice.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update invoice header: %w", err)
	}
	return nil
}

// UpdateEstado escribe el estado ya decidido por la máquina de estados.
func (r *InvoiceRepo) UpdateEstado(id string, estado factura.Estado) error {
	query := `UPDATE invoices SET estado = $2, updated_at = NOW() WHERE id = $1`
	_, err := r.q.Exec(context.Background(), query, id, string(estado))
	if err != nil {
		return fmt.Errorf("update invoice estado: %w", err)
	}
	return nil
}

// GetByID obtiene una factura por ID; nil si no existe.
func (r *InvoiceRepo) GetByID(id string) (*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`
	return r.scanOne(r.q.QueryRow(context.Background(), query, id))
}

// GetByNumeroComprobante obtiene una factura por su clave normalizada; nil si no existe.
func (r *InvoiceRepo) GetByNumeroComprobante(numero string) (*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE numero_comprobante = $1`
	return r.scanOne(r.q.QueryRow(context.Background(), query, numero))
}

func (r *InvoiceRepo) scanOne(row pgx.Row) (*entity.Invoice, error) {
	var inv entity.Invoice
	var estado string
	err := row.Scan(
		&inv.ID, &inv.UserID, &inv.SupplierRUC, &inv.Serie, &inv.Numero,
		&inv.NumeroComprobante, &inv.TipoDocumento, &inv.Moneda, &inv.FechaEmision,
		&inv.Subtotal, &inv.IGV, &inv.Total, &estado,
		&inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	inv.Estado = factura.Estado(estado)
	return &inv, nil
}

// ListByUser lista las facturas del usuario, más recientes primero.
func (r *InvoiceRepo) ListByUser(userID string) ([]*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.q.Query(context.Background(), query, userID)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()
	var list []*entity.Invoice
	for rows.Next() {
		var inv entity.Invoice
		var estado string
		if err := rows.Scan(
			&inv.ID, &inv.UserID, &inv.SupplierRUC, &inv.Serie, &inv.Numero,
			&inv.NumeroComprobante, &inv.TipoDocumento, &inv.Moneda, &inv.FechaEmision,
			&inv.Subtotal, &inv.IGV, &inv.Total, &estado,
			&inv.CreatedAt, &inv.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		inv.Estado = factura.Estado(estado)
		list = append(list, &inv)
	}
	return list, rows.Err()
}

// ReplaceItems borra todas las líneas de la factura e inserta las nuevas en la
// misma operación lógica (reemplazo en bloque, nunca merge parcial). Debe
// llamarse dentro de la transacción del runner para no dejar la factura sin
// líneas ante un fallo a mitad.
func (r *InvoiceRepo) ReplaceItems(invoiceID string, items []*entity.InvoiceItem) error {
	ctx := context.Background()
	if _, err := r.q.Exec(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1`, invoiceID); err != nil {
		return fmt.Errorf("delete invoice items: %w", err)
	}
	query := `
		INSERT INTO invoice_items (id, invoice_id, descripcion, cantidad, costo_unitario, unidad_medida)
		VALUES ($1, $2, $3, $4, $5, $6)`
	for _, item := range items {
		if item.ID == "" {
			item.ID = uuid.New().String()
		}
		if _, err := r.q.Exec(ctx, query,
			item.ID, invoiceID, item.Descripcion, item.Cantidad, item.CostoUnitario,
			nullIfEmpty(item.UnidadMedida),
		); err != nil {
			return fmt.Errorf("insert invoice item: %w", err)
		}
	}
	return nil
}

// GetItems obtiene las líneas de una factura.
func (r *InvoiceRepo) GetItems(invoiceID string) ([]*entity.InvoiceItem, error) {
	query := `
		SELECT id, invoice_id, descripcion, cantidad, costo_unitario, COALESCE(unidad_medida, '')
		FROM invoice_items WHERE invoice_id = $1 ORDER BY id`
	rows, err := r.q.Query(context.Background(), query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list invoice items: %w", err)
	}
	defer rows.Close()
	var list []*entity.InvoiceItem
	for rows.Next() {
		var it entity.InvoiceItem
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.Descripcion, &it.Cantidad, &it.CostoUnitario, &it.UnidadMedida); err != nil {
			return nil, fmt.Errorf("scan invoice item: %w", err)
		}
		list = append(list, &it)
	}
	return list, rows.Err()
}
