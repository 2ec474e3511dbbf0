package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/tu-usuario/facturacion-pro/internal/domain/entity"
	"github.com/tu-usuario/facturacion-pro/internal/domain/repository"
)

var _ repository.SupplierRepository = (*SupplierRepo)(nil)

// SupplierRepo implementación de SupplierRepository (usable con pool o tx).
type SupplierRepo struct {
	q Querier
}

// NewSupplierRepository construye el adaptador. Pasar pool o tx (Querier).
func NewSupplierRepository(q Querier) *SupplierRepo {
	return &SupplierRepo{q: q}
}

// Upsert crea el proveedor o refresca su razón social. El RUC es la clave
// natural; los placeholders "Proveedor <ruc>" no pisan una razón real previa.
func (r *SupplierRepo) Upsert(supplier *entity.Supplier) error {
	query := `
		INSERT INTO suppliers (ruc, razon_social, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (ruc) DO UPDATE SET
			razon_social = CASE
				WHEN EXCLUDED.razon_social LIKE 'Proveedor %' THEN suppliers.razon_social
				ELSE EXCLUDED.razon_social
			END,
			updated_at = EXCLUDED.updated_at`
	_, err := r.q.Exec(context.Background(), query,
		supplier.RUC, supplier.RazonSocial, supplier.CreatedAt, supplier.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert supplier: %w", err)
	}
	return nil
}

// GetByRUC obtiene un proveedor por RUC; nil si no existe.
func (r *SupplierRepo) GetByRUC(ruc string) (*entity.Supplier, error) {
	query := `SELECT ruc, razon_social, created_at, updated_at FROM suppliers WHERE ruc = $1`
	var s entity.Supplier
	err := r.q.QueryRow(context.Background(), query, ruc).Scan(
		&s.RUC, &s.RazonSocial, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get supplier: %w", err)
	}
	return &s, nil
}
