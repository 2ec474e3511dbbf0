package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tu-usuario/facturacion-pro/internal/domain/entity"
	"github.com/tu-usuario/facturacion-pro/internal/domain/repository"
)

var _ repository.DocumentRepository = (*DocumentRepo)(nil)

// DocumentRepo implementación de DocumentRepository (usable con pool o tx).
type DocumentRepo struct {
	q Querier
}

// NewDocumentRepository construye el adaptador. Pasar pool o tx (Querier).
func NewDocumentRepository(q Querier) *DocumentRepo {
	return &DocumentRepo{q: q}
}

// Upsert inserta o reemplaza los archivos oficiales de la factura. Una
// descarga nueva del mismo comprobante siempre pisa la anterior: el portal
// es la fuente de verdad.
func (r *DocumentRepo) Upsert(doc *entity.ElectronicDocument) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	query := `
		INSERT INTO electronic_documents (id, invoice_id, xml, pdf, cdr, sunat_status, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (invoice_id) DO UPDATE SET
			xml          = EXCLUDED.xml,
			pdf          = EXCLUDED.pdf,
			cdr          = EXCLUDED.cdr,
			sunat_status = EXCLUDED.sunat_status,
			received_at  = EXCLUDED.received_at`
	_, err := r.q.Exec(context.Background(), query,
		doc.ID, doc.InvoiceID, doc.XML, doc.PDF, doc.CDR,
		nullIfEmpty(doc.SunatStatus), doc.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert electronic document: %w", err)
	}
	return nil
}

// GetByInvoiceID obtiene el documento de una factura; nil si no existe.
func (r *DocumentRepo) GetByInvoiceID(invoiceID string) (*entity.ElectronicDocument, error) {
	query := `
		SELECT id, invoice_id, xml, pdf, cdr, COALESCE(sunat_status, ''), received_at
		FROM electronic_documents WHERE invoice_id = $1`
	var d entity.ElectronicDocument
	err := r.q.QueryRow(context.Background(), query, invoiceID).Scan(
		&d.ID, &d.InvoiceID, &d.XML, &d.PDF, &d.CDR, &d.SunatStatus, &d.ReceivedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get electronic document: %w", err)
	}
	return &d, nil
}
