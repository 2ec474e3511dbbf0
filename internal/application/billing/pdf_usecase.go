package billing

import (
	"context"
	"fmt"

	"github.com/tu-usuario/facturacion-pro/internal/domain"
	"github.com/tu-usuario/facturacion-pro/internal/domain/entity"
	"github.com/tu-usuario/facturacion-pro/internal/domain/repository"
)

// InvoicePDFGenerator puerto del generador de la representación impresa.
type InvoicePDFGenerator interface {
	GenerateInvoicePDF(ctx context.Context, invoice *entity.Invoice, supplier *entity.Supplier, items []*entity.InvoiceItem) ([]byte, error)
}

// PDFUseCase entrega el PDF de una factura: el oficial descargado del portal
// si existe, o una representación impresa generada desde los datos si no.
type PDFUseCase struct {
	invoiceRepo  repository.InvoiceRepository
	supplierRepo repository.SupplierRepository
	docRepo      repository.DocumentRepository
	generator    InvoicePDFGenerator
}

// NewPDFUseCase construye el caso de uso inyectando todas sus dependencias.
func NewPDFUseCase(
	invoiceRepo repository.InvoiceRepository,
	supplierRepo repository.SupplierRepository,
	docRepo repository.DocumentRepository,
	generator InvoicePDFGenerator,
) *PDFUseCase {
	return &PDFUseCase{
		invoiceRepo:  invoiceRepo,
		supplierRepo: supplierRepo,
		docRepo:      docRepo,
		generator:    generator,
	}
}

// DownloadInvoicePDF devuelve los bytes del PDF y un nombre de archivo.
// Preferencia: el PDF oficial del emisor (si el scraping lo trajo); como
// respaldo, la representación generada localmente.
func (uc *PDFUseCase) DownloadInvoicePDF(ctx context.Context, invoiceID string) ([]byte, string, error) {
	inv, err := uc.invoiceRepo.GetByID(invoiceID)
	if err != nil {
		return nil, "", fmt.Errorf("pdf: obtener factura: %w", err)
	}
	if inv == nil {
		return nil, "", domain.ErrNotFound
	}

	filename := fmt.Sprintf("factura_%s.pdf", inv.NumeroComprobante)

	if doc, err := uc.docRepo.GetByInvoiceID(invoiceID); err == nil && doc != nil && len(doc.PDF) > 0 {
		return doc.PDF, filename, nil
	}

	supplier, err := uc.supplierRepo.GetByRUC(inv.SupplierRUC)
	if err != nil {
		return nil, "", fmt.Errorf("pdf: obtener proveedor: %w", err)
	}
	if supplier == nil {
		supplier = &entity.Supplier{RUC: inv.SupplierRUC, RazonSocial: "Proveedor " + inv.SupplierRUC}
	}

	items, err := uc.invoiceRepo.GetItems(invoiceID)
	if err != nil {
		return nil, "", fmt.Errorf("pdf: obtener detalles: %w", err)
	}

	pdfBytes, err := uc.generator.GenerateInvoicePDF(ctx, inv, supplier, items)
	if err != nil {
		return nil, "", fmt.Errorf("pdf: generación fallida: %w", err)
	}
	return pdfBytes, filename, nil
}
