package repository

import (
	"github.com/tu-usuario/facturacion-pro/internal/domain/entity"
	"github.com/tu-usuario/facturacion-pro/internal/domain/factura"
)

// InvoiceRepository define el puerto de persistencia para Invoice y sus líneas.
type InvoiceRepository interface {
	Create(invoice *entity.Invoice) error
	// UpdateHeader actualiza los campos de cabecera (moneda, montos, fecha,
	// razón del proveedor vía supplier) sin tocar el estado.
	UpdateHeader(invoice *entity.Invoice) error
	UpdateEstado(id string, estado factura.Estado) error
	GetByID(id string) (*entity.Invoice, error)
	GetByNumeroComprobante(numero string) (*entity.Invoice, error)
	ListByUser(userID string) ([]*entity.Invoice, error)
	// ReplaceItems borra todas las líneas de la factura e inserta las nuevas
	// (reemplazo en bloque, nunca merge parcial).
	ReplaceItems(invoiceID string, items []*entity.InvoiceItem) error
	GetItems(invoiceID string) ([]*entity.InvoiceItem, error)
}

// SupplierRepository define el puerto de persistencia para proveedores.
type SupplierRepository interface {
	// Upsert crea el proveedor si no existe o refresca su razón social.
	Upsert(supplier *entity.Supplier) error
	GetByRUC(ruc string) (*entity.Supplier, error)
}

// DocumentRepository define el puerto para los archivos oficiales descargados.
type DocumentRepository interface {
	// Upsert inserta o reemplaza el documento electrónico de la factura.
	Upsert(doc *entity.ElectronicDocument) error
	GetByInvoiceID(invoiceID string) (*entity.ElectronicDocument, error)
}
