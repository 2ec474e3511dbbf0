package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tu-usuario/facturacion-pro/internal/domain/factura"
)

// Invoice representa la cabecera de una factura de proveedor. Hay como máximo
// una Invoice por clave normalizada (serie, número); NumeroComprobante guarda
// la identidad compuesta SERIE-NUMERO y lleva la restricción de unicidad.
type Invoice struct {
	ID                string
	UserID            string
	SupplierRUC       string
	Serie             string
	Numero            string
	NumeroComprobante string
	TipoDocumento     string // "01" = factura
	Moneda            string // PEN, USD
	FechaEmision      time.Time
	Subtotal          decimal.Decimal
	IGV               decimal.Decimal
	Total             decimal.Decimal
	Estado            factura.Estado
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// InvoiceItem representa una línea de detalle. Las líneas se reemplazan en
// bloque (delete-then-insert), nunca se mezclan parcialmente.
type InvoiceItem struct {
	ID            string
	InvoiceID     string
	Descripcion   string
	Cantidad      decimal.Decimal
	CostoUnitario decimal.Decimal
	UnidadMedida  string
}
