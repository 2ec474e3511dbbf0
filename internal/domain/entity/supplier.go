package entity

import "time"

// Supplier representa un proveedor, identificado por su RUC. Se crea o
// refresca (upsert) cada vez que una factura lo referencia; este pipeline
// nunca lo borra.
type Supplier struct {
	RUC         string
	RazonSocial string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
