package entity

import "time"

// ElectronicDocument agrupa los archivos oficiales descargados de SUNAT para
// una factura: el XML UBL firmado, la representación PDF y la constancia de
// recepción (CDR). Su upsert es independiente de las transiciones de estado.
type ElectronicDocument struct {
	ID          string
	InvoiceID   string
	XML         []byte
	PDF         []byte
	CDR         []byte
	SunatStatus string // estado reportado por SUNAT (ACEPTADO, etc.)
	ReceivedAt  time.Time
}
