package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductoInput línea de detalle tal como llega de la carga masiva o del
// scraping. decimal.Decimal acepta tanto número como string en el JSON.
type ProductoInput struct {
	Descripcion   string          `json:"descripcion"`
	Cantidad      decimal.Decimal `json:"cantidad"`
	CostoUnitario decimal.Decimal `json:"costoUnitario"`
	UnidadMedida  string          `json:"unidadMedida,omitempty"`
}

// FacturaInput una factura dentro de una carga masiva.
type FacturaInput struct {
	RUCEmisor     string          `json:"rucEmisor"`
	Serie         string          `json:"serie"`
	Numero        string          `json:"numero"`
	FechaEmision  string          `json:"fechaEmision"` // dd/mm/yyyy o yyyy-mm-dd
	RazonSocial   string          `json:"razonSocial"`
	TipoDocumento string          `json:"tipoDocumento"`
	Moneda        string          `json:"moneda"`
	CostoTotal    decimal.Decimal `json:"costoTotal"`
	IGV           decimal.Decimal `json:"igv"`
	ImporteTotal  decimal.Decimal `json:"importeTotal"`
	Productos     []ProductoInput `json:"productos"`
}

// CrearFacturaRequest lote de facturas de la carga masiva.
type CrearFacturaRequest struct {
	Facturas []FacturaInput `json:"facturas"`
}

// ResultadoFactura resultado por factura dentro de un lote.
type ResultadoFactura struct {
	NumeroComprobante string `json:"numeroComprobante"`
	Creada            bool   `json:"creada"`
	Estado            string `json:"estado"`
	Error             string `json:"error,omitempty"`
}

// ProcesarFacturasResponse respuesta de la carga masiva completa.
type ProcesarFacturasResponse struct {
	Message    string             `json:"message"`
	Resultados []ResultadoFactura `json:"resultados"`
}

// ItemResponse línea de detalle en respuestas.
type ItemResponse struct {
	Descripcion   string          `json:"descripcion"`
	Cantidad      decimal.Decimal `json:"cantidad"`
	CostoUnitario decimal.Decimal `json:"costoUnitario"`
	UnidadMedida  string          `json:"unidadMedida"`
}

// FacturaResponse factura para la interfaz. Estado va formateado para mostrar
// ("CON DETALLE"); EstadoInterno conserva el valor canónico.
type FacturaResponse struct {
	ID                string          `json:"id"`
	NumeroComprobante string          `json:"numeroComprobante"`
	SupplierRUC       string          `json:"rucProveedor"`
	RazonSocial       string          `json:"razonSocial,omitempty"`
	Moneda            string          `json:"moneda"`
	FechaEmision      time.Time       `json:"fechaEmision"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	IGV               decimal.Decimal `json:"igv"`
	Total             decimal.Decimal `json:"total"`
	Estado            string          `json:"estado"`
	EstadoInterno     string          `json:"estadoInterno"`
	TieneDocumento    bool            `json:"tieneDocumento"`
	Items             []ItemResponse  `json:"items,omitempty"`
}

// ListaFacturasResponse listado con distribución de estados para la UI.
type ListaFacturasResponse struct {
	Count        int               `json:"count"`
	Distribucion map[string]int    `json:"distribucionEstados"`
	Facturas     []FacturaResponse `json:"facturas"`
}

// ReconocerResponse respuesta del intake por OCR.
type ReconocerResponse struct {
	Mensaje         string    `json:"mensaje"`
	ID              string    `json:"id"`
	DatosDetectados CamposOCR `json:"datosDetectados"`
}

// CamposOCR campos detectados en la imagen (best effort, pueden faltar).
type CamposOCR struct {
	RUC    string `json:"ruc,omitempty"`
	Numero string `json:"numero,omitempty"`
	Fecha  string `json:"fecha,omitempty"`
	Monto  string `json:"monto,omitempty"`
}
