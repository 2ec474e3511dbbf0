package sunat

import (
	"strings"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"github.com/tu-usuario/facturacion-pro/internal/application/scraping"
	"github.com/tu-usuario/facturacion-pro/pkg/logger"
)

var _ scraping.Transformer = (*UBLTransformer)(nil)

// UBLTransformer interpreta el XML UBL de un comprobante electrónico. Los
// emisores son laxos con el esquema (campos en rutas alternativas, prefijos
// distintos, listas donde se espera un escalar), así que cada campo se busca
// en todas sus rutas conocidas y un campo opcional ausente nunca es fatal.
type UBLTransformer struct {
	log *logger.Logger
}

// NewUBLTransformer construye el transformador.
func NewUBLTransformer(log *logger.Logger) *UBLTransformer {
	return &UBLTransformer{log: log}
}

// Transform devuelve los datos de la factura o nil si faltan los campos
// mínimos (RUC del emisor y número de comprobante).
func (t *UBLTransformer) Transform(raw []byte) *scraping.InvoiceData {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		t.log.Warn().Err(err).Msg("XML del comprobante no parseable")
		return nil
	}
	root := doc.Root()
	if root == nil {
		return nil
	}

	serie, numero := splitComprobante(buscar(root, "cbc:ID"))
	ruc := buscar(root,
		"cac:AccountingSupplierParty/cac:Party/cac:PartyIdentification/cbc:ID",
		"cac:AccountingSupplierParty/cbc:CustomerAssignedAccountID",
	)
	if ruc == "" || numero == "" {
		t.log.Warn().Str("ruc", ruc).Str("numero", numero).
			Msg("XML sin RUC o sin número de comprobante")
		return nil
	}

	data := &scraping.InvoiceData{
		RUCEmisor: ruc,
		RazonSocial: buscar(root,
			"cac:AccountingSupplierParty/cac:Party/cac:PartyLegalEntity/cbc:RegistrationName",
			"cac:AccountingSupplierParty/cac:Party/cac:PartyName/cbc:Name",
		),
		Serie:        serie,
		Numero:       numero,
		FechaEmision: buscar(root, "cbc:IssueDate"),
		Moneda:       buscar(root, "cbc:DocumentCurrencyCode"),
		Subtotal:     monto(root, "cac:LegalMonetaryTotal/cbc:LineExtensionAmount"),
		IGV:          monto(root, "cac:TaxTotal/cbc:TaxAmount"),
		Total:        monto(root, "cac:LegalMonetaryTotal/cbc:PayableAmount"),
	}

	for _, line := range root.FindElements("cac:InvoiceLine") {
		item := scraping.InvoiceItemData{
			Descripcion:   buscar(line, "cac:Item/cbc:Description"),
			CostoUnitario: monto(line, "cac:Price/cbc:PriceAmount"),
		}
		if qty := line.FindElement("cbc:InvoicedQuantity"); qty != nil {
			item.Cantidad = parseDecimal(qty.Text())
			item.UnidadMedida = UnidadDisplay(qty.SelectAttrValue("unitCode", ""))
		}
		data.Items = append(data.Items, item)
	}
	return data
}

// buscar devuelve el texto del primer elemento que exista entre las rutas
// dadas, recortado; "" si ninguna resuelve.
func buscar(e *etree.Element, rutas ...string) string {
	for _, ruta := range rutas {
		if el := e.FindElement(ruta); el != nil {
			if texto := strings.TrimSpace(el.Text()); texto != "" {
				return texto
			}
		}
	}
	return ""
}

func monto(e *etree.Element, ruta string) decimal.Decimal {
	return parseDecimal(buscar(e, ruta))
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// splitComprobante separa el cbc:ID "E001-206" en serie y correlativo.
func splitComprobante(id string) (serie, numero string) {
	if i := strings.IndexByte(id, '-'); i >= 0 {
		return id[:i], id[i+1:]
	}
	return "", id
}
