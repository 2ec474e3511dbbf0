package sunat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tu-usuario/facturacion-pro/internal/infrastructure/sunat"
	"github.com/tu-usuario/facturacion-pro/pkg/logger"
)

const xmlFacturaCompleta = `<?xml version="1.0" encoding="UTF-8"?>
<Invoice xmlns="urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
         xmlns:cbc="urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2"
         xmlns:cac="urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2">
  <cbc:ID>E001-206</cbc:ID>
  <cbc:IssueDate>2024-03-15</cbc:IssueDate>
  <cbc:DocumentCurrencyCode>PEN</cbc:DocumentCurrencyCode>
  <cac:AccountingSupplierParty>
    <cac:Party>
      <cac:PartyIdentification>
        <cbc:ID schemeID="6">20100070970</cbc:ID>
      </cac:PartyIdentification>
      <cac:PartyLegalEntity>
        <cbc:RegistrationName>GRIFO SAN PEDRO SAC</cbc:RegistrationName>
      </cac:PartyLegalEntity>
    </cac:Party>
  </cac:AccountingSupplierParty>
  <cac:TaxTotal>
    <cbc:TaxAmount currencyID="PEN">18.00</cbc:TaxAmount>
  </cac:TaxTotal>
  <cac:LegalMonetaryTotal>
    <cbc:LineExtensionAmount currencyID="PEN">100.00</cbc:LineExtensionAmount>
    <cbc:PayableAmount currencyID="PEN">118.00</cbc:PayableAmount>
  </cac:LegalMonetaryTotal>
  <cac:InvoiceLine>
    <cbc:InvoicedQuantity unitCode="GLL">2.5</cbc:InvoicedQuantity>
    <cac:Item>
      <cbc:Description>GASOHOL 90 PLUS</cbc:Description>
    </cac:Item>
    <cac:Price>
      <cbc:PriceAmount currencyID="PEN">40.00</cbc:PriceAmount>
    </cac:Price>
  </cac:InvoiceLine>
  <cac:InvoiceLine>
    <cbc:InvoicedQuantity unitCode="XYZ">1</cbc:InvoicedQuantity>
    <cac:Item>
      <cbc:Description>LAVADO DE MOTOR</cbc:Description>
    </cac:Item>
    <cac:Price>
      <cbc:PriceAmount currencyID="PEN">25.00</cbc:PriceAmount>
    </cac:Price>
  </cac:InvoiceLine>
</Invoice>`

// Variante con el RUC en la ruta vieja (CustomerAssignedAccountID) y la razón
// social en PartyName, como emiten algunos facturadores antiguos.
const xmlFacturaRutasAlternas = `<?xml version="1.0" encoding="UTF-8"?>
<Invoice xmlns:cbc="urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2"
         xmlns:cac="urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2">
  <cbc:ID>F001-000123</cbc:ID>
  <cac:AccountingSupplierParty>
    <cbc:CustomerAssignedAccountID>20555555551</cbc:CustomerAssignedAccountID>
    <cac:Party>
      <cac:PartyName>
        <cbc:Name>COMERCIAL LIMA EIRL</cbc:Name>
      </cac:PartyName>
    </cac:Party>
  </cac:AccountingSupplierParty>
</Invoice>`

func TestTransform_FacturaCompleta(t *testing.T) {
	tr := sunat.NewUBLTransformer(logger.NewNop())

	data := tr.Transform([]byte(xmlFacturaCompleta))
	require.NotNil(t, data)

	assert.Equal(t, "20100070970", data.RUCEmisor)
	assert.Equal(t, "GRIFO SAN PEDRO SAC", data.RazonSocial)
	assert.Equal(t, "E001", data.Serie)
	assert.Equal(t, "206", data.Numero)
	assert.Equal(t, "2024-03-15", data.FechaEmision)
	assert.Equal(t, "PEN", data.Moneda)
	assert.Equal(t, "100", data.Subtotal.String())
	assert.Equal(t, "18", data.IGV.String())
	assert.Equal(t, "118", data.Total.String())

	require.Len(t, data.Items, 2)
	assert.Equal(t, "GASOHOL 90 PLUS", data.Items[0].Descripcion)
	assert.Equal(t, "2.5", data.Items[0].Cantidad.String())
	assert.Equal(t, "US GALON", data.Items[0].UnidadMedida,
		"el código GLL se traduce a su nombre legible")
	assert.Equal(t, "XYZ", data.Items[1].UnidadMedida,
		"un código desconocido pasa tal cual")
}

func TestTransform_RutasAlternativas(t *testing.T) {
	tr := sunat.NewUBLTransformer(logger.NewNop())

	data := tr.Transform([]byte(xmlFacturaRutasAlternas))
	require.NotNil(t, data, "los campos mínimos están, aunque en rutas viejas")

	assert.Equal(t, "20555555551", data.RUCEmisor)
	assert.Equal(t, "COMERCIAL LIMA EIRL", data.RazonSocial)
	assert.Equal(t, "F001", data.Serie)
	assert.Equal(t, "000123", data.Numero)
	assert.True(t, data.Total.IsZero(), "los montos ausentes quedan en cero, no fallan")
	assert.Empty(t, data.Items)
}

func TestTransform_DocumentoIlegible(t *testing.T) {
	tr := sunat.NewUBLTransformer(logger.NewNop())

	assert.Nil(t, tr.Transform([]byte("esto no es XML")), "texto plano")
	assert.Nil(t, tr.Transform([]byte("<Invoice><cbc:ID>E001-1</cbc:ID></Invoice>")),
		"XML válido pero sin RUC del emisor")
	assert.Nil(t, tr.Transform(nil))
}

func TestUnidadDisplay(t *testing.T) {
	assert.Equal(t, "UNIDAD", sunat.UnidadDisplay("NIU"))
	assert.Equal(t, "SERVICIO", sunat.UnidadDisplay("ZZ"))
	assert.Equal(t, "KILOGRAMO", sunat.UnidadDisplay("KGM"))
	assert.Equal(t, "CJA", sunat.UnidadDisplay("CJA"), "desconocido pasa sin traducir")
}
