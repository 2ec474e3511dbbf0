package billing_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tu-usuario/facturacion-pro/internal/application/billing"
	"github.com/tu-usuario/facturacion-pro/internal/application/dto"
	"github.com/tu-usuario/facturacion-pro/pkg/logger"
)

func TestProcesar_LoteCompleto(t *testing.T) {
	store := newMemStore()
	uc := billing.NewProcesarFacturasUseCase(newUpsertUC(store), logger.NewNop())

	resultados := uc.Procesar(context.Background(), "u1", dto.CrearFacturaRequest{
		Facturas: []dto.FacturaInput{
			{
				RUCEmisor: "20100070970", Serie: "F001", Numero: "1",
				FechaEmision: "15/03/2024", RazonSocial: "GRIFO SAN PEDRO SAC",
				ImporteTotal: decimal.NewFromFloat(118.00),
				Productos:    []dto.ProductoInput{{Descripcion: "GASOHOL 90"}},
			},
			{
				RUCEmisor: "20555555551", Serie: "E001", Numero: "42",
				FechaEmision: "2024-03-16",
				ImporteTotal: decimal.NewFromFloat(59.00),
			},
		},
	})

	require.Len(t, resultados, 2)
	assert.True(t, resultados[0].Creada)
	assert.Equal(t, "F001-00000001", resultados[0].NumeroComprobante)
	assert.True(t, resultados[1].Creada)
	assert.Equal(t, "E001-00000042", resultados[1].NumeroComprobante)
	assert.Len(t, store.invoices, 2)
}

func TestProcesar_ErrorEnUnaNoAbortaElResto(t *testing.T) {
	store := newMemStore()
	uc := billing.NewProcesarFacturasUseCase(newUpsertUC(store), logger.NewNop())

	resultados := uc.Procesar(context.Background(), "u1", dto.CrearFacturaRequest{
		Facturas: []dto.FacturaInput{
			{RUCEmisor: "", Serie: "F001", Numero: "1"}, // sin RUC: inválida
			{RUCEmisor: "20100070970", Serie: "F001", Numero: "2"},
		},
	})

	require.Len(t, resultados, 2)
	assert.NotEmpty(t, resultados[0].Error, "la factura inválida reporta su error")
	assert.Empty(t, resultados[1].Error, "la válida se procesa igual")
	assert.True(t, resultados[1].Creada)
	assert.Len(t, store.invoices, 1)
}

func TestProcesar_ReenvioConfirmaRegistro(t *testing.T) {
	store := newMemStore()
	uc := billing.NewProcesarFacturasUseCase(newUpsertUC(store), logger.NewNop())
	ctx := context.Background()

	lote := dto.CrearFacturaRequest{Facturas: []dto.FacturaInput{
		{RUCEmisor: "20100070970", Serie: "F001", Numero: "7",
			Productos: []dto.ProductoInput{{Descripcion: "DIESEL B5"}}},
	}}

	r1 := uc.Procesar(ctx, "u1", lote)
	r2 := uc.Procesar(ctx, "u1", lote)

	require.Len(t, r1, 1)
	require.Len(t, r2, 1)
	assert.Equal(t, "CONSULTADO", r1[0].Estado)
	assert.False(t, r2[0].Creada)
	assert.Equal(t, "REGISTRADO", r2[0].Estado,
		"re-enviar una factura existente por carga masiva confirma su registro")
}

func TestParseFecha_Formatos(t *testing.T) {
	esperada := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, esperada, billing.ParseFecha("15/03/2024"))
	assert.Equal(t, esperada, billing.ParseFecha("2024-03-15"))
	assert.True(t, billing.ParseFecha("ayer").IsZero(), "fecha irreconocible devuelve cero")
	assert.True(t, billing.ParseFecha("").IsZero())
}
