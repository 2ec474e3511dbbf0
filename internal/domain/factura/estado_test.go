package factura_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tu-usuario/facturacion-pro/internal/domain/factura"
)

func TestEstado_OrdenDelReticulo(t *testing.T) {
	assert.Less(t, factura.EstadoConsultado.Rank(), factura.EstadoConDetalle.Rank())
	assert.Less(t, factura.EstadoConDetalle.Rank(), factura.EstadoRegistrado.Rank())
	assert.Less(t, factura.EstadoRegistrado.Rank(), factura.EstadoContabilizado.Rank())
	assert.Equal(t, -1, factura.Estado("PENDIENTE").Rank(), "estados desconocidos no pertenecen al retículo")
}

func TestConDetalle_SoloPromueveDesdeConsultado(t *testing.T) {
	assert.Equal(t, factura.EstadoConDetalle, factura.ConDetalle(factura.EstadoConsultado))

	// En cualquier otro estado el detalle se reemplaza pero el estado no se toca.
	for _, e := range []factura.Estado{
		factura.EstadoConDetalle, factura.EstadoRegistrado, factura.EstadoContabilizado,
	} {
		assert.Equal(t, e, factura.ConDetalle(e), "adjuntar detalle no debe mover el estado %s", e)
	}
}

func TestConfirmarRegistro_NoOpSiContabilizado(t *testing.T) {
	assert.Equal(t, factura.EstadoRegistrado, factura.ConfirmarRegistro(factura.EstadoConsultado))
	assert.Equal(t, factura.EstadoRegistrado, factura.ConfirmarRegistro(factura.EstadoConDetalle))
	assert.Equal(t, factura.EstadoRegistrado, factura.ConfirmarRegistro(factura.EstadoRegistrado))
	assert.Equal(t, factura.EstadoContabilizado, factura.ConfirmarRegistro(factura.EstadoContabilizado),
		"CONTABILIZADO es terminal: re-registrar es un no-op")
}

func TestContabilizar_EsTerminalYSaltaElOrden(t *testing.T) {
	// Única transición que ignora el orden del retículo.
	for _, e := range []factura.Estado{
		factura.EstadoConsultado, factura.EstadoConDetalle,
		factura.EstadoRegistrado, factura.EstadoContabilizado,
	} {
		assert.Equal(t, factura.EstadoContabilizado, factura.Contabilizar(e))
	}
}

// TestAvanzar_GuardaAntiRegresion: proponer un estado menor deja el actual
// intacto y reporta cambio=false (no es un error, el resto del upsert aplica).
func TestAvanzar_GuardaAntiRegresion(t *testing.T) {
	e, cambio := factura.Avanzar(factura.EstadoRegistrado, factura.EstadoConsultado)
	assert.Equal(t, factura.EstadoRegistrado, e)
	assert.False(t, cambio)

	e, cambio = factura.Avanzar(factura.EstadoConDetalle, factura.EstadoRegistrado)
	assert.Equal(t, factura.EstadoRegistrado, e)
	assert.True(t, cambio)

	// Estado igual al actual no es regresión.
	e, cambio = factura.Avanzar(factura.EstadoRegistrado, factura.EstadoRegistrado)
	assert.Equal(t, factura.EstadoRegistrado, e)
	assert.True(t, cambio)

	// Propuesto desconocido se ignora.
	e, cambio = factura.Avanzar(factura.EstadoConDetalle, factura.Estado("OTRO"))
	assert.Equal(t, factura.EstadoConDetalle, e)
	assert.False(t, cambio)
}

func TestDisplay_FormateaParaUI(t *testing.T) {
	assert.Equal(t, "CON DETALLE", factura.EstadoConDetalle.Display())
	assert.Equal(t, "CONSULTADO", factura.EstadoConsultado.Display())
	assert.Equal(t, "CONTABILIZADO", factura.EstadoContabilizado.Display())
}
