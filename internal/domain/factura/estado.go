package factura

import "strings"

// Estado del flujo contable de una factura. El orden es estricto:
// CONSULTADO < CON_DETALLE < REGISTRADO < CONTABILIZADO, y ninguna
// transición automática puede bajar el estado; el único escape es
// Contabilizar (acción contable explícita, terminal).
type Estado string

const (
	EstadoConsultado    Estado = "CONSULTADO"    // creada desde cualquier origen
	EstadoConDetalle    Estado = "CON_DETALLE"   // con líneas de detalle adjuntas
	EstadoRegistrado    Estado = "REGISTRADO"    // registro confirmado por carga masiva
	EstadoContabilizado Estado = "CONTABILIZADO" // asiento contable, terminal
)

// Rank devuelve la posición del estado en el retículo (0..3), o -1 si el
// valor no es un estado conocido.
func (e Estado) Rank() int {
	switch e {
	case EstadoConsultado:
		return 0
	case EstadoConDetalle:
		return 1
	case EstadoRegistrado:
		return 2
	case EstadoContabilizado:
		return 3
	}
	return -1
}

// Valid indica si el valor pertenece al retículo.
func (e Estado) Valid() bool { return e.Rank() >= 0 }

// Display formatea el estado para la interfaz ("CON_DETALLE" → "CON DETALLE").
// Es una re-declaración pura del mismo orden de almacenamiento; nunca se
// persiste el valor formateado.
func (e Estado) Display() string {
	return strings.ReplaceAll(string(e), "_", " ")
}

// ConDetalle aplica la transición de adjuntar detalle: solo promueve desde
// CONSULTADO; en cualquier otro estado las líneas se reemplazan igual pero el
// estado no se toca (ni se baja ni se re-eleva).
func ConDetalle(actual Estado) Estado {
	if actual == EstadoConsultado {
		return EstadoConDetalle
	}
	return actual
}

// ConfirmarRegistro aplica la confirmación de carga masiva sobre una factura
// existente: si ya está CONTABILIZADO es un no-op, en el resto de los casos
// pasa a REGISTRADO.
func ConfirmarRegistro(actual Estado) Estado {
	if actual == EstadoContabilizado {
		return actual
	}
	return EstadoRegistrado
}

// Contabilizar es la única transición que ignora el orden: siempre produce
// CONTABILIZADO (acción administrativa terminal).
func Contabilizar(Estado) Estado { return EstadoContabilizado }

// Avanzar aplica un estado propuesto respetando la guarda anti-regresión:
// si el propuesto es inválido o estrictamente menor que el actual, se
// conserva el actual y se reporta cambio=false para que el caller registre
// la advertencia. No es un error: el resto de los campos del mismo upsert
// se aplican igual.
func Avanzar(actual, propuesto Estado) (Estado, bool) {
	if !propuesto.Valid() || propuesto.Rank() < actual.Rank() {
		return actual, false
	}
	return propuesto, true
}
