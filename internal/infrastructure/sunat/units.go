package sunat

// unidades traduce los códigos UN/ECE rec 20 que usan los comprobantes
// electrónicos a los nombres que muestra la interfaz.
var unidades = map[string]string{
	"GLL": "US GALON",
	"NIU": "UNIDAD",
	"ZZ":  "SERVICIO",
	"KGM": "KILOGRAMO",
	"LTR": "LITRO",
	"MTR": "METRO",
	"BX":  "CAJA",
	"PK":  "PAQUETE",
}

// UnidadDisplay devuelve el nombre legible del código de unidad; los códigos
// desconocidos pasan tal cual en vez de perderse.
func UnidadDisplay(codigo string) string {
	if nombre, ok := unidades[codigo]; ok {
		return nombre
	}
	return codigo
}
