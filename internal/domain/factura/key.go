// Package factura contiene la lógica de dominio pura de comprobantes:
// normalización de la identidad (serie, número) y la máquina de estados
// del flujo contable. No depende de infraestructura.
package factura

import (
	"strings"
	"unicode"
)

// Anchos mínimos de relleno. SUNAT emite series de letra + 3 dígitos (F001,
// E001, B001) y correlativos de hasta 8 dígitos; números más largos se
// conservan completos (el relleno es un piso, no un ancho fijo).
const (
	serieDigitos  = 3
	numeroDigitos = 8
)

// ComprobanteKey identidad normalizada de un comprobante. Es la única
// restricción de unicidad de facturas: todo productor (OCR, carga masiva,
// scraping) debe pasar por NormalizeKey antes de consultar el almacén.
type ComprobanteKey struct {
	Serie  string
	Numero string
}

// NormalizeKey canonicaliza un par (serie, número) crudo.
//
// Serie: se recorta, se pasa a mayúsculas y, si tiene la forma letras+dígitos,
// el tramo numérico pierde ceros a la izquierda y se rellena a 3 dígitos
// ("f1" → "F001", "E001" → "E001").
//
// Número: se eliminan todos los caracteres no numéricos, se descartan ceros a
// la izquierda y se rellena a 8 dígitos ("206" y "000206" → "00000206").
// Dos envíos que difieren solo en mayúsculas, puntuación o ceros a la
// izquierda producen la misma clave.
func NormalizeKey(rawSerie, rawNumero string) ComprobanteKey {
	return ComprobanteKey{
		Serie:  normalizeSerie(rawSerie),
		Numero: normalizeNumero(rawNumero),
	}
}

// String devuelve la identidad compuesta SERIE-NUMERO.
func (k ComprobanteKey) String() string {
	return k.Serie + "-" + k.Numero
}

func normalizeSerie(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))

	// Separar prefijo alfabético y tramo numérico; si la serie no tiene esa
	// forma (p.ej. "0001" o "F-01") se deja tal cual ya en mayúsculas.
	i := 0
	for i < len(s) && unicode.IsLetter(rune(s[i])) {
		i++
	}
	if i == 0 || i == len(s) {
		return s
	}
	digitos := s[i:]
	for _, r := range digitos {
		if !unicode.IsDigit(r) {
			return s
		}
	}
	return s[:i] + padLeft(strings.TrimLeft(digitos, "0"), serieDigitos)
}

func normalizeNumero(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return padLeft(strings.TrimLeft(b.String(), "0"), numeroDigitos)
}

// padLeft rellena con '0' a la izquierda hasta ancho mínimo; nunca trunca.
func padLeft(s string, ancho int) string {
	if len(s) >= ancho {
		return s
	}
	return strings.Repeat("0", ancho-len(s)) + s
}
