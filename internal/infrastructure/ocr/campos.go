package ocr

import (
	"regexp"
	"strings"

	"github.com/tu-usuario/facturacion-pro/internal/application/dto"
)

// Patrones calibrados sobre facturas y boletas peruanas fotografiadas:
// el OCR mete espacios y confunde separadores, así que son deliberadamente
// permisivos y la capa de dominio valida después.
var (
	reRUC = regexp.MustCompile(`(\d{11})`)
	// El número se busca primero con la forma estricta serie-correlativo
	// (F001-000123); sin ella, la forma permisiva engancharía un trozo del
	// RUC u otro número cualquiera del comprobante.
	reNumeroEstricto = regexp.MustCompile(`([A-Z]\d{3}[-\s]\d{1,8})`)
	reNumero         = regexp.MustCompile(`([A-Z0-9]{1,4}[-\s]?\d{1,6})`)
	reFecha          = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})|(\d{2}[\/\-]\d{2}[\/\-]\d{4})`)
	reMonto          = regexp.MustCompile(`(\d{1,3}(?:[.,]\d{3})*[.,]\d{2})`)
)

// ExtraerCampos detecta RUC, número de comprobante, fecha y monto en el texto
// que devolvió el OCR. Todo es best effort: un campo no detectado queda vacío.
func ExtraerCampos(texto string) dto.CamposOCR {
	campos := dto.CamposOCR{}

	if m := reRUC.FindString(texto); m != "" {
		campos.RUC = m
	}
	if m := reNumeroEstricto.FindString(texto); m != "" {
		campos.Numero = normalizarNumero(m)
	} else if m := reNumero.FindString(texto); m != "" {
		campos.Numero = normalizarNumero(m)
	}
	if m := reFecha.FindString(texto); m != "" {
		campos.Fecha = normalizarFecha(m)
	}
	// El monto mayor suele ser el total y aparece al final del comprobante:
	// se toma la última coincidencia, no la primera.
	if ms := reMonto.FindAllString(texto, -1); len(ms) > 0 {
		campos.Monto = normalizarMonto(ms[len(ms)-1])
	}
	return campos
}

func normalizarNumero(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), " ", "-")
}

// normalizarFecha lleva dd/mm/yyyy (o dd-mm-yyyy) a yyyy-mm-dd.
func normalizarFecha(s string) string {
	if len(s) == 10 && s[4] == '-' {
		return s
	}
	sep := "/"
	if strings.Contains(s, "-") {
		sep = "-"
	}
	partes := strings.Split(s, sep)
	if len(partes) != 3 {
		return s
	}
	return partes[2] + "-" + partes[1] + "-" + partes[0]
}

// normalizarMonto convierte "1.234,56" o "1,234.56" a "1234.56".
func normalizarMonto(s string) string {
	puntoDecimal := strings.LastIndexAny(s, ".,")
	if puntoDecimal < 0 {
		return s
	}
	entero := strings.Map(func(r rune) rune {
		if r == '.' || r == ',' {
			return -1
		}
		return r
	}, s[:puntoDecimal])
	return entero + "." + s[puntoDecimal+1:]
}
