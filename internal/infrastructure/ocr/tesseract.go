package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/tu-usuario/facturacion-pro/internal/application/billing"
	"github.com/tu-usuario/facturacion-pro/internal/application/dto"
	"github.com/tu-usuario/facturacion-pro/pkg/logger"
)

// ErrNotInstalled el binario de tesseract no está en el PATH.
var ErrNotInstalled = errors.New("tesseract no está instalado")

var _ billing.Reconocedor = (*TesseractReconocedor)(nil)

// TesseractReconocedor extrae los campos de un comprobante fotografiado con
// el binario de tesseract (idioma español, motor LSTM). La imagen entra por
// stdin y el texto sale por stdout, sin archivos temporales.
type TesseractReconocedor struct {
	log *logger.Logger
}

// NewTesseractReconocedor construye el reconocedor.
func NewTesseractReconocedor(log *logger.Logger) *TesseractReconocedor {
	return &TesseractReconocedor{log: log}
}

// Reconocer pasa la imagen por OCR y detecta RUC, número, fecha y monto.
func (t *TesseractReconocedor) Reconocer(ctx context.Context, imagen []byte) (dto.CamposOCR, error) {
	texto, err := t.extraerTexto(ctx, imagen)
	if err != nil {
		return dto.CamposOCR{}, err
	}

	campos := ExtraerCampos(texto)
	t.log.Debug().
		Str("ruc", campos.RUC).Str("numero", campos.Numero).
		Str("fecha", campos.Fecha).Str("monto", campos.Monto).
		Msg("campos detectados por OCR")
	return campos, nil
}

func (t *TesseractReconocedor) extraerTexto(ctx context.Context, imagen []byte) (string, error) {
	cmd := exec.CommandContext(ctx, "tesseract", "stdin", "stdout", "-l", "spa", "--oem", "1", "--psm", "3")
	cmd.Stdin = bytes.NewReader(imagen)

	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", ErrNotInstalled
		}
		return "", fmt.Errorf("tesseract: %w: %s", err, stderr.String())
	}
	return out.String(), nil
}
