package billing

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/tu-usuario/facturacion-pro/internal/application/dto"
	"github.com/tu-usuario/facturacion-pro/internal/domain"
	"github.com/tu-usuario/facturacion-pro/pkg/logger"
)

// Reconocedor extrae texto de una imagen y detecta los campos de un
// comprobante. La implementación vive en infraestructura (tesseract).
type Reconocedor interface {
	Reconocer(ctx context.Context, imagen []byte) (dto.CamposOCR, error)
}

// ReconocerFacturaUseCase intake por foto: OCR sobre la imagen y upsert con
// los campos detectados. Sin RUC o sin número no hay clave, así que no se
// escribe nada.
type ReconocerFacturaUseCase struct {
	reconocedor Reconocedor
	upsert      *UpsertInvoiceUseCase
	log         *logger.Logger
}

// NewReconocerFacturaUseCase construye el caso de uso.
func NewReconocerFacturaUseCase(reconocedor Reconocedor, upsert *UpsertInvoiceUseCase, log *logger.Logger) *ReconocerFacturaUseCase {
	return &ReconocerFacturaUseCase{reconocedor: reconocedor, upsert: upsert, log: log}
}

// Reconocer procesa la imagen y crea (o fusiona) la factura detectada.
// El OCR no trae líneas de detalle: Items queda nil para no tocar las
// existentes si el comprobante ya estaba almacenado.
func (uc *ReconocerFacturaUseCase) Reconocer(ctx context.Context, userID string, imagen []byte) (*dto.ReconocerResponse, error) {
	campos, err := uc.reconocedor.Reconocer(ctx, imagen)
	if err != nil {
		return nil, err
	}
	if campos.RUC == "" || campos.Numero == "" {
		uc.log.Warn().
			Str("ruc", campos.RUC).Str("numero", campos.Numero).
			Msg("OCR sin campos suficientes para identificar el comprobante")
		return nil, domain.ErrInvalidInput
	}

	serie, numero := splitNumero(campos.Numero)
	in := UpsertInvoiceInput{
		Origen:       OrigenOCR,
		UserID:       userID,
		SupplierRUC:  campos.RUC,
		Serie:        serie,
		Numero:       numero,
		FechaEmision: ParseFecha(campos.Fecha),
	}
	if campos.Monto != "" {
		in.Total = parseMonto(campos.Monto)
	}

	res, err := uc.upsert.Upsert(ctx, in)
	if err != nil {
		return nil, err
	}

	mensaje := "Factura ya registrada"
	if res.Creada {
		mensaje = "Factura creada"
	}
	return &dto.ReconocerResponse{
		Mensaje:         mensaje,
		ID:              res.InvoiceID,
		DatosDetectados: campos,
	}, nil
}

// splitNumero separa "F001-000123" (o "F001 000123") en serie y correlativo.
// Sin separador se trata todo como correlativo y la serie queda vacía; la
// normalización de clave tolera ambos.
func splitNumero(s string) (serie, numero string) {
	for i, r := range s {
		if r == '-' || r == ' ' {
			return s[:i], s[i+1:]
		}
	}
	return "", s
}

func parseMonto(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
