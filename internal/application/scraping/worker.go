package scraping

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/tu-usuario/facturacion-pro/internal/application/billing"
	"github.com/tu-usuario/facturacion-pro/internal/application/dto"
	"github.com/tu-usuario/facturacion-pro/internal/domain/entity"
	"github.com/tu-usuario/facturacion-pro/internal/domain/factura"
	"github.com/tu-usuario/facturacion-pro/pkg/logger"
)

// ErrDocumentoIlegible el XML descargado no contiene los campos mínimos.
var ErrDocumentoIlegible = errors.New("el documento descargado no se pudo interpretar")

// ResultadoScraping payload que se difunde y se guarda como resultado del job.
type ResultadoScraping struct {
	NumeroComprobante string `json:"numeroComprobante"`
	Creada            bool   `json:"creada"`
	Estado            string `json:"estado"`
	Persistida        bool   `json:"persistida"`
}

// Worker procesa jobs de descarga: obtiene los archivos del portal, interpreta
// el XML y persiste factura y documento por el upsert canónico.
//
// Asimetría deliberada en los fallos: si la obtención o la interpretación
// fallan, el intento falla y la cola reintenta (el documento aún no se tiene).
// Si el documento ya se obtuvo y solo falla el guardado, el job se completa
// igual y el fallo queda en el log: reintentar la descarga completa por un
// hipo del almacén castigaría al portal sin necesidad.
type Worker struct {
	retriever   Retriever
	transformer Transformer
	upsert      *billing.UpsertInvoiceUseCase
	notifier    Notifier
	log         *logger.Logger
}

// NewWorker construye el worker.
func NewWorker(
	retriever Retriever,
	transformer Transformer,
	upsert *billing.UpsertInvoiceUseCase,
	notifier Notifier,
	log *logger.Logger,
) *Worker {
	return &Worker{
		retriever:   retriever,
		transformer: transformer,
		upsert:      upsert,
		notifier:    notifier,
		log:         log,
	}
}

// Process ejecuta un intento del job. Un error devuelto le indica a la cola
// que el intento falló; la cola decide reintento o estado FAILED final. Los
// eventos "active" y "failed" se difunden en cada intento, con el motivo del
// fallo; el estado terminal del job se consulta en la cola, no en el stream.
func (w *Worker) Process(ctx context.Context, job *Job) (json.RawMessage, error) {
	w.notifier.Broadcast(job.ID, StateActive, nil)

	var p ScrapingPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		w.emitirFallo(job, err)
		return nil, err
	}

	doc, err := w.retriever.Retrieve(ctx, RetrieveRequest{
		RUC:        p.RUC,
		UsuarioSOL: p.UsuarioSOL,
		ClaveSOL:   p.ClaveSOL,
		RUCEmisor:  p.RUCEmisor,
		Serie:      p.Serie,
		Numero:     p.Numero,
	})
	if err != nil {
		var rerr *RetrievalError
		if errors.As(err, &rerr) {
			w.log.Warn().Str("job_id", job.ID).Str("kind", string(rerr.Kind)).
				Err(err).Msg("fallo obteniendo el comprobante del portal")
		}
		w.emitirFallo(job, err)
		return nil, err
	}

	data := w.transformer.Transform(doc.XML)
	if data == nil {
		w.emitirFallo(job, ErrDocumentoIlegible)
		return nil, ErrDocumentoIlegible
	}

	items := make([]dto.ProductoInput, 0, len(data.Items))
	for _, it := range data.Items {
		items = append(items, dto.ProductoInput{
			Descripcion:   it.Descripcion,
			Cantidad:      it.Cantidad,
			CostoUnitario: it.CostoUnitario,
			UnidadMedida:  it.UnidadMedida,
		})
	}

	resultado := ResultadoScraping{Persistida: true}
	res, err := w.upsert.Upsert(ctx, billing.UpsertInvoiceInput{
		Origen:       billing.OrigenScraping,
		UserID:       p.UserID,
		SupplierRUC:  data.RUCEmisor,
		RazonSocial:  data.RazonSocial,
		Serie:        data.Serie,
		Numero:       data.Numero,
		Moneda:       data.Moneda,
		FechaEmision: billing.ParseFecha(data.FechaEmision),
		Subtotal:     data.Subtotal,
		IGV:          data.IGV,
		Total:        data.Total,
		Items:        items,
		Documento: &entity.ElectronicDocument{
			XML:         doc.XML,
			PDF:         doc.PDF,
			CDR:         doc.CDR,
			SunatStatus: doc.SunatStatus,
		},
	})
	if err != nil {
		// El documento ya se obtuvo: el job se completa con el resultado
		// interpretado y el fallo de guardado queda registrado.
		w.log.Error().Str("job_id", job.ID).Err(err).
			Msg("comprobante obtenido pero no persistido")
		resultado.Persistida = false
		resultado.NumeroComprobante = factura.NormalizeKey(data.Serie, data.Numero).String()
	} else {
		resultado.NumeroComprobante = res.NumeroComprobante
		resultado.Creada = res.Creada
		resultado.Estado = res.Estado.Display()
	}

	raw, err := json.Marshal(resultado)
	if err != nil {
		return nil, err
	}
	w.notifier.Broadcast(job.ID, StateCompleted, resultado)
	return raw, nil
}

// emitirFallo difunde "failed" con el motivo del intento. Se emite en cada
// intento fallido, igual que "active" se emite en cada intento; si aún quedan
// reintentos el job vuelve a la cola y el stream lo reflejará con un nuevo
// "active".
func (w *Worker) emitirFallo(job *Job, err error) {
	w.notifier.Broadcast(job.ID, StateFailed, map[string]string{"reason": err.Error()})
}
