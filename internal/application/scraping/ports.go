package scraping

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// JobState ciclo de vida de un job en la cola.
type JobState string

const (
	StateWaiting   JobState = "waiting"
	StateActive    JobState = "active"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
)

// Job instantánea de un trabajo de descarga. AttemptsMade cuenta los intentos
// iniciados, incluido el que esté en curso.
type Job struct {
	ID                string          `json:"id"`
	Type              string          `json:"type"`
	Payload           json.RawMessage `json:"payload"`
	State             JobState        `json:"state"`
	AttemptsMade      int             `json:"attemptsMade"`
	MaxAttempts       int             `json:"maxAttempts"`
	LastFailureReason string          `json:"lastFailureReason,omitempty"`
	Result            json.RawMessage `json:"result,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// ScrapingPayload datos que viajan dentro del job: identidad del comprobante
// más la credencial SOL resuelta en el momento del encolado.
type ScrapingPayload struct {
	UserID     string `json:"userId"`
	RUCEmisor  string `json:"rucEmisor"`
	Serie      string `json:"serie"`
	Numero     string `json:"numero"`
	RUC        string `json:"ruc"`
	UsuarioSOL string `json:"usuarioSol"`
	ClaveSOL   string `json:"claveSol"`
}

// JobQueue puerto de la cola de descargas. La entrega es al-menos-una-vez:
// el handler debe ser idempotente (el upsert por clave normalizada lo es).
type JobQueue interface {
	Enqueue(ctx context.Context, payload ScrapingPayload) (string, error)
	Get(ctx context.Context, jobID string) (*Job, error)
	// Purge elimina todos los jobs en cualquier estado, incluidos los
	// terminados aún en retención.
	Purge(ctx context.Context) error
}

// FailureKind clasifica los fallos de la obtención remota para logs y para
// el motivo que se difunde al cliente.
type FailureKind string

const (
	FailureLogin      FailureKind = "login"
	FailureNavigation FailureKind = "navigation"
	FailureNotFound   FailureKind = "not_found"
	FailureDownload   FailureKind = "download"
)

// RetrievalError fallo tipado de la obtención remota.
type RetrievalError struct {
	Kind FailureKind
	Msg  string
	Err  error
}

func (e *RetrievalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// RetrieveRequest identifica el comprobante y la sesión con la que bajarlo.
type RetrieveRequest struct {
	RUC        string
	UsuarioSOL string
	ClaveSOL   string
	RUCEmisor  string
	Serie      string
	Numero     string
}

// RetrievedDocument archivos oficiales tal como se descargaron del portal.
type RetrievedDocument struct {
	XML         []byte
	PDF         []byte
	CDR         []byte
	SunatStatus string
}

// Retriever puerto de la fuente remota (portal SOL vía navegador).
type Retriever interface {
	Retrieve(ctx context.Context, req RetrieveRequest) (*RetrievedDocument, error)
}

// InvoiceData resultado de interpretar el XML UBL descargado.
type InvoiceData struct {
	RUCEmisor    string
	RazonSocial  string
	Serie        string
	Numero       string
	FechaEmision string
	Moneda       string
	Subtotal     decimal.Decimal
	IGV          decimal.Decimal
	Total        decimal.Decimal
	Items        []InvoiceItemData
}

// InvoiceItemData línea de detalle interpretada del XML.
type InvoiceItemData struct {
	Descripcion   string
	Cantidad      decimal.Decimal
	CostoUnitario decimal.Decimal
	UnidadMedida  string
}

// Transformer interpreta el XML UBL. Devuelve nil cuando el documento no
// contiene los campos mínimos (RUC del emisor y número); eso cuenta como
// fallo del intento, no como factura vacía.
type Transformer interface {
	Transform(xml []byte) *InvoiceData
}

// Notifier difunde cambios de estado de jobs a los clientes conectados.
// Fire-and-forget: un cliente lento o caído nunca bloquea al worker.
type Notifier interface {
	Broadcast(jobID string, state JobState, payload any)
}
