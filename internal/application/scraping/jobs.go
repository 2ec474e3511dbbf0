package scraping

import (
	"context"
	"encoding/json"

	"github.com/tu-usuario/facturacion-pro/internal/application/dto"
	"github.com/tu-usuario/facturacion-pro/internal/domain"
	"github.com/tu-usuario/facturacion-pro/internal/domain/repository"
	"github.com/tu-usuario/facturacion-pro/pkg/logger"
)

// JobsUseCase operaciones síncronas sobre la cola: encolar, consultar y purgar.
type JobsUseCase struct {
	queue    JobQueue
	credRepo repository.SOLCredentialRepository
	log      *logger.Logger
}

// NewJobsUseCase construye el caso de uso.
func NewJobsUseCase(queue JobQueue, credRepo repository.SOLCredentialRepository, log *logger.Logger) *JobsUseCase {
	return &JobsUseCase{queue: queue, credRepo: credRepo, log: log}
}

// Enqueue registra la solicitud y devuelve el job ID de inmediato; el
// resultado llega después por el websocket o por polling del estado. La
// credencial SOL del usuario se resuelve aquí, no en el worker: sin
// credencial el submit falla síncrono en vez de quemar reintentos.
func (uc *JobsUseCase) Enqueue(ctx context.Context, userID string, req dto.EnqueueScrapingRequest) (*dto.EnqueueScrapingResponse, error) {
	if req.RUCEmisor == "" || req.Numero == "" {
		return nil, domain.ErrInvalidInput
	}

	cred, err := uc.credRepo.GetByUserID(userID)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, domain.ErrCredentialsMissing
	}

	jobID, err := uc.queue.Enqueue(ctx, ScrapingPayload{
		UserID:     userID,
		RUCEmisor:  req.RUCEmisor,
		Serie:      req.Serie,
		Numero:     req.Numero,
		RUC:        cred.RUC,
		UsuarioSOL: cred.UsuarioSOL,
		ClaveSOL:   cred.ClaveSOL,
	})
	if err != nil {
		return nil, err
	}

	uc.log.Info().Str("job_id", jobID).
		Str("comprobante", req.Serie+"-"+req.Numero).
		Msg("descarga encolada")
	return &dto.EnqueueScrapingResponse{JobID: jobID}, nil
}

// Status lee el estado puntual de un job.
func (uc *JobsUseCase) Status(ctx context.Context, jobID string) (*dto.JobStatusResponse, error) {
	job, err := uc.queue.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	resp := &dto.JobStatusResponse{
		JobID:             job.ID,
		State:             string(job.State),
		AttemptsMade:      job.AttemptsMade,
		MaxAttempts:       job.MaxAttempts,
		LastFailureReason: job.LastFailureReason,
	}
	if len(job.Result) > 0 {
		var result any
		if err := json.Unmarshal(job.Result, &result); err == nil {
			resp.Result = result
		}
	}
	return resp, nil
}

// Purge vacía la cola por completo, jobs terminados incluidos.
func (uc *JobsUseCase) Purge(ctx context.Context) error {
	uc.log.Warn().Msg("purgando la cola de descargas")
	return uc.queue.Purge(ctx)
}
