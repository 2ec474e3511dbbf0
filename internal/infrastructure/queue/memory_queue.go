package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tu-usuario/facturacion-pro/internal/application/scraping"
	"github.com/tu-usuario/facturacion-pro/internal/domain"
	"github.com/tu-usuario/facturacion-pro/pkg/logger"
)

// Handler procesa un intento de un job. Un error devuelto marca el intento
// como fallido; la cola decide entre reintento con backoff y FAILED final.
type Handler func(ctx context.Context, job *scraping.Job) (json.RawMessage, error)

// Runner cola completa: el puerto de la aplicación más el bucle de workers.
type Runner interface {
	scraping.JobQueue
	Start(ctx context.Context, concurrency int, handler Handler)
}

const pollInterval = 100 * time.Millisecond

// MemoryQueue cola en memoria con la misma semántica que la de Redis:
// al-menos-una-vez, backoff exponencial, lease y retención de terminados.
// Respaldo para desarrollo y para cuando Redis no está disponible; los jobs
// no sobreviven al proceso.
type MemoryQueue struct {
	opts Options
	log  *logger.Logger

	mu         sync.Mutex
	jobs       map[string]*scraping.Job
	readyAt    map[string]time.Time
	leaseUntil map[string]time.Time
	expireAt   map[string]time.Time
}

// NewMemoryQueue construye la cola en memoria.
func NewMemoryQueue(opts Options, log *logger.Logger) *MemoryQueue {
	return &MemoryQueue{
		opts:       opts,
		log:        log,
		jobs:       make(map[string]*scraping.Job),
		readyAt:    make(map[string]time.Time),
		leaseUntil: make(map[string]time.Time),
		expireAt:   make(map[string]time.Time),
	}
}

// Enqueue registra el job en estado waiting y devuelve su ID.
func (q *MemoryQueue) Enqueue(_ context.Context, payload scraping.ScrapingPayload) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	now := time.Now()
	job := &scraping.Job{
		ID:          uuid.New().String(),
		Type:        "scraping",
		Payload:     raw,
		State:       scraping.StateWaiting,
		MaxAttempts: q.opts.MaxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	q.mu.Lock()
	q.jobs[job.ID] = job
	q.readyAt[job.ID] = now
	q.mu.Unlock()
	return job.ID, nil
}

// Get devuelve una copia del job o ErrJobNotFound (también tras expirar la
// retención).
func (q *MemoryQueue) Get(_ context.Context, jobID string) (*scraping.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	if exp, ok := q.expireAt[jobID]; ok && time.Now().After(exp) {
		q.borrar(jobID)
		return nil, domain.ErrJobNotFound
	}
	copia := *job
	return &copia, nil
}

// Purge elimina todos los jobs sin distinguir estado.
func (q *MemoryQueue) Purge(_ context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = make(map[string]*scraping.Job)
	q.readyAt = make(map[string]time.Time)
	q.leaseUntil = make(map[string]time.Time)
	q.expireAt = make(map[string]time.Time)
	return nil
}

// Start lanza los workers y el recolector de huérfanos; retornan cuando el
// contexto se cancela.
func (q *MemoryQueue) Start(ctx context.Context, concurrency int, handler Handler) {
	if concurrency < 1 {
		concurrency = 1
	}
	for i := 0; i < concurrency; i++ {
		go q.workerLoop(ctx, handler)
	}
	go q.janitorLoop(ctx)
}

func (q *MemoryQueue) workerLoop(ctx context.Context, handler Handler) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			job := q.claim()
			if job == nil {
				continue
			}
			q.procesar(ctx, job, handler)
		}
	}
}

// claim toma el primer job waiting ya vencido y lo marca activo con lease.
func (q *MemoryQueue) claim() *scraping.Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	for id, job := range q.jobs {
		if job.State != scraping.StateWaiting || q.readyAt[id].After(now) {
			continue
		}
		job.State = scraping.StateActive
		job.AttemptsMade++
		job.UpdatedAt = now
		q.leaseUntil[id] = now.Add(q.opts.LeaseDuration)
		copia := *job
		return &copia
	}
	return nil
}

func (q *MemoryQueue) procesar(ctx context.Context, job *scraping.Job, handler Handler) {
	attemptCtx, cancel := context.WithTimeout(ctx, q.opts.LeaseDuration)
	defer cancel()

	result, err := handler(attemptCtx, job)

	q.mu.Lock()
	defer q.mu.Unlock()

	actual, ok := q.jobs[job.ID]
	if !ok {
		return // purgado mientras corría
	}
	delete(q.leaseUntil, job.ID)
	now := time.Now()
	actual.UpdatedAt = now

	if err == nil {
		actual.State = scraping.StateCompleted
		actual.Result = result
		q.expireAt[job.ID] = now.Add(q.opts.CompletedRetention)
		return
	}

	actual.LastFailureReason = err.Error()
	if actual.AttemptsMade >= actual.MaxAttempts {
		actual.State = scraping.StateFailed
		q.expireAt[job.ID] = now.Add(q.opts.FailedRetention)
		q.log.Warn().Str("job_id", job.ID).Int("attempts", actual.AttemptsMade).
			Err(err).Msg("job agotó sus reintentos")
		return
	}

	actual.State = scraping.StateWaiting
	q.readyAt[job.ID] = now.Add(q.opts.NextDelay(actual.AttemptsMade))
}

// janitorLoop devuelve a la cola los jobs activos con lease vencido (worker
// caído a mitad de proceso) y elimina los terminados fuera de retención.
func (q *MemoryQueue) janitorLoop(ctx context.Context) {
	ticker := time.NewTicker(pollInterval * 10)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.barrer()
		}
	}
}

func (q *MemoryQueue) barrer() {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	for id, job := range q.jobs {
		if exp, ok := q.expireAt[id]; ok && now.After(exp) {
			q.borrar(id)
			continue
		}
		if job.State != scraping.StateActive {
			continue
		}
		if lease, ok := q.leaseUntil[id]; ok && now.Before(lease) {
			continue
		}
		delete(q.leaseUntil, id)
		job.UpdatedAt = now
		if job.AttemptsMade >= job.MaxAttempts {
			job.State = scraping.StateFailed
			job.LastFailureReason = "lease vencido sin resultado"
			q.expireAt[id] = now.Add(q.opts.FailedRetention)
			continue
		}
		job.State = scraping.StateWaiting
		q.readyAt[id] = now
		q.log.Warn().Str("job_id", id).Msg("job huérfano devuelto a la cola")
	}
}

// borrar asume el lock tomado.
func (q *MemoryQueue) borrar(id string) {
	delete(q.jobs, id)
	delete(q.readyAt, id)
	delete(q.leaseUntil, id)
	delete(q.expireAt, id)
}
