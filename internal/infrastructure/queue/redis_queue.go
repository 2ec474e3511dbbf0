package queue

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/tu-usuario/facturacion-pro/internal/application/scraping"
	"github.com/tu-usuario/facturacion-pro/internal/domain"
	"github.com/tu-usuario/facturacion-pro/pkg/logger"
)

const keyPrefix = "facturacion:scraping"

// RedisQueue cola respaldada por Redis: los jobs sobreviven reinicios del
// proceso y varias instancias pueden consumir la misma cola.
//
// Estructuras:
//   - {p}:wait      lista de IDs listos para procesar (LPUSH / BLMove)
//   - {p}:delayed   zset de IDs con reintento pendiente, score = listo-en (ms)
//   - {p}:active    lista de IDs en proceso, vigilada por el janitor
//   - {p}:job:{id}  hash con el estado completo del job
//   - {p}:lease:{id} clave con TTL que acredita que un worker sigue vivo
//
// El pop es un BLMove de wait a active: tomar el job y dejar constancia de
// que alguien lo tiene es un solo paso atómico. Si el proceso muere en
// cualquier punto posterior, el ID sigue en active y el janitor lo recupera.
type RedisQueue struct {
	client *redis.Client
	opts   Options
	log    *logger.Logger
}

// NewRedisQueue construye la cola sobre un cliente ya conectado.
func NewRedisQueue(client *redis.Client, opts Options, log *logger.Logger) *RedisQueue {
	return &RedisQueue{client: client, opts: opts, log: log}
}

func keyWait() string           { return keyPrefix + ":wait" }
func keyDelayed() string        { return keyPrefix + ":delayed" }
func keyActive() string         { return keyPrefix + ":active" }
func keyJob(id string) string   { return keyPrefix + ":job:" + id }
func keyLease(id string) string { return keyPrefix + ":lease:" + id }

// Enqueue registra el job y lo deja listo para el primer intento.
func (q *RedisQueue) Enqueue(ctx context.Context, payload scraping.ScrapingPayload) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	id := uuid.New().String()
	now := time.Now()

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, keyJob(id), map[string]any{
		"id":           id,
		"type":         "scraping",
		"payload":      string(raw),
		"state":        string(scraping.StateWaiting),
		"attempts":     0,
		"max_attempts": q.opts.MaxAttempts,
		"created_at":   now.Format(time.RFC3339Nano),
		"updated_at":   now.Format(time.RFC3339Nano),
	})
	pipe.LPush(ctx, keyWait(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", err
	}
	return id, nil
}

// Get reconstruye el job desde su hash.
func (q *RedisQueue) Get(ctx context.Context, jobID string) (*scraping.Job, error) {
	fields, err := q.client.HGetAll(ctx, keyJob(jobID)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, domain.ErrJobNotFound
	}
	return jobFromHash(fields), nil
}

// Purge borra todas las claves de la cola, retención incluida.
func (q *RedisQueue) Purge(ctx context.Context) error {
	iter := q.client.Scan(ctx, 0, keyPrefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		if err := q.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Start lanza los workers, el promotor de reintentos y el janitor de leases.
func (q *RedisQueue) Start(ctx context.Context, concurrency int, handler Handler) {
	if concurrency < 1 {
		concurrency = 1
	}
	for i := 0; i < concurrency; i++ {
		go q.workerLoop(ctx, handler)
	}
	go q.promoterLoop(ctx)
	go q.janitorLoop(ctx)
}

func (q *RedisQueue) workerLoop(ctx context.Context, handler Handler) {
	for {
		if ctx.Err() != nil {
			return
		}
		jobID, err := q.client.BLMove(ctx, keyWait(), keyActive(), "RIGHT", "LEFT", time.Second).Result()
		if err != nil {
			if err == redis.Nil || ctx.Err() != nil {
				continue
			}
			q.log.Error().Err(err).Msg("error leyendo la cola, reintentando")
			time.Sleep(time.Second)
			continue
		}
		q.procesar(ctx, jobID, handler)
	}
}

// procesar corre un intento de un job ya movido a la lista active. Si el
// lease no llega a escribirse, el janitor verá el ID en active sin lease y
// lo devolverá a la cola.
func (q *RedisQueue) procesar(ctx context.Context, jobID string, handler Handler) {
	now := time.Now()
	pipe := q.client.TxPipeline()
	pipe.Set(ctx, keyLease(jobID), "1", q.opts.LeaseDuration)
	pipe.HIncrBy(ctx, keyJob(jobID), "attempts", 1)
	pipe.HSet(ctx, keyJob(jobID), map[string]any{
		"state":      string(scraping.StateActive),
		"updated_at": now.Format(time.RFC3339Nano),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		q.log.Error().Str("job_id", jobID).Err(err).Msg("no se pudo reclamar el job")
		return
	}

	job, err := q.Get(ctx, jobID)
	if err != nil {
		q.log.Error().Str("job_id", jobID).Err(err).Msg("job reclamado sin hash")
		return
	}

	attemptCtx, cancel := context.WithTimeout(ctx, q.opts.LeaseDuration)
	result, perr := handler(attemptCtx, job)
	cancel()

	if perr == nil {
		q.finalizar(ctx, jobID, scraping.StateCompleted, string(result), "", q.opts.CompletedRetention)
		return
	}
	if job.AttemptsMade >= job.MaxAttempts {
		q.log.Warn().Str("job_id", jobID).Int("attempts", job.AttemptsMade).
			Err(perr).Msg("job agotó sus reintentos")
		q.finalizar(ctx, jobID, scraping.StateFailed, "", perr.Error(), q.opts.FailedRetention)
		return
	}
	q.reencolar(ctx, jobID, job.AttemptsMade, perr.Error())
}

func (q *RedisQueue) finalizar(ctx context.Context, jobID string, state scraping.JobState, result, failure string, retention time.Duration) {
	fields := map[string]any{
		"state":      string(state),
		"updated_at": time.Now().Format(time.RFC3339Nano),
	}
	if result != "" {
		fields["result"] = result
	}
	if failure != "" {
		fields["failure"] = failure
	}

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, keyJob(jobID), fields)
	pipe.Expire(ctx, keyJob(jobID), retention)
	pipe.LRem(ctx, keyActive(), 0, jobID)
	pipe.Del(ctx, keyLease(jobID))
	if _, err := pipe.Exec(ctx); err != nil {
		q.log.Error().Str("job_id", jobID).Err(err).Msg("no se pudo cerrar el job")
	}
}

func (q *RedisQueue) reencolar(ctx context.Context, jobID string, intentos int, failure string) {
	readyAt := time.Now().Add(q.opts.NextDelay(intentos))

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, keyJob(jobID), map[string]any{
		"state":      string(scraping.StateWaiting),
		"failure":    failure,
		"updated_at": time.Now().Format(time.RFC3339Nano),
	})
	pipe.ZAdd(ctx, keyDelayed(), redis.Z{
		Score:  float64(readyAt.UnixMilli()),
		Member: jobID,
	})
	pipe.LRem(ctx, keyActive(), 0, jobID)
	pipe.Del(ctx, keyLease(jobID))
	if _, err := pipe.Exec(ctx); err != nil {
		q.log.Error().Str("job_id", jobID).Err(err).Msg("no se pudo reencolar el job")
	}
}

// promoterLoop mueve a la lista de espera los reintentos cuyo backoff venció.
func (q *RedisQueue) promoterLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ids, err := q.client.ZRangeByScore(ctx, keyDelayed(), &redis.ZRangeBy{
				Min: "-inf",
				Max: strconv.FormatInt(time.Now().UnixMilli(), 10),
			}).Result()
			if err != nil {
				continue
			}
			for _, id := range ids {
				pipe := q.client.TxPipeline()
				pipe.ZRem(ctx, keyDelayed(), id)
				pipe.LPush(ctx, keyWait(), id)
				if _, err := pipe.Exec(ctx); err != nil {
					q.log.Error().Str("job_id", id).Err(err).Msg("no se pudo promover el reintento")
				}
			}
		}
	}
}

// janitorLoop recorre la lista active y devuelve a la cola los jobs sin lease
// vigente: un lease vencido (worker muerto a mitad del intento) o nunca
// escrito (proceso muerto justo tras el BLMove). La entrega es al-menos-una-
// vez, así que un reclamo en curso barrido por error solo duplica un intento.
func (q *RedisQueue) janitorLoop(ctx context.Context) {
	ticker := time.NewTicker(q.opts.LeaseDuration / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ids, err := q.client.LRange(ctx, keyActive(), 0, -1).Result()
			if err != nil {
				continue
			}
			for _, id := range ids {
				vivo, err := q.client.Exists(ctx, keyLease(id)).Result()
				if err != nil || vivo > 0 {
					continue
				}
				job, err := q.Get(ctx, id)
				if err != nil {
					q.client.LRem(ctx, keyActive(), 0, id)
					continue
				}
				q.log.Warn().Str("job_id", id).Msg("job huérfano detectado")
				if job.AttemptsMade >= job.MaxAttempts {
					q.finalizar(ctx, id, scraping.StateFailed, "", "lease vencido sin resultado", q.opts.FailedRetention)
					continue
				}
				q.reencolar(ctx, id, job.AttemptsMade, "lease vencido sin resultado")
			}
		}
	}
}

func jobFromHash(fields map[string]string) *scraping.Job {
	attempts, _ := strconv.Atoi(fields["attempts"])
	maxAttempts, _ := strconv.Atoi(fields["max_attempts"])
	createdAt, _ := time.Parse(time.RFC3339Nano, fields["created_at"])
	updatedAt, _ := time.Parse(time.RFC3339Nano, fields["updated_at"])

	job := &scraping.Job{
		ID:                fields["id"],
		Type:              fields["type"],
		Payload:           json.RawMessage(fields["payload"]),
		State:             scraping.JobState(fields["state"]),
		AttemptsMade:      attempts,
		MaxAttempts:       maxAttempts,
		LastFailureReason: fields["failure"],
		CreatedAt:         createdAt,
		UpdatedAt:         updatedAt,
	}
	if r, ok := fields["result"]; ok && r != "" {
		job.Result = json.RawMessage(r)
	}
	return job
}
