package queue_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tu-usuario/facturacion-pro/internal/application/scraping"
	"github.com/tu-usuario/facturacion-pro/internal/domain"
	"github.com/tu-usuario/facturacion-pro/internal/infrastructure/queue"
	"github.com/tu-usuario/facturacion-pro/pkg/logger"
)

// Opciones con tiempos cortos para que los tests corran en milisegundos.
func optsRapidas() queue.Options {
	return queue.Options{
		MaxAttempts:        3,
		BaseDelay:          20 * time.Millisecond,
		LeaseDuration:      2 * time.Second,
		CompletedRetention: time.Minute,
		FailedRetention:    time.Minute,
	}
}

func TestNextDelay_Exponencial(t *testing.T) {
	opts := queue.Options{BaseDelay: 5 * time.Second}

	assert.Equal(t, 5*time.Second, opts.NextDelay(1))
	assert.Equal(t, 10*time.Second, opts.NextDelay(2))
	assert.Equal(t, 20*time.Second, opts.NextDelay(3))
	assert.Equal(t, 5*time.Second, opts.NextDelay(0), "valores fuera de rango usan la base")
}

func TestMemoryQueue_ProcesaUnJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := queue.NewMemoryQueue(optsRapidas(), logger.NewNop())
	q.Start(ctx, 2, func(_ context.Context, job *scraping.Job) (json.RawMessage, error) {
		var p scraping.ScrapingPayload
		require.NoError(t, json.Unmarshal(job.Payload, &p))
		return json.Marshal(map[string]string{"numero": p.Numero})
	})

	id, err := q.Enqueue(ctx, scraping.ScrapingPayload{UserID: "u1", Numero: "206"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		job, err := q.Get(ctx, id)
		return err == nil && job.State == scraping.StateCompleted
	}, 2*time.Second, 10*time.Millisecond, "el job debe completarse")

	job, err := q.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, job.AttemptsMade)
	assert.JSONEq(t, `{"numero":"206"}`, string(job.Result))
}

func TestMemoryQueue_ReintentaConBackoffYCompleta(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var intentos atomic.Int32
	q := queue.NewMemoryQueue(optsRapidas(), logger.NewNop())
	q.Start(ctx, 1, func(_ context.Context, _ *scraping.Job) (json.RawMessage, error) {
		if intentos.Add(1) < 3 {
			return nil, errors.New("portal caido")
		}
		return json.RawMessage(`{}`), nil
	})

	id, err := q.Enqueue(ctx, scraping.ScrapingPayload{UserID: "u1"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		job, err := q.Get(ctx, id)
		return err == nil && job.State == scraping.StateCompleted
	}, 3*time.Second, 10*time.Millisecond, "debe completarse al tercer intento")

	job, err := q.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, job.AttemptsMade)
	assert.Equal(t, "portal caido", job.LastFailureReason,
		"el último motivo de fallo queda registrado aunque el job termine bien")
}

func TestMemoryQueue_AgotaReintentosYFalla(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := queue.NewMemoryQueue(optsRapidas(), logger.NewNop())
	q.Start(ctx, 1, func(_ context.Context, _ *scraping.Job) (json.RawMessage, error) {
		return nil, errors.New("credencial rechazada")
	})

	id, err := q.Enqueue(ctx, scraping.ScrapingPayload{UserID: "u1"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		job, err := q.Get(ctx, id)
		return err == nil && job.State == scraping.StateFailed
	}, 3*time.Second, 10*time.Millisecond, "debe terminar FAILED tras agotar intentos")

	job, err := q.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, job.AttemptsMade)
	assert.Equal(t, "credencial rechazada", job.LastFailureReason)
}

func TestMemoryQueue_JobInexistente(t *testing.T) {
	q := queue.NewMemoryQueue(optsRapidas(), logger.NewNop())
	_, err := q.Get(context.Background(), "fantasma")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestMemoryQueue_PurgeEliminaTodo(t *testing.T) {
	ctx := context.Background()
	q := queue.NewMemoryQueue(optsRapidas(), logger.NewNop())

	id1, err := q.Enqueue(ctx, scraping.ScrapingPayload{UserID: "u1"})
	require.NoError(t, err)
	id2, err := q.Enqueue(ctx, scraping.ScrapingPayload{UserID: "u2"})
	require.NoError(t, err)

	require.NoError(t, q.Purge(ctx))

	_, err = q.Get(ctx, id1)
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
	_, err = q.Get(ctx, id2)
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestMemoryQueue_EntregaAlMenosUnaVezEnParalelo(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var procesados atomic.Int32
	q := queue.NewMemoryQueue(optsRapidas(), logger.NewNop())
	q.Start(ctx, 4, func(_ context.Context, _ *scraping.Job) (json.RawMessage, error) {
		procesados.Add(1)
		return json.RawMessage(`{}`), nil
	})

	ids := make([]string, 0, 10)
	for i := 0; i < 10; i++ {
		id, err := q.Enqueue(ctx, scraping.ScrapingPayload{UserID: "u1"})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	require.Eventually(t, func() bool {
		for _, id := range ids {
			job, err := q.Get(ctx, id)
			if err != nil || job.State != scraping.StateCompleted {
				return false
			}
		}
		return true
	}, 5*time.Second, 20*time.Millisecond)
	assert.GreaterOrEqual(t, procesados.Load(), int32(10))
}
