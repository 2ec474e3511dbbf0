package queue

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tu-usuario/facturacion-pro/pkg/logger"
)

// New decide la implementación de la cola según la disponibilidad de Redis:
// si responde al ping se usa la cola persistente; si no, se degrada a la de
// memoria con una advertencia en vez de impedir el arranque. Los jobs en
// memoria no sobreviven reinicios, pero todo el resto del sistema funciona
// igual.
func New(ctx context.Context, addr, password string, db int, opts Options, log *logger.Logger) Runner {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn().Str("addr", addr).Err(err).
			Msg("Redis no disponible, usando cola en memoria")
		_ = client.Close()
		return NewMemoryQueue(opts, log)
	}

	log.Info().Str("addr", addr).Msg("cola de descargas sobre Redis")
	return NewRedisQueue(client, opts, log)
}
