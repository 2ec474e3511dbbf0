package queue

import "time"

// Options parámetros compartidos por las implementaciones de la cola.
type Options struct {
	// MaxAttempts intentos totales por job (el primero incluido).
	MaxAttempts int
	// BaseDelay espera tras el primer fallo; se duplica en cada reintento.
	BaseDelay time.Duration
	// LeaseDuration tiempo máximo que un worker puede retener un job activo
	// antes de que se considere huérfano y vuelva a la cola.
	LeaseDuration time.Duration
	// CompletedRetention y FailedRetention cuánto se conserva un job terminado
	// para consultas de estado antes de evaporarse.
	CompletedRetention time.Duration
	FailedRetention    time.Duration
}

// DefaultOptions valores alineados con el comportamiento del portal: los
// fallos suelen ser transitorios (sesión caída, descarga a medias) y un
// backoff corto con pocos intentos resuelve la mayoría.
func DefaultOptions() Options {
	return Options{
		MaxAttempts:        3,
		BaseDelay:          5 * time.Second,
		LeaseDuration:      120 * time.Second,
		CompletedRetention: time.Hour,
		FailedRetention:    24 * time.Hour,
	}
}

// NextDelay espera antes del reintento n (1-based): base · 2^(n-1).
func (o Options) NextDelay(intentosFallidos int) time.Duration {
	if intentosFallidos < 1 {
		intentosFallidos = 1
	}
	return o.BaseDelay << (intentosFallidos - 1)
}
