package dto

// EnqueueScrapingRequest parámetros para encolar la descarga de un comprobante
// desde el portal SOL. La credencial del usuario se resuelve en el use case.
type EnqueueScrapingRequest struct {
	RUCEmisor string `json:"rucEmisor"`
	Serie     string `json:"serie"`
	Numero    string `json:"numero"`
}

// EnqueueScrapingResponse el submit siempre devuelve el job ID de forma
// síncrona; el resultado solo está disponible por polling o por el websocket.
type EnqueueScrapingResponse struct {
	JobID string `json:"jobId"`
}

// JobStatusResponse lectura puntual del estado de un job.
type JobStatusResponse struct {
	JobID             string `json:"jobId"`
	State             string `json:"state"`
	AttemptsMade      int    `json:"attemptsMade"`
	MaxAttempts       int    `json:"maxAttempts"`
	LastFailureReason string `json:"lastFailureReason,omitempty"`
	Result            any    `json:"result,omitempty"`
}

// UserDto y auth ----------------------------------------------------------

// RegisterRequest entrada para registro.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

// LoginRequest entrada para login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse salida de un usuario (sin password).
type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// LoginResponse salida con token JWT.
type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// CredencialSOLRequest alta o actualización de la credencial SOL del usuario.
type CredencialSOLRequest struct {
	RUC        string `json:"ruc"`
	UsuarioSOL string `json:"usuarioSol"`
	ClaveSOL   string `json:"claveSol"`
}
