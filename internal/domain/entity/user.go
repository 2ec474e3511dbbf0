package entity

import "time"

// Roles válidos para User.
const (
	RoleAdmin    = "admin"
	RoleContador = "contador"
)

// User representa un usuario del sistema.
type User struct {
	ID           string
	Email        string
	PasswordHash string // bcrypt hash, nunca plano en dominio después de persistir
	Name         string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SOLCredential credencial Clave SOL de un usuario para el portal SUNAT.
// Viaja en el payload del job de scraping; nunca se devuelve por la API.
type SOLCredential struct {
	ID         string
	UserID     string
	RUC        string
	UsuarioSOL string
	ClaveSOL   string
	Estado     string // ACTIVO, SUSPENDIDO
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
