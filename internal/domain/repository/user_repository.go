package repository

import "github.com/tu-usuario/facturacion-pro/internal/domain/entity"

// UserRepository define el puerto de persistencia para usuarios.
type UserRepository interface {
	Create(user *entity.User) error
	GetByEmail(email string) (*entity.User, error)
	GetByID(id string) (*entity.User, error)
}

// SOLCredentialRepository define el puerto para credenciales Clave SOL.
type SOLCredentialRepository interface {
	Upsert(cred *entity.SOLCredential) error
	GetByUserID(userID string) (*entity.SOLCredential, error)
}
