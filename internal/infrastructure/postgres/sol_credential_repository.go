package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tu-usuario/facturacion-pro/internal/domain/entity"
	"github.com/tu-usuario/facturacion-pro/internal/domain/repository"
)

var _ repository.SOLCredentialRepository = (*SOLCredentialRepo)(nil)

// SOLCredentialRepo implementación del puerto SOLCredentialRepository.
// Un usuario tiene a lo sumo una credencial SOL vigente.
type SOLCredentialRepo struct {
	pool *pgxpool.Pool
}

// NewSOLCredentialRepository construye el adaptador de credenciales SOL.
func NewSOLCredentialRepository(pool *pgxpool.Pool) *SOLCredentialRepo {
	return &SOLCredentialRepo{pool: pool}
}

// Upsert crea o reemplaza la credencial del usuario.
func (r *SOLCredentialRepo) Upsert(cred *entity.SOLCredential) error {
	if cred.ID == "" {
		cred.ID = uuid.New().String()
	}
	query := `
		INSERT INTO sol_credentials (id, user_id, ruc, usuario_sol, clave_sol, estado, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			ruc         = EXCLUDED.ruc,
			usuario_sol = EXCLUDED.usuario_sol,
			clave_sol   = EXCLUDED.clave_sol,
			estado      = EXCLUDED.estado,
			updated_at  = EXCLUDED.updated_at`
	_, err := r.pool.Exec(context.Background(), query,
		cred.ID, cred.UserID, cred.RUC, cred.UsuarioSOL, cred.ClaveSOL, cred.Estado,
		cred.CreatedAt, cred.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert sol credential: %w", err)
	}
	return nil
}

// GetByUserID obtiene la credencial del usuario; nil si no tiene.
func (r *SOLCredentialRepo) GetByUserID(userID string) (*entity.SOLCredential, error) {
	query := `
		SELECT id, user_id, ruc, usuario_sol, clave_sol, estado, created_at, updated_at
		FROM sol_credentials WHERE user_id = $1`
	var c entity.SOLCredential
	err := r.pool.QueryRow(context.Background(), query, userID).Scan(
		&c.ID, &c.UserID, &c.RUC, &c.UsuarioSOL, &c.ClaveSOL, &c.Estado,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get sol credential: %w", err)
	}
	return &c, nil
}
