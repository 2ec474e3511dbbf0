// seed crea un usuario administrador inicial con su credencial Clave SOL de
// pruebas (MODDATOS), para poder probar la API y el scraping sin pasar por
// el registro.
//
// Uso: go run ./cmd/seed
// Lee la misma configuración que la API (env vars / .env). El email y el
// password del admin se controlan con SEED_ADMIN_EMAIL y SEED_ADMIN_PASSWORD.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/tu-usuario/facturacion-pro/internal/domain/entity"
	"github.com/tu-usuario/facturacion-pro/internal/infrastructure/postgres"
	"github.com/tu-usuario/facturacion-pro/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cargar configuración: %v\n", err)
		os.Exit(1)
	}

	email := envOr("SEED_ADMIN_EMAIL", "admin@facturacion.local")
	password := envOr("SEED_ADMIN_PASSWORD", "cambiar-en-produccion")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Conexión a PostgreSQL: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	userRepo := postgres.NewUserRepository(pool)
	credRepo := postgres.NewSOLCredentialRepository(pool)

	existing, err := userRepo.GetByEmail(email)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Buscar usuario: %v\n", err)
		os.Exit(1)
	}

	var userID string
	if existing != nil {
		userID = existing.ID
		fmt.Printf("El usuario %s ya existe, solo se actualiza la credencial SOL\n", email)
	} else {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Hashear password: %v\n", err)
			os.Exit(1)
		}
		user := &entity.User{
			ID:           uuid.NewString(),
			Email:        email,
			PasswordHash: string(hash),
			Name:         "Administrador",
			Role:         entity.RoleAdmin,
		}
		if err := userRepo.Create(user); err != nil {
			fmt.Fprintf(os.Stderr, "Crear usuario: %v\n", err)
			os.Exit(1)
		}
		userID = user.ID
		fmt.Printf("Usuario admin creado: %s\n", email)
	}

	// Credencial de pruebas del portal SOL (usuario demo de SUNAT).
	cred := &entity.SOLCredential{
		ID:         uuid.NewString(),
		UserID:     userID,
		RUC:        envOr("SEED_SOL_RUC", "20000000001"),
		UsuarioSOL: envOr("SEED_SOL_USUARIO", "MODDATOS"),
		ClaveSOL:   envOr("SEED_SOL_CLAVE", "moddatos"),
		Estado:     "ACTIVO",
	}
	if err := credRepo.Upsert(cred); err != nil {
		fmt.Fprintf(os.Stderr, "Guardar credencial SOL: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Credencial SOL registrada para RUC %s (%s)\n", cred.RUC, cred.UsuarioSOL)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
