package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tu-usuario/facturacion-pro/internal/application/auth"
	"github.com/tu-usuario/facturacion-pro/internal/application/dto"
	"github.com/tu-usuario/facturacion-pro/internal/domain"
	"github.com/tu-usuario/facturacion-pro/internal/domain/entity"
	"github.com/tu-usuario/facturacion-pro/pkg/config"
	"github.com/tu-usuario/facturacion-pro/pkg/jwt"
)

// ── Fakes en memoria ──────────────────────────────────────────────────────────

type memUserRepo struct {
	porEmail map[string]*entity.User
	porID    map[string]*entity.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{
		porEmail: make(map[string]*entity.User),
		porID:    make(map[string]*entity.User),
	}
}

func (r *memUserRepo) Create(u *entity.User) error {
	r.porEmail[u.Email] = u
	r.porID[u.ID] = u
	return nil
}

func (r *memUserRepo) GetByEmail(email string) (*entity.User, error) { return r.porEmail[email], nil }
func (r *memUserRepo) GetByID(id string) (*entity.User, error)       { return r.porID[id], nil }

type memCredRepo struct {
	porUser map[string]*entity.SOLCredential
}

func newMemCredRepo() *memCredRepo {
	return &memCredRepo{porUser: make(map[string]*entity.SOLCredential)}
}

func (r *memCredRepo) Upsert(c *entity.SOLCredential) error {
	r.porUser[c.UserID] = c
	return nil
}

func (r *memCredRepo) GetByUserID(userID string) (*entity.SOLCredential, error) {
	return r.porUser[userID], nil
}

var jwtDePrueba = config.JWTConfig{Secret: "secreto-de-test", Expiration: 60, Issuer: "facturacion-pro"}

func newAuthUC(users *memUserRepo, creds *memCredRepo) *auth.AuthUseCase {
	return auth.NewAuthUseCase(users, creds, jwtDePrueba)
}

// ── RegisterUser ──────────────────────────────────────────────────────────────

func TestRegisterUser_CreaConRolPorDefecto(t *testing.T) {
	users := newMemUserRepo()
	uc := newAuthUC(users, newMemCredRepo())

	resp, err := uc.RegisterUser(dto.RegisterRequest{Email: "ana@example.com", Password: "s3creto"})

	require.NoError(t, err)
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "ana@example.com", resp.Email)
	assert.Equal(t, "ana@example.com", resp.Name, "sin nombre explícito se usa el email")
	assert.Equal(t, entity.RoleContador, resp.Role, "el rol por defecto es contador")

	guardado := users.porEmail["ana@example.com"]
	require.NotNil(t, guardado)
	assert.NotEqual(t, "s3creto", guardado.PasswordHash, "el password nunca se guarda en claro")
}

func TestRegisterUser_EmailDuplicado(t *testing.T) {
	uc := newAuthUC(newMemUserRepo(), newMemCredRepo())

	_, err := uc.RegisterUser(dto.RegisterRequest{Email: "ana@example.com", Password: "s3creto"})
	require.NoError(t, err)

	_, err = uc.RegisterUser(dto.RegisterRequest{Email: "ana@example.com", Password: "otro"})
	assert.ErrorIs(t, err, domain.ErrEmailAlreadyExists)
}

func TestRegisterUser_ValidaEntrada(t *testing.T) {
	uc := newAuthUC(newMemUserRepo(), newMemCredRepo())

	_, err := uc.RegisterUser(dto.RegisterRequest{Email: "", Password: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = uc.RegisterUser(dto.RegisterRequest{Email: "a@b.com", Password: ""})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// ── Login ─────────────────────────────────────────────────────────────────────

func TestLogin_DevuelveTokenValido(t *testing.T) {
	uc := newAuthUC(newMemUserRepo(), newMemCredRepo())
	_, err := uc.RegisterUser(dto.RegisterRequest{Email: "ana@example.com", Password: "s3creto", Role: entity.RoleAdmin})
	require.NoError(t, err)

	resp, err := uc.Login(dto.LoginRequest{Email: "ana@example.com", Password: "s3creto"})

	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)

	userID, role, err := jwt.Parse(jwtDePrueba.Secret, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, userID)
	assert.Equal(t, entity.RoleAdmin, role)
}

func TestLogin_PasswordIncorrecto(t *testing.T) {
	uc := newAuthUC(newMemUserRepo(), newMemCredRepo())
	_, err := uc.RegisterUser(dto.RegisterRequest{Email: "ana@example.com", Password: "s3creto"})
	require.NoError(t, err)

	_, err = uc.Login(dto.LoginRequest{Email: "ana@example.com", Password: "malo"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestLogin_UsuarioInexistente(t *testing.T) {
	uc := newAuthUC(newMemUserRepo(), newMemCredRepo())

	_, err := uc.Login(dto.LoginRequest{Email: "nadie@example.com", Password: "x"})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

// ── Credencial SOL ────────────────────────────────────────────────────────────

func TestGuardarCredencialSOL_AltaYReemplazo(t *testing.T) {
	users := newMemUserRepo()
	creds := newMemCredRepo()
	uc := newAuthUC(users, creds)

	resp, err := uc.RegisterUser(dto.RegisterRequest{Email: "ana@example.com", Password: "s3creto"})
	require.NoError(t, err)

	err = uc.GuardarCredencialSOL(resp.ID, dto.CredencialSOLRequest{
		RUC: "20123456789", UsuarioSOL: "MODDATOS", ClaveSOL: "moddatos",
	})
	require.NoError(t, err)

	err = uc.GuardarCredencialSOL(resp.ID, dto.CredencialSOLRequest{
		RUC: "20123456789", UsuarioSOL: "MODDATOS", ClaveSOL: "clave-nueva",
	})
	require.NoError(t, err)

	cred, err := creds.GetByUserID(resp.ID)
	require.NoError(t, err)
	assert.Equal(t, "clave-nueva", cred.ClaveSOL, "el upsert reemplaza la credencial anterior")
	assert.Equal(t, "ACTIVO", cred.Estado)
}

func TestGuardarCredencialSOL_ValidaEntradaYUsuario(t *testing.T) {
	uc := newAuthUC(newMemUserRepo(), newMemCredRepo())

	err := uc.GuardarCredencialSOL("u1", dto.CredencialSOLRequest{RUC: "", UsuarioSOL: "X", ClaveSOL: "Y"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	err = uc.GuardarCredencialSOL("no-existe", dto.CredencialSOLRequest{
		RUC: "20123456789", UsuarioSOL: "X", ClaveSOL: "Y",
	})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}
