package auth

import (
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/tu-usuario/facturacion-pro/internal/application/dto"
	"github.com/tu-usuario/facturacion-pro/internal/domain"
	"github.com/tu-usuario/facturacion-pro/internal/domain/entity"
	"github.com/tu-usuario/facturacion-pro/internal/domain/repository"
	"github.com/tu-usuario/facturacion-pro/pkg/config"
	"github.com/tu-usuario/facturacion-pro/pkg/jwt"
)

// AuthUseCase maneja registro, login y la credencial Clave SOL del usuario.
type AuthUseCase struct {
	userRepo repository.UserRepository
	credRepo repository.SOLCredentialRepository
	jwtCfg   config.JWTConfig
}

// NewAuthUseCase construye el caso de uso de autenticación.
func NewAuthUseCase(
	userRepo repository.UserRepository,
	credRepo repository.SOLCredentialRepository,
	jwtCfg config.JWTConfig,
) *AuthUseCase {
	return &AuthUseCase{userRepo: userRepo, credRepo: credRepo, jwtCfg: jwtCfg}
}

// RegisterUser registra un usuario nuevo con password hasheado con bcrypt.
// Si el email ya existe devuelve domain.ErrEmailAlreadyExists.
func (uc *AuthUseCase) RegisterUser(req dto.RegisterRequest) (*dto.UserResponse, error) {
	if req.Email == "" || req.Password == "" {
		return nil, domain.ErrInvalidInput
	}

	existing, err := uc.userRepo.GetByEmail(req.Email)
	if err != nil {
		return nil, fmt.Errorf("verificar email: %w", err)
	}
	if existing != nil {
		return nil, domain.ErrEmailAlreadyExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashear password: %w", err)
	}

	name := req.Name
	if name == "" {
		name = req.Email
	}
	role := req.Role
	if role != entity.RoleAdmin {
		role = entity.RoleContador
	}

	user := &entity.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		PasswordHash: string(hash),
		Name:         name,
		Role:         role,
	}
	if err := uc.userRepo.Create(user); err != nil {
		return nil, fmt.Errorf("crear usuario: %w", err)
	}

	resp := toUserResponse(user)
	return &resp, nil
}

// Login valida credenciales y devuelve un token JWT.
func (uc *AuthUseCase) Login(req dto.LoginRequest) (*dto.LoginResponse, error) {
	user, err := uc.userRepo.GetByEmail(req.Email)
	if err != nil {
		return nil, fmt.Errorf("buscar usuario: %w", err)
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, domain.ErrUnauthorized
	}

	token, err := jwt.Generate(uc.jwtCfg.Secret, user.ID, user.Role, uc.jwtCfg.Issuer, uc.jwtCfg.Expiration)
	if err != nil {
		return nil, fmt.Errorf("generar token: %w", err)
	}

	return &dto.LoginResponse{Token: token, User: toUserResponse(user)}, nil
}

// GuardarCredencialSOL registra o reemplaza la credencial Clave SOL del
// usuario. La clave se guarda tal cual: el worker de scraping la necesita en
// claro para autenticarse contra el portal.
func (uc *AuthUseCase) GuardarCredencialSOL(userID string, req dto.CredencialSOLRequest) error {
	if req.RUC == "" || req.UsuarioSOL == "" || req.ClaveSOL == "" {
		return domain.ErrInvalidInput
	}

	user, err := uc.userRepo.GetByID(userID)
	if err != nil {
		return fmt.Errorf("buscar usuario: %w", err)
	}
	if user == nil {
		return domain.ErrUserNotFound
	}

	cred := &entity.SOLCredential{
		ID:         uuid.NewString(),
		UserID:     userID,
		RUC:        req.RUC,
		UsuarioSOL: req.UsuarioSOL,
		ClaveSOL:   req.ClaveSOL,
		Estado:     "ACTIVO",
	}
	if err := uc.credRepo.Upsert(cred); err != nil {
		return fmt.Errorf("guardar credencial: %w", err)
	}
	return nil
}

func toUserResponse(u *entity.User) dto.UserResponse {
	return dto.UserResponse{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.Name,
		Role:  u.Role,
	}
}
