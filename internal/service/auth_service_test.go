package service

import (
	"context"
	"testing"

	"autopartes/internal/apierror"
	"autopartes/internal/config"
	"autopartes/internal/dto"
	"autopartes/internal/model"
	"autopartes/internal/repository/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newAuth(t *testing.T) *authService {
	t.Helper()
	cfg := &config.Config{JWTSecret: "test-secret", JWTExpirationHours: 1, JWTRefreshHours: 2}
	svc := NewAuthService(memory.New().Repos().Usuarios, cfg).(*authService)
	svc.cost = bcrypt.MinCost
	return svc
}

func TestLoginYRefresh(t *testing.T) {
	svc := newAuth(t)
	ctx := context.Background()
	email := "caja@autopartes.test"
	u, err := svc.CrearUsuario(ctx, dto.CrearUsuarioRequest{
		Username: "cajero1", Nombre: "Cajero Uno", Email: &email, Password: "secreto123", Rol: model.RolCajero,
	})
	require.NoError(t, err)
	assert.True(t, u.Activo)

	resp, err := svc.Login(ctx, dto.LoginRequest{Username: "cajero1", Password: "secreto123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, 3600, resp.ExpiresIn)
	assert.Equal(t, model.RolCajero, resp.User.Rol)

	// Email works as login too.
	_, err = svc.Login(ctx, dto.LoginRequest{Username: "CAJA@autopartes.test", Password: "secreto123"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, dto.LoginRequest{Username: "cajero1", Password: "incorrecta"})
	assert.ErrorIs(t, err, apierror.ErrUnauthorized)
	_, err = svc.Login(ctx, dto.LoginRequest{Username: "nadie", Password: "secreto123"})
	assert.ErrorIs(t, err, apierror.ErrUnauthorized)

	refreshed, err := svc.Refresh(ctx, resp.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, refreshed.User.ID)

	_, err = svc.Refresh(ctx, "no-es-un-token")
	assert.ErrorIs(t, err, apierror.ErrUnauthorized)
}

func TestCrearUsuarioDuplicadoYDesactivar(t *testing.T) {
	svc := newAuth(t)
	ctx := context.Background()
	req := dto.CrearUsuarioRequest{Username: "admin", Nombre: "Admin", Password: "secreto123", Rol: model.RolAdministrador}
	u, err := svc.CrearUsuario(ctx, req)
	require.NoError(t, err)

	_, err = svc.CrearUsuario(ctx, req)
	assert.ErrorIs(t, err, apierror.ErrDuplicate)

	req.Username, req.Rol = "otro", "gerente"
	_, err = svc.CrearUsuario(ctx, req)
	assert.Equal(t, apierror.KindValidation, kindOf(err))

	require.NoError(t, svc.DesactivarUsuario(ctx, uuid.MustParse(u.ID)))
	_, err = svc.Login(ctx, dto.LoginRequest{Username: "admin", Password: "secreto123"})
	assert.ErrorIs(t, err, apierror.ErrUnauthorized)

	assert.ErrorIs(t, svc.DesactivarUsuario(ctx, uuid.New()), apierror.ErrUserNotFound)

	users, err := svc.ListarUsuarios(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.False(t, users[0].Activo)
}
