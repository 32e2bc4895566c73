package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"autopartes/internal/apierror"
	"autopartes/internal/dto"
	"autopartes/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAbrirCaja(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sesion, err := f.caja.Abrir(ctx, f.usuario, dto.AbrirCajaRequest{MontoInicial: dec("1000")})
	require.NoError(t, err)
	assert.Equal(t, model.EstadoCajaAbierta, sesion.Estado)

	abierta, err := f.caja.EstaAbierta(ctx)
	require.NoError(t, err)
	assert.True(t, abierta)

	saldo, err := f.caja.SaldoActual(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1000.00", saldo.StringFixed(2))

	estado, err := f.caja.Estado(ctx)
	require.NoError(t, err)
	assert.True(t, estado.Abierta)
	assert.Equal(t, sesion.ID, estado.Sesion.ID)
}

func TestAbrirCajaYaAbierta(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.caja.Abrir(ctx, f.usuario, dto.AbrirCajaRequest{MontoInicial: dec("100")})
	require.NoError(t, err)

	_, err = f.caja.Abrir(ctx, f.usuario, dto.AbrirCajaRequest{MontoInicial: dec("200")})
	assert.ErrorIs(t, err, apierror.ErrSessionAlreadyOpen)
	var ae *apierror.Error
	require.True(t, errors.As(err, &ae))
	assert.Contains(t, ae.Context, "opened_at")

	saldo, err := f.caja.SaldoActual(ctx)
	require.NoError(t, err)
	assert.Equal(t, "100.00", saldo.StringFixed(2), "the second open must not add a movement")
}

func TestAbrirCajaConcurrente(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		yaAbier int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.caja.Abrir(ctx, uuid.New(), dto.AbrirCajaRequest{MontoInicial: dec("50")})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, apierror.ErrSessionAlreadyOpen):
				yaAbier++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, yaAbier)

	historial, err := f.caja.Historial(ctx, 1, 100)
	require.NoError(t, err)
	assert.EqualValues(t, 1, historial.Total)
}

func TestAbrirCajaMontoCero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.caja.Abrir(ctx, f.usuario, dto.AbrirCajaRequest{})
	require.NoError(t, err)

	vista, err := f.caja.VistaDiaria(ctx, "")
	require.NoError(t, err)
	require.Len(t, vista.Movimientos, 1)
	apertura := vista.Movimientos[0]
	assert.Equal(t, model.MovimientoIngreso, apertura.Tipo)
	assert.Equal(t, model.CategoriaApertura, apertura.Categoria)
	assert.True(t, apertura.Monto.IsZero())
	assert.True(t, vista.Ingresos.IsZero())

	saldo, err := f.caja.SaldoActual(ctx)
	require.NoError(t, err)
	assert.True(t, saldo.IsZero())
}

func TestAbrirCajaValidaciones(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.caja.Abrir(ctx, f.usuario, dto.AbrirCajaRequest{MontoInicial: dec("-1")})
	assert.Equal(t, apierror.KindValidation, kindOf(err))

	_, err = f.caja.Abrir(ctx, uuid.Nil, dto.AbrirCajaRequest{MontoInicial: dec("1")})
	assert.ErrorIs(t, err, apierror.ErrUnauthorized)

	abierta, err := f.caja.EstaAbierta(ctx)
	require.NoError(t, err)
	assert.False(t, abierta)
}

func TestCerrarCajaSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sesion, err := f.caja.Abrir(ctx, f.usuario, dto.AbrirCajaRequest{MontoInicial: dec("1000")})
	require.NoError(t, err)

	_, err = f.caja.RegistrarMovimiento(ctx, f.usuario, dto.MovimientoCajaRequest{
		Tipo: model.MovimientoIngreso, Monto: dec("200"), Descripcion: "Cobro varios",
	})
	require.NoError(t, err)
	egreso, err := f.caja.RegistrarMovimiento(ctx, f.usuario, dto.MovimientoCajaRequest{
		Tipo: model.MovimientoEgreso, Monto: dec("50.005"), Descripcion: "Flete",
	})
	require.NoError(t, err)
	assert.Equal(t, "50.01", egreso.Monto.StringFixed(2))
	assert.Equal(t, model.CategoriaGeneral, egreso.Categoria)

	cerrada, err := f.caja.Cerrar(ctx, f.usuario, dto.CerrarCajaRequest{
		MontoDeclarado: dec("1100"), Observaciones: strPtr("faltante"),
	})
	require.NoError(t, err)
	assert.Equal(t, model.EstadoCajaCerrada, cerrada.Estado)
	assert.Equal(t, "1200.00", cerrada.TotalIngresos.StringFixed(2))
	assert.Equal(t, "50.01", cerrada.TotalEgresos.StringFixed(2))
	assert.Equal(t, "faltante", *cerrada.Observaciones)
	require.NotNil(t, cerrada.ClosedAt)

	abierta, err := f.caja.EstaAbierta(ctx)
	require.NoError(t, err)
	assert.False(t, abierta)

	reporte, err := f.caja.ObtenerReporte(ctx, uuid.MustParse(sesion.ID))
	require.NoError(t, err)
	assert.Equal(t, "1149.99", reporte.SaldoEsperado.StringFixed(2))
	assert.Equal(t, "-49.99", reporte.Diferencia.StringFixed(2))
}

func TestCerrarSinCajaAbierta(t *testing.T) {
	f := newFixture(t)
	_, err := f.caja.Cerrar(context.Background(), f.usuario, dto.CerrarCajaRequest{MontoDeclarado: dec("0")})
	assert.ErrorIs(t, err, apierror.ErrNoOpenSession)
}

func TestRegistrarMovimientoCajaCerrada(t *testing.T) {
	f := newFixture(t)
	_, err := f.caja.RegistrarMovimiento(context.Background(), f.usuario, dto.MovimientoCajaRequest{
		Tipo: model.MovimientoIngreso, Monto: dec("10"), Descripcion: "Ajuste",
	})
	assert.ErrorIs(t, err, apierror.ErrCashBoxClosed)
}

func TestRegistrarMovimientoInvalido(t *testing.T) {
	f := newFixture(t)
	_, err := f.caja.RegistrarMovimiento(context.Background(), f.usuario, dto.MovimientoCajaRequest{
		Tipo: "retiro", Monto: dec("0.001"), Descripcion: "  ",
	})
	var ae *apierror.Error
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, apierror.KindValidation, ae.Kind)
	assert.Equal(t, "oneof", ae.Context["tipo"])
	assert.Equal(t, "gt", ae.Context["monto"])
	assert.Equal(t, "required", ae.Context["descripcion"])
}

func TestActualizarYEliminarMovimiento(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.caja.Abrir(ctx, f.usuario, dto.AbrirCajaRequest{MontoInicial: dec("100")})
	require.NoError(t, err)
	mov, err := f.caja.RegistrarMovimiento(ctx, f.usuario, dto.MovimientoCajaRequest{
		Tipo: model.MovimientoEgreso, Monto: dec("30"), Descripcion: "Limpieza",
	})
	require.NoError(t, err)

	id := uuid.MustParse(mov.ID)
	_, err = f.caja.ActualizarMovimiento(ctx, id, dto.MovimientoCajaRequest{
		Tipo: model.MovimientoEgreso, Monto: dec("20"), Descripcion: "Limpieza", Categoria: "Gastos",
	})
	require.NoError(t, err)
	saldo, err := f.caja.SaldoActual(ctx)
	require.NoError(t, err)
	assert.Equal(t, "80.00", saldo.StringFixed(2))

	require.NoError(t, f.caja.EliminarMovimiento(ctx, id))
	saldo, err = f.caja.SaldoActual(ctx)
	require.NoError(t, err)
	assert.Equal(t, "100.00", saldo.StringFixed(2))

	assert.ErrorIs(t, f.caja.EliminarMovimiento(ctx, id), apierror.ErrMovementNotFound)
}

func TestVistaDiaria(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dia1 := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	dia2 := dia1.AddDate(0, 0, 1)

	f.setNow(dia1)
	_, err := f.caja.Abrir(ctx, f.usuario, dto.AbrirCajaRequest{MontoInicial: dec("500")})
	require.NoError(t, err)
	_, err = f.caja.Cerrar(ctx, f.usuario, dto.CerrarCajaRequest{MontoDeclarado: dec("500")})
	require.NoError(t, err)

	f.setNow(dia2)
	segunda, err := f.caja.Abrir(ctx, f.usuario, dto.AbrirCajaRequest{MontoInicial: dec("100")})
	require.NoError(t, err)
	_, err = f.caja.RegistrarMovimiento(ctx, f.usuario, dto.MovimientoCajaRequest{
		Tipo: model.MovimientoEgreso, Monto: dec("40"), Descripcion: "Almuerzo",
	})
	require.NoError(t, err)

	hoy, err := f.caja.VistaDiaria(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-11", hoy.Fecha)
	assert.Len(t, hoy.Movimientos, 2)
	assert.Equal(t, "100.00", hoy.Ingresos.StringFixed(2))
	assert.Equal(t, "40.00", hoy.Egresos.StringFixed(2))
	require.NotNil(t, hoy.UltimaSesion)
	assert.Equal(t, segunda.ID, hoy.UltimaSesion.ID)

	// A past day still shows the open session's movements.
	ayer, err := f.caja.VistaDiaria(ctx, "2024-03-10")
	require.NoError(t, err)
	assert.Len(t, ayer.Movimientos, 3)
	assert.Equal(t, "600.00", ayer.Ingresos.StringFixed(2))

	_, err = f.caja.VistaDiaria(ctx, "10/03/2024")
	assert.Equal(t, apierror.KindValidation, kindOf(err))
}

func TestVistaDiariaSinCajaAbierta(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setNow(time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC))

	vista, err := f.caja.VistaDiaria(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, vista.Movimientos)
	assert.Nil(t, vista.UltimaSesion)

	cerrada, err := f.caja.Abrir(ctx, f.usuario, dto.AbrirCajaRequest{MontoInicial: dec("10")})
	require.NoError(t, err)
	_, err = f.caja.Cerrar(ctx, f.usuario, dto.CerrarCajaRequest{MontoDeclarado: dec("10")})
	require.NoError(t, err)

	vista, err = f.caja.VistaDiaria(ctx, "")
	require.NoError(t, err)
	require.NotNil(t, vista.UltimaSesion)
	assert.Equal(t, cerrada.ID, vista.UltimaSesion.ID)
	assert.Equal(t, model.EstadoCajaCerrada, vista.UltimaSesion.Estado)
}

func kindOf(err error) apierror.Kind {
	var ae *apierror.Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}
