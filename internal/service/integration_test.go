//go:build integration

package service_test

// Concurrency checks against a real PostgreSQL (testcontainers).
// Run with: go test -tags integration ./internal/service/... -v

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"autopartes/internal/apierror"
	"autopartes/internal/dto"
	"autopartes/internal/infra"
	"autopartes/internal/model"
	"autopartes/internal/repository"
	"autopartes/internal/service"
	"autopartes/internal/worker"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

type pgEnv struct {
	store     repository.Store
	caja      service.CajaService
	ventas    service.VentaService
	productos service.ProductoService
	clientes  service.ClienteService
	reportes  service.ReporteService
	usuario   uuid.UUID
}

func setupPostgres(t *testing.T) *pgEnv {
	t.Helper()
	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcPostgres.WithDatabase("autopartes_test"),
		tcPostgres.WithUsername("autopartes"),
		tcPostgres.WithPassword("autopartes"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	dsn, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := infra.NewDatabase(dsn)
	require.NoError(t, err)
	require.NoError(t, infra.RunMigrations(db))
	// Idempotent: a second run must be a no-op.
	require.NoError(t, infra.RunMigrations(db))

	store := repository.NewStore(db)
	caja := service.NewCajaService(store, 1, time.UTC)
	return &pgEnv{
		store:     store,
		caja:      caja,
		ventas:    service.NewVentaService(store, caja, worker.NewDispatcher(nil), 1, time.UTC),
		productos: service.NewProductoService(store),
		clientes:  service.NewClienteService(store, caja),
		reportes:  service.NewReporteService(store, time.UTC),
		usuario:   uuid.New(),
	}
}

func (e *pgEnv) producto(t *testing.T, sku string, stock int) string {
	t.Helper()
	p, err := e.productos.Crear(context.Background(), e.usuario, dto.CrearProductoRequest{
		SKU: sku, Nombre: "Bujía " + sku,
		PrecioCompra: decimal.NewFromInt(5), PrecioLista: decimal.RequireFromString("10.50"),
		StockInicial: stock, StockMinimo: 0,
	})
	require.NoError(t, err)
	return p.ID
}

func (e *pgEnv) abrir(t *testing.T) {
	t.Helper()
	_, err := e.caja.Abrir(context.Background(), e.usuario, dto.AbrirCajaRequest{MontoInicial: decimal.NewFromInt(100)})
	require.NoError(t, err)
}

func (e *pgEnv) vender(productoID string, cantidad int) (*dto.VentaResponse, error) {
	return e.ventas.RegistrarVenta(context.Background(), e.usuario, dto.RegistrarVentaRequest{
		Items:      []dto.ItemVentaRequest{{ProductoID: productoID, Cantidad: cantidad}},
		MetodoPago: "efectivo",
	})
}

func TestPostgresNumeracionConcurrente(t *testing.T) {
	env := setupPostgres(t)
	env.abrir(t)
	prodID := env.producto(t, "NGK-01", 30)

	const n = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numeros []string
		errs    []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := env.vender(prodID, 1)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			numeros = append(numeros, v.NumeroFactura)
		}()
	}
	wg.Wait()

	require.Empty(t, errs)
	sort.Strings(numeros)
	for i, num := range numeros {
		assert.Equal(t, fmt.Sprintf("B-0001-%08d", i+1), num)
	}

	p, err := env.productos.ObtenerPorID(context.Background(), uuid.MustParse(prodID))
	require.NoError(t, err)
	assert.Equal(t, 30-n, p.StockActual)
}

func TestPostgresSinSobreventa(t *testing.T) {
	env := setupPostgres(t)
	env.abrir(t)
	prodID := env.producto(t, "NGK-02", 5)

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		ok, sinStk int
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.vender(prodID, 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, apierror.ErrInsufficientStock):
				sinStk++
			default:
				t.Errorf("error inesperado: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, ok)
	assert.Equal(t, 7, sinStk)
	p, err := env.productos.ObtenerPorID(context.Background(), uuid.MustParse(prodID))
	require.NoError(t, err)
	assert.Equal(t, 0, p.StockActual)
}

func TestPostgresAperturaConcurrente(t *testing.T) {
	env := setupPostgres(t)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		abiertas int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.caja.Abrir(context.Background(), env.usuario, dto.AbrirCajaRequest{MontoInicial: decimal.NewFromInt(10)})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				abiertas++
				return
			}
			assert.True(t, errors.Is(err, apierror.ErrSessionAlreadyOpen) || errors.Is(err, apierror.ErrConflict), err.Error())
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, abiertas)
}

func TestPostgresVentaFallidaNoDejaRastros(t *testing.T) {
	env := setupPostgres(t)
	env.abrir(t)
	prodA := env.producto(t, "NGK-03", 10)
	prodB := env.producto(t, "NGK-04", 1)

	_, err := env.ventas.RegistrarVenta(context.Background(), env.usuario, dto.RegistrarVentaRequest{
		Items: []dto.ItemVentaRequest{
			{ProductoID: prodA, Cantidad: 2},
			{ProductoID: prodB, Cantidad: 5},
		},
		MetodoPago: "efectivo",
	})
	require.ErrorIs(t, err, apierror.ErrInsufficientStock)

	p, err := env.productos.ObtenerPorID(context.Background(), uuid.MustParse(prodA))
	require.NoError(t, err)
	assert.Equal(t, 10, p.StockActual)

	saldo, err := env.caja.SaldoActual(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "100.00", saldo.StringFixed(2))

	// The failed sale must not have consumed an invoice number.
	v, err := env.vender(prodA, 1)
	require.NoError(t, err)
	assert.Equal(t, "B-0001-00000001", v.NumeroFactura)
}

func TestPostgresAperturaSinFondo(t *testing.T) {
	env := setupPostgres(t)
	_, err := env.caja.Abrir(context.Background(), env.usuario, dto.AbrirCajaRequest{MontoInicial: decimal.Zero})
	require.NoError(t, err)

	vista, err := env.caja.VistaDiaria(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, vista.Movimientos, 1)
	assert.True(t, vista.Movimientos[0].Monto.IsZero())

	// Only the Apertura movement may be zero.
	sesionID := uuid.MustParse(vista.UltimaSesion.ID)
	err = env.store.Repos().Cajas.CreateMovimiento(context.Background(), &model.MovimientoCaja{
		SesionCajaID: &sesionID, Tipo: model.MovimientoEgreso, Monto: decimal.Zero,
		Descripcion: "vacío", Categoria: model.CategoriaGeneral,
	})
	assert.Error(t, err)
}

func TestPostgresBusquedaEscapaComodines(t *testing.T) {
	env := setupPostgres(t)
	env.producto(t, "AC_10", 1)
	env.producto(t, "ACX10", 1)

	res, err := env.productos.Listar(context.Background(), dto.ProductoFilter{Q: "AC_1", Page: 1, Limit: 20})
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "AC_10", res.Data[0].SKU)

	res, err = env.productos.Listar(context.Background(), dto.ProductoFilter{Q: "%", Page: 1, Limit: 20})
	require.NoError(t, err)
	assert.Empty(t, res.Data)
}

func TestPostgresEliminarClienteConVenta(t *testing.T) {
	env := setupPostgres(t)
	ctx := context.Background()
	env.abrir(t)
	prod := env.producto(t, "LAM-01", 5)

	cli, err := env.clientes.Crear(ctx, dto.ClienteRequest{Nombre: "Taller Central"})
	require.NoError(t, err)
	_, err = env.ventas.RegistrarVenta(ctx, env.usuario, dto.RegistrarVentaRequest{
		ClienteID:  &cli.ID,
		Items:      []dto.ItemVentaRequest{{ProductoID: prod, Cantidad: 1}},
		MetodoPago: "efectivo",
	})
	require.NoError(t, err)
	assert.ErrorIs(t, env.clientes.Eliminar(ctx, uuid.MustParse(cli.ID)), apierror.ErrClientHasHistory)

	// The foreign key alone also blocks the delete.
	err = env.store.Repos().Clientes.Delete(ctx, uuid.MustParse(cli.ID))
	assert.ErrorIs(t, err, repository.ErrReferenced)

	libre, err := env.clientes.Crear(ctx, dto.ClienteRequest{Nombre: "Sin compras"})
	require.NoError(t, err)
	require.NoError(t, env.clientes.Eliminar(ctx, uuid.MustParse(libre.ID)))
}

func TestPostgresValorizacionYSalud(t *testing.T) {
	env := setupPostgres(t)
	ctx := context.Background()
	env.producto(t, "NGK-10", 4) // 10.50 + 21% IVA

	val, err := env.reportes.ValorizacionStock(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, val.TotalUnidades)
	assert.Equal(t, "50.82", val.ValorTotal.StringFixed(2))

	salud, err := env.reportes.SaludNegocio(ctx)
	require.NoError(t, err)
	assert.Equal(t, service.SaludCritico, salud.Estado)
}
