package service

import (
	"context"
	"testing"
	"time"

	"autopartes/internal/model"
	"autopartes/internal/repository/memory"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// fixture wires every service against one in-memory store.
type fixture struct {
	store     *memory.Store
	caja      *cajaService
	ventas    *ventaService
	clientes  *clienteService
	productos ProductoService
	usuario   uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	caja := NewCajaService(store, 1, time.UTC).(*cajaService)
	return &fixture{
		store:     store,
		caja:      caja,
		ventas:    NewVentaService(store, caja, nil, 1, time.UTC).(*ventaService),
		clientes:  NewClienteService(store, caja).(*clienteService),
		productos: NewProductoService(store),
		usuario:   uuid.New(),
	}
}

// setNow pins the clock of every time-aware service.
func (f *fixture) setNow(t time.Time) {
	now := func() time.Time { return t }
	f.caja.now = now
	f.ventas.now = now
	f.clientes.now = now
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (f *fixture) producto(t *testing.T, nombre, precio, alicuota string, stock, minimo int) *model.Producto {
	t.Helper()
	p := &model.Producto{
		SKU:          "SKU-" + uuid.NewString()[:8],
		Nombre:       nombre,
		Categoria:    "General",
		PrecioCompra: decimal.Zero,
		PrecioLista:  dec(precio),
		AlicuotaIVA:  dec(alicuota),
		StockActual:  stock,
		StockMinimo:  minimo,
		Activo:       true,
	}
	require.NoError(t, f.store.Repos().Productos.Create(context.Background(), p))
	return p
}

func (f *fixture) cliente(t *testing.T, nombre, condicion string, cuentaCorriente bool) *model.Cliente {
	t.Helper()
	c := &model.Cliente{
		Nombre:          nombre,
		CondicionIVA:    condicion,
		CuentaCorriente: cuentaCorriente,
		Saldo:           decimal.Zero,
	}
	require.NoError(t, f.store.Repos().Clientes.Create(context.Background(), c))
	return c
}

func (f *fixture) stock(t *testing.T, id uuid.UUID) int {
	t.Helper()
	p, err := f.store.Repos().Productos.FindByID(context.Background(), id)
	require.NoError(t, err)
	return p.StockActual
}

func (f *fixture) saldo(t *testing.T, id uuid.UUID) decimal.Decimal {
	t.Helper()
	c, err := f.store.Repos().Clientes.FindByID(context.Background(), id)
	require.NoError(t, err)
	return c.Saldo
}

func strPtr(s string) *string { return &s }
