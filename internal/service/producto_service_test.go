package service

import (
	"context"
	"testing"

	"autopartes/internal/apierror"
	"autopartes/internal/dto"
	"autopartes/internal/model"
	"autopartes/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrearProducto(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.productos.Crear(ctx, f.usuario, dto.CrearProductoRequest{
		SKU: "FA-100", Nombre: "Filtro de aceite", PrecioCompra: dec("60"), PrecioLista: dec("99.99"),
		StockInicial: 12, StockMinimo: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, "21.00", p.AlicuotaIVA.StringFixed(2))
	// 99.99 * 21% = 20.9979 -> 21.00
	assert.Equal(t, "120.99", p.PrecioFinal.StringFixed(2))
	assert.Equal(t, "General", p.Categoria)
	assert.False(t, p.BajoStock)

	id := uuid.MustParse(p.ID)
	movs, _, err := f.store.Repos().Stock.List(ctx, repository.MovimientoStockFilter{ProductoID: &id})
	require.NoError(t, err)
	require.Len(t, movs, 1)
	assert.Equal(t, model.StockEntrada, movs[0].Tipo)
	assert.Equal(t, 12, movs[0].StockNuevo)

	_, err = f.productos.Crear(ctx, f.usuario, dto.CrearProductoRequest{
		SKU: "FA-100", Nombre: "Otro filtro", PrecioLista: dec("10"),
	})
	assert.ErrorIs(t, err, apierror.ErrDuplicate)
}

func TestCrearProductoValidaciones(t *testing.T) {
	f := newFixture(t)
	alicuota := dec("150")
	_, err := f.productos.Crear(context.Background(), f.usuario, dto.CrearProductoRequest{
		SKU: " ", Nombre: "A", PrecioCompra: dec("-1"), PrecioLista: dec("0"), AlicuotaIVA: &alicuota,
	})
	var ae *apierror.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apierror.KindValidation, ae.Kind)
	for _, campo := range []string{"sku", "nombre", "precio_compra", "precio_lista", "alicuota_iva"} {
		assert.Contains(t, ae.Context, campo)
	}
}

func TestActualizarYListarProductos(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.producto(t, "Bomba de agua", "500", "21", 10, 2)
	f.producto(t, "Bomba de nafta", "700", "21", 1, 2)

	nuevoPrecio := dec("550.505")
	upd, err := f.productos.Actualizar(ctx, a.ID, dto.ActualizarProductoRequest{PrecioLista: &nuevoPrecio})
	require.NoError(t, err)
	assert.Equal(t, "550.51", upd.PrecioLista.StringFixed(2))
	assert.Equal(t, 10, upd.StockActual, "stock is not part of a catalogue update")

	list, err := f.productos.Listar(ctx, dto.ProductoFilter{Q: "bomba"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, list.Total)

	bajo, err := f.productos.Listar(ctx, dto.ProductoFilter{BajoStock: true})
	require.NoError(t, err)
	require.Len(t, bajo.Data, 1)
	assert.Equal(t, "Bomba de nafta", bajo.Data[0].Nombre)

	_, err = f.productos.ObtenerPorID(ctx, uuid.New())
	assert.ErrorIs(t, err, apierror.ErrProductNotFound)
}

func TestAjustarStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := NewInventarioService(f.store, nil)
	p := f.producto(t, "Termostato", "80", "21", 5, 2)

	mov, err := inv.AjustarStock(ctx, f.usuario, p.ID, dto.AjusteStockRequest{Delta: -4, Motivo: "Rotura en depósito"})
	require.NoError(t, err)
	assert.Equal(t, model.StockSalida, mov.Tipo)
	assert.Equal(t, 5, mov.StockAnterior)
	assert.Equal(t, 1, mov.StockNuevo)
	assert.Equal(t, "Termostato", mov.Producto)
	assert.Equal(t, 1, f.stock(t, p.ID))

	_, err = inv.AjustarStock(ctx, f.usuario, p.ID, dto.AjusteStockRequest{Delta: -2, Motivo: "Conteo físico"})
	assert.ErrorIs(t, err, apierror.ErrInsufficientStock)
	assert.Equal(t, 1, f.stock(t, p.ID))

	_, err = inv.AjustarStock(ctx, f.usuario, p.ID, dto.AjusteStockRequest{Delta: 0, Motivo: "Nada"})
	assert.Equal(t, apierror.KindValidation, kindOf(err))

	_, err = inv.AjustarStock(ctx, f.usuario, uuid.New(), dto.AjusteStockRequest{Delta: 1, Motivo: "Compra"})
	assert.ErrorIs(t, err, apierror.ErrProductNotFound)

	alertas, err := inv.ObtenerAlertas(ctx)
	require.NoError(t, err)
	require.Len(t, alertas, 1)
	assert.Equal(t, p.ID.String(), alertas[0].ProductoID)

	_, err = inv.AjustarStock(ctx, f.usuario, p.ID, dto.AjusteStockRequest{Delta: 10, Motivo: "Compra a proveedor"})
	require.NoError(t, err)
	alertas, err = inv.ObtenerAlertas(ctx)
	require.NoError(t, err)
	assert.Empty(t, alertas)

	movs, err := inv.ListarMovimientos(ctx, dto.MovimientoStockFilter{ProductoID: p.ID.String(), Tipo: model.StockEntrada})
	require.NoError(t, err)
	require.Len(t, movs.Data, 1)
	assert.Equal(t, 10, movs.Data[0].Cantidad)

	recientes, err := inv.AlertasRecientes(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, recientes)
}
