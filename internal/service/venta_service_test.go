package service

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
	"autopartes/internal/model"
	"autopartes/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(p *model.Producto, cantidad int) dto.ItemVentaRequest {
	return dto.ItemVentaRequest{ProductoID: p.ID.String(), Cantidad: cantidad}
}

func (f *fixture) abrir(t *testing.T, monto string) {
	t.Helper()
	_, err := f.caja.Abrir(context.Background(), f.usuario, dto.AbrirCajaRequest{MontoInicial: dec(monto)})
	require.NoError(t, err)
}

func TestRegistrarVentaAritmetica(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.abrir(t, "1000")
	p := f.producto(t, "Filtro de aceite", "100.00", "21", 10, 2)

	v, err := f.ventas.RegistrarVenta(ctx, f.usuario, dto.RegistrarVentaRequest{
		Items: []dto.ItemVentaRequest{item(p, 2)}, MetodoPago: model.MetodoEfectivo,
	})
	require.NoError(t, err)
	assert.Equal(t, "200.00", v.Subtotal.StringFixed(2))
	assert.Equal(t, "42.00", v.MontoIVA.StringFixed(2))
	assert.Equal(t, "242.00", v.Total.StringFixed(2))
	require.Len(t, v.Items, 1)
	assert.Equal(t, "242.00", v.Items[0].Total.StringFixed(2))
	assert.Equal(t, "B-0001-00000001", v.NumeroFactura)
	assert.Equal(t, "242.00", v.RestantePago.StringFixed(2))
	assert.NotNil(t, v.SesionCajaID)

	assert.Equal(t, 8, f.stock(t, p.ID))
	saldo, err := f.caja.SaldoActual(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1242.00", saldo.StringFixed(2))

	movs, _, err := f.store.Repos().Stock.List(ctx, repository.MovimientoStockFilter{ProductoID: &p.ID})
	require.NoError(t, err)
	require.Len(t, movs, 1)
	assert.Equal(t, model.StockSalida, movs[0].Tipo)
	assert.Equal(t, -2, movs[0].Cantidad)
	assert.Equal(t, 10, movs[0].StockAnterior)
	assert.Equal(t, 8, movs[0].StockNuevo)
	assert.Equal(t, "Venta B-0001-00000001", movs[0].Motivo)
}

func TestRegistrarVentaRedondeoPorLinea(t *testing.T) {
	f := newFixture(t)
	f.abrir(t, "0")
	p := f.producto(t, "Lámpara H4", "10.33", "21", 10, 0)
	q := f.producto(t, "Fusible", "0.99", "10.5", 10, 0)

	v, err := f.ventas.RegistrarVenta(context.Background(), f.usuario, dto.RegistrarVentaRequest{
		Items: []dto.ItemVentaRequest{item(p, 3), item(q, 1)}, MetodoPago: model.MetodoDebito,
	})
	require.NoError(t, err)
	// 10.33 * 21% = 2.1693 -> 2.17 per unit; (10.33 + 2.17) * 3 = 37.50
	// 0.99 * 10.5% = 0.10395 -> 0.10; 0.99 + 0.10 = 1.09
	totales := map[string]string{}
	for _, it := range v.Items {
		totales[it.Nombre] = it.Total.StringFixed(2)
	}
	assert.Equal(t, "37.50", totales["Lámpara H4"])
	assert.Equal(t, "1.09", totales["Fusible"])
	assert.Equal(t, "31.98", v.Subtotal.StringFixed(2))
	assert.Equal(t, "6.61", v.MontoIVA.StringFixed(2))
	assert.True(t, v.Total.Equal(v.Subtotal.Add(v.MontoIVA)))
}

func TestRegistrarVentaConSaldoAFavor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.abrir(t, "0")
	c := f.cliente(t, "Taller Sur", model.CondicionConsumidorFinal, true)
	_, err := f.clientes.RegistrarPago(ctx, f.usuario, c.ID, dto.PagoClienteRequest{Monto: dec("150")})
	require.NoError(t, err)
	require.Equal(t, "-150.00", f.saldo(t, c.ID).StringFixed(2))

	p := f.producto(t, "Amortiguador", "200.00", "0", 5, 0)
	v, err := f.ventas.RegistrarVenta(ctx, f.usuario, dto.RegistrarVentaRequest{
		ClienteID:   strPtr(c.ID.String()),
		Items:       []dto.ItemVentaRequest{item(p, 1)},
		MetodoPago:  model.MetodoEfectivo,
		UsarCredito: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "200.00", v.Total.StringFixed(2))
	assert.Equal(t, "150.00", v.CreditoUsado.StringFixed(2))
	assert.Equal(t, "50.00", v.RestantePago.StringFixed(2))
	assert.Equal(t, "0.00", f.saldo(t, c.ID).StringFixed(2))

	hist, err := f.clientes.Historial(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, hist.Movimientos, 2)
	uso := hist.Movimientos[1]
	assert.Equal(t, model.MovClienteUsoCredito, uso.Tipo)
	assert.Equal(t, "150.00", uso.Monto.StringFixed(2))
	assert.Equal(t, "Uso de saldo a favor - "+v.NumeroFactura, uso.Descripcion)

	vista, err := f.caja.VistaDiaria(ctx, "")
	require.NoError(t, err)
	var venta *dto.MovimientoCajaResponse
	for i := range vista.Movimientos {
		if vista.Movimientos[i].VentaID != nil {
			venta = &vista.Movimientos[i]
		}
	}
	require.NotNil(t, venta)
	assert.Equal(t, "50.00", venta.Monto.StringFixed(2))
	assert.Contains(t, venta.Descripcion, "Descontado $150.00 de saldo a favor")
}

func TestRegistrarVentaCreditoTopeEnTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.abrir(t, "0")
	c := f.cliente(t, "Flota Norte", model.CondicionConsumidorFinal, false)
	_, err := f.clientes.RegistrarPago(ctx, f.usuario, c.ID, dto.PagoClienteRequest{Monto: dec("500")})
	require.NoError(t, err)

	p := f.producto(t, "Escobilla", "100", "21", 5, 0)
	v, err := f.ventas.RegistrarVenta(ctx, f.usuario, dto.RegistrarVentaRequest{
		ClienteID: strPtr(c.ID.String()), Items: []dto.ItemVentaRequest{item(p, 1)},
		MetodoPago: model.MetodoTransferencia, UsarCredito: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "121.00", v.CreditoUsado.StringFixed(2))
	assert.True(t, v.RestantePago.IsZero())
	assert.Equal(t, "-379.00", f.saldo(t, c.ID).StringFixed(2))

	// Fully covered by credit: no cash income for the sale.
	saldo, err := f.caja.SaldoActual(ctx)
	require.NoError(t, err)
	assert.Equal(t, "500.00", saldo.StringFixed(2))
}

func TestRegistrarVentaSinUsarCredito(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.abrir(t, "0")
	c := f.cliente(t, "Remis Centro", model.CondicionConsumidorFinal, false)
	_, err := f.clientes.RegistrarPago(ctx, f.usuario, c.ID, dto.PagoClienteRequest{Monto: dec("100")})
	require.NoError(t, err)

	p := f.producto(t, "Bujía", "50", "21", 5, 0)
	v, err := f.ventas.RegistrarVenta(ctx, f.usuario, dto.RegistrarVentaRequest{
		ClienteID: strPtr(c.ID.String()), Items: []dto.ItemVentaRequest{item(p, 1)},
		MetodoPago: model.MetodoEfectivo,
	})
	require.NoError(t, err)
	assert.True(t, v.CreditoUsado.IsZero())
	assert.Equal(t, "-100.00", f.saldo(t, c.ID).StringFixed(2))
}

func TestRegistrarVentaCajaCerrada(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.producto(t, "Correa", "80", "21", 4, 0)
	c := f.cliente(t, "Transportes Oeste", model.CondicionConsumidorFinal, true)

	_, err := f.ventas.RegistrarVenta(ctx, f.usuario, dto.RegistrarVentaRequest{
		Items: []dto.ItemVentaRequest{item(p, 1)}, MetodoPago: model.MetodoEfectivo,
	})
	assert.ErrorIs(t, err, apierror.ErrCashBoxClosed)
	assert.Equal(t, 4, f.stock(t, p.ID))

	v, err := f.ventas.RegistrarVenta(ctx, f.usuario, dto.RegistrarVentaRequest{
		ClienteID: strPtr(c.ID.String()), Items: []dto.ItemVentaRequest{item(p, 1)},
		MetodoPago: model.MetodoCuentaCorriente,
	})
	require.NoError(t, err)
	assert.Nil(t, v.SesionCajaID)
	assert.Equal(t, 3, f.stock(t, p.ID))
	assert.Equal(t, "96.80", f.saldo(t, c.ID).StringFixed(2))

	hist, err := f.clientes.Historial(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, hist.Movimientos, 1)
	assert.Equal(t, model.MovClienteVenta, hist.Movimientos[0].Tipo)
	assert.Equal(t, "Compra en Cta. Cte. - "+v.NumeroFactura, hist.Movimientos[0].Descripcion)
}

func TestRegistrarVentaCuentaCorrienteGuardas(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.abrir(t, "0")
	p := f.producto(t, "Radiador", "300", "21", 4, 0)
	sinCuenta := f.cliente(t, "Ocasional", model.CondicionConsumidorFinal, false)

	_, err := f.ventas.RegistrarVenta(ctx, f.usuario, dto.RegistrarVentaRequest{
		Items: []dto.ItemVentaRequest{item(p, 1)}, MetodoPago: model.MetodoCuentaCorriente,
	})
	assert.ErrorIs(t, err, apierror.ErrClientRequired)

	_, err = f.ventas.RegistrarVenta(ctx, f.usuario, dto.RegistrarVentaRequest{
		ClienteID: strPtr(sinCuenta.ID.String()), Items: []dto.ItemVentaRequest{item(p, 1)},
		MetodoPago: model.MetodoCuentaCorriente,
	})
	assert.ErrorIs(t, err, apierror.ErrAccountNotEnabled)

	_, err = f.ventas.RegistrarVenta(ctx, f.usuario, dto.RegistrarVentaRequest{
		ClienteID: strPtr(uuid.NewString()), Items: []dto.ItemVentaRequest{item(p, 1)},
		MetodoPago: model.MetodoEfectivo,
	})
	assert.ErrorIs(t, err, apierror.ErrClientNotFound)
	assert.Equal(t, 4, f.stock(t, p.ID))
}

func TestRegistrarVentaStockInsuficiente(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.abrir(t, "0")
	p := f.producto(t, "Pastillas de freno", "120", "21", 1, 0)
	otro := f.producto(t, "Disco de freno", "250", "21", 10, 0)

	_, err := f.ventas.RegistrarVenta(ctx, f.usuario, dto.RegistrarVentaRequest{
		Items: []dto.ItemVentaRequest{item(otro, 1), item(p, 2)}, MetodoPago: model.MetodoEfectivo,
	})
	require.ErrorIs(t, err, apierror.ErrInsufficientStock)
	var ae *apierror.Error
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, 1, ae.Context["disponible"])
	assert.Equal(t, "Stock insuficiente para Pastillas de freno. Disponible: 1", ae.Message)

	// A repeated product is checked against what earlier lines already took.
	_, err = f.ventas.RegistrarVenta(ctx, f.usuario, dto.RegistrarVentaRequest{
		Items: []dto.ItemVentaRequest{item(p, 1), item(p, 1)}, MetodoPago: model.MetodoEfectivo,
	})
	require.ErrorIs(t, err, apierror.ErrInsufficientStock)

	assert.Equal(t, 1, f.stock(t, p.ID))
	assert.Equal(t, 10, f.stock(t, otro.ID))
	list, err := f.ventas.ListarVentas(ctx, dto.VentaFilter{})
	require.NoError(t, err)
	assert.Zero(t, list.Total)
	saldo, err := f.caja.SaldoActual(ctx)
	require.NoError(t, err)
	assert.True(t, saldo.IsZero())
}

func TestRegistrarVentaProductoInactivo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.abrir(t, "0")
	p := f.producto(t, "Descontinuado", "10", "21", 5, 0)
	require.NoError(t, f.productos.Desactivar(ctx, p.ID))

	_, err := f.ventas.RegistrarVenta(ctx, f.usuario, dto.RegistrarVentaRequest{
		Items: []dto.ItemVentaRequest{item(p, 1)}, MetodoPago: model.MetodoEfectivo,
	})
	assert.ErrorIs(t, err, apierror.ErrProductNotFound)

	_, err = f.ventas.RegistrarVenta(ctx, f.usuario, dto.RegistrarVentaRequest{
		Items: []dto.ItemVentaRequest{{ProductoID: uuid.NewString(), Cantidad: 1}}, MetodoPago: model.MetodoEfectivo,
	})
	assert.ErrorIs(t, err, apierror.ErrProductNotFound)
}

func TestRegistrarVentaValidacion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cases := map[string]dto.RegistrarVentaRequest{
		"carrito vacío":   {MetodoPago: model.MetodoEfectivo},
		"cantidad cero":   {Items: []dto.ItemVentaRequest{{ProductoID: uuid.NewString()}}, MetodoPago: model.MetodoEfectivo},
		"producto mal":    {Items: []dto.ItemVentaRequest{{ProductoID: "x", Cantidad: 1}}, MetodoPago: model.MetodoEfectivo},
		"método inválido": {Items: []dto.ItemVentaRequest{{ProductoID: uuid.NewString(), Cantidad: 1}}, MetodoPago: "cheque"},
		"tipo inválido":   {Items: []dto.ItemVentaRequest{{ProductoID: uuid.NewString(), Cantidad: 1}}, MetodoPago: model.MetodoEfectivo, TipoFactura: "X"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.ventas.RegistrarVenta(ctx, f.usuario, req)
			assert.Equal(t, apierror.KindValidation, kindOf(err))
		})
	}

	_, err := f.ventas.RegistrarVenta(ctx, uuid.Nil, dto.RegistrarVentaRequest{})
	assert.ErrorIs(t, err, apierror.ErrUnauthorized)
}

func TestRegistrarVentaTipoFactura(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.abrir(t, "0")
	p := f.producto(t, "Aceite 10W40", "45", "21", 20, 0)
	ri := f.cliente(t, "Logística SA", model.CondicionResponsableInscripto, false)
	mono := f.cliente(t, "Juan Mecánico", model.CondicionMonotributista, false)

	a, err := f.ventas.RegistrarVenta(ctx, f.usuario, dto.RegistrarVentaRequest{
		ClienteID: strPtr(ri.ID.String()), Items: []dto.ItemVentaRequest{item(p, 1)},
		MetodoPago: model.MetodoEfectivo, TipoFactura: model.FacturaB,
	})
	require.NoError(t, err)
	assert.Equal(t, model.FacturaA, a.TipoFactura)
	assert.Equal(t, "A-0001-00000001", a.NumeroFactura)
	require.NotNil(t, a.ClienteNombre)
	assert.Equal(t, "Logística SA", *a.ClienteNombre)

	b, err := f.ventas.RegistrarVenta(ctx, f.usuario, dto.RegistrarVentaRequest{
		ClienteID: strPtr(mono.ID.String()), Items: []dto.ItemVentaRequest{item(p, 1)},
		MetodoPago: model.MetodoEfectivo, TipoFactura: model.FacturaC,
	})
	require.NoError(t, err)
	assert.Equal(t, "B-0001-00000001", b.NumeroFactura)

	b2, err := f.ventas.RegistrarVenta(ctx, f.usuario, dto.RegistrarVentaRequest{
		Items: []dto.ItemVentaRequest{item(p, 1)}, MetodoPago: model.MetodoEfectivo,
	})
	require.NoError(t, err)
	assert.Equal(t, "B-0001-00000002", b2.NumeroFactura)
}

func TestRegistrarVentaSecuenciaConcurrente(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.abrir(t, "0")
	p := f.producto(t, "Tornillo", "1", "21", 1000, 0)

	const n = 25
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numeros []string
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := f.ventas.RegistrarVenta(ctx, f.usuario, dto.RegistrarVentaRequest{
				Items: []dto.ItemVentaRequest{item(p, 1)}, MetodoPago: model.MetodoEfectivo,
			})
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			numeros = append(numeros, v.NumeroFactura)
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, numeros, n)
	sort.Strings(numeros)
	for i, num := range numeros {
		assert.Equal(t, fmt.Sprintf("B-0001-%08d", i+1), num)
	}
	assert.Equal(t, 1000-n, f.stock(t, p.ID))
}

func TestRegistrarVentaAtomica(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.producto(t, "Embrague", "900", "21", 3, 0)
	c := f.cliente(t, "Agro Rural", model.CondicionConsumidorFinal, true)

	f.store.InjectFault("clientes.CreateMovimiento", errors.New("disk full"), 1)
	_, err := f.ventas.RegistrarVenta(ctx, f.usuario, dto.RegistrarVentaRequest{
		ClienteID: strPtr(c.ID.String()), Items: []dto.ItemVentaRequest{item(p, 2)},
		MetodoPago: model.MetodoCuentaCorriente,
	})
	require.Error(t, err)
	assert.Equal(t, apierror.KindStore, kindOf(err))

	assert.Equal(t, 3, f.stock(t, p.ID))
	assert.True(t, f.saldo(t, c.ID).IsZero())
	list, err := f.ventas.ListarVentas(ctx, dto.VentaFilter{})
	require.NoError(t, err)
	assert.Zero(t, list.Total)
	movs, _, err := f.store.Repos().Stock.List(ctx, repository.MovimientoStockFilter{})
	require.NoError(t, err)
	assert.Empty(t, movs)

	// The failed attempt did not consume an invoice number.
	v, err := f.ventas.RegistrarVenta(ctx, f.usuario, dto.RegistrarVentaRequest{
		ClienteID: strPtr(c.ID.String()), Items: []dto.ItemVentaRequest{item(p, 2)},
		MetodoPago: model.MetodoCuentaCorriente,
	})
	require.NoError(t, err)
	assert.Equal(t, "B-0001-00000001", v.NumeroFactura)
}

func TestRegistrarVentaAtomicaMovimientoCaja(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.abrir(t, "100")
	p := f.producto(t, "Batería", "1000", "21", 2, 0)

	f.store.InjectFault("cajas.CreateMovimiento", errors.New("timeout"), 1)
	_, err := f.ventas.RegistrarVenta(ctx, f.usuario, dto.RegistrarVentaRequest{
		Items: []dto.ItemVentaRequest{item(p, 1)}, MetodoPago: model.MetodoEfectivo,
	})
	assert.Equal(t, apierror.KindStore, kindOf(err))
	assert.Equal(t, 2, f.stock(t, p.ID))
	saldo, err := f.caja.SaldoActual(ctx)
	require.NoError(t, err)
	assert.Equal(t, "100.00", saldo.StringFixed(2))
}

func TestRegistrarVentaReintentaConflicto(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.abrir(t, "0")
	p := f.producto(t, "Junta", "15", "21", 5, 0)
	conflicto := fmt.Errorf("%w: could not serialize access", repository.ErrConflict)

	f.store.InjectFault("ventas.NextSecuencia", conflicto, 1)
	v, err := f.ventas.RegistrarVenta(ctx, f.usuario, dto.RegistrarVentaRequest{
		Items: []dto.ItemVentaRequest{item(p, 1)}, MetodoPago: model.MetodoEfectivo,
	})
	require.NoError(t, err)
	assert.Equal(t, "B-0001-00000001", v.NumeroFactura)
	assert.Equal(t, 4, f.stock(t, p.ID))

	f.store.InjectFault("ventas.NextSecuencia", conflicto, 2)
	_, err = f.ventas.RegistrarVenta(ctx, f.usuario, dto.RegistrarVentaRequest{
		Items: []dto.ItemVentaRequest{item(p, 1)}, MetodoPago: model.MetodoEfectivo,
	})
	assert.ErrorIs(t, err, apierror.ErrConflict)
	assert.Equal(t, 4, f.stock(t, p.ID))
}

func TestObtenerYListarVentas(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setNow(time.Date(2024, 6, 3, 15, 0, 0, 0, time.UTC))
	f.abrir(t, "0")
	p := f.producto(t, "Filtro de aire", "30", "21", 10, 0)
	c := f.cliente(t, "Taller Ruta 3", model.CondicionConsumidorFinal, false)

	v, err := f.ventas.RegistrarVenta(ctx, f.usuario, dto.RegistrarVentaRequest{
		ClienteID: strPtr(c.ID.String()), Items: []dto.ItemVentaRequest{item(p, 1)}, MetodoPago: model.MetodoCredito,
	})
	require.NoError(t, err)

	got, err := f.ventas.ObtenerVenta(ctx, uuid.MustParse(v.ID))
	require.NoError(t, err)
	assert.Equal(t, v.NumeroFactura, got.NumeroFactura)
	assert.Equal(t, v.Total, got.Total)
	require.Len(t, got.Items, 1)

	_, err = f.ventas.ObtenerVenta(ctx, uuid.New())
	assert.ErrorIs(t, err, apierror.ErrSaleNotFound)

	list, err := f.ventas.ListarVentas(ctx, dto.VentaFilter{Q: "Ruta", Fecha: "2024-06-03"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, list.Total)

	list, err = f.ventas.ListarVentas(ctx, dto.VentaFilter{Fecha: "2024-06-04"})
	require.NoError(t, err)
	assert.Zero(t, list.Total)
}
