package service

import (
	"context"
	"slices"
	"strings"
	"time"

	"autopartes/internal/apierror"
	"autopartes/internal/dto"
	"autopartes/internal/model"
	"autopartes/internal/money"
	"autopartes/internal/repository"

	"github.com/shopspring/decimal"
)

const fechaLayout = "2006-01-02"

const (
	topCategorias = 5
	// diasSalud is the sales window of the business health score.
	diasSalud = 30
)

// Business health bands, checked from the top.
const (
	SaludExcelente = "EXCELENTE"
	SaludOptimo    = "OPTIMO"
	SaludEstable   = "ESTABLE"
	SaludRevision  = "REVISION"
	SaludCritico   = "CRITICO"
	SaludSinDatos  = "SIN DATOS"
)

var (
	cien = decimal.NewFromInt(100)
	dos  = decimal.NewFromInt(2)
)

// ReporteService aggregates sales, cash and credit data for the dashboard.
// Days are business-local calendar days.
type ReporteService interface {
	VentasPorDia(ctx context.Context, rango string) ([]dto.VentasDiaResponse, error)
	FlujoDeCaja(ctx context.Context, rango string) ([]dto.FlujoCajaDiaResponse, error)
	// TopProductos ranks products by units sold over the last 30 days.
	TopProductos(ctx context.Context, limit int) ([]dto.ProductoVendidoResponse, error)
	DeudaClientes(ctx context.Context, limit int) (*dto.DeudaClientesResponse, error)
	ValorizacionStock(ctx context.Context) (*dto.ValorizacionStockResponse, error)
	// SaludNegocio scores sales of the last 30 days against half the stock
	// value: ventas / (ventas + stock/2) * 100, capped at 100.
	SaludNegocio(ctx context.Context) (*dto.SaludNegocioResponse, error)
}

type reporteService struct {
	store repository.Store
	loc   *time.Location
	now   func() time.Time
}

func NewReporteService(store repository.Store, loc *time.Location) ReporteService {
	if loc == nil {
		loc = time.UTC
	}
	return &reporteService{store: store, loc: loc, now: time.Now}
}

// dias returns the start of each day in the range, oldest first, plus the
// exclusive end of the last one.
func (s *reporteService) dias(rango string) ([]time.Time, time.Time, error) {
	n := 7
	switch rango {
	case "", "week":
	case "month":
		n = 30
	default:
		return nil, time.Time{}, apierror.Validation("Rango inválido", map[string]string{"rango": "oneof"})
	}
	hoy := s.now().In(s.loc)
	inicioHoy := time.Date(hoy.Year(), hoy.Month(), hoy.Day(), 0, 0, 0, 0, s.loc)
	out := make([]time.Time, n)
	for i := range n {
		out[i] = inicioHoy.AddDate(0, 0, i-n+1)
	}
	return out, inicioHoy.AddDate(0, 0, 1), nil
}

func (s *reporteService) VentasPorDia(ctx context.Context, rango string) ([]dto.VentasDiaResponse, error) {
	dias, fin, err := s.dias(rango)
	if err != nil {
		return nil, err
	}
	ventas, err := s.store.Repos().Ventas.ListEntre(ctx, dias[0], fin)
	if err != nil {
		return nil, storeError(err)
	}

	idx := make(map[string]int, len(dias))
	out := make([]dto.VentasDiaResponse, len(dias))
	for i, d := range dias {
		key := d.Format(fechaLayout)
		idx[key] = i
		out[i] = dto.VentasDiaResponse{Fecha: key, Total: decimal.Zero}
	}
	for _, v := range ventas {
		i, ok := idx[v.CreatedAt.In(s.loc).Format(fechaLayout)]
		if !ok {
			continue
		}
		out[i].Cantidad++
		out[i].Total = money.Round(out[i].Total.Add(v.Total))
	}
	return out, nil
}

func (s *reporteService) FlujoDeCaja(ctx context.Context, rango string) ([]dto.FlujoCajaDiaResponse, error) {
	dias, fin, err := s.dias(rango)
	if err != nil {
		return nil, err
	}
	movs, err := s.store.Repos().Cajas.ListMovimientosEntre(ctx, dias[0], fin)
	if err != nil {
		return nil, storeError(err)
	}

	idx := make(map[string]int, len(dias))
	out := make([]dto.FlujoCajaDiaResponse, len(dias))
	for i, d := range dias {
		key := d.Format(fechaLayout)
		idx[key] = i
		out[i] = dto.FlujoCajaDiaResponse{Fecha: key, Ingresos: decimal.Zero, Egresos: decimal.Zero, Neto: decimal.Zero}
	}
	for _, m := range movs {
		i, ok := idx[m.CreatedAt.In(s.loc).Format(fechaLayout)]
		if !ok {
			continue
		}
		if m.Tipo == model.MovimientoIngreso {
			out[i].Ingresos = money.Round(out[i].Ingresos.Add(m.Monto))
		} else {
			out[i].Egresos = money.Round(out[i].Egresos.Add(m.Monto))
		}
	}
	for i := range out {
		out[i].Neto = money.Round(out[i].Ingresos.Sub(out[i].Egresos))
	}
	return out, nil
}

func (s *reporteService) TopProductos(ctx context.Context, limit int) ([]dto.ProductoVendidoResponse, error) {
	_, limit = normalizePage(1, limit, 10, 100)
	dias, fin, err := s.dias("month")
	if err != nil {
		return nil, err
	}
	rows, err := s.store.Repos().Ventas.TopProductos(ctx, dias[0], fin, limit)
	if err != nil {
		return nil, storeError(err)
	}
	out := make([]dto.ProductoVendidoResponse, len(rows))
	for i, r := range rows {
		out[i] = dto.ProductoVendidoResponse{
			ProductoID: r.ProductoID.String(),
			SKU:        r.SKU,
			Nombre:     r.Nombre,
			Cantidad:   r.Cantidad,
			Total:      money.Round(r.Total),
		}
	}
	return out, nil
}

func (s *reporteService) DeudaClientes(ctx context.Context, limit int) (*dto.DeudaClientesResponse, error) {
	_, limit = normalizePage(1, limit, 10, 100)
	repo := s.store.Repos().Clientes
	deuda, aFavor, err := repo.SumSaldos(ctx)
	if err != nil {
		return nil, storeError(err)
	}
	deudores, err := repo.ListDeudores(ctx, limit)
	if err != nil {
		return nil, storeError(err)
	}
	resp := &dto.DeudaClientesResponse{
		DeudaTotal:       money.Round(deuda),
		SaldoAFavorTotal: money.Round(aFavor),
		Deudores:         make([]dto.ClienteDeudorResponse, len(deudores)),
	}
	for i, c := range deudores {
		resp.Deudores[i] = dto.ClienteDeudorResponse{ID: c.ID.String(), Nombre: c.Nombre, Saldo: c.Saldo}
	}
	return resp, nil
}

func (s *reporteService) ValorizacionStock(ctx context.Context) (*dto.ValorizacionStockResponse, error) {
	rows, err := s.store.Repos().Productos.ValorizarPorCategoria(ctx)
	if err != nil {
		return nil, storeError(err)
	}
	cats := make([]dto.CategoriaValorResponse, len(rows))
	valores := make([]decimal.Decimal, len(rows))
	resp := &dto.ValorizacionStockResponse{}
	for i, r := range rows {
		nombre := strings.TrimSpace(r.Categoria)
		if nombre == "" {
			nombre = "Otros"
		}
		cats[i] = dto.CategoriaValorResponse{Nombre: nombre, Unidades: r.Unidades, Valor: money.Round(r.Valor)}
		valores[i] = cats[i].Valor
		resp.TotalUnidades += r.Unidades
	}
	resp.ValorTotal = money.Sum(valores...)

	slices.SortFunc(cats, func(a, b dto.CategoriaValorResponse) int {
		if c := b.Valor.Cmp(a.Valor); c != 0 {
			return c
		}
		return strings.Compare(a.Nombre, b.Nombre)
	})
	resp.Categorias = cats[:min(len(cats), topCategorias)]
	return resp, nil
}

func (s *reporteService) SaludNegocio(ctx context.Context) (*dto.SaludNegocioResponse, error) {
	hoy := s.now().In(s.loc)
	fin := time.Date(hoy.Year(), hoy.Month(), hoy.Day(), 0, 0, 0, 0, s.loc).AddDate(0, 0, 1)
	desde := hoy.AddDate(0, 0, -diasSalud)

	repos := s.store.Repos()
	ventas, err := repos.Ventas.SumTotalEntre(ctx, desde, fin)
	if err != nil {
		return nil, storeError(err)
	}
	rows, err := repos.Productos.ValorizarPorCategoria(ctx)
	if err != nil {
		return nil, storeError(err)
	}
	valores := make([]decimal.Decimal, len(rows))
	for i, r := range rows {
		valores[i] = r.Valor
	}
	stock := money.Sum(valores...)
	ventas = money.Round(ventas)

	hayDatos := ventas.IsPositive() || stock.IsPositive()
	puntaje := decimal.Zero
	if hayDatos {
		puntaje = decimal.Min(money.Round(ventas.Div(ventas.Add(stock.Div(dos))).Mul(cien)), cien)
	}
	return &dto.SaludNegocioResponse{
		Puntaje:       puntaje,
		Estado:        estadoSalud(puntaje, hayDatos),
		VentasPeriodo: ventas,
		ValorStock:    stock,
		Desde:         formatTime(desde),
	}, nil
}

func estadoSalud(puntaje decimal.Decimal, hayDatos bool) string {
	switch {
	case puntaje.GreaterThan(decimal.NewFromInt(80)):
		return SaludExcelente
	case puntaje.GreaterThan(decimal.NewFromInt(60)):
		return SaludOptimo
	case puntaje.GreaterThan(decimal.NewFromInt(40)):
		return SaludEstable
	case puntaje.GreaterThan(decimal.NewFromInt(20)):
		return SaludRevision
	case hayDatos:
		return SaludCritico
	default:
		return SaludSinDatos
	}
}
