package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"autopartes/internal/model"
	"autopartes/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type productoRepo struct{ v *view }

func (r *productoRepo) Create(_ context.Context, p *model.Producto) error {
	st, done, err := r.v.begin("productos.Create")
	if err != nil {
		return err
	}
	defer done()
	for _, existing := range st.productos {
		if existing.SKU == p.SKU {
			return conflict("sku %s duplicado", p.SKU)
		}
	}
	ensureID(&p.ID)
	ensureTime(&p.CreatedAt)
	p.UpdatedAt = p.CreatedAt
	st.productos[p.ID] = *p
	return nil
}

func (r *productoRepo) Update(_ context.Context, p *model.Producto) error {
	st, done, err := r.v.begin("productos.Update")
	if err != nil {
		return err
	}
	defer done()
	current, ok := st.productos[p.ID]
	if !ok {
		return repository.ErrNotFound
	}
	for id, existing := range st.productos {
		if id != p.ID && existing.SKU == p.SKU {
			return conflict("sku %s duplicado", p.SKU)
		}
	}
	updated := *p
	updated.StockActual = current.StockActual
	updated.CreatedAt = current.CreatedAt
	updated.UpdatedAt = time.Now()
	st.productos[p.ID] = updated
	return nil
}

func (r *productoRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Producto, error) {
	st, done, err := r.v.begin("productos.FindByID")
	if err != nil {
		return nil, err
	}
	defer done()
	p, ok := st.productos[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

// FindByIDForUpdate needs no row lock: the transaction already holds the
// store mutex.
func (r *productoRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Producto, error) {
	return r.FindByID(ctx, id)
}

func (r *productoRepo) List(_ context.Context, filter repository.ProductoFilter) ([]model.Producto, int64, error) {
	st, done, err := r.v.begin("productos.List")
	if err != nil {
		return nil, 0, err
	}
	defer done()
	q := strings.ToLower(filter.Query)
	var all []model.Producto
	for _, p := range st.productos {
		if !p.Activo {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(p.SKU), q) && !strings.Contains(strings.ToLower(p.Nombre), q) {
			continue
		}
		if filter.Categoria != "" && p.Categoria != filter.Categoria {
			continue
		}
		if filter.SoloBajo && !p.BajoStock() {
			continue
		}
		all = append(all, p)
	}
	slices.SortFunc(all, func(a, b model.Producto) int { return strings.Compare(a.Nombre, b.Nombre) })
	return page(all, filter.Page, filter.Limit), int64(len(all)), nil
}

func (r *productoRepo) DescontarStock(_ context.Context, id uuid.UUID, cantidad int) (bool, error) {
	st, done, err := r.v.begin("productos.DescontarStock")
	if err != nil {
		return false, err
	}
	defer done()
	p, ok := st.productos[id]
	if !ok || p.StockActual < cantidad {
		return false, nil
	}
	p.StockActual -= cantidad
	st.productos[id] = p
	return true, nil
}

func (r *productoRepo) AjustarStock(_ context.Context, id uuid.UUID, delta int) (bool, error) {
	st, done, err := r.v.begin("productos.AjustarStock")
	if err != nil {
		return false, err
	}
	defer done()
	p, ok := st.productos[id]
	if !ok || p.StockActual+delta < 0 {
		return false, nil
	}
	p.StockActual += delta
	st.productos[id] = p
	return true, nil
}

func (r *productoRepo) ListBajoStock(_ context.Context) ([]model.Producto, error) {
	st, done, err := r.v.begin("productos.ListBajoStock")
	if err != nil {
		return nil, err
	}
	defer done()
	var out []model.Producto
	for _, p := range st.productos {
		if p.Activo && p.BajoStock() {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b model.Producto) int {
		if a.StockActual != b.StockActual {
			return a.StockActual - b.StockActual
		}
		return strings.Compare(a.Nombre, b.Nombre)
	})
	return out, nil
}

func (r *productoRepo) ValorizarPorCategoria(_ context.Context) ([]repository.ValorCategoria, error) {
	st, done, err := r.v.begin("productos.ValorizarPorCategoria")
	if err != nil {
		return nil, err
	}
	defer done()
	porCategoria := make(map[string]*repository.ValorCategoria)
	for _, p := range st.productos {
		if !p.Activo {
			continue
		}
		row, ok := porCategoria[p.Categoria]
		if !ok {
			row = &repository.ValorCategoria{Categoria: p.Categoria, Valor: decimal.Zero}
			porCategoria[p.Categoria] = row
		}
		unidades := decimal.NewFromInt(int64(p.StockActual))
		precio := p.PrecioLista.Mul(decimal.NewFromInt(1).Add(p.AlicuotaIVA.Div(decimal.NewFromInt(100))))
		row.Unidades += int64(p.StockActual)
		row.Valor = row.Valor.Add(unidades.Mul(precio))
	}
	out := make([]repository.ValorCategoria, 0, len(porCategoria))
	for _, row := range porCategoria {
		out = append(out, *row)
	}
	return out, nil
}

type stockRepo struct{ v *view }

func (r *stockRepo) Create(_ context.Context, m *model.MovimientoStock) error {
	st, done, err := r.v.begin("stock.Create")
	if err != nil {
		return err
	}
	defer done()
	ensureID(&m.ID)
	ensureTime(&m.CreatedAt)
	stored := *m
	stored.Producto = nil
	st.movStock = append(st.movStock, stored)
	return nil
}

func (r *stockRepo) List(_ context.Context, filter repository.MovimientoStockFilter) ([]model.MovimientoStock, int64, error) {
	st, done, err := r.v.begin("stock.List")
	if err != nil {
		return nil, 0, err
	}
	defer done()
	var all []model.MovimientoStock
	for i := len(st.movStock) - 1; i >= 0; i-- {
		m := st.movStock[i]
		if filter.ProductoID != nil && m.ProductoID != *filter.ProductoID {
			continue
		}
		if filter.Tipo != "" && m.Tipo != filter.Tipo {
			continue
		}
		if p, ok := st.productos[m.ProductoID]; ok {
			m.Producto = &p
		}
		all = append(all, m)
	}
	return page(all, filter.Page, filter.Limit), int64(len(all)), nil
}
