package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"autopartes/internal/model"
	"autopartes/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ventaRepo struct{ v *view }

func (r *ventaRepo) NextSecuencia(_ context.Context, tipo string) (int64, error) {
	st, done, err := r.v.begin("ventas.NextSecuencia")
	if err != nil {
		return 0, err
	}
	defer done()
	st.secuencias[tipo]++
	return st.secuencias[tipo], nil
}

func (r *ventaRepo) Create(_ context.Context, v *model.Venta) error {
	st, done, err := r.v.begin("ventas.Create")
	if err != nil {
		return err
	}
	defer done()
	for _, existing := range st.ventas {
		if existing.NumeroFactura == v.NumeroFactura ||
			(existing.TipoFactura == v.TipoFactura && existing.Secuencia == v.Secuencia) {
			return conflict("factura %s duplicada", v.NumeroFactura)
		}
	}
	ensureID(&v.ID)
	ensureTime(&v.CreatedAt)
	for i := range v.Items {
		ensureID(&v.Items[i].ID)
		v.Items[i].VentaID = v.ID
	}
	stored := *v
	stored.Items = slices.Clone(v.Items)
	stored.Cliente = nil
	st.ventas[v.ID] = stored
	return nil
}

func (r *ventaRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Venta, error) {
	st, done, err := r.v.begin("ventas.FindByID")
	if err != nil {
		return nil, err
	}
	defer done()
	v, ok := st.ventas[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := st.hydrate(v)
	slices.SortFunc(out.Items, func(a, b model.VentaItem) int { return strings.Compare(a.Nombre, b.Nombre) })
	return &out, nil
}

func (r *ventaRepo) List(_ context.Context, filter repository.VentaFilter) ([]model.Venta, int64, error) {
	st, done, err := r.v.begin("ventas.List")
	if err != nil {
		return nil, 0, err
	}
	defer done()
	q := strings.ToLower(filter.Query)
	var all []model.Venta
	for _, v := range st.ventas {
		if filter.Desde != nil && v.CreatedAt.Before(*filter.Desde) {
			continue
		}
		if filter.Hasta != nil && !v.CreatedAt.Before(*filter.Hasta) {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(v.NumeroFactura), q) {
			c, ok := st.clienteDe(v)
			if !ok || !strings.Contains(strings.ToLower(c.Nombre), q) {
				continue
			}
		}
		all = append(all, st.hydrate(v))
	}
	slices.SortFunc(all, func(a, b model.Venta) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return page(all, filter.Page, filter.Limit), int64(len(all)), nil
}

func (r *ventaRepo) ListEntre(_ context.Context, desde, hasta time.Time) ([]model.Venta, error) {
	st, done, err := r.v.begin("ventas.ListEntre")
	if err != nil {
		return nil, err
	}
	defer done()
	var out []model.Venta
	for _, v := range st.ventas {
		if !v.CreatedAt.Before(desde) && v.CreatedAt.Before(hasta) {
			v.Items = nil
			out = append(out, v)
		}
	}
	slices.SortFunc(out, func(a, b model.Venta) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (r *ventaRepo) SumTotalEntre(_ context.Context, desde, hasta time.Time) (decimal.Decimal, error) {
	st, done, err := r.v.begin("ventas.SumTotalEntre")
	if err != nil {
		return decimal.Zero, err
	}
	defer done()
	total := decimal.Zero
	for _, v := range st.ventas {
		if !v.CreatedAt.Before(desde) && v.CreatedAt.Before(hasta) {
			total = total.Add(v.Total)
		}
	}
	return total, nil
}

func (r *ventaRepo) TopProductos(_ context.Context, desde, hasta time.Time, limit int) ([]repository.ProductoVendido, error) {
	st, done, err := r.v.begin("ventas.TopProductos")
	if err != nil {
		return nil, err
	}
	defer done()
	acc := make(map[uuid.UUID]*repository.ProductoVendido)
	for _, v := range st.ventas {
		if v.CreatedAt.Before(desde) || !v.CreatedAt.Before(hasta) {
			continue
		}
		for _, it := range v.Items {
			row, ok := acc[it.ProductoID]
			if !ok {
				row = &repository.ProductoVendido{ProductoID: it.ProductoID, SKU: it.SKU, Nombre: it.Nombre, Total: decimal.Zero}
				acc[it.ProductoID] = row
			}
			row.Cantidad += int64(it.Cantidad)
			row.Total = row.Total.Add(it.Total)
		}
	}
	out := make([]repository.ProductoVendido, 0, len(acc))
	for _, row := range acc {
		out = append(out, *row)
	}
	slices.SortFunc(out, func(a, b repository.ProductoVendido) int {
		if c := cmp.Compare(b.Cantidad, a.Cantidad); c != 0 {
			return c
		}
		return b.Total.Cmp(a.Total)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *state) clienteDe(v model.Venta) (model.Cliente, bool) {
	if v.ClienteID == nil {
		return model.Cliente{}, false
	}
	c, ok := s.clientes[*v.ClienteID]
	return c, ok
}

// hydrate returns a copy of v with its items and client attached.
func (s *state) hydrate(v model.Venta) model.Venta {
	v.Items = slices.Clone(v.Items)
	if c, ok := s.clienteDe(v); ok {
		v.Cliente = &c
	}
	return v
}
