package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"autopartes/internal/model"
	"autopartes/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type cajaRepo struct{ v *view }

func (r *cajaRepo) CreateSesion(_ context.Context, s *model.SesionCaja) error {
	st, done, err := r.v.begin("cajas.CreateSesion")
	if err != nil {
		return err
	}
	defer done()
	if s.Estado == "" {
		s.Estado = model.EstadoCajaAbierta
	}
	if s.Abierta() {
		for _, existing := range st.sesiones {
			if existing.Abierta() {
				return conflict("ya existe una sesión abierta")
			}
		}
	}
	ensureID(&s.ID)
	ensureTime(&s.OpenedAt)
	st.sesiones[s.ID] = *s
	return nil
}

func (r *cajaRepo) FindSesionAbierta(_ context.Context) (*model.SesionCaja, error) {
	st, done, err := r.v.begin("cajas.FindSesionAbierta")
	if err != nil {
		return nil, err
	}
	defer done()
	for _, s := range st.sesiones {
		if s.Abierta() {
			return &s, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *cajaRepo) FindSesionAbiertaForUpdate(ctx context.Context) (*model.SesionCaja, error) {
	return r.FindSesionAbierta(ctx)
}

func (r *cajaRepo) FindUltimaSesion(_ context.Context) (*model.SesionCaja, error) {
	st, done, err := r.v.begin("cajas.FindUltimaSesion")
	if err != nil {
		return nil, err
	}
	defer done()
	var last *model.SesionCaja
	for _, s := range st.sesiones {
		if last == nil || s.OpenedAt.After(last.OpenedAt) {
			s := s
			last = &s
		}
	}
	if last == nil {
		return nil, repository.ErrNotFound
	}
	return last, nil
}

func (r *cajaRepo) FindSesionByID(_ context.Context, id uuid.UUID) (*model.SesionCaja, error) {
	st, done, err := r.v.begin("cajas.FindSesionByID")
	if err != nil {
		return nil, err
	}
	defer done()
	s, ok := st.sesiones[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (r *cajaRepo) UpdateSesion(_ context.Context, s *model.SesionCaja) error {
	st, done, err := r.v.begin("cajas.UpdateSesion")
	if err != nil {
		return err
	}
	defer done()
	if _, ok := st.sesiones[s.ID]; !ok {
		return repository.ErrNotFound
	}
	st.sesiones[s.ID] = *s
	return nil
}

func (r *cajaRepo) ListSesiones(_ context.Context, pageNum, limit int) ([]model.SesionCaja, int64, error) {
	st, done, err := r.v.begin("cajas.ListSesiones")
	if err != nil {
		return nil, 0, err
	}
	defer done()
	all := make([]model.SesionCaja, 0, len(st.sesiones))
	for _, s := range st.sesiones {
		all = append(all, s)
	}
	slices.SortFunc(all, func(a, b model.SesionCaja) int { return b.OpenedAt.Compare(a.OpenedAt) })
	return page(all, pageNum, limit), int64(len(all)), nil
}

func (r *cajaRepo) CreateMovimiento(_ context.Context, m *model.MovimientoCaja) error {
	st, done, err := r.v.begin("cajas.CreateMovimiento")
	if err != nil {
		return err
	}
	defer done()
	ensureID(&m.ID)
	ensureTime(&m.CreatedAt)
	if m.Categoria == "" {
		m.Categoria = model.CategoriaGeneral
	}
	st.movCaja = append(st.movCaja, *m)
	return nil
}

func (r *cajaRepo) FindMovimientoByID(_ context.Context, id uuid.UUID) (*model.MovimientoCaja, error) {
	st, done, err := r.v.begin("cajas.FindMovimientoByID")
	if err != nil {
		return nil, err
	}
	defer done()
	for _, m := range st.movCaja {
		if m.ID == id {
			return &m, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *cajaRepo) UpdateMovimiento(_ context.Context, m *model.MovimientoCaja) error {
	st, done, err := r.v.begin("cajas.UpdateMovimiento")
	if err != nil {
		return err
	}
	defer done()
	for i := range st.movCaja {
		if st.movCaja[i].ID == m.ID {
			st.movCaja[i].Tipo = m.Tipo
			st.movCaja[i].Monto = m.Monto
			st.movCaja[i].Descripcion = m.Descripcion
			st.movCaja[i].Categoria = m.Categoria
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *cajaRepo) DeleteMovimiento(_ context.Context, id uuid.UUID) error {
	st, done, err := r.v.begin("cajas.DeleteMovimiento")
	if err != nil {
		return err
	}
	defer done()
	for i, m := range st.movCaja {
		if m.ID == id {
			st.movCaja = slices.Delete(st.movCaja, i, i+1)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *cajaRepo) SumMovimientos(_ context.Context, sesionID uuid.UUID) (decimal.Decimal, decimal.Decimal, error) {
	st, done, err := r.v.begin("cajas.SumMovimientos")
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	defer done()
	ingresos, egresos := decimal.Zero, decimal.Zero
	for _, m := range st.movCaja {
		if m.SesionCajaID == nil || *m.SesionCajaID != sesionID {
			continue
		}
		switch m.Tipo {
		case model.MovimientoIngreso:
			ingresos = ingresos.Add(m.Monto)
		case model.MovimientoEgreso:
			egresos = egresos.Add(m.Monto)
		}
	}
	return ingresos, egresos, nil
}

func (r *cajaRepo) ListMovimientosVista(_ context.Context, sesionID *uuid.UUID, desde, hasta time.Time) ([]model.MovimientoCaja, error) {
	st, done, err := r.v.begin("cajas.ListMovimientosVista")
	if err != nil {
		return nil, err
	}
	defer done()
	var out []model.MovimientoCaja
	for i := len(st.movCaja) - 1; i >= 0; i-- {
		m := st.movCaja[i]
		enSesion := sesionID != nil && m.SesionCajaID != nil && *m.SesionCajaID == *sesionID
		enDia := !m.CreatedAt.Before(desde) && m.CreatedAt.Before(hasta)
		if enSesion || enDia {
			out = append(out, m)
		}
	}
	slices.SortStableFunc(out, func(a, b model.MovimientoCaja) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (r *cajaRepo) ListMovimientosEntre(_ context.Context, desde, hasta time.Time) ([]model.MovimientoCaja, error) {
	st, done, err := r.v.begin("cajas.ListMovimientosEntre")
	if err != nil {
		return nil, err
	}
	defer done()
	var out []model.MovimientoCaja
	for _, m := range st.movCaja {
		if !m.CreatedAt.Before(desde) && m.CreatedAt.Before(hasta) {
			out = append(out, m)
		}
	}
	slices.SortStableFunc(out, func(a, b model.MovimientoCaja) int { return cmp.Compare(a.CreatedAt.UnixNano(), b.CreatedAt.UnixNano()) })
	return out, nil
}
