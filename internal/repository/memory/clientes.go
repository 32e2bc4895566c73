package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"autopartes/internal/model"
	"autopartes/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type clienteRepo struct{ v *view }

func cuitTomado(st *state, cuit *string, except uuid.UUID) bool {
	if cuit == nil {
		return false
	}
	for id, c := range st.clientes {
		if id != except && c.CUIT != nil && *c.CUIT == *cuit {
			return true
		}
	}
	return false
}

func (r *clienteRepo) Create(_ context.Context, c *model.Cliente) error {
	st, done, err := r.v.begin("clientes.Create")
	if err != nil {
		return err
	}
	defer done()
	if cuitTomado(st, c.CUIT, uuid.Nil) {
		return conflict("cuit %s duplicado", *c.CUIT)
	}
	ensureID(&c.ID)
	ensureTime(&c.CreatedAt)
	c.UpdatedAt = c.CreatedAt
	st.clientes[c.ID] = *c
	return nil
}

func (r *clienteRepo) Update(_ context.Context, c *model.Cliente) error {
	st, done, err := r.v.begin("clientes.Update")
	if err != nil {
		return err
	}
	defer done()
	current, ok := st.clientes[c.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if cuitTomado(st, c.CUIT, c.ID) {
		return conflict("cuit %s duplicado", *c.CUIT)
	}
	current.Nombre = c.Nombre
	current.CUIT = c.CUIT
	current.Email = c.Email
	current.Telefono = c.Telefono
	current.Direccion = c.Direccion
	current.CondicionIVA = c.CondicionIVA
	current.CuentaCorriente = c.CuentaCorriente
	current.UpdatedAt = time.Now()
	st.clientes[c.ID] = current
	return nil
}

func (r *clienteRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Cliente, error) {
	st, done, err := r.v.begin("clientes.FindByID")
	if err != nil {
		return nil, err
	}
	defer done()
	c, ok := st.clientes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (r *clienteRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Cliente, error) {
	return r.FindByID(ctx, id)
}

func (r *clienteRepo) List(_ context.Context, query string) ([]model.Cliente, error) {
	st, done, err := r.v.begin("clientes.List")
	if err != nil {
		return nil, err
	}
	defer done()
	q := strings.ToLower(query)
	var out []model.Cliente
	for _, c := range st.clientes {
		if q != "" && !strings.Contains(strings.ToLower(c.Nombre), q) &&
			(c.CUIT == nil || !strings.Contains(strings.ToLower(*c.CUIT), q)) {
			continue
		}
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b model.Cliente) int { return strings.Compare(a.Nombre, b.Nombre) })
	return out, nil
}

func (r *clienteRepo) ListDeudores(_ context.Context, limit int) ([]model.Cliente, error) {
	st, done, err := r.v.begin("clientes.ListDeudores")
	if err != nil {
		return nil, err
	}
	defer done()
	var out []model.Cliente
	for _, c := range st.clientes {
		if c.Saldo.IsPositive() {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b model.Cliente) int { return b.Saldo.Cmp(a.Saldo) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *clienteRepo) SumSaldos(_ context.Context) (decimal.Decimal, decimal.Decimal, error) {
	st, done, err := r.v.begin("clientes.SumSaldos")
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	defer done()
	deuda, aFavor := decimal.Zero, decimal.Zero
	for _, c := range st.clientes {
		switch {
		case c.Saldo.IsPositive():
			deuda = deuda.Add(c.Saldo)
		case c.Saldo.IsNegative():
			aFavor = aFavor.Add(c.Saldo)
		}
	}
	return deuda, aFavor, nil
}

func (r *clienteRepo) AjustarSaldo(_ context.Context, id uuid.UUID, delta decimal.Decimal) error {
	st, done, err := r.v.begin("clientes.AjustarSaldo")
	if err != nil {
		return err
	}
	defer done()
	c, ok := st.clientes[id]
	if !ok {
		return repository.ErrNotFound
	}
	c.Saldo = c.Saldo.Add(delta)
	st.clientes[id] = c
	return nil
}

func (r *clienteRepo) CreateMovimiento(_ context.Context, m *model.MovimientoCliente) error {
	st, done, err := r.v.begin("clientes.CreateMovimiento")
	if err != nil {
		return err
	}
	defer done()
	ensureID(&m.ID)
	ensureTime(&m.CreatedAt)
	st.movCliente = append(st.movCliente, *m)
	return nil
}

func (r *clienteRepo) ListMovimientos(_ context.Context, clienteID uuid.UUID) ([]model.MovimientoCliente, error) {
	st, done, err := r.v.begin("clientes.ListMovimientos")
	if err != nil {
		return nil, err
	}
	defer done()
	var out []model.MovimientoCliente
	for _, m := range st.movCliente {
		if m.ClienteID == clienteID {
			out = append(out, m)
		}
	}
	slices.SortStableFunc(out, func(a, b model.MovimientoCliente) int {
		return cmp.Compare(a.CreatedAt.UnixNano(), b.CreatedAt.UnixNano())
	})
	return out, nil
}

func (r *clienteRepo) ContarHistorial(_ context.Context, id uuid.UUID) (int64, error) {
	st, done, err := r.v.begin("clientes.ContarHistorial")
	if err != nil {
		return 0, err
	}
	defer done()
	return int64(ventasDeCliente(st, id) + movimientosDeCliente(st, id)), nil
}

// Delete mirrors the ventas.cliente_id foreign key; ledger entries carry no
// constraint of their own.
func (r *clienteRepo) Delete(_ context.Context, id uuid.UUID) error {
	st, done, err := r.v.begin("clientes.Delete")
	if err != nil {
		return err
	}
	defer done()
	if _, ok := st.clientes[id]; !ok {
		return repository.ErrNotFound
	}
	if ventasDeCliente(st, id) > 0 {
		return fmt.Errorf("%w: fk_ventas_cliente", repository.ErrReferenced)
	}
	delete(st.clientes, id)
	return nil
}

func ventasDeCliente(st *state, id uuid.UUID) int {
	n := 0
	for _, v := range st.ventas {
		if v.ClienteID != nil && *v.ClienteID == id {
			n++
		}
	}
	return n
}

func movimientosDeCliente(st *state, id uuid.UUID) int {
	n := 0
	for _, m := range st.movCliente {
		if m.ClienteID == id {
			n++
		}
	}
	return n
}

type usuarioRepo struct{ v *view }

func (r *usuarioRepo) Create(_ context.Context, u *model.Usuario) error {
	st, done, err := r.v.begin("usuarios.Create")
	if err != nil {
		return err
	}
	defer done()
	for _, existing := range st.usuarios {
		if existing.Username == u.Username {
			return conflict("usuario %s duplicado", u.Username)
		}
	}
	ensureID(&u.ID)
	ensureTime(&u.CreatedAt)
	u.UpdatedAt = u.CreatedAt
	st.usuarios[u.ID] = *u
	return nil
}

func (r *usuarioRepo) FindByUsername(_ context.Context, username string) (*model.Usuario, error) {
	st, done, err := r.v.begin("usuarios.FindByUsername")
	if err != nil {
		return nil, err
	}
	defer done()
	for _, u := range st.usuarios {
		if !u.Activo {
			continue
		}
		if u.Username == username || (u.Email != nil && strings.EqualFold(*u.Email, username)) {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *usuarioRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Usuario, error) {
	st, done, err := r.v.begin("usuarios.FindByID")
	if err != nil {
		return nil, err
	}
	defer done()
	u, ok := st.usuarios[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *usuarioRepo) List(_ context.Context) ([]model.Usuario, error) {
	st, done, err := r.v.begin("usuarios.List")
	if err != nil {
		return nil, err
	}
	defer done()
	out := make([]model.Usuario, 0, len(st.usuarios))
	for _, u := range st.usuarios {
		out = append(out, u)
	}
	slices.SortFunc(out, func(a, b model.Usuario) int { return strings.Compare(a.Username, b.Username) })
	return out, nil
}

func (r *usuarioRepo) Update(_ context.Context, u *model.Usuario) error {
	st, done, err := r.v.begin("usuarios.Update")
	if err != nil {
		return err
	}
	defer done()
	if _, ok := st.usuarios[u.ID]; !ok {
		return repository.ErrNotFound
	}
	u.UpdatedAt = time.Now()
	st.usuarios[u.ID] = *u
	return nil
}
