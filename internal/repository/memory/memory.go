// Package memory is an in-process repository.Store. A single mutex is held for
// the whole of RunInTx and the transaction works on a copy of the state that is
// swapped in on success, so transactions are serializable and a failed one
// leaves no trace.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"autopartes/internal/model"
	"autopartes/internal/repository"

	"github.com/google/uuid"
)

type state struct {
	sesiones   map[uuid.UUID]model.SesionCaja
	movCaja    []model.MovimientoCaja
	productos  map[uuid.UUID]model.Producto
	movStock   []model.MovimientoStock
	ventas     map[uuid.UUID]model.Venta
	secuencias map[string]int64
	clientes   map[uuid.UUID]model.Cliente
	movCliente []model.MovimientoCliente
	usuarios   map[uuid.UUID]model.Usuario
}

func newState() *state {
	return &state{
		sesiones:   make(map[uuid.UUID]model.SesionCaja),
		productos:  make(map[uuid.UUID]model.Producto),
		ventas:     make(map[uuid.UUID]model.Venta),
		secuencias: make(map[string]int64),
		clientes:   make(map[uuid.UUID]model.Cliente),
		usuarios:   make(map[uuid.UUID]model.Usuario),
	}
}

// clone copies every table. Stored values never share mutable memory with
// callers (items slices are copied on write), so a shallow copy per table is
// enough.
func (s *state) clone() *state {
	return &state{
		sesiones:   maps.Clone(s.sesiones),
		movCaja:    slices.Clone(s.movCaja),
		productos:  maps.Clone(s.productos),
		movStock:   slices.Clone(s.movStock),
		ventas:     maps.Clone(s.ventas),
		secuencias: maps.Clone(s.secuencias),
		clientes:   maps.Clone(s.clientes),
		movCliente: slices.Clone(s.movCliente),
		usuarios:   maps.Clone(s.usuarios),
	}
}

type fault struct {
	err       error
	remaining int // <= 0 means every call fails
}

// Store implements repository.Store in memory.
type Store struct {
	mu sync.Mutex
	st *state

	faultMu sync.Mutex
	faults  map[string]*fault
}

var _ repository.Store = (*Store)(nil)

func New() *Store {
	return &Store{st: newState(), faults: make(map[string]*fault)}
}

// InjectFault makes the next `times` calls of op fail with err; times <= 0
// fails every call until ClearFaults. Operation names are "<repo>.<Method>",
// e.g. "clientes.CreateMovimiento".
func (s *Store) InjectFault(op string, err error, times int) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.faults[op] = &fault{err: err, remaining: times}
}

func (s *Store) ClearFaults() {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.faults = make(map[string]*fault)
}

func (s *Store) fault(op string) error {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	f, ok := s.faults[op]
	if !ok {
		return nil
	}
	if f.remaining > 0 {
		f.remaining--
		if f.remaining == 0 {
			delete(s.faults, op)
		}
	}
	return f.err
}

func (s *Store) Repos() repository.Repos { return reposFor(&view{s: s}) }

// RunInTx must not call Repos() from inside fn: the store mutex is held for
// the whole transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(r repository.Repos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(reposFor(&view{s: s, tx: work})); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

// view resolves which state an operation reads and writes: the transaction
// copy when inside RunInTx, the committed state (under the mutex) otherwise.
type view struct {
	s  *Store
	tx *state
}

func (v *view) begin(op string) (*state, func(), error) {
	if err := v.s.fault(op); err != nil {
		return nil, nil, err
	}
	if v.tx != nil {
		return v.tx, func() {}, nil
	}
	v.s.mu.Lock()
	return v.s.st, v.s.mu.Unlock, nil
}

func reposFor(v *view) repository.Repos {
	return repository.Repos{
		Cajas:     &cajaRepo{v},
		Ventas:    &ventaRepo{v},
		Productos: &productoRepo{v},
		Stock:     &stockRepo{v},
		Clientes:  &clienteRepo{v},
		Usuarios:  &usuarioRepo{v},
	}
}

func conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", repository.ErrConflict, fmt.Sprintf(format, args...))
}

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func ensureTime(t *time.Time) {
	if t.IsZero() {
		*t = time.Now()
	}
}

func page[T any](all []T, pageNum, limit int) []T {
	if pageNum < 1 {
		pageNum = 1
	}
	if limit < 1 {
		return all
	}
	start := (pageNum - 1) * limit
	if start >= len(all) {
		return nil
	}
	end := min(start+limit, len(all))
	return all[start:end]
}
