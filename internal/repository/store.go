package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repos groups every repository bound to the same connection or transaction.
type Repos struct {
	Cajas     CajaRepository
	Ventas    VentaRepository
	Productos ProductoRepository
	Stock     MovimientoStockRepository
	Clientes  ClienteRepository
	Usuarios  UsuarioRepository
}

// Store is the transactional ledger store consumed by the services.
// Repos() serves reads and single-statement writes; RunInTx runs fn against
// repositories bound to one transaction, committing only if fn returns nil.
type Store interface {
	Repos() Repos
	RunInTx(ctx context.Context, fn func(r Repos) error) error
	Ping(ctx context.Context) error
}

type gormStore struct{ db *gorm.DB }

// NewStore returns the PostgreSQL-backed Store.
func NewStore(db *gorm.DB) Store { return &gormStore{db: db} }

func newRepos(db *gorm.DB) Repos {
	return Repos{
		Cajas:     NewCajaRepository(db),
		Ventas:    NewVentaRepository(db),
		Productos: NewProductoRepository(db),
		Stock:     NewMovimientoStockRepository(db),
		Clientes:  NewClienteRepository(db),
		Usuarios:  NewUsuarioRepository(db),
	}
}

func (s *gormStore) Repos() Repos { return newRepos(s.db) }

// RunInTx uses READ COMMITTED plus explicit row locks (SELECT ... FOR UPDATE),
// guarded updates and unique indexes; see the repositories for each guard.
func (s *gormStore) RunInTx(ctx context.Context, fn func(r Repos) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(newRepos(tx))
	})
	return translate(err)
}

func (s *gormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
