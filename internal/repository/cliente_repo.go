package repository

import (
	"context"

	"autopartes/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ClienteRepository interface {
	Create(ctx context.Context, c *model.Cliente) error
	// Update writes profile fields only; saldo is never touched here.
	Update(ctx context.Context, c *model.Cliente) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Cliente, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Cliente, error)
	List(ctx context.Context, query string) ([]model.Cliente, error)
	ListDeudores(ctx context.Context, limit int) ([]model.Cliente, error)
	// SumSaldos returns the total owed (positive balances) and the total held
	// as credit (negative balances, returned as a negative number).
	SumSaldos(ctx context.Context) (deuda, aFavor decimal.Decimal, err error)

	AjustarSaldo(ctx context.Context, id uuid.UUID, delta decimal.Decimal) error
	CreateMovimiento(ctx context.Context, m *model.MovimientoCliente) error
	// ListMovimientos returns the ledger oldest first.
	ListMovimientos(ctx context.Context, clienteID uuid.UUID) ([]model.MovimientoCliente, error)

	// ContarHistorial counts the sales and ledger entries that reference the
	// client.
	ContarHistorial(ctx context.Context, id uuid.UUID) (int64, error)
	// Delete fails with ErrReferenced while a sale still points at the client.
	Delete(ctx context.Context, id uuid.UUID) error
}

type clienteRepo struct{ db *gorm.DB }

func NewClienteRepository(db *gorm.DB) ClienteRepository { return &clienteRepo{db: db} }

func (r *clienteRepo) Create(ctx context.Context, c *model.Cliente) error {
	return translate(r.db.WithContext(ctx).Create(c).Error)
}

func (r *clienteRepo) Update(ctx context.Context, c *model.Cliente) error {
	res := r.db.WithContext(ctx).Model(c).
		Select("nombre", "cuit", "email", "telefono", "direccion", "condicion_iva", "cuenta_corriente", "updated_at").
		Updates(c)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *clienteRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Cliente, error) {
	var c model.Cliente
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r *clienteRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Cliente, error) {
	var c model.Cliente
	err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&c, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r *clienteRepo) List(ctx context.Context, query string) ([]model.Cliente, error) {
	var clientes []model.Cliente
	q := r.db.WithContext(ctx)
	if query != "" {
		like := containsPattern(query)
		q = q.Where(`nombre ILIKE ? ESCAPE '\' OR cuit ILIKE ? ESCAPE '\'`, like, like)
	}
	err := q.Order("nombre ASC").Find(&clientes).Error
	return clientes, translate(err)
}

func (r *clienteRepo) ListDeudores(ctx context.Context, limit int) ([]model.Cliente, error) {
	var clientes []model.Cliente
	err := r.db.WithContext(ctx).Where("saldo > 0").Order("saldo DESC").Limit(limit).Find(&clientes).Error
	return clientes, translate(err)
}

func (r *clienteRepo) SumSaldos(ctx context.Context) (decimal.Decimal, decimal.Decimal, error) {
	var row struct {
		Deuda  decimal.Decimal
		AFavor decimal.Decimal
	}
	err := r.db.WithContext(ctx).Model(&model.Cliente{}).
		Select("COALESCE(SUM(CASE WHEN saldo > 0 THEN saldo END), 0) AS deuda, " +
			"COALESCE(SUM(CASE WHEN saldo < 0 THEN saldo END), 0) AS a_favor").
		Scan(&row).Error
	return row.Deuda, row.AFavor, translate(err)
}

func (r *clienteRepo) AjustarSaldo(ctx context.Context, id uuid.UUID, delta decimal.Decimal) error {
	res := r.db.WithContext(ctx).Model(&model.Cliente{}).Where("id = ?", id).
		Update("saldo", gorm.Expr("saldo + ?", delta))
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *clienteRepo) CreateMovimiento(ctx context.Context, m *model.MovimientoCliente) error {
	return translate(r.db.WithContext(ctx).Create(m).Error)
}

func (r *clienteRepo) ListMovimientos(ctx context.Context, clienteID uuid.UUID) ([]model.MovimientoCliente, error) {
	var movs []model.MovimientoCliente
	err := r.db.WithContext(ctx).Where("cliente_id = ?", clienteID).
		Order("created_at ASC").Find(&movs).Error
	return movs, translate(err)
}

func (r *clienteRepo) ContarHistorial(ctx context.Context, id uuid.UUID) (int64, error) {
	var row struct {
		Ventas      int64
		Movimientos int64
	}
	err := r.db.WithContext(ctx).Raw(`
		SELECT (SELECT COUNT(*) FROM ventas WHERE cliente_id = ?) AS ventas,
		       (SELECT COUNT(*) FROM movimientos_cliente WHERE cliente_id = ?) AS movimientos`, id, id).
		Scan(&row).Error
	return row.Ventas + row.Movimientos, translate(err)
}

func (r *clienteRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&model.Cliente{}, "id = ?", id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
