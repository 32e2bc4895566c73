package repository

import (
	"context"

	"autopartes/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProductoFilter narrows product listings. Query matches SKU or name.
type ProductoFilter struct {
	Query     string
	Categoria string
	SoloBajo  bool
	Page      int
	Limit     int
}

// ValorCategoria is one category of the stock valuation. Valor is priced at
// list price plus IVA and left unrounded.
type ValorCategoria struct {
	Categoria string
	Unidades  int64
	Valor     decimal.Decimal
}

// ProductoRepository defines the data access contract for products.
// Services depend on this interface, not on the concrete GORM implementation.
type ProductoRepository interface {
	Create(ctx context.Context, p *model.Producto) error
	Update(ctx context.Context, p *model.Producto) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Producto, error)
	// FindByIDForUpdate locks the row until the surrounding transaction ends.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Producto, error)
	List(ctx context.Context, filter ProductoFilter) ([]model.Producto, int64, error)
	// DescontarStock decrements stock only if enough is available; it reports
	// false without touching the row otherwise.
	DescontarStock(ctx context.Context, id uuid.UUID, cantidad int) (bool, error)
	// AjustarStock applies a signed delta, refusing to go below zero.
	AjustarStock(ctx context.Context, id uuid.UUID, delta int) (bool, error)
	ListBajoStock(ctx context.Context) ([]model.Producto, error)
	// ValorizarPorCategoria aggregates active products by category.
	ValorizarPorCategoria(ctx context.Context) ([]ValorCategoria, error)
}

type productoRepo struct{ db *gorm.DB }

func NewProductoRepository(db *gorm.DB) ProductoRepository { return &productoRepo{db: db} }

func (r *productoRepo) Create(ctx context.Context, p *model.Producto) error {
	return translate(r.db.WithContext(ctx).Create(p).Error)
}

// Update writes catalogue fields; stock_actual is only changed through the
// stock operations.
func (r *productoRepo) Update(ctx context.Context, p *model.Producto) error {
	res := r.db.WithContext(ctx).Model(p).
		Select("sku", "nombre", "descripcion", "marca", "categoria", "precio_compra",
			"precio_lista", "alicuota_iva", "stock_minimo", "activo", "updated_at").
		Updates(p)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *productoRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Producto, error) {
	var p model.Producto
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *productoRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Producto, error) {
	var p model.Producto
	err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *productoRepo) List(ctx context.Context, filter ProductoFilter) ([]model.Producto, int64, error) {
	var productos []model.Producto
	var total int64

	q := r.db.WithContext(ctx).Model(&model.Producto{}).Where("activo = true")
	if filter.Query != "" {
		like := containsPattern(filter.Query)
		q = q.Where(`sku ILIKE ? ESCAPE '\' OR nombre ILIKE ? ESCAPE '\'`, like, like)
	}
	if filter.Categoria != "" {
		q = q.Where("categoria = ?", filter.Categoria)
	}
	if filter.SoloBajo {
		q = q.Where("stock_actual <= stock_minimo")
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	offset := (filter.Page - 1) * filter.Limit
	err := q.Order("nombre ASC").Limit(filter.Limit).Offset(offset).Find(&productos).Error
	return productos, total, translate(err)
}

func (r *productoRepo) DescontarStock(ctx context.Context, id uuid.UUID, cantidad int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Producto{}).
		Where("id = ? AND stock_actual >= ?", id, cantidad).
		Update("stock_actual", gorm.Expr("stock_actual - ?", cantidad))
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *productoRepo) AjustarStock(ctx context.Context, id uuid.UUID, delta int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Producto{}).
		Where("id = ? AND stock_actual + ? >= 0", id, delta).
		Update("stock_actual", gorm.Expr("stock_actual + ?", delta))
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *productoRepo) ListBajoStock(ctx context.Context) ([]model.Producto, error) {
	var productos []model.Producto
	err := r.db.WithContext(ctx).
		Where("activo = true AND stock_actual <= stock_minimo").
		Order("stock_actual ASC, nombre ASC").
		Find(&productos).Error
	return productos, translate(err)
}

func (r *productoRepo) ValorizarPorCategoria(ctx context.Context) ([]ValorCategoria, error) {
	var rows []ValorCategoria
	err := r.db.WithContext(ctx).Model(&model.Producto{}).
		Select("categoria, SUM(stock_actual) AS unidades, " +
			"SUM(stock_actual * precio_lista * (1 + alicuota_iva / 100)) AS valor").
		Where("activo = true").
		Group("categoria").
		Scan(&rows).Error
	return rows, translate(err)
}
