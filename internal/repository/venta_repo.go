package repository

import (
	"context"
	"time"

	"autopartes/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// VentaFilter narrows sales listings. Query matches the invoice number or the
// client name; Desde/Hasta bound created_at as [Desde, Hasta).
type VentaFilter struct {
	Query string
	Desde *time.Time
	Hasta *time.Time
	Page  int
	Limit int
}

// ProductoVendido is one row of the top-products aggregation.
type ProductoVendido struct {
	ProductoID uuid.UUID
	SKU        string
	Nombre     string
	Cantidad   int64
	Total      decimal.Decimal
}

type VentaRepository interface {
	// NextSecuencia atomically increments and returns the counter for tipo.
	// The counter row stays locked until the surrounding transaction ends.
	NextSecuencia(ctx context.Context, tipo string) (int64, error)
	Create(ctx context.Context, v *model.Venta) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Venta, error)
	List(ctx context.Context, filter VentaFilter) ([]model.Venta, int64, error)
	ListEntre(ctx context.Context, desde, hasta time.Time) ([]model.Venta, error)
	// SumTotalEntre adds the totals of sales created in [desde, hasta).
	SumTotalEntre(ctx context.Context, desde, hasta time.Time) (decimal.Decimal, error)
	TopProductos(ctx context.Context, desde, hasta time.Time, limit int) ([]ProductoVendido, error)
}

type ventaRepo struct{ db *gorm.DB }

func NewVentaRepository(db *gorm.DB) VentaRepository { return &ventaRepo{db: db} }

func (r *ventaRepo) NextSecuencia(ctx context.Context, tipo string) (int64, error) {
	var ultimo int64
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO secuencias_factura (tipo, ultimo) VALUES (?, 1)
		ON CONFLICT (tipo) DO UPDATE SET ultimo = secuencias_factura.ultimo + 1
		RETURNING ultimo`, tipo).Scan(&ultimo).Error
	return ultimo, translate(err)
}

// Create inserts the sale and its items; the client row is never written.
func (r *ventaRepo) Create(ctx context.Context, v *model.Venta) error {
	return translate(r.db.WithContext(ctx).Omit("Cliente").Create(v).Error)
}

func (r *ventaRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Venta, error) {
	var v model.Venta
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("nombre ASC") }).
		Preload("Cliente").
		First(&v, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &v, nil
}

func (r *ventaRepo) List(ctx context.Context, filter VentaFilter) ([]model.Venta, int64, error) {
	var ventas []model.Venta
	var total int64

	q := r.db.WithContext(ctx).Model(&model.Venta{})
	if filter.Query != "" {
		like := containsPattern(filter.Query)
		q = q.Where(`ventas.numero_factura ILIKE ? ESCAPE '\' OR ventas.cliente_id IN (?)`, like,
			r.db.Model(&model.Cliente{}).Select("id").Where(`nombre ILIKE ? ESCAPE '\'`, like))
	}
	if filter.Desde != nil {
		q = q.Where("ventas.created_at >= ?", *filter.Desde)
	}
	if filter.Hasta != nil {
		q = q.Where("ventas.created_at < ?", *filter.Hasta)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	offset := (filter.Page - 1) * filter.Limit
	err := q.Preload("Items").Preload("Cliente").
		Order("ventas.created_at DESC").
		Offset(offset).Limit(filter.Limit).
		Find(&ventas).Error
	return ventas, total, translate(err)
}

func (r *ventaRepo) ListEntre(ctx context.Context, desde, hasta time.Time) ([]model.Venta, error) {
	var ventas []model.Venta
	err := r.db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", desde, hasta).
		Order("created_at ASC").Find(&ventas).Error
	return ventas, translate(err)
}

func (r *ventaRepo) SumTotalEntre(ctx context.Context, desde, hasta time.Time) (decimal.Decimal, error) {
	var row struct{ Total decimal.Decimal }
	err := r.db.WithContext(ctx).Model(&model.Venta{}).
		Select("COALESCE(SUM(total), 0) AS total").
		Where("created_at >= ? AND created_at < ?", desde, hasta).
		Scan(&row).Error
	return row.Total, translate(err)
}

func (r *ventaRepo) TopProductos(ctx context.Context, desde, hasta time.Time, limit int) ([]ProductoVendido, error) {
	var rows []ProductoVendido
	err := r.db.WithContext(ctx).Table("venta_items").
		Select("venta_items.producto_id, MAX(venta_items.sku) AS sku, MAX(venta_items.nombre) AS nombre, "+
			"SUM(venta_items.cantidad) AS cantidad, SUM(venta_items.total) AS total").
		Joins("JOIN ventas ON ventas.id = venta_items.venta_id").
		Where("ventas.created_at >= ? AND ventas.created_at < ?", desde, hasta).
		Group("venta_items.producto_id").
		Order("cantidad DESC, total DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, translate(err)
}
