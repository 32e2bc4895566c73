package repository

import (
	"context"
	"time"

	"autopartes/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CajaRepository interface {
	CreateSesion(ctx context.Context, s *model.SesionCaja) error
	// FindSesionAbierta returns ErrNotFound when the till is closed. Inside a
	// transaction the row is share-locked so a concurrent close waits.
	FindSesionAbierta(ctx context.Context) (*model.SesionCaja, error)
	// FindSesionAbiertaForUpdate locks the open session exclusively (close).
	FindSesionAbiertaForUpdate(ctx context.Context) (*model.SesionCaja, error)
	FindUltimaSesion(ctx context.Context) (*model.SesionCaja, error)
	FindSesionByID(ctx context.Context, id uuid.UUID) (*model.SesionCaja, error)
	UpdateSesion(ctx context.Context, s *model.SesionCaja) error
	ListSesiones(ctx context.Context, page, limit int) ([]model.SesionCaja, int64, error)

	CreateMovimiento(ctx context.Context, m *model.MovimientoCaja) error
	FindMovimientoByID(ctx context.Context, id uuid.UUID) (*model.MovimientoCaja, error)
	UpdateMovimiento(ctx context.Context, m *model.MovimientoCaja) error
	DeleteMovimiento(ctx context.Context, id uuid.UUID) error
	// SumMovimientos totals ingresos and egresos linked to the session id.
	SumMovimientos(ctx context.Context, sesionID uuid.UUID) (ingresos, egresos decimal.Decimal, err error)
	// ListMovimientosVista returns movements linked to sesionID (when not nil)
	// or created in [desde, hasta), newest first.
	ListMovimientosVista(ctx context.Context, sesionID *uuid.UUID, desde, hasta time.Time) ([]model.MovimientoCaja, error)
	ListMovimientosEntre(ctx context.Context, desde, hasta time.Time) ([]model.MovimientoCaja, error)
}

type cajaRepo struct{ db *gorm.DB }

func NewCajaRepository(db *gorm.DB) CajaRepository { return &cajaRepo{db: db} }

func (r *cajaRepo) CreateSesion(ctx context.Context, s *model.SesionCaja) error {
	return translate(r.db.WithContext(ctx).Create(s).Error)
}

func (r *cajaRepo) FindSesionAbierta(ctx context.Context) (*model.SesionCaja, error) {
	return r.findAbierta(ctx, "SHARE")
}

func (r *cajaRepo) FindSesionAbiertaForUpdate(ctx context.Context) (*model.SesionCaja, error) {
	return r.findAbierta(ctx, "UPDATE")
}

func (r *cajaRepo) findAbierta(ctx context.Context, strength string) (*model.SesionCaja, error) {
	var s model.SesionCaja
	err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: strength}).
		Where("estado = ?", model.EstadoCajaAbierta).First(&s).Error
	if err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *cajaRepo) FindUltimaSesion(ctx context.Context) (*model.SesionCaja, error) {
	var s model.SesionCaja
	err := r.db.WithContext(ctx).Order("opened_at DESC").First(&s).Error
	if err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *cajaRepo) FindSesionByID(ctx context.Context, id uuid.UUID) (*model.SesionCaja, error) {
	var s model.SesionCaja
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *cajaRepo) UpdateSesion(ctx context.Context, s *model.SesionCaja) error {
	return translate(r.db.WithContext(ctx).Save(s).Error)
}

func (r *cajaRepo) ListSesiones(ctx context.Context, page, limit int) ([]model.SesionCaja, int64, error) {
	var sesiones []model.SesionCaja
	var total int64
	q := r.db.WithContext(ctx).Model(&model.SesionCaja{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}
	err := q.Order("opened_at DESC").Offset((page - 1) * limit).Limit(limit).Find(&sesiones).Error
	return sesiones, total, translate(err)
}

func (r *cajaRepo) CreateMovimiento(ctx context.Context, m *model.MovimientoCaja) error {
	return translate(r.db.WithContext(ctx).Create(m).Error)
}

func (r *cajaRepo) FindMovimientoByID(ctx context.Context, id uuid.UUID) (*model.MovimientoCaja, error) {
	var m model.MovimientoCaja
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (r *cajaRepo) UpdateMovimiento(ctx context.Context, m *model.MovimientoCaja) error {
	res := r.db.WithContext(ctx).Model(&model.MovimientoCaja{}).Where("id = ?", m.ID).Updates(map[string]interface{}{
		"tipo":        m.Tipo,
		"monto":       m.Monto,
		"descripcion": m.Descripcion,
		"categoria":   m.Categoria,
	})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *cajaRepo) DeleteMovimiento(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&model.MovimientoCaja{}, "id = ?", id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *cajaRepo) SumMovimientos(ctx context.Context, sesionID uuid.UUID) (decimal.Decimal, decimal.Decimal, error) {
	var rows []struct {
		Tipo  string
		Total decimal.Decimal
	}
	err := r.db.WithContext(ctx).Model(&model.MovimientoCaja{}).
		Select("tipo, COALESCE(SUM(monto), 0) AS total").
		Where("sesion_caja_id = ?", sesionID).
		Group("tipo").
		Scan(&rows).Error
	if err != nil {
		return decimal.Zero, decimal.Zero, translate(err)
	}
	ingresos, egresos := decimal.Zero, decimal.Zero
	for _, row := range rows {
		switch row.Tipo {
		case model.MovimientoIngreso:
			ingresos = row.Total
		case model.MovimientoEgreso:
			egresos = row.Total
		}
	}
	return ingresos, egresos, nil
}

func (r *cajaRepo) ListMovimientosVista(ctx context.Context, sesionID *uuid.UUID, desde, hasta time.Time) ([]model.MovimientoCaja, error) {
	var movs []model.MovimientoCaja
	q := r.db.WithContext(ctx)
	if sesionID != nil {
		q = q.Where("sesion_caja_id = ? OR (created_at >= ? AND created_at < ?)", *sesionID, desde, hasta)
	} else {
		q = q.Where("created_at >= ? AND created_at < ?", desde, hasta)
	}
	err := q.Order("created_at DESC").Find(&movs).Error
	return movs, translate(err)
}

func (r *cajaRepo) ListMovimientosEntre(ctx context.Context, desde, hasta time.Time) ([]model.MovimientoCaja, error) {
	var movs []model.MovimientoCaja
	err := r.db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", desde, hasta).
		Order("created_at ASC").Find(&movs).Error
	return movs, translate(err)
}
