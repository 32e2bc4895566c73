package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EstadoCajaAbierta = "abierta"
	EstadoCajaCerrada = "cerrada"

	MovimientoIngreso = "ingreso"
	MovimientoEgreso  = "egreso"

	CategoriaGeneral  = "General"
	CategoriaApertura = "Apertura"
	CategoriaVenta    = "Venta"
	CategoriaCobroCC  = "Cobro Cuenta Corriente"
)

// SesionCaja represents the lifecycle of a cash register session.
// At most one row is "abierta" at any time (partial unique index).
type SesionCaja struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	PuntoDeVenta int             `gorm:"not null;default:1"`
	AbiertaPor   uuid.UUID       `gorm:"type:uuid;not null"`
	CerradaPor   *uuid.UUID      `gorm:"type:uuid"`
	MontoInicial decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	// Snapshots taken on close from movements linked to this session only.
	TotalIngresos  *decimal.Decimal `gorm:"type:decimal(12,2)"`
	TotalEgresos   *decimal.Decimal `gorm:"type:decimal(12,2)"`
	MontoDeclarado *decimal.Decimal `gorm:"type:decimal(12,2)"`
	Estado         string           `gorm:"type:varchar(20);not null;default:'abierta'"`
	Observaciones  *string
	OpenedAt       time.Time `gorm:"not null;index"`
	ClosedAt       *time.Time
}

func (SesionCaja) TableName() string { return "sesiones_caja" }

func (s *SesionCaja) Abierta() bool { return s.Estado == EstadoCajaAbierta }

// MovimientoCaja is a single cash-affecting event.
// Tipo: "ingreso" | "egreso". Monto is always positive.
type MovimientoCaja struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SesionCajaID *uuid.UUID      `gorm:"type:uuid;index"`
	Tipo         string          `gorm:"type:varchar(20);not null"`
	Monto        decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Descripcion  string          `gorm:"not null"`
	Categoria    string          `gorm:"not null;default:'General'"`
	UsuarioID    *uuid.UUID      `gorm:"type:uuid"`
	// VentaID links the movement to the sale that produced it, if any
	VentaID   *uuid.UUID `gorm:"type:uuid;index"`
	CreatedAt time.Time  `gorm:"index"`
}

func (MovimientoCaja) TableName() string { return "movimientos_caja" }
