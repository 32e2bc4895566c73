package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Producto is a sellable part. StockActual is the live counter the sale
// engine decrements; it never goes below zero.
type Producto struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SKU          string    `gorm:"uniqueIndex;not null"`
	Nombre       string    `gorm:"index;not null"`
	Descripcion  *string
	Marca        *string
	Categoria    string          `gorm:"not null;default:'General'"`
	PrecioCompra decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	PrecioLista  decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	// AlicuotaIVA is a percentage (21 = 21%)
	AlicuotaIVA decimal.Decimal `gorm:"type:decimal(5,2);not null;default:21"`
	StockActual int             `gorm:"not null;default:0"`
	StockMinimo int             `gorm:"not null;default:5"`
	Activo      bool            `gorm:"not null;default:true"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (p *Producto) BajoStock() bool { return p.StockActual <= p.StockMinimo }
