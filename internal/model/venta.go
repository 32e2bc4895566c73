package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	MetodoEfectivo        = "efectivo"
	MetodoDebito          = "debito"
	MetodoCredito         = "credito"
	MetodoTransferencia   = "transferencia"
	MetodoCuentaCorriente = "cuenta_corriente"

	FacturaA = "A"
	FacturaB = "B"
	FacturaC = "C"
)

// MetodosPago lists every accepted payment method.
var MetodosPago = []string{MetodoEfectivo, MetodoDebito, MetodoCredito, MetodoTransferencia, MetodoCuentaCorriente}

// Venta is an immutable completed sale. Total = round(Subtotal + MontoIVA).
type Venta struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	NumeroFactura string          `gorm:"uniqueIndex;not null"` // {tipo}-{pdv}-{secuencia}
	TipoFactura   string          `gorm:"type:varchar(1);not null;uniqueIndex:idx_ventas_tipo_secuencia"`
	Secuencia     int64           `gorm:"not null;uniqueIndex:idx_ventas_tipo_secuencia"`
	ClienteID     *uuid.UUID      `gorm:"type:uuid;index"`
	UsuarioID     uuid.UUID       `gorm:"type:uuid;not null"`
	SesionCajaID  *uuid.UUID      `gorm:"type:uuid;index"`
	Subtotal      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	MontoIVA      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Total         decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	MetodoPago    string          `gorm:"type:varchar(20);not null"`
	CreditoUsado  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	CreatedAt     time.Time       `gorm:"index"`

	Items   []VentaItem `gorm:"foreignKey:VentaID"`
	Cliente *Cliente    `gorm:"foreignKey:ClienteID"`
}

// VentaItem is a frozen snapshot of a product line at sale time.
type VentaItem struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	VentaID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductoID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	SKU            string          `gorm:"not null"`
	Nombre         string          `gorm:"not null"`
	Cantidad       int             `gorm:"not null"`
	PrecioUnitario decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	AlicuotaIVA    decimal.Decimal `gorm:"type:decimal(5,2);not null"`
	Total          decimal.Decimal `gorm:"type:decimal(12,2);not null"`
}

func (VentaItem) TableName() string { return "venta_items" }

// SecuenciaFactura is the per-invoice-type counter incremented inside the
// sale transaction.
type SecuenciaFactura struct {
	Tipo   string `gorm:"type:varchar(1);primaryKey"`
	Ultimo int64  `gorm:"not null;default:0"`
}

func (SecuenciaFactura) TableName() string { return "secuencias_factura" }
