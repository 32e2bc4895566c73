package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Condiciones frente al IVA.
const (
	CondicionResponsableInscripto = "Responsable Inscripto"
	CondicionMonotributista       = "Monotributista"
	CondicionExento               = "Exento"
	CondicionConsumidorFinal      = "Consumidor Final"
)

const (
	MovClienteVenta      = "venta"
	MovClientePago       = "pago"
	MovClienteUsoCredito = "uso_credito"
)

// Cliente is a customer. Saldo > 0 means the client owes money; Saldo < 0 is
// "saldo a favor". Saldo only changes together with a MovimientoCliente.
type Cliente struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Nombre          string    `gorm:"index;not null"`
	CUIT            *string   `gorm:"uniqueIndex"`
	Email           *string
	Telefono        *string
	Direccion       *string
	CondicionIVA    string          `gorm:"not null;default:'Consumidor Final'"`
	CuentaCorriente bool            `gorm:"not null;default:false"`
	Saldo           decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// MovimientoCliente is an append-only ledger entry. Monto is a signed delta on
// the client's balance: venta and uso_credito are positive, pago is negative.
type MovimientoCliente struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ClienteID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	Tipo        string          `gorm:"type:varchar(20);not null"`
	Monto       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Descripcion string          `gorm:"not null"`
	VentaID     *uuid.UUID      `gorm:"type:uuid"`
	UsuarioID   *uuid.UUID      `gorm:"type:uuid"`
	CreatedAt   time.Time       `gorm:"index"`
}

func (MovimientoCliente) TableName() string { return "movimientos_cliente" }
