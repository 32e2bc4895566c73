package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

// ClienteRequest creates or replaces a client's profile. The balance is not
// part of it.
type ClienteRequest struct {
	Nombre          string  `json:"nombre"           validate:"required,min=2,max=150"`
	CUIT            *string `json:"cuit"             validate:"omitempty,max=13"`
	Email           *string `json:"email"            validate:"omitempty,email"`
	Telefono        *string `json:"telefono"         validate:"omitempty,max=40"`
	Direccion       *string `json:"direccion"        validate:"omitempty,max=255"`
	CondicionIVA    string  `json:"condicion_iva"    validate:"omitempty,oneof='Responsable Inscripto' Monotributista Exento 'Consumidor Final'"`
	CuentaCorriente bool    `json:"cuenta_corriente"`
}

type PagoClienteRequest struct {
	Monto       decimal.Decimal `json:"monto"       validate:"required,gt=0"`
	Descripcion *string         `json:"descripcion" validate:"omitempty,max=255"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ClienteResponse struct {
	ID              string          `json:"id"`
	Nombre          string          `json:"nombre"`
	CUIT            *string         `json:"cuit"`
	Email           *string         `json:"email"`
	Telefono        *string         `json:"telefono"`
	Direccion       *string         `json:"direccion"`
	CondicionIVA    string          `json:"condicion_iva"`
	CuentaCorriente bool            `json:"cuenta_corriente"`
	Saldo           decimal.Decimal `json:"saldo"`
	CreatedAt       string          `json:"created_at"`
}

type PagoClienteResponse struct {
	ClienteID        string          `json:"cliente_id"`
	Monto            decimal.Decimal `json:"monto"`
	SaldoAnterior    decimal.Decimal `json:"saldo_anterior"`
	SaldoNuevo       decimal.Decimal `json:"saldo_nuevo"`
	MovimientoCajaID string          `json:"movimiento_caja_id"`
}

// MovimientoClienteResponse carries the running balance after the entry.
type MovimientoClienteResponse struct {
	ID             string          `json:"id"`
	Tipo           string          `json:"tipo"`
	Monto          decimal.Decimal `json:"monto"`
	Descripcion    string          `json:"descripcion"`
	VentaID        *string         `json:"venta_id"`
	SaldoAcumulado decimal.Decimal `json:"saldo_acumulado"`
	CreatedAt      string          `json:"created_at"`
}

type HistorialClienteResponse struct {
	Cliente     ClienteResponse             `json:"cliente"`
	Movimientos []MovimientoClienteResponse `json:"movimientos"`
	Saldo       decimal.Decimal             `json:"saldo"`
}

type ConciliacionResponse struct {
	ClienteID       string          `json:"cliente_id"`
	SaldoRegistrado decimal.Decimal `json:"saldo_registrado"`
	SaldoLedger     decimal.Decimal `json:"saldo_ledger"`
	Diferencia      decimal.Decimal `json:"diferencia"`
	Consistente     bool            `json:"consistente"`
	Movimientos     int             `json:"movimientos"`
}
