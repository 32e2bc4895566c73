package dto

import "github.com/shopspring/decimal"

// ─── Filter / List ──────────────────────────────────────────────────────────

// VentaFilter is bound from query string of GET /v1/ventas.
type VentaFilter struct {
	Q     string `form:"q"`     // invoice number or client name
	Fecha string `form:"fecha"` // YYYY-MM-DD; empty = all dates
	Page  int    `form:"page,default=1"   validate:"min=1"`
	Limit int    `form:"limit,default=50" validate:"min=1,max=200"`
}

type VentaListResponse struct {
	Data  []VentaResponse `json:"data"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

// ─── Request DTOs ────────────────────────────────────────────────────────────

type ItemVentaRequest struct {
	ProductoID string `json:"producto_id" validate:"required,uuid"`
	Cantidad   int    `json:"cantidad"    validate:"required,min=1"`
}

type RegistrarVentaRequest struct {
	ClienteID  *string            `json:"cliente_id"  validate:"omitempty,uuid"`
	Items      []ItemVentaRequest `json:"items"       validate:"required,min=1,dive"`
	MetodoPago string             `json:"metodo_pago" validate:"required,oneof=efectivo debito credito transferencia cuenta_corriente"`
	// TipoFactura is accepted for compatibility; the type is always derived
	// from the client's tax condition.
	TipoFactura string `json:"tipo_factura" validate:"omitempty,oneof=A B C"`
	UsarCredito bool   `json:"usar_credito"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ItemVentaResponse struct {
	ProductoID     string          `json:"producto_id"`
	SKU            string          `json:"sku"`
	Nombre         string          `json:"nombre"`
	Cantidad       int             `json:"cantidad"`
	PrecioUnitario decimal.Decimal `json:"precio_unitario"`
	AlicuotaIVA    decimal.Decimal `json:"alicuota_iva"`
	Total          decimal.Decimal `json:"total"`
}

type VentaResponse struct {
	ID            string              `json:"id"`
	NumeroFactura string              `json:"numero_factura"`
	TipoFactura   string              `json:"tipo_factura"`
	ClienteID     *string             `json:"cliente_id"`
	ClienteNombre *string             `json:"cliente_nombre"`
	SesionCajaID  *string             `json:"sesion_caja_id"`
	Subtotal      decimal.Decimal     `json:"subtotal"`
	MontoIVA      decimal.Decimal     `json:"monto_iva"`
	Total         decimal.Decimal     `json:"total"`
	CreditoUsado  decimal.Decimal     `json:"credito_usado"`
	RestantePago  decimal.Decimal     `json:"restante_pago"`
	MetodoPago    string              `json:"metodo_pago"`
	Items         []ItemVentaResponse `json:"items"`
	CreatedAt     string              `json:"created_at"`
}
