package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CrearProductoRequest struct {
	SKU          string          `json:"sku"           validate:"required,min=1,max=50"`
	Nombre       string          `json:"nombre"        validate:"required,min=2,max=150"`
	Descripcion  *string         `json:"descripcion"`
	Marca        *string         `json:"marca"         validate:"omitempty,max=80"`
	Categoria    string          `json:"categoria"     validate:"omitempty,max=80"`
	PrecioCompra decimal.Decimal `json:"precio_compra" validate:"min=0"`
	PrecioLista  decimal.Decimal `json:"precio_lista"  validate:"required,gt=0"`
	// AlicuotaIVA defaults to 21 when omitted.
	AlicuotaIVA  *decimal.Decimal `json:"alicuota_iva"`
	StockInicial int              `json:"stock_inicial" validate:"min=0"`
	StockMinimo  int              `json:"stock_minimo"  validate:"min=0"`
}

// ActualizarProductoRequest is a partial update of catalogue fields. Stock
// only changes through sales and adjustments.
type ActualizarProductoRequest struct {
	Nombre       *string          `json:"nombre"        validate:"omitempty,min=2,max=150"`
	Descripcion  *string          `json:"descripcion"`
	Marca        *string          `json:"marca"         validate:"omitempty,max=80"`
	Categoria    *string          `json:"categoria"     validate:"omitempty,max=80"`
	PrecioCompra *decimal.Decimal `json:"precio_compra"`
	PrecioLista  *decimal.Decimal `json:"precio_lista"`
	AlicuotaIVA  *decimal.Decimal `json:"alicuota_iva"`
	StockMinimo  *int             `json:"stock_minimo"  validate:"omitempty,min=0"`
	Activo       *bool            `json:"activo"`
}

// ─── Filter / Pagination ─────────────────────────────────────────────────────

type ProductoFilter struct {
	Q         string `form:"q"` // SKU or name
	Categoria string `form:"categoria"`
	BajoStock bool   `form:"bajo_stock"`
	Page      int    `form:"page,default=1"   validate:"min=1"`
	Limit     int    `form:"limit,default=20" validate:"min=1,max=100"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ProductoResponse struct {
	ID           string          `json:"id"`
	SKU          string          `json:"sku"`
	Nombre       string          `json:"nombre"`
	Descripcion  *string         `json:"descripcion"`
	Marca        *string         `json:"marca"`
	Categoria    string          `json:"categoria"`
	PrecioCompra decimal.Decimal `json:"precio_compra"`
	PrecioLista  decimal.Decimal `json:"precio_lista"`
	AlicuotaIVA  decimal.Decimal `json:"alicuota_iva"`
	PrecioFinal  decimal.Decimal `json:"precio_final"` // list price plus IVA
	StockActual  int             `json:"stock_actual"`
	StockMinimo  int             `json:"stock_minimo"`
	BajoStock    bool            `json:"bajo_stock"`
	Activo       bool            `json:"activo"`
}

type ProductoListResponse struct {
	Data  []ProductoResponse `json:"data"`
	Total int64              `json:"total"`
	Page  int                `json:"page"`
	Limit int                `json:"limit"`
}
