package dto

import "github.com/shopspring/decimal"

type RangoQuery struct {
	Rango string `form:"rango,default=week" validate:"oneof=week month"`
}

type LimitQuery struct {
	Limit int `form:"limit,default=10" validate:"min=1,max=100"`
}

type VentasDiaResponse struct {
	Fecha    string          `json:"fecha"`
	Cantidad int             `json:"cantidad"`
	Total    decimal.Decimal `json:"total"`
}

type FlujoCajaDiaResponse struct {
	Fecha    string          `json:"fecha"`
	Ingresos decimal.Decimal `json:"ingresos"`
	Egresos  decimal.Decimal `json:"egresos"`
	Neto     decimal.Decimal `json:"neto"`
}

type ProductoVendidoResponse struct {
	ProductoID string          `json:"producto_id"`
	SKU        string          `json:"sku"`
	Nombre     string          `json:"nombre"`
	Cantidad   int64           `json:"cantidad"`
	Total      decimal.Decimal `json:"total"`
}

type ClienteDeudorResponse struct {
	ID     string          `json:"id"`
	Nombre string          `json:"nombre"`
	Saldo  decimal.Decimal `json:"saldo"`
}

type DeudaClientesResponse struct {
	DeudaTotal       decimal.Decimal         `json:"deuda_total"`
	SaldoAFavorTotal decimal.Decimal         `json:"saldo_a_favor_total"`
	Deudores         []ClienteDeudorResponse `json:"deudores"`
}

type CategoriaValorResponse struct {
	Nombre   string          `json:"nombre"`
	Unidades int64           `json:"unidades"`
	Valor    decimal.Decimal `json:"valor"`
}

// ValorizacionStockResponse prices the stock on hand at list price plus IVA.
// Categorias holds the five most valuable categories.
type ValorizacionStockResponse struct {
	TotalUnidades int64                    `json:"total_unidades"`
	ValorTotal    decimal.Decimal          `json:"valor_total"`
	Categorias    []CategoriaValorResponse `json:"categorias"`
}

type SaludNegocioResponse struct {
	Puntaje       decimal.Decimal `json:"puntaje"`
	Estado        string          `json:"estado"`
	VentasPeriodo decimal.Decimal `json:"ventas_periodo"`
	ValorStock    decimal.Decimal `json:"valor_stock"`
	Desde         string          `json:"desde"`
}
