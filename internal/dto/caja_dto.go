package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type AbrirCajaRequest struct {
	MontoInicial decimal.Decimal `json:"monto_inicial" validate:"min=0"`
}

type CerrarCajaRequest struct {
	MontoDeclarado decimal.Decimal `json:"monto_declarado" validate:"min=0"`
	Observaciones  *string         `json:"observaciones"   validate:"omitempty,max=500"`
}

// MovimientoCajaRequest is used both to add a manual movement and to correct one.
type MovimientoCajaRequest struct {
	Tipo        string          `json:"tipo"        validate:"required,oneof=ingreso egreso"`
	Monto       decimal.Decimal `json:"monto"       validate:"required,gt=0"`
	Descripcion string          `json:"descripcion" validate:"required,min=3,max=255"`
	Categoria   string          `json:"categoria"   validate:"omitempty,max=60"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type SesionCajaResponse struct {
	ID             string           `json:"id"`
	PuntoDeVenta   int              `json:"punto_de_venta"`
	AbiertaPor     string           `json:"abierta_por"`
	CerradaPor     *string          `json:"cerrada_por"`
	MontoInicial   decimal.Decimal  `json:"monto_inicial"`
	TotalIngresos  *decimal.Decimal `json:"total_ingresos"`
	TotalEgresos   *decimal.Decimal `json:"total_egresos"`
	MontoDeclarado *decimal.Decimal `json:"monto_declarado"`
	Estado         string           `json:"estado"`
	Observaciones  *string          `json:"observaciones"`
	OpenedAt       string           `json:"opened_at"`
	ClosedAt       *string          `json:"closed_at"`
}

type MovimientoCajaResponse struct {
	ID           string          `json:"id"`
	SesionCajaID *string         `json:"sesion_caja_id"`
	Tipo         string          `json:"tipo"`
	Monto        decimal.Decimal `json:"monto"`
	Descripcion  string          `json:"descripcion"`
	Categoria    string          `json:"categoria"`
	VentaID      *string         `json:"venta_id"`
	CreatedAt    string          `json:"created_at"`
}

type EstadoCajaResponse struct {
	Abierta bool                `json:"abierta"`
	Saldo   decimal.Decimal     `json:"saldo"`
	Sesion  *SesionCajaResponse `json:"sesion"`
}

// VistaDiariaResponse totals are sums over Movimientos only; they are not the
// session's closing totals.
type VistaDiariaResponse struct {
	Fecha        string                   `json:"fecha"`
	Movimientos  []MovimientoCajaResponse `json:"movimientos"`
	Ingresos     decimal.Decimal          `json:"ingresos"`
	Egresos      decimal.Decimal          `json:"egresos"`
	UltimaSesion *SesionCajaResponse      `json:"ultima_sesion"`
}

// ReporteSesionResponse holds the authoritative totals of one session,
// computed only from movements linked to it.
type ReporteSesionResponse struct {
	Sesion         SesionCajaResponse `json:"sesion"`
	TotalIngresos  decimal.Decimal    `json:"total_ingresos"`
	TotalEgresos   decimal.Decimal    `json:"total_egresos"`
	SaldoEsperado  decimal.Decimal    `json:"saldo_esperado"`
	MontoDeclarado *decimal.Decimal   `json:"monto_declarado"`
	Diferencia     *decimal.Decimal   `json:"diferencia"`
}

type SesionListResponse struct {
	Data  []SesionCajaResponse `json:"data"`
	Total int64                `json:"total"`
	Page  int                  `json:"page"`
	Limit int                  `json:"limit"`
}

// PageQuery is bound from ?page=&limit=.
type PageQuery struct {
	Page  int `form:"page,default=1"   validate:"min=1"`
	Limit int `form:"limit,default=20" validate:"min=1,max=100"`
}
