package handler

import (
	"net/http"

	"autopartes/internal/dto"
	"autopartes/internal/service"

	"github.com/gin-gonic/gin"
)

type ReportesHandler struct{ svc service.ReporteService }

func NewReportesHandler(svc service.ReporteService) *ReportesHandler {
	return &ReportesHandler{svc: svc}
}

// VentasPorDia godoc
// @Summary Total vendido por día
// @Tags reportes
// @Produce json
// @Security BearerAuth
// @Param rango query string false "week | month"
// @Success 200 {array} dto.VentasDiaResponse
// @Router /v1/reportes/ventas [get]
func (h *ReportesHandler) VentasPorDia(c *gin.Context) {
	var q dto.RangoQuery
	if !bindQuery(c, &q) {
		return
	}
	resp, err := h.svc.VentasPorDia(c.Request.Context(), q.Rango)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// FlujoDeCaja godoc
// @Summary Ingresos y egresos de caja por día
// @Tags reportes
// @Produce json
// @Security BearerAuth
// @Param rango query string false "week | month"
// @Success 200 {array} dto.FlujoCajaDiaResponse
// @Router /v1/reportes/flujo-caja [get]
func (h *ReportesHandler) FlujoDeCaja(c *gin.Context) {
	var q dto.RangoQuery
	if !bindQuery(c, &q) {
		return
	}
	resp, err := h.svc.FlujoDeCaja(c.Request.Context(), q.Rango)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ReportesHandler) TopProductos(c *gin.Context) {
	var q dto.LimitQuery
	if !bindQuery(c, &q) {
		return
	}
	resp, err := h.svc.TopProductos(c.Request.Context(), q.Limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ReportesHandler) DeudaClientes(c *gin.Context) {
	var q dto.LimitQuery
	if !bindQuery(c, &q) {
		return
	}
	resp, err := h.svc.DeudaClientes(c.Request.Context(), q.Limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ValorizacionStock godoc
// @Summary Valor del stock a precio de lista con IVA
// @Tags reportes
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.ValorizacionStockResponse
// @Router /v1/reportes/stock [get]
func (h *ReportesHandler) ValorizacionStock(c *gin.Context) {
	resp, err := h.svc.ValorizacionStock(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ReportesHandler) SaludNegocio(c *gin.Context) {
	resp, err := h.svc.SaludNegocio(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
