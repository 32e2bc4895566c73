package handler

import (
	"net/http"

	"autopartes/internal/dto"
	"autopartes/internal/middleware"
	"autopartes/internal/service"

	"github.com/gin-gonic/gin"
)

type CajaHandler struct{ svc service.CajaService }

func NewCajaHandler(svc service.CajaService) *CajaHandler { return &CajaHandler{svc: svc} }

// Abrir godoc
// @Summary Abre la caja con un monto inicial
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.AbrirCajaRequest true "Datos de apertura"
// @Success 201 {object} dto.SesionCajaResponse
// @Failure 409 {object} apierror.APIError "caja_ya_abierta"
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/caja/abrir [post]
func (h *CajaHandler) Abrir(c *gin.Context) {
	var req dto.AbrirCajaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Abrir(c.Request.Context(), middleware.UsuarioID(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Cerrar godoc
// @Summary Cierra la caja abierta registrando el monto declarado
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.CerrarCajaRequest true "Cierre"
// @Success 200 {object} dto.SesionCajaResponse
// @Failure 409 {object} apierror.APIError "sin_caja_abierta"
// @Router /v1/caja/cerrar [post]
func (h *CajaHandler) Cerrar(c *gin.Context) {
	var req dto.CerrarCajaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Cerrar(c.Request.Context(), middleware.UsuarioID(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Estado godoc
// @Summary Indica si la caja está abierta y su saldo actual
// @Tags caja
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.EstadoCajaResponse
// @Router /v1/caja/estado [get]
func (h *CajaHandler) Estado(c *gin.Context) {
	resp, err := h.svc.Estado(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Diaria godoc
// @Summary Movimientos del día más los de la caja abierta
// @Tags caja
// @Produce json
// @Security BearerAuth
// @Param fecha query string false "AAAA-MM-DD (hoy por defecto)"
// @Success 200 {object} dto.VistaDiariaResponse
// @Router /v1/caja/diaria [get]
func (h *CajaHandler) Diaria(c *gin.Context) {
	resp, err := h.svc.VistaDiaria(c.Request.Context(), c.Query("fecha"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RegistrarMovimiento godoc
// @Summary Registra un ingreso o egreso manual en caja
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.MovimientoCajaRequest true "Movimiento manual"
// @Success 201 {object} dto.MovimientoCajaResponse
// @Failure 409 {object} apierror.APIError "caja_cerrada"
// @Router /v1/caja/movimientos [post]
func (h *CajaHandler) RegistrarMovimiento(c *gin.Context) {
	var req dto.MovimientoCajaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.RegistrarMovimiento(c.Request.Context(), middleware.UsuarioID(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ActualizarMovimiento corrects a movement (administrador only).
func (h *CajaHandler) ActualizarMovimiento(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.MovimientoCajaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.ActualizarMovimiento(c.Request.Context(), id, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *CajaHandler) EliminarMovimiento(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.EliminarMovimiento(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ObtenerReporte godoc
// @Summary Totales de una sesión de caja
// @Tags caja
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de sesion"
// @Success 200 {object} dto.ReporteSesionResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/caja/{id}/reporte [get]
func (h *CajaHandler) ObtenerReporte(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.ObtenerReporte(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Historial returns a paginated list of sessions, newest first.
func (h *CajaHandler) Historial(c *gin.Context) {
	var q dto.PageQuery
	if !bindQuery(c, &q) {
		return
	}
	resp, err := h.svc.Historial(c.Request.Context(), q.Page, q.Limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
