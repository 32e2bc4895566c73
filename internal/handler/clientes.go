package handler

import (
	"net/http"

	"autopartes/internal/dto"
	"autopartes/internal/middleware"
	"autopartes/internal/service"

	"github.com/gin-gonic/gin"
)

type ClientesHandler struct{ svc service.ClienteService }

func NewClientesHandler(svc service.ClienteService) *ClientesHandler {
	return &ClientesHandler{svc: svc}
}

// Crear godoc
// @Summary Alta de cliente
// @Tags clientes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.ClienteRequest true "Cliente"
// @Success 201 {object} dto.ClienteResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/clientes [post]
func (h *ClientesHandler) Crear(c *gin.Context) {
	var req dto.ClienteRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Crear(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Listar godoc
// @Summary Listar clientes
// @Tags clientes
// @Produce json
// @Security BearerAuth
// @Param q query string false "Nombre o CUIT"
// @Success 200 {array} dto.ClienteResponse
// @Router /v1/clientes [get]
func (h *ClientesHandler) Listar(c *gin.Context) {
	resp, err := h.svc.Listar(c.Request.Context(), c.Query("q"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ClientesHandler) ObtenerPorID(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.ObtenerPorID(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ClientesHandler) Actualizar(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.ClienteRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Actualizar(c.Request.Context(), id, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RegistrarPago godoc
// @Summary Registra un pago de cuenta corriente
// @Description Reduce el saldo del cliente e ingresa el efectivo en la caja abierta.
// @Tags clientes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "UUID del cliente"
// @Param body body dto.PagoClienteRequest true "Pago"
// @Success 201 {object} dto.PagoClienteResponse
// @Failure 404 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError "caja_cerrada"
// @Router /v1/clientes/{id}/pagos [post]
func (h *ClientesHandler) RegistrarPago(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.PagoClienteRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.RegistrarPago(c.Request.Context(), middleware.UsuarioID(c), id, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Historial godoc
// @Summary Libro de cuenta corriente con saldo acumulado
// @Tags clientes
// @Produce json
// @Security BearerAuth
// @Param id path string true "UUID del cliente"
// @Success 200 {object} dto.HistorialClienteResponse
// @Router /v1/clientes/{id}/historial [get]
func (h *ClientesHandler) Historial(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Historial(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Conciliar compares the stored balance with the sum of the ledger.
func (h *ClientesHandler) Conciliar(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Conciliar(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Eliminar godoc
// @Summary Baja de cliente sin historial
// @Tags clientes
// @Security BearerAuth
// @Param id path string true "ID del cliente"
// @Success 204
// @Failure 404 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/clientes/{id} [delete]
func (h *ClientesHandler) Eliminar(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Eliminar(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
