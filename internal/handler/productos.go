package handler

import (
	"net/http"

	"autopartes/internal/dto"
	"autopartes/internal/middleware"
	"autopartes/internal/service"

	"github.com/gin-gonic/gin"
)

type ProductosHandler struct {
	svc        service.ProductoService
	inventario service.InventarioService
}

func NewProductosHandler(svc service.ProductoService, inventario service.InventarioService) *ProductosHandler {
	return &ProductosHandler{svc: svc, inventario: inventario}
}

// Crear godoc
// @Summary Alta de producto
// @Tags productos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.CrearProductoRequest true "Producto"
// @Success 201 {object} dto.ProductoResponse
// @Failure 409 {object} apierror.APIError "SKU duplicado"
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/productos [post]
func (h *ProductosHandler) Crear(c *gin.Context) {
	var req dto.CrearProductoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Crear(c.Request.Context(), middleware.UsuarioID(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Listar godoc
// @Summary Listar productos
// @Tags productos
// @Produce json
// @Security BearerAuth
// @Param q          query string false "SKU o nombre"
// @Param categoria  query string false "Categoría"
// @Param bajo_stock query bool   false "Solo productos con stock bajo el mínimo"
// @Param page       query int    false "Página"
// @Param limit      query int    false "Tamaño de página"
// @Success 200 {object} dto.ProductoListResponse
// @Router /v1/productos [get]
func (h *ProductosHandler) Listar(c *gin.Context) {
	var filter dto.ProductoFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.Listar(c.Request.Context(), filter)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ProductosHandler) ObtenerPorID(c *gin.Context) {
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

// Actualizar godoc
// @Summary Modifica datos y precios de un producto
// @Description El stock no se modifica por esta vía; usar PATCH /v1/productos/{id}/stock.
// @Tags productos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id   path string true "UUID del producto"
// @Param body body dto.ActualizarProductoRequest true "Campos a modificar"
// @Success 200 {object} dto.ProductoResponse
// @Router /v1/productos/{id} [put]
func (h *ProductosHandler) Actualizar(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.ActualizarProductoRequest
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

func (h *ProductosHandler) Desactivar(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Desactivar(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AjustarStock godoc
// @Summary Ajuste manual de stock
// @Tags productos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id   path string true "UUID del producto"
// @Param body body dto.AjusteStockRequest true "Delta y motivo"
// @Success 200 {object} dto.MovimientoStockResponse
// @Failure 409 {object} apierror.APIError "stock_insuficiente"
// @Router /v1/productos/{id}/stock [patch]
func (h *ProductosHandler) AjustarStock(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.AjusteStockRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.inventario.AjustarStock(c.Request.Context(), middleware.UsuarioID(c), id, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
