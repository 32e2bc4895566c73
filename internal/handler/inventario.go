package handler

import (
	"net/http"
	"strconv"

	"autopartes/internal/apierror"
	"autopartes/internal/dto"
	"autopartes/internal/service"

	"github.com/gin-gonic/gin"
)

type InventarioHandler struct{ svc service.InventarioService }

func NewInventarioHandler(svc service.InventarioService) *InventarioHandler {
	return &InventarioHandler{svc: svc}
}

// ObtenerAlertas godoc
// @Summary Productos activos con stock en o por debajo del mínimo
// @Tags inventario
// @Produce json
// @Security BearerAuth
// @Success 200 {array} dto.AlertaStockResponse
// @Router /v1/inventario/alertas [get]
func (h *InventarioHandler) ObtenerAlertas(c *gin.Context) {
	resp, err := h.svc.ObtenerAlertas(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AlertasRecientes returns the last n alerts pushed by the stock worker.
func (h *InventarioHandler) AlertasRecientes(c *gin.Context) {
	n, err := strconv.ParseInt(c.DefaultQuery("n", "20"), 10, 64)
	if err != nil || n < 1 || n > 200 {
		c.JSON(http.StatusBadRequest, apierror.New("n invalido"))
		return
	}
	resp, err := h.svc.AlertasRecientes(c.Request.Context(), n)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListarMovimientos godoc
// @Summary Movimientos de stock
// @Tags inventario
// @Produce json
// @Security BearerAuth
// @Param producto_id query string false "UUID del producto"
// @Param tipo        query string false "entrada | salida"
// @Param page        query int    false "Página"
// @Param limit       query int    false "Tamaño de página"
// @Success 200 {object} dto.MovimientoStockListResponse
// @Router /v1/inventario/movimientos [get]
func (h *InventarioHandler) ListarMovimientos(c *gin.Context) {
	var filter dto.MovimientoStockFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.ListarMovimientos(c.Request.Context(), filter)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
