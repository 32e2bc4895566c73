package service

import (
	"context"
	"strings"

	"autopartes/internal/apierror"
	"autopartes/internal/dto"
	"autopartes/internal/model"
	"autopartes/internal/repository"
	"autopartes/internal/worker"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// InventarioService defines the contract for stock adjustments and alerts.
type InventarioService interface {
	AjustarStock(ctx context.Context, usuarioID, productoID uuid.UUID, req dto.AjusteStockRequest) (*dto.MovimientoStockResponse, error)
	ListarMovimientos(ctx context.Context, filter dto.MovimientoStockFilter) (*dto.MovimientoStockListResponse, error)
	ObtenerAlertas(ctx context.Context) ([]dto.AlertaStockResponse, error)
	// AlertasRecientes reads the feed written by the alert worker; it is empty
	// when Redis is not configured.
	AlertasRecientes(ctx context.Context, n int64) ([]dto.AlertaStockResponse, error)
}

type inventarioService struct {
	store repository.Store
	rdb   *redis.Client
}

func NewInventarioService(store repository.Store, rdb *redis.Client) InventarioService {
	return &inventarioService{store: store, rdb: rdb}
}

// AjustarStock applies a manual signed correction and records it as an
// entrada or salida movement. Stock never goes below zero.
func (s *inventarioService) AjustarStock(ctx context.Context, usuarioID, productoID uuid.UUID, req dto.AjusteStockRequest) (*dto.MovimientoStockResponse, error) {
	if usuarioID == uuid.Nil {
		return nil, apierror.ErrUnauthorized
	}
	fields := map[string]string{}
	if req.Delta == 0 {
		fields["delta"] = "required"
	}
	motivo := strings.TrimSpace(req.Motivo)
	if len(motivo) < 3 {
		fields["motivo"] = "min"
	}
	if len(fields) > 0 {
		return nil, apierror.Validation("Ajuste de stock inválido", fields)
	}

	var mov *model.MovimientoStock
	err := withRetry(ctx, "ajustar_stock", func() error {
		return storeError(s.store.RunInTx(ctx, func(r repository.Repos) error {
			p, err := r.Productos.FindByIDForUpdate(ctx, productoID)
			if err != nil {
				return lookupError(err, apierror.ErrProductNotFound)
			}
			ok, err := r.Productos.AjustarStock(ctx, p.ID, req.Delta)
			if err != nil {
				return err
			}
			if !ok {
				return stockInsuficiente(p, p.StockActual)
			}
			tipo := model.StockEntrada
			if req.Delta < 0 {
				tipo = model.StockSalida
			}
			mov = &model.MovimientoStock{
				ProductoID:    p.ID,
				Tipo:          tipo,
				Cantidad:      req.Delta,
				StockAnterior: p.StockActual,
				StockNuevo:    p.StockActual + req.Delta,
				Motivo:        motivo,
				UsuarioID:     &usuarioID,
			}
			if err := r.Stock.Create(ctx, mov); err != nil {
				return err
			}
			mov.Producto = p
			return nil
		}))
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("producto_id", productoID.String()).Int("delta", req.Delta).
		Int("stock_nuevo", mov.StockNuevo).Msg("stock ajustado")
	resp := movimientoStockToResponse(mov)
	return &resp, nil
}

func (s *inventarioService) ListarMovimientos(ctx context.Context, filter dto.MovimientoStockFilter) (*dto.MovimientoStockListResponse, error) {
	page, limit := normalizePage(filter.Page, filter.Limit, 100, 500)
	rf := repository.MovimientoStockFilter{Tipo: filter.Tipo, Page: page, Limit: limit}
	if filter.ProductoID != "" {
		id, err := uuid.Parse(filter.ProductoID)
		if err != nil {
			return nil, apierror.Validation("producto_id inválido", map[string]string{"producto_id": "uuid"})
		}
		rf.ProductoID = &id
	}
	movs, total, err := s.store.Repos().Stock.List(ctx, rf)
	if err != nil {
		return nil, storeError(err)
	}
	resp := &dto.MovimientoStockListResponse{Data: make([]dto.MovimientoStockResponse, 0, len(movs)), Total: total, Page: page, Limit: limit}
	for i := range movs {
		resp.Data = append(resp.Data, movimientoStockToResponse(&movs[i]))
	}
	return resp, nil
}

func (s *inventarioService) ObtenerAlertas(ctx context.Context) ([]dto.AlertaStockResponse, error) {
	productos, err := s.store.Repos().Productos.ListBajoStock(ctx)
	if err != nil {
		return nil, storeError(err)
	}
	out := make([]dto.AlertaStockResponse, len(productos))
	for i, p := range productos {
		out[i] = dto.AlertaStockResponse{
			ProductoID:  p.ID.String(),
			SKU:         p.SKU,
			Nombre:      p.Nombre,
			StockActual: p.StockActual,
			StockMinimo: p.StockMinimo,
		}
	}
	return out, nil
}

func (s *inventarioService) AlertasRecientes(ctx context.Context, n int64) ([]dto.AlertaStockResponse, error) {
	if s.rdb == nil {
		return []dto.AlertaStockResponse{}, nil
	}
	alertas, err := worker.AlertasRecientes(ctx, s.rdb, n)
	if err != nil {
		return nil, apierror.Store(err)
	}
	out := make([]dto.AlertaStockResponse, len(alertas))
	for i, a := range alertas {
		out[i] = dto.AlertaStockResponse{
			ProductoID:  a.ProductoID,
			SKU:         a.SKU,
			Nombre:      a.Nombre,
			StockActual: a.StockActual,
			StockMinimo: a.StockMinimo,
			DetectadaAt: a.DetectadaAt,
		}
	}
	return out, nil
}

func movimientoStockToResponse(m *model.MovimientoStock) dto.MovimientoStockResponse {
	resp := dto.MovimientoStockResponse{
		ID:            m.ID.String(),
		ProductoID:    m.ProductoID.String(),
		Tipo:          m.Tipo,
		Cantidad:      m.Cantidad,
		StockAnterior: m.StockAnterior,
		StockNuevo:    m.StockNuevo,
		Motivo:        m.Motivo,
		ReferenciaID:  uuidPtrString(m.ReferenciaID),
		CreatedAt:     formatTime(m.CreatedAt),
	}
	if m.Producto != nil {
		resp.Producto = m.Producto.Nombre
	}
	return resp
}
