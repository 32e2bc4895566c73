package service

import (
	"context"
	"strings"

	"autopartes/internal/apierror"
	"autopartes/internal/dto"
	"autopartes/internal/model"
	"autopartes/internal/money"
	"autopartes/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var alicuotaDefault = decimal.NewFromInt(21)

// ProductoService defines the business logic contract for products.
type ProductoService interface {
	Crear(ctx context.Context, usuarioID uuid.UUID, req dto.CrearProductoRequest) (*dto.ProductoResponse, error)
	ObtenerPorID(ctx context.Context, id uuid.UUID) (*dto.ProductoResponse, error)
	Listar(ctx context.Context, filter dto.ProductoFilter) (*dto.ProductoListResponse, error)
	Actualizar(ctx context.Context, id uuid.UUID, req dto.ActualizarProductoRequest) (*dto.ProductoResponse, error)
	Desactivar(ctx context.Context, id uuid.UUID) error
}

type productoService struct {
	store repository.Store
}

func NewProductoService(store repository.Store) ProductoService {
	return &productoService{store: store}
}

func validarPrecios(fields map[string]string, compra, lista, alicuota decimal.Decimal) {
	if compra.IsNegative() {
		fields["precio_compra"] = "min"
	}
	if !lista.IsPositive() {
		fields["precio_lista"] = "gt"
	}
	if alicuota.IsNegative() || alicuota.GreaterThan(decimal.NewFromInt(100)) {
		fields["alicuota_iva"] = "range"
	}
}

// Crear registers the product; an initial stock is recorded as an entrada.
func (s *productoService) Crear(ctx context.Context, usuarioID uuid.UUID, req dto.CrearProductoRequest) (*dto.ProductoResponse, error) {
	alicuota := alicuotaDefault
	if req.AlicuotaIVA != nil {
		alicuota = *req.AlicuotaIVA
	}
	fields := map[string]string{}
	sku := strings.TrimSpace(req.SKU)
	nombre := strings.TrimSpace(req.Nombre)
	if sku == "" {
		fields["sku"] = "required"
	}
	if len(nombre) < 2 {
		fields["nombre"] = "min"
	}
	if req.StockInicial < 0 {
		fields["stock_inicial"] = "min"
	}
	if req.StockMinimo < 0 {
		fields["stock_minimo"] = "min"
	}
	validarPrecios(fields, req.PrecioCompra, req.PrecioLista, alicuota)
	if len(fields) > 0 {
		return nil, apierror.Validation("Datos de producto inválidos", fields)
	}

	p := &model.Producto{
		SKU:          sku,
		Nombre:       nombre,
		Descripcion:  req.Descripcion,
		Marca:        emptyToNil(req.Marca),
		Categoria:    orDefault(strings.TrimSpace(req.Categoria), "General"),
		PrecioCompra: money.Round(req.PrecioCompra),
		PrecioLista:  money.Round(req.PrecioLista),
		AlicuotaIVA:  alicuota.Round(2),
		StockActual:  req.StockInicial,
		StockMinimo:  req.StockMinimo,
		Activo:       true,
	}
	err := s.store.RunInTx(ctx, func(r repository.Repos) error {
		if err := r.Productos.Create(ctx, p); err != nil {
			return duplicateError(err, "Ya existe un producto con el SKU "+sku)
		}
		if p.StockActual == 0 {
			return nil
		}
		mov := &model.MovimientoStock{
			ProductoID:    p.ID,
			Tipo:          model.StockEntrada,
			Cantidad:      p.StockActual,
			StockAnterior: 0,
			StockNuevo:    p.StockActual,
			Motivo:        "Stock inicial",
		}
		if usuarioID != uuid.Nil {
			mov.UsuarioID = &usuarioID
		}
		return r.Stock.Create(ctx, mov)
	})
	if err != nil {
		return nil, storeError(err)
	}
	return productoToResponse(p), nil
}

func (s *productoService) ObtenerPorID(ctx context.Context, id uuid.UUID) (*dto.ProductoResponse, error) {
	p, err := s.store.Repos().Productos.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, apierror.ErrProductNotFound)
	}
	return productoToResponse(p), nil
}

func (s *productoService) Listar(ctx context.Context, filter dto.ProductoFilter) (*dto.ProductoListResponse, error) {
	page, limit := normalizePage(filter.Page, filter.Limit, 20, 100)
	productos, total, err := s.store.Repos().Productos.List(ctx, repository.ProductoFilter{
		Query:     strings.TrimSpace(filter.Q),
		Categoria: filter.Categoria,
		SoloBajo:  filter.BajoStock,
		Page:      page,
		Limit:     limit,
	})
	if err != nil {
		return nil, storeError(err)
	}
	resp := &dto.ProductoListResponse{Data: make([]dto.ProductoResponse, 0, len(productos)), Total: total, Page: page, Limit: limit}
	for i := range productos {
		resp.Data = append(resp.Data, *productoToResponse(&productos[i]))
	}
	return resp, nil
}

// Actualizar applies a partial update of catalogue fields; stock is untouched.
func (s *productoService) Actualizar(ctx context.Context, id uuid.UUID, req dto.ActualizarProductoRequest) (*dto.ProductoResponse, error) {
	repo := s.store.Repos().Productos
	p, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, apierror.ErrProductNotFound)
	}
	if req.Nombre != nil {
		p.Nombre = strings.TrimSpace(*req.Nombre)
	}
	if req.Descripcion != nil {
		p.Descripcion = req.Descripcion
	}
	if req.Marca != nil {
		p.Marca = emptyToNil(req.Marca)
	}
	if req.Categoria != nil {
		p.Categoria = orDefault(strings.TrimSpace(*req.Categoria), "General")
	}
	if req.PrecioCompra != nil {
		p.PrecioCompra = money.Round(*req.PrecioCompra)
	}
	if req.PrecioLista != nil {
		p.PrecioLista = money.Round(*req.PrecioLista)
	}
	if req.AlicuotaIVA != nil {
		p.AlicuotaIVA = req.AlicuotaIVA.Round(2)
	}
	if req.StockMinimo != nil {
		p.StockMinimo = *req.StockMinimo
	}
	if req.Activo != nil {
		p.Activo = *req.Activo
	}

	fields := map[string]string{}
	if len(p.Nombre) < 2 {
		fields["nombre"] = "min"
	}
	if p.StockMinimo < 0 {
		fields["stock_minimo"] = "min"
	}
	validarPrecios(fields, p.PrecioCompra, p.PrecioLista, p.AlicuotaIVA)
	if len(fields) > 0 {
		return nil, apierror.Validation("Datos de producto inválidos", fields)
	}

	if err := repo.Update(ctx, p); err != nil {
		return nil, lookupError(err, apierror.ErrProductNotFound)
	}
	return productoToResponse(p), nil
}

func (s *productoService) Desactivar(ctx context.Context, id uuid.UUID) error {
	activo := false
	_, err := s.Actualizar(ctx, id, dto.ActualizarProductoRequest{Activo: &activo})
	return err
}

func productoToResponse(p *model.Producto) *dto.ProductoResponse {
	return &dto.ProductoResponse{
		ID:           p.ID.String(),
		SKU:          p.SKU,
		Nombre:       p.Nombre,
		Descripcion:  p.Descripcion,
		Marca:        p.Marca,
		Categoria:    p.Categoria,
		PrecioCompra: p.PrecioCompra,
		PrecioLista:  p.PrecioLista,
		AlicuotaIVA:  p.AlicuotaIVA,
		PrecioFinal:  money.Round(p.PrecioLista.Add(money.PercentOf(p.PrecioLista, p.AlicuotaIVA))),
		StockActual:  p.StockActual,
		StockMinimo:  p.StockMinimo,
		BajoStock:    p.BajoStock(),
		Activo:       p.Activo,
	}
}
