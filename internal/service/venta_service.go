package service

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"time"

	"autopartes/internal/apierror"
	"autopartes/internal/dto"
	"autopartes/internal/model"
	"autopartes/internal/money"
	"autopartes/internal/repository"
	"autopartes/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type VentaService interface {
	RegistrarVenta(ctx context.Context, usuarioID uuid.UUID, req dto.RegistrarVentaRequest) (*dto.VentaResponse, error)
	ObtenerVenta(ctx context.Context, id uuid.UUID) (*dto.VentaResponse, error)
	ListarVentas(ctx context.Context, filter dto.VentaFilter) (*dto.VentaListResponse, error)
}

type ventaService struct {
	store        repository.Store
	caja         CajaService
	dispatcher   *worker.Dispatcher
	puntoDeVenta int
	loc          *time.Location
	now          func() time.Time
}

func NewVentaService(
	store repository.Store,
	caja CajaService,
	dispatcher *worker.Dispatcher,
	puntoDeVenta int,
	loc *time.Location,
) VentaService {
	if loc == nil {
		loc = time.Local
	}
	return &ventaService{
		store:        store,
		caja:         caja,
		dispatcher:   dispatcher,
		puntoDeVenta: puntoDeVenta,
		loc:          loc,
		now:          time.Now,
	}
}

type lineaVenta struct {
	productoID uuid.UUID
	cantidad   int
}

// resultadoVenta is what one transaction attempt produced.
type resultadoVenta struct {
	venta     *model.Venta
	restante  decimal.Decimal
	bajoStock []model.Producto
}

// ── RegistrarVenta ────────────────────────────────────────────────────────────
// One transaction:
//   1. lock products (id order) and the client
//   2. per line: check stock, snapshot price/IVA, decrement stock
//   3. total, invoice type, next invoice number from the counter row
//   4. persist sale + items + OUT stock movements
//   5. consume saldo a favor (uso_credito entry)
//   6. settle the rest: cuenta corriente entry, or cash INCOME movement
// A concurrency conflict retries the whole transaction once.

func (s *ventaService) RegistrarVenta(ctx context.Context, usuarioID uuid.UUID, req dto.RegistrarVentaRequest) (*dto.VentaResponse, error) {
	if usuarioID == uuid.Nil {
		return nil, apierror.ErrUnauthorized
	}
	lineas, clienteID, err := validarVenta(req)
	if err != nil {
		return nil, err
	}
	cuentaCorriente := req.MetodoPago == model.MetodoCuentaCorriente
	if cuentaCorriente && clienteID == nil {
		return nil, apierror.ErrClientRequired
	}
	if !cuentaCorriente {
		abierta, err := s.caja.EstaAbierta(ctx)
		if err != nil {
			return nil, err
		}
		if !abierta {
			return nil, apierror.ErrCashBoxClosed
		}
	}

	var res resultadoVenta
	err = withRetry(ctx, "registrar_venta", func() error {
		return storeError(s.store.RunInTx(ctx, func(r repository.Repos) error {
			var err error
			res, err = s.registrarEn(ctx, r, usuarioID, req, lineas, clienteID)
			return err
		}))
	})
	if err != nil {
		return nil, err
	}

	v := res.venta
	log.Info().
		Str("venta_id", v.ID.String()).
		Str("numero_factura", v.NumeroFactura).
		Str("total", v.Total.StringFixed(2)).
		Str("metodo_pago", v.MetodoPago).
		Str("credito_usado", v.CreditoUsado.StringFixed(2)).
		Msg("venta registrada")

	s.encolarAlertas(ctx, res.bajoStock)
	return ventaToResponse(v, res.restante), nil
}

func validarVenta(req dto.RegistrarVentaRequest) ([]lineaVenta, *uuid.UUID, error) {
	fields := map[string]string{}
	if len(req.Items) == 0 {
		fields["items"] = "min"
	}
	lineas := make([]lineaVenta, 0, len(req.Items))
	for i, it := range req.Items {
		pid, err := uuid.Parse(it.ProductoID)
		if err != nil {
			fields[fmt.Sprintf("items[%d].producto_id", i)] = "uuid"
		}
		if it.Cantidad <= 0 {
			fields[fmt.Sprintf("items[%d].cantidad", i)] = "min"
		}
		lineas = append(lineas, lineaVenta{productoID: pid, cantidad: it.Cantidad})
	}
	if !slices.Contains(model.MetodosPago, req.MetodoPago) {
		fields["metodo_pago"] = "oneof"
	}
	switch req.TipoFactura {
	case "", model.FacturaA, model.FacturaB, model.FacturaC:
	default:
		fields["tipo_factura"] = "oneof"
	}

	var clienteID *uuid.UUID
	if req.ClienteID != nil && *req.ClienteID != "" {
		id, err := uuid.Parse(*req.ClienteID)
		if err != nil {
			fields["cliente_id"] = "uuid"
		} else {
			clienteID = &id
		}
	}
	if len(fields) > 0 {
		return nil, nil, apierror.Validation("Datos de venta inválidos", fields)
	}
	return lineas, clienteID, nil
}

func (s *ventaService) registrarEn(
	ctx context.Context,
	r repository.Repos,
	usuarioID uuid.UUID,
	req dto.RegistrarVentaRequest,
	lineas []lineaVenta,
	clienteID *uuid.UUID,
) (resultadoVenta, error) {
	cuentaCorriente := req.MetodoPago == model.MetodoCuentaCorriente

	var sesion *model.SesionCaja
	var err error
	if cuentaCorriente {
		sesion, err = s.caja.SesionActivaEn(ctx, r)
	} else {
		sesion, err = s.caja.RequerirAbierta(ctx, r)
	}
	if err != nil {
		return resultadoVenta{}, err
	}

	productos, err := bloquearProductos(ctx, r, lineas)
	if err != nil {
		return resultadoVenta{}, err
	}

	var cliente *model.Cliente
	if clienteID != nil {
		cliente, err = r.Clientes.FindByIDForUpdate(ctx, *clienteID)
		if err != nil {
			return resultadoVenta{}, lookupError(err, apierror.ErrClientNotFound)
		}
	}
	if cuentaCorriente && !cliente.CuentaCorriente {
		return resultadoVenta{}, apierror.ErrAccountNotEnabled
	}

	// Lines are processed in cart order; stock tracks repeated products.
	stock := make(map[uuid.UUID]int, len(productos))
	for id, p := range productos {
		stock[id] = p.StockActual
	}
	type movPendiente struct {
		productoID      uuid.UUID
		cantidad        int
		anterior, nuevo int
	}
	var (
		items    = make([]model.VentaItem, 0, len(lineas))
		movs     = make([]movPendiente, 0, len(lineas))
		subtotal = decimal.Zero
		iva      = decimal.Zero
	)
	for _, l := range lineas {
		p := productos[l.productoID]
		disponible := stock[l.productoID]
		if disponible < l.cantidad {
			return resultadoVenta{}, stockInsuficiente(p, disponible)
		}
		ok, err := r.Productos.DescontarStock(ctx, p.ID, l.cantidad)
		if err != nil {
			return resultadoVenta{}, err
		}
		if !ok {
			return resultadoVenta{}, stockInsuficiente(p, disponible)
		}
		stock[l.productoID] = disponible - l.cantidad
		movs = append(movs, movPendiente{p.ID, l.cantidad, disponible, disponible - l.cantidad})

		qty := decimal.NewFromInt(int64(l.cantidad))
		precio := p.PrecioLista
		ivaUnitario := money.PercentOf(precio, p.AlicuotaIVA)
		subtotal = money.Round(subtotal.Add(money.Round(precio.Mul(qty))))
		iva = money.Round(iva.Add(money.Round(ivaUnitario.Mul(qty))))
		items = append(items, model.VentaItem{
			ProductoID:     p.ID,
			SKU:            p.SKU,
			Nombre:         p.Nombre,
			Cantidad:       l.cantidad,
			PrecioUnitario: precio,
			AlicuotaIVA:    p.AlicuotaIVA,
			Total:          money.Round(precio.Add(ivaUnitario).Mul(qty)),
		})
	}
	total := money.Round(subtotal.Add(iva))

	consumido := decimal.Zero
	if cliente != nil && req.UsarCredito && cliente.Saldo.IsNegative() {
		consumido = money.Round(decimal.Min(cliente.Saldo.Abs(), total))
	}
	restante := money.Round(total.Sub(consumido))

	tipo := tipoFactura(cliente)
	seq, err := r.Ventas.NextSecuencia(ctx, tipo)
	if err != nil {
		return resultadoVenta{}, err
	}
	now := s.now()
	venta := &model.Venta{
		NumeroFactura: fmt.Sprintf("%s-%04d-%08d", tipo, s.puntoDeVenta, seq),
		TipoFactura:   tipo,
		Secuencia:     seq,
		ClienteID:     clienteID,
		UsuarioID:     usuarioID,
		Subtotal:      subtotal,
		MontoIVA:      iva,
		Total:         total,
		MetodoPago:    req.MetodoPago,
		CreditoUsado:  consumido,
		CreatedAt:     now,
		Items:         items,
	}
	if sesion != nil {
		venta.SesionCajaID = &sesion.ID
	}
	if err := r.Ventas.Create(ctx, venta); err != nil {
		return resultadoVenta{}, err
	}
	venta.Cliente = cliente

	for _, m := range movs {
		if err := r.Stock.Create(ctx, &model.MovimientoStock{
			ProductoID:    m.productoID,
			Tipo:          model.StockSalida,
			Cantidad:      -m.cantidad,
			StockAnterior: m.anterior,
			StockNuevo:    m.nuevo,
			Motivo:        "Venta " + venta.NumeroFactura,
			ReferenciaID:  &venta.ID,
			UsuarioID:     &usuarioID,
			CreatedAt:     now,
		}); err != nil {
			return resultadoVenta{}, err
		}
	}

	if consumido.IsPositive() {
		if err := r.Clientes.AjustarSaldo(ctx, cliente.ID, consumido); err != nil {
			return resultadoVenta{}, err
		}
		if err := r.Clientes.CreateMovimiento(ctx, &model.MovimientoCliente{
			ClienteID:   cliente.ID,
			Tipo:        model.MovClienteUsoCredito,
			Monto:       consumido,
			Descripcion: "Uso de saldo a favor - " + venta.NumeroFactura,
			VentaID:     &venta.ID,
			UsuarioID:   &usuarioID,
			CreatedAt:   now,
		}); err != nil {
			return resultadoVenta{}, err
		}
		cliente.Saldo = money.Round(cliente.Saldo.Add(consumido))
	}

	if restante.IsPositive() {
		if cuentaCorriente {
			if err := r.Clientes.AjustarSaldo(ctx, cliente.ID, restante); err != nil {
				return resultadoVenta{}, err
			}
			if err := r.Clientes.CreateMovimiento(ctx, &model.MovimientoCliente{
				ClienteID:   cliente.ID,
				Tipo:        model.MovClienteVenta,
				Monto:       restante,
				Descripcion: "Compra en Cta. Cte. - " + venta.NumeroFactura,
				VentaID:     &venta.ID,
				UsuarioID:   &usuarioID,
				// Orders after the uso_credito entry of the same sale.
				CreatedAt: now.Add(time.Microsecond),
			}); err != nil {
				return resultadoVenta{}, err
			}
			cliente.Saldo = money.Round(cliente.Saldo.Add(restante))
		} else {
			desc := fmt.Sprintf("Venta %s (%s)", venta.NumeroFactura, req.MetodoPago)
			if consumido.IsPositive() {
				desc += " - Descontado $" + consumido.StringFixed(2) + " de saldo a favor"
			}
			if err := r.Cajas.CreateMovimiento(ctx, &model.MovimientoCaja{
				SesionCajaID: &sesion.ID,
				Tipo:         model.MovimientoIngreso,
				Monto:        restante,
				Descripcion:  desc,
				Categoria:    model.CategoriaVenta,
				UsuarioID:    &usuarioID,
				VentaID:      &venta.ID,
				CreatedAt:    now,
			}); err != nil {
				return resultadoVenta{}, err
			}
		}
	}

	var bajo []model.Producto
	for id, p := range productos {
		p.StockActual = stock[id]
		if p.BajoStock() {
			bajo = append(bajo, *p)
		}
	}
	return resultadoVenta{venta: venta, restante: restante, bajoStock: bajo}, nil
}

// bloquearProductos locks every distinct product of the cart in id order so
// concurrent sales sharing products cannot deadlock.
func bloquearProductos(ctx context.Context, r repository.Repos, lineas []lineaVenta) (map[uuid.UUID]*model.Producto, error) {
	ids := make([]uuid.UUID, 0, len(lineas))
	for _, l := range lineas {
		if !slices.Contains(ids, l.productoID) {
			ids = append(ids, l.productoID)
		}
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })

	out := make(map[uuid.UUID]*model.Producto, len(ids))
	for _, id := range ids {
		p, err := r.Productos.FindByIDForUpdate(ctx, id)
		if err != nil {
			return nil, lookupError(err, apierror.ErrProductNotFound.WithContext("producto_id", id.String()))
		}
		if !p.Activo {
			return nil, apierror.ErrProductNotFound.
				WithMessage("El producto "+p.Nombre+" está inactivo").
				WithContext("producto_id", id.String())
		}
		out[id] = p
	}
	return out, nil
}

func stockInsuficiente(p *model.Producto, disponible int) error {
	return apierror.ErrInsufficientStock.
		WithMessage(fmt.Sprintf("Stock insuficiente para %s. Disponible: %d", p.Nombre, disponible)).
		WithContext("producto", p.Nombre).
		WithContext("producto_id", p.ID.String()).
		WithContext("disponible", disponible)
}

// tipoFactura derives the invoice class from the client's IVA condition.
// Type C has no derivation rule and is never produced here.
func tipoFactura(c *model.Cliente) string {
	if c != nil && c.CondicionIVA == model.CondicionResponsableInscripto {
		return model.FacturaA
	}
	return model.FacturaB
}

func (s *ventaService) encolarAlertas(ctx context.Context, productos []model.Producto) {
	for _, p := range productos {
		err := s.dispatcher.EnqueueAlertaStock(ctx, worker.AlertaStockPayload{
			ProductoID:  p.ID.String(),
			SKU:         p.SKU,
			Nombre:      p.Nombre,
			StockActual: p.StockActual,
			StockMinimo: p.StockMinimo,
			DetectadaAt: formatTime(s.now()),
		})
		if err != nil {
			log.Error().Err(err).Str("producto_id", p.ID.String()).Msg("no se pudo encolar alerta de stock")
		}
	}
}

// ── ObtenerVenta / ListarVentas ───────────────────────────────────────────────

func (s *ventaService) ObtenerVenta(ctx context.Context, id uuid.UUID) (*dto.VentaResponse, error) {
	v, err := s.store.Repos().Ventas.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, apierror.ErrSaleNotFound)
	}
	return ventaToResponse(v, v.Total.Sub(v.CreditoUsado)), nil
}

func (s *ventaService) ListarVentas(ctx context.Context, filter dto.VentaFilter) (*dto.VentaListResponse, error) {
	page, limit := normalizePage(filter.Page, filter.Limit, 50, 200)
	rf := repository.VentaFilter{Query: filter.Q, Page: page, Limit: limit}
	if filter.Fecha != "" {
		desde, hasta, err := parseDia(filter.Fecha, s.loc, s.now())
		if err != nil {
			return nil, err
		}
		rf.Desde, rf.Hasta = &desde, &hasta
	}

	ventas, total, err := s.store.Repos().Ventas.List(ctx, rf)
	if err != nil {
		return nil, storeError(err)
	}
	resp := &dto.VentaListResponse{Data: make([]dto.VentaResponse, 0, len(ventas)), Total: total, Page: page, Limit: limit}
	for i := range ventas {
		v := &ventas[i]
		resp.Data = append(resp.Data, *ventaToResponse(v, v.Total.Sub(v.CreditoUsado)))
	}
	return resp, nil
}

func ventaToResponse(v *model.Venta, restante decimal.Decimal) *dto.VentaResponse {
	items := make([]dto.ItemVentaResponse, len(v.Items))
	for i, it := range v.Items {
		items[i] = dto.ItemVentaResponse{
			ProductoID:     it.ProductoID.String(),
			SKU:            it.SKU,
			Nombre:         it.Nombre,
			Cantidad:       it.Cantidad,
			PrecioUnitario: it.PrecioUnitario,
			AlicuotaIVA:    it.AlicuotaIVA,
			Total:          it.Total,
		}
	}
	resp := &dto.VentaResponse{
		ID:            v.ID.String(),
		NumeroFactura: v.NumeroFactura,
		TipoFactura:   v.TipoFactura,
		ClienteID:     uuidPtrString(v.ClienteID),
		SesionCajaID:  uuidPtrString(v.SesionCajaID),
		Subtotal:      v.Subtotal,
		MontoIVA:      v.MontoIVA,
		Total:         v.Total,
		CreditoUsado:  v.CreditoUsado,
		RestantePago:  restante,
		MetodoPago:    v.MetodoPago,
		Items:         items,
		CreatedAt:     formatTime(v.CreatedAt),
	}
	if v.Cliente != nil {
		nombre := v.Cliente.Nombre
		resp.ClienteNombre = &nombre
	}
	return resp
}
