package service

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"autopartes/internal/apierror"
	"autopartes/internal/dto"
	"autopartes/internal/model"
	"autopartes/internal/money"
	"autopartes/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var condicionesIVA = []string{
	model.CondicionResponsableInscripto,
	model.CondicionMonotributista,
	model.CondicionExento,
	model.CondicionConsumidorFinal,
}

// ClienteService manages clients and their current-account ledger. The
// balance moves only together with a MovimientoCliente, and every ledger
// amount is a signed delta: venta and uso_credito positive, pago negative.
type ClienteService interface {
	Crear(ctx context.Context, req dto.ClienteRequest) (*dto.ClienteResponse, error)
	Actualizar(ctx context.Context, id uuid.UUID, req dto.ClienteRequest) (*dto.ClienteResponse, error)
	Listar(ctx context.Context, query string) ([]dto.ClienteResponse, error)
	ObtenerPorID(ctx context.Context, id uuid.UUID) (*dto.ClienteResponse, error)
	// Eliminar removes a client with no sales and no ledger entries.
	Eliminar(ctx context.Context, id uuid.UUID) error

	RegistrarPago(ctx context.Context, usuarioID, clienteID uuid.UUID, req dto.PagoClienteRequest) (*dto.PagoClienteResponse, error)
	Historial(ctx context.Context, clienteID uuid.UUID) (*dto.HistorialClienteResponse, error)
	Conciliar(ctx context.Context, clienteID uuid.UUID) (*dto.ConciliacionResponse, error)
	// ConciliarTodos returns only the clients whose balance diverges.
	ConciliarTodos(ctx context.Context) ([]dto.ConciliacionResponse, error)
}

type clienteService struct {
	store repository.Store
	caja  CajaService
	now   func() time.Time
}

func NewClienteService(store repository.Store, caja CajaService) ClienteService {
	return &clienteService{store: store, caja: caja, now: time.Now}
}

// ── Alta / modificación ───────────────────────────────────────────────────────

func (s *clienteService) aplicarPerfil(c *model.Cliente, req dto.ClienteRequest) error {
	fields := map[string]string{}
	nombre := strings.TrimSpace(req.Nombre)
	if len(nombre) < 2 {
		fields["nombre"] = "min"
	}
	condicion := req.CondicionIVA
	if condicion == "" {
		condicion = model.CondicionConsumidorFinal
	}
	if !slices.Contains(condicionesIVA, condicion) {
		fields["condicion_iva"] = "oneof"
	}
	if len(fields) > 0 {
		return apierror.Validation("Datos de cliente inválidos", fields)
	}
	c.Nombre = nombre
	c.CUIT = emptyToNil(req.CUIT)
	c.Email = emptyToNil(req.Email)
	c.Telefono = emptyToNil(req.Telefono)
	c.Direccion = emptyToNil(req.Direccion)
	c.CondicionIVA = condicion
	c.CuentaCorriente = req.CuentaCorriente
	return nil
}

func emptyToNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func (s *clienteService) Crear(ctx context.Context, req dto.ClienteRequest) (*dto.ClienteResponse, error) {
	c := &model.Cliente{Saldo: decimal.Zero}
	if err := s.aplicarPerfil(c, req); err != nil {
		return nil, err
	}
	if err := s.store.Repos().Clientes.Create(ctx, c); err != nil {
		return nil, duplicateError(err, "Ya existe un cliente con ese CUIT")
	}
	resp := clienteToResponse(c)
	return &resp, nil
}

// Actualizar replaces the profile; the balance is never written here.
func (s *clienteService) Actualizar(ctx context.Context, id uuid.UUID, req dto.ClienteRequest) (*dto.ClienteResponse, error) {
	repo := s.store.Repos().Clientes
	c, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, apierror.ErrClientNotFound)
	}
	if err := s.aplicarPerfil(c, req); err != nil {
		return nil, err
	}
	c.UpdatedAt = s.now()
	if err := repo.Update(ctx, c); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apierror.ErrClientNotFound
		}
		return nil, duplicateError(err, "Ya existe un cliente con ese CUIT")
	}
	resp := clienteToResponse(c)
	return &resp, nil
}

func (s *clienteService) Listar(ctx context.Context, query string) ([]dto.ClienteResponse, error) {
	clientes, err := s.store.Repos().Clientes.List(ctx, strings.TrimSpace(query))
	if err != nil {
		return nil, storeError(err)
	}
	out := make([]dto.ClienteResponse, len(clientes))
	for i := range clientes {
		out[i] = clienteToResponse(&clientes[i])
	}
	return out, nil
}

func (s *clienteService) ObtenerPorID(ctx context.Context, id uuid.UUID) (*dto.ClienteResponse, error) {
	c, err := s.store.Repos().Clientes.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, apierror.ErrClientNotFound)
	}
	resp := clienteToResponse(c)
	return &resp, nil
}

func (s *clienteService) Eliminar(ctx context.Context, id uuid.UUID) error {
	err := s.store.RunInTx(ctx, func(r repository.Repos) error {
		if _, err := r.Clientes.FindByIDForUpdate(ctx, id); err != nil {
			return lookupError(err, apierror.ErrClientNotFound)
		}
		n, err := r.Clientes.ContarHistorial(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return apierror.ErrClientHasHistory.WithContext("registros", n)
		}
		return r.Clientes.Delete(ctx, id)
	})
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrReferenced):
		return apierror.ErrClientHasHistory
	case errors.Is(err, repository.ErrNotFound):
		return apierror.ErrClientNotFound
	default:
		return storeError(err)
	}
	log.Info().Str("cliente_id", id.String()).Msg("cliente eliminado")
	return nil
}

// ── RegistrarPago ─────────────────────────────────────────────────────────────
// Cash in: INCOME movement on the open session, balance -= monto and a pago
// entry of -monto, all in one transaction.

func (s *clienteService) RegistrarPago(ctx context.Context, usuarioID, clienteID uuid.UUID, req dto.PagoClienteRequest) (*dto.PagoClienteResponse, error) {
	if usuarioID == uuid.Nil {
		return nil, apierror.ErrUnauthorized
	}
	monto := money.Round(req.Monto)
	if !monto.IsPositive() {
		return nil, apierror.Validation("El monto del pago debe ser mayor a cero", map[string]string{"monto": "gt"})
	}
	var desc string
	if req.Descripcion != nil {
		desc = strings.TrimSpace(*req.Descripcion)
	}

	var resp *dto.PagoClienteResponse
	err := withRetry(ctx, "registrar_pago", func() error {
		return storeError(s.store.RunInTx(ctx, func(r repository.Repos) error {
			sesion, err := s.caja.RequerirAbierta(ctx, r)
			if err != nil {
				return err
			}
			cliente, err := r.Clientes.FindByIDForUpdate(ctx, clienteID)
			if err != nil {
				return lookupError(err, apierror.ErrClientNotFound)
			}
			now := s.now()

			mov := &model.MovimientoCaja{
				SesionCajaID: &sesion.ID,
				Tipo:         model.MovimientoIngreso,
				Monto:        monto,
				Descripcion:  orDefault(desc, "Pago Cta. Cte. Cliente"),
				Categoria:    model.CategoriaCobroCC,
				UsuarioID:    &usuarioID,
				CreatedAt:    now,
			}
			if err := r.Cajas.CreateMovimiento(ctx, mov); err != nil {
				return err
			}
			if err := r.Clientes.AjustarSaldo(ctx, cliente.ID, monto.Neg()); err != nil {
				return err
			}
			if err := r.Clientes.CreateMovimiento(ctx, &model.MovimientoCliente{
				ClienteID:   cliente.ID,
				Tipo:        model.MovClientePago,
				Monto:       monto.Neg(),
				Descripcion: orDefault(desc, "Pago a cuenta"),
				UsuarioID:   &usuarioID,
				CreatedAt:   now,
			}); err != nil {
				return err
			}
			resp = &dto.PagoClienteResponse{
				ClienteID:        cliente.ID.String(),
				Monto:            monto,
				SaldoAnterior:    cliente.Saldo,
				SaldoNuevo:       money.Round(cliente.Saldo.Sub(monto)),
				MovimientoCajaID: mov.ID.String(),
			}
			return nil
		}))
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("cliente_id", clienteID.String()).Str("monto", monto.StringFixed(2)).
		Str("saldo_nuevo", resp.SaldoNuevo.StringFixed(2)).Msg("pago de cuenta corriente registrado")
	return resp, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// ── Historial / Conciliar ─────────────────────────────────────────────────────

// Historial lists entries oldest first with the running balance after each.
func (s *clienteService) Historial(ctx context.Context, clienteID uuid.UUID) (*dto.HistorialClienteResponse, error) {
	repos := s.store.Repos()
	c, err := repos.Clientes.FindByID(ctx, clienteID)
	if err != nil {
		return nil, lookupError(err, apierror.ErrClientNotFound)
	}
	movs, err := repos.Clientes.ListMovimientos(ctx, clienteID)
	if err != nil {
		return nil, storeError(err)
	}

	resp := &dto.HistorialClienteResponse{
		Cliente:     clienteToResponse(c),
		Movimientos: make([]dto.MovimientoClienteResponse, 0, len(movs)),
		Saldo:       decimal.Zero,
	}
	for _, m := range movs {
		resp.Saldo = money.Round(resp.Saldo.Add(m.Monto))
		resp.Movimientos = append(resp.Movimientos, dto.MovimientoClienteResponse{
			ID:             m.ID.String(),
			Tipo:           m.Tipo,
			Monto:          m.Monto,
			Descripcion:    m.Descripcion,
			VentaID:        uuidPtrString(m.VentaID),
			SaldoAcumulado: resp.Saldo,
			CreatedAt:      formatTime(m.CreatedAt),
		})
	}
	return resp, nil
}

func (s *clienteService) Conciliar(ctx context.Context, clienteID uuid.UUID) (*dto.ConciliacionResponse, error) {
	repos := s.store.Repos()
	c, err := repos.Clientes.FindByID(ctx, clienteID)
	if err != nil {
		return nil, lookupError(err, apierror.ErrClientNotFound)
	}
	return conciliar(ctx, repos, c)
}

func (s *clienteService) ConciliarTodos(ctx context.Context) ([]dto.ConciliacionResponse, error) {
	repos := s.store.Repos()
	clientes, err := repos.Clientes.List(ctx, "")
	if err != nil {
		return nil, storeError(err)
	}
	var divergentes []dto.ConciliacionResponse
	for i := range clientes {
		if err := ctx.Err(); err != nil {
			return divergentes, err
		}
		res, err := conciliar(ctx, repos, &clientes[i])
		if err != nil {
			return divergentes, err
		}
		if !res.Consistente {
			divergentes = append(divergentes, *res)
		}
	}
	return divergentes, nil
}

func conciliar(ctx context.Context, repos repository.Repos, c *model.Cliente) (*dto.ConciliacionResponse, error) {
	movs, err := repos.Clientes.ListMovimientos(ctx, c.ID)
	if err != nil {
		return nil, storeError(err)
	}
	montos := make([]decimal.Decimal, len(movs))
	for i, m := range movs {
		montos[i] = m.Monto
	}
	ledger := money.Sum(montos...)
	dif := money.Round(c.Saldo.Sub(ledger))
	return &dto.ConciliacionResponse{
		ClienteID:       c.ID.String(),
		SaldoRegistrado: c.Saldo,
		SaldoLedger:     ledger,
		Diferencia:      dif,
		Consistente:     dif.IsZero(),
		Movimientos:     len(movs),
	}, nil
}

func clienteToResponse(c *model.Cliente) dto.ClienteResponse {
	return dto.ClienteResponse{
		ID:              c.ID.String(),
		Nombre:          c.Nombre,
		CUIT:            c.CUIT,
		Email:           c.Email,
		Telefono:        c.Telefono,
		Direccion:       c.Direccion,
		CondicionIVA:    c.CondicionIVA,
		CuentaCorriente: c.CuentaCorriente,
		Saldo:           c.Saldo,
		CreatedAt:       formatTime(c.CreatedAt),
	}
}
