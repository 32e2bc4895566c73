package service

import (
	"context"
	"errors"
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

const descripcionApertura = "Apertura de Caja (Saldo Inicial)"

// CajaService owns the till. It is the only component that answers "is the
// till open"; sales and payments ask it, inside their own transaction, through
// SesionActivaEn / RequerirAbierta.
type CajaService interface {
	EstaAbierta(ctx context.Context) (bool, error)
	// SesionActiva returns the open session, or nil when the till is closed.
	SesionActiva(ctx context.Context) (*model.SesionCaja, error)
	SesionActivaEn(ctx context.Context, r repository.Repos) (*model.SesionCaja, error)
	// RequerirAbierta is SesionActivaEn failing with ErrCashBoxClosed.
	RequerirAbierta(ctx context.Context, r repository.Repos) (*model.SesionCaja, error)

	Abrir(ctx context.Context, usuarioID uuid.UUID, req dto.AbrirCajaRequest) (*dto.SesionCajaResponse, error)
	Cerrar(ctx context.Context, usuarioID uuid.UUID, req dto.CerrarCajaRequest) (*dto.SesionCajaResponse, error)
	SaldoActual(ctx context.Context) (decimal.Decimal, error)
	Estado(ctx context.Context) (*dto.EstadoCajaResponse, error)
	VistaDiaria(ctx context.Context, fecha string) (*dto.VistaDiariaResponse, error)

	RegistrarMovimiento(ctx context.Context, usuarioID uuid.UUID, req dto.MovimientoCajaRequest) (*dto.MovimientoCajaResponse, error)
	ActualizarMovimiento(ctx context.Context, id uuid.UUID, req dto.MovimientoCajaRequest) (*dto.MovimientoCajaResponse, error)
	EliminarMovimiento(ctx context.Context, id uuid.UUID) error

	ObtenerReporte(ctx context.Context, sesionID uuid.UUID) (*dto.ReporteSesionResponse, error)
	Historial(ctx context.Context, page, limit int) (*dto.SesionListResponse, error)
}

type cajaService struct {
	store        repository.Store
	puntoDeVenta int
	loc          *time.Location
	now          func() time.Time
}

func NewCajaService(store repository.Store, puntoDeVenta int, loc *time.Location) CajaService {
	if loc == nil {
		loc = time.Local
	}
	return &cajaService{store: store, puntoDeVenta: puntoDeVenta, loc: loc, now: time.Now}
}

// ── Sesión activa ─────────────────────────────────────────────────────────────

func (s *cajaService) EstaAbierta(ctx context.Context) (bool, error) {
	sesion, err := s.SesionActiva(ctx)
	return sesion != nil, err
}

func (s *cajaService) SesionActiva(ctx context.Context) (*model.SesionCaja, error) {
	return s.SesionActivaEn(ctx, s.store.Repos())
}

func (s *cajaService) SesionActivaEn(ctx context.Context, r repository.Repos) (*model.SesionCaja, error) {
	sesion, err := r.Cajas.FindSesionAbierta(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError(err)
	}
	return sesion, nil
}

func (s *cajaService) RequerirAbierta(ctx context.Context, r repository.Repos) (*model.SesionCaja, error) {
	sesion, err := s.SesionActivaEn(ctx, r)
	if err != nil {
		return nil, err
	}
	if sesion == nil {
		return nil, apierror.ErrCashBoxClosed
	}
	return sesion, nil
}

// ── Abrir ─────────────────────────────────────────────────────────────────────
// The session and its opening INCOME movement are created in one transaction.

func (s *cajaService) Abrir(ctx context.Context, usuarioID uuid.UUID, req dto.AbrirCajaRequest) (*dto.SesionCajaResponse, error) {
	if usuarioID == uuid.Nil {
		return nil, apierror.ErrUnauthorized
	}
	if req.MontoInicial.IsNegative() {
		return nil, apierror.Validation("El monto inicial no puede ser negativo", map[string]string{"monto_inicial": "min"})
	}
	monto := money.Round(req.MontoInicial)

	var sesion *model.SesionCaja
	err := s.store.RunInTx(ctx, func(r repository.Repos) error {
		existing, err := s.SesionActivaEn(ctx, r)
		if err != nil {
			return err
		}
		if existing != nil {
			return yaAbierta(existing)
		}

		now := s.now()
		sesion = &model.SesionCaja{
			PuntoDeVenta: s.puntoDeVenta,
			AbiertaPor:   usuarioID,
			MontoInicial: monto,
			Estado:       model.EstadoCajaAbierta,
			OpenedAt:     now,
		}
		if err := r.Cajas.CreateSesion(ctx, sesion); err != nil {
			return err
		}
		// The Apertura movement is written even for a zero float.
		return r.Cajas.CreateMovimiento(ctx, &model.MovimientoCaja{
			SesionCajaID: &sesion.ID,
			Tipo:         model.MovimientoIngreso,
			Monto:        monto,
			Descripcion:  descripcionApertura,
			Categoria:    model.CategoriaApertura,
			UsuarioID:    &usuarioID,
			CreatedAt:    now,
		})
	})
	if errors.Is(err, repository.ErrConflict) {
		// Lost the race against a concurrent open: the partial unique index
		// rejected our row.
		if existing, findErr := s.SesionActiva(ctx); findErr == nil && existing != nil {
			return nil, yaAbierta(existing)
		}
		return nil, apierror.ErrSessionAlreadyOpen
	}
	if err != nil {
		return nil, storeError(err)
	}

	log.Info().Str("sesion_id", sesion.ID.String()).Str("monto_inicial", monto.StringFixed(2)).
		Str("usuario_id", usuarioID.String()).Msg("caja abierta")
	resp := sesionToResponse(sesion)
	return &resp, nil
}

func yaAbierta(existing *model.SesionCaja) error {
	return apierror.ErrSessionAlreadyOpen.
		WithMessage("Ya existe una caja abierta desde "+existing.OpenedAt.Format("02/01/2006 15:04")).
		WithContext("opened_at", formatTime(existing.OpenedAt))
}

// ── Cerrar ────────────────────────────────────────────────────────────────────
// Snapshots totals of movements linked to the session. The declared amount is
// stored as given; differences are left for human review.

func (s *cajaService) Cerrar(ctx context.Context, usuarioID uuid.UUID, req dto.CerrarCajaRequest) (*dto.SesionCajaResponse, error) {
	if usuarioID == uuid.Nil {
		return nil, apierror.ErrUnauthorized
	}
	if req.MontoDeclarado.IsNegative() {
		return nil, apierror.Validation("El monto declarado no puede ser negativo", map[string]string{"monto_declarado": "min"})
	}
	declarado := money.Round(req.MontoDeclarado)

	var sesion *model.SesionCaja
	err := s.store.RunInTx(ctx, func(r repository.Repos) error {
		var err error
		sesion, err = r.Cajas.FindSesionAbiertaForUpdate(ctx)
		if err != nil {
			return lookupError(err, apierror.ErrNoOpenSession)
		}
		ingresos, egresos, err := r.Cajas.SumMovimientos(ctx, sesion.ID)
		if err != nil {
			return err
		}
		ingresos, egresos = money.Round(ingresos), money.Round(egresos)
		closedAt := s.now()

		sesion.TotalIngresos = &ingresos
		sesion.TotalEgresos = &egresos
		sesion.MontoDeclarado = &declarado
		sesion.Observaciones = req.Observaciones
		sesion.Estado = model.EstadoCajaCerrada
		sesion.CerradaPor = &usuarioID
		sesion.ClosedAt = &closedAt
		return r.Cajas.UpdateSesion(ctx, sesion)
	})
	if err != nil {
		return nil, storeError(err)
	}

	log.Info().Str("sesion_id", sesion.ID.String()).
		Str("total_ingresos", sesion.TotalIngresos.StringFixed(2)).
		Str("total_egresos", sesion.TotalEgresos.StringFixed(2)).
		Str("monto_declarado", declarado.StringFixed(2)).
		Msg("caja cerrada")
	resp := sesionToResponse(sesion)
	return &resp, nil
}

// ── Saldo / Estado ────────────────────────────────────────────────────────────

// SaldoActual is sum(ingresos) - sum(egresos) of the open session. The opening
// float is itself an ingreso, so it is already part of the sum.
func (s *cajaService) SaldoActual(ctx context.Context) (decimal.Decimal, error) {
	sesion, err := s.SesionActiva(ctx)
	if err != nil || sesion == nil {
		return decimal.Zero, err
	}
	return s.saldoSesion(ctx, s.store.Repos(), sesion.ID)
}

func (s *cajaService) saldoSesion(ctx context.Context, r repository.Repos, id uuid.UUID) (decimal.Decimal, error) {
	ingresos, egresos, err := r.Cajas.SumMovimientos(ctx, id)
	if err != nil {
		return decimal.Zero, storeError(err)
	}
	return money.Round(ingresos.Sub(egresos)), nil
}

func (s *cajaService) Estado(ctx context.Context) (*dto.EstadoCajaResponse, error) {
	sesion, err := s.SesionActiva(ctx)
	if err != nil {
		return nil, err
	}
	resp := &dto.EstadoCajaResponse{Saldo: decimal.Zero}
	if sesion == nil {
		return resp, nil
	}
	saldo, err := s.saldoSesion(ctx, s.store.Repos(), sesion.ID)
	if err != nil {
		return nil, err
	}
	sr := sesionToResponse(sesion)
	resp.Abierta, resp.Saldo, resp.Sesion = true, saldo, &sr
	return resp, nil
}

// ── VistaDiaria ───────────────────────────────────────────────────────────────
// Movements of the open session plus those created on the given local day.
// Totals are over exactly that list; they are not the session's totals (see
// ObtenerReporte).

func (s *cajaService) VistaDiaria(ctx context.Context, fecha string) (*dto.VistaDiariaResponse, error) {
	desde, hasta, err := parseDia(fecha, s.loc, s.now())
	if err != nil {
		return nil, err
	}
	repos := s.store.Repos()

	abierta, err := s.SesionActivaEn(ctx, repos)
	if err != nil {
		return nil, err
	}
	var sesionID *uuid.UUID
	if abierta != nil {
		sesionID = &abierta.ID
	}

	movs, err := repos.Cajas.ListMovimientosVista(ctx, sesionID, desde, hasta)
	if err != nil {
		return nil, storeError(err)
	}
	resp := &dto.VistaDiariaResponse{
		Fecha:       desde.Format("2006-01-02"),
		Movimientos: make([]dto.MovimientoCajaResponse, 0, len(movs)),
		Ingresos:    decimal.Zero,
		Egresos:     decimal.Zero,
	}
	var ingresos, egresos []decimal.Decimal
	for i := range movs {
		m := &movs[i]
		resp.Movimientos = append(resp.Movimientos, movimientoCajaToResponse(m))
		if m.Tipo == model.MovimientoIngreso {
			ingresos = append(ingresos, m.Monto)
		} else {
			egresos = append(egresos, m.Monto)
		}
	}
	resp.Ingresos, resp.Egresos = money.Sum(ingresos...), money.Sum(egresos...)

	ultima := abierta
	if ultima == nil {
		ultima, err = repos.Cajas.FindUltimaSesion(ctx)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, storeError(err)
		}
	}
	if ultima != nil {
		sr := sesionToResponse(ultima)
		resp.UltimaSesion = &sr
	}
	return resp, nil
}

// ── Movimientos manuales ──────────────────────────────────────────────────────

func validarMovimiento(req dto.MovimientoCajaRequest) (decimal.Decimal, error) {
	fields := map[string]string{}
	if req.Tipo != model.MovimientoIngreso && req.Tipo != model.MovimientoEgreso {
		fields["tipo"] = "oneof"
	}
	monto := money.Round(req.Monto)
	if !monto.IsPositive() {
		fields["monto"] = "gt"
	}
	if strings.TrimSpace(req.Descripcion) == "" {
		fields["descripcion"] = "required"
	}
	if len(fields) > 0 {
		return decimal.Zero, apierror.Validation("Movimiento de caja inválido", fields)
	}
	return monto, nil
}

func categoriaOrDefault(c string) string {
	if c = strings.TrimSpace(c); c == "" {
		return model.CategoriaGeneral
	}
	return c
}

func (s *cajaService) RegistrarMovimiento(ctx context.Context, usuarioID uuid.UUID, req dto.MovimientoCajaRequest) (*dto.MovimientoCajaResponse, error) {
	if usuarioID == uuid.Nil {
		return nil, apierror.ErrUnauthorized
	}
	monto, err := validarMovimiento(req)
	if err != nil {
		return nil, err
	}

	var mov *model.MovimientoCaja
	err = s.store.RunInTx(ctx, func(r repository.Repos) error {
		sesion, err := s.RequerirAbierta(ctx, r)
		if err != nil {
			return err
		}
		mov = &model.MovimientoCaja{
			SesionCajaID: &sesion.ID,
			Tipo:         req.Tipo,
			Monto:        monto,
			Descripcion:  strings.TrimSpace(req.Descripcion),
			Categoria:    categoriaOrDefault(req.Categoria),
			UsuarioID:    &usuarioID,
			CreatedAt:    s.now(),
		}
		return r.Cajas.CreateMovimiento(ctx, mov)
	})
	if err != nil {
		return nil, storeError(err)
	}
	log.Info().Str("movimiento_id", mov.ID.String()).Str("tipo", mov.Tipo).
		Str("monto", monto.StringFixed(2)).Msg("movimiento de caja registrado")
	resp := movimientoCajaToResponse(mov)
	return &resp, nil
}

func (s *cajaService) ActualizarMovimiento(ctx context.Context, id uuid.UUID, req dto.MovimientoCajaRequest) (*dto.MovimientoCajaResponse, error) {
	monto, err := validarMovimiento(req)
	if err != nil {
		return nil, err
	}
	var mov *model.MovimientoCaja
	err = s.store.RunInTx(ctx, func(r repository.Repos) error {
		var err error
		mov, err = r.Cajas.FindMovimientoByID(ctx, id)
		if err != nil {
			return lookupError(err, apierror.ErrMovementNotFound)
		}
		mov.Tipo = req.Tipo
		mov.Monto = monto
		mov.Descripcion = strings.TrimSpace(req.Descripcion)
		mov.Categoria = categoriaOrDefault(req.Categoria)
		return lookupError(r.Cajas.UpdateMovimiento(ctx, mov), apierror.ErrMovementNotFound)
	})
	if err != nil {
		return nil, storeError(err)
	}
	log.Warn().Str("movimiento_id", id.String()).Msg("movimiento de caja corregido")
	resp := movimientoCajaToResponse(mov)
	return &resp, nil
}

func (s *cajaService) EliminarMovimiento(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Repos().Cajas.DeleteMovimiento(ctx, id); err != nil {
		return lookupError(err, apierror.ErrMovementNotFound)
	}
	log.Warn().Str("movimiento_id", id.String()).Msg("movimiento de caja eliminado")
	return nil
}

// ── ObtenerReporte / Historial ────────────────────────────────────────────────

// ObtenerReporte totals only movements linked to the session id.
func (s *cajaService) ObtenerReporte(ctx context.Context, sesionID uuid.UUID) (*dto.ReporteSesionResponse, error) {
	repos := s.store.Repos()
	sesion, err := repos.Cajas.FindSesionByID(ctx, sesionID)
	if err != nil {
		return nil, lookupError(err, apierror.ErrSessionNotFound)
	}
	ingresos, egresos, err := repos.Cajas.SumMovimientos(ctx, sesion.ID)
	if err != nil {
		return nil, storeError(err)
	}
	ingresos, egresos = money.Round(ingresos), money.Round(egresos)
	esperado := money.Round(ingresos.Sub(egresos))

	resp := &dto.ReporteSesionResponse{
		Sesion:         sesionToResponse(sesion),
		TotalIngresos:  ingresos,
		TotalEgresos:   egresos,
		SaldoEsperado:  esperado,
		MontoDeclarado: sesion.MontoDeclarado,
	}
	if sesion.MontoDeclarado != nil {
		dif := money.Round(sesion.MontoDeclarado.Sub(esperado))
		resp.Diferencia = &dif
	}
	return resp, nil
}

func (s *cajaService) Historial(ctx context.Context, page, limit int) (*dto.SesionListResponse, error) {
	page, limit = normalizePage(page, limit, 20, 100)
	sesiones, total, err := s.store.Repos().Cajas.ListSesiones(ctx, page, limit)
	if err != nil {
		return nil, storeError(err)
	}
	resp := &dto.SesionListResponse{Data: make([]dto.SesionCajaResponse, 0, len(sesiones)), Total: total, Page: page, Limit: limit}
	for i := range sesiones {
		resp.Data = append(resp.Data, sesionToResponse(&sesiones[i]))
	}
	return resp, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func uuidPtrString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func sesionToResponse(s *model.SesionCaja) dto.SesionCajaResponse {
	return dto.SesionCajaResponse{
		ID:             s.ID.String(),
		PuntoDeVenta:   s.PuntoDeVenta,
		AbiertaPor:     s.AbiertaPor.String(),
		CerradaPor:     uuidPtrString(s.CerradaPor),
		MontoInicial:   s.MontoInicial,
		TotalIngresos:  s.TotalIngresos,
		TotalEgresos:   s.TotalEgresos,
		MontoDeclarado: s.MontoDeclarado,
		Estado:         s.Estado,
		Observaciones:  s.Observaciones,
		OpenedAt:       formatTime(s.OpenedAt),
		ClosedAt:       formatTimePtr(s.ClosedAt),
	}
}

func movimientoCajaToResponse(m *model.MovimientoCaja) dto.MovimientoCajaResponse {
	return dto.MovimientoCajaResponse{
		ID:           m.ID.String(),
		SesionCajaID: uuidPtrString(m.SesionCajaID),
		Tipo:         m.Tipo,
		Monto:        m.Monto,
		Descripcion:  m.Descripcion,
		Categoria:    m.Categoria,
		VentaID:      uuidPtrString(m.VentaID),
		CreatedAt:    formatTime(m.CreatedAt),
	}
}
