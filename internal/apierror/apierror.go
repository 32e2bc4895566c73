// Package apierror provides the error taxonomy shared by services and the
// standardized error envelope returned by the API.
// All errors returned to clients go through this package to ensure consistency
// and to prevent leaking internal details (stack traces, DB errors, etc.).
package apierror

import (
	"errors"
	"maps"
	"net/http"
)

// Kind classifies a failure so callers can react without parsing messages.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindUnauthorized Kind = "unauthorized"
	KindPrecondition Kind = "precondition_failed"
	KindConflict     Kind = "conflict"
	KindStore        Kind = "store"
)

// Error is a domain failure: a kind, a stable code, a user-facing message
// (Spanish, business wording) and optional structured context.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Context map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on kind and code, so copies produced by WithMessage / WithContext
// still satisfy errors.Is against the package sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Code == "" || t.Code == e.Code)
}

// WithMessage returns a copy with a more specific message.
func (e *Error) WithMessage(msg string) *Error {
	cp := *e
	cp.Message = msg
	cp.Context = maps.Clone(e.Context)
	return &cp
}

// WithContext returns a copy carrying an extra context value.
func (e *Error) WithContext(key string, value any) *Error {
	cp := *e
	cp.Context = maps.Clone(e.Context)
	if cp.Context == nil {
		cp.Context = make(map[string]any, 1)
	}
	cp.Context[key] = value
	return &cp
}

func precondition(code, msg string) *Error {
	return &Error{Kind: KindPrecondition, Code: code, Message: msg}
}

var (
	ErrUnauthorized = &Error{Kind: KindUnauthorized, Code: "no_autenticado", Message: "Autenticacion requerida"}

	ErrCashBoxClosed      = precondition("caja_cerrada", "La caja está cerrada. Debe abrir la caja para registrar operaciones de efectivo.")
	ErrSessionAlreadyOpen = precondition("caja_ya_abierta", "Ya existe una caja abierta")
	ErrNoOpenSession      = precondition("sin_caja_abierta", "No hay caja abierta para cerrar")
	ErrInsufficientStock  = precondition("stock_insuficiente", "Stock insuficiente")
	ErrClientRequired     = precondition("cliente_requerido", "Se requiere un cliente registrado para Cuenta Corriente")
	ErrAccountNotEnabled  = precondition("cuenta_no_habilitada", "El cliente seleccionado no tiene habilitada la Cuenta Corriente")
	ErrProductNotFound    = precondition("producto_no_encontrado", "Producto no encontrado")
	ErrClientNotFound     = precondition("cliente_no_encontrado", "Cliente no encontrado")
	ErrClientHasHistory   = precondition("cliente_con_historial", "No se puede eliminar un cliente con ventas o movimientos de cuenta corriente")
	ErrSaleNotFound       = precondition("venta_no_encontrada", "Venta no encontrada")
	ErrSessionNotFound    = precondition("sesion_no_encontrada", "Sesión de caja no encontrada")
	ErrMovementNotFound   = precondition("movimiento_no_encontrado", "Movimiento de caja no encontrado")
	ErrUserNotFound       = precondition("usuario_no_encontrado", "Usuario no encontrado")

	ErrConflict = &Error{Kind: KindConflict, Code: "conflicto_concurrencia",
		Message: "La operación entró en conflicto con otra simultánea. Intente nuevamente."}
	ErrDuplicate = &Error{Kind: KindConflict, Code: "registro_duplicado", Message: "El registro ya existe"}
)

// Validation builds a KindValidation error; fields is optional.
func Validation(msg string, fields map[string]string) *Error {
	e := &Error{Kind: KindValidation, Code: "datos_invalidos", Message: msg}
	if len(fields) > 0 {
		e.Context = make(map[string]any, len(fields))
		for k, v := range fields {
			e.Context[k] = v
		}
	}
	return e
}

// Store wraps an infrastructure failure. The cause is kept for logging and
// never rendered to clients.
func Store(err error) *Error {
	return &Error{Kind: KindStore, Code: "error_almacenamiento", Message: "Error interno del servidor", Err: err}
}

// Conflict wraps a concurrency failure reported by the store.
func Conflict(err error) *Error {
	cp := *ErrConflict
	cp.Err = err
	return &cp
}

// ── HTTP envelope ─────────────────────────────────────────────────────────────

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Detail    string         `json:"detail"`
	Kind      Kind           `json:"kind,omitempty"`
	Code      string         `json:"code,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
	Retryable bool           `json:"retryable,omitempty"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// ValidationError wraps multiple field errors.
type ValidationError struct {
	Detail string            `json:"detail"`
	Kind   Kind              `json:"kind"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "Error de validacion", Kind: KindValidation, Fields: fields}
}

var notFoundCodes = map[string]bool{
	ErrProductNotFound.Code:  true,
	ErrClientNotFound.Code:   true,
	ErrSaleNotFound.Code:     true,
	ErrSessionNotFound.Code:  true,
	ErrMovementNotFound.Code: true,
	ErrUserNotFound.Code:     true,
}

// Status maps an error to its HTTP status code.
func Status(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindPrecondition:
		if notFoundCodes[e.Code] {
			return http.StatusNotFound
		}
		return http.StatusConflict
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// FromError renders err as a status code and a safe envelope.
// Untyped errors and store errors collapse into a generic 500.
func FromError(err error) (int, *APIError) {
	status := Status(err)
	var e *Error
	if !errors.As(err, &e) || e.Kind == KindStore {
		return status, &APIError{Detail: "Error interno del servidor", Kind: KindStore}
	}
	return status, &APIError{
		Detail:    e.Message,
		Kind:      e.Kind,
		Code:      e.Code,
		Context:   e.Context,
		Retryable: e.Code == ErrConflict.Code,
	}
}
