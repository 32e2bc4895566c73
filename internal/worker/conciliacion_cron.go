package worker

// conciliacion_cron.go
// Periodic sweep that compares every client's stored balance with the sum of
// its ledger entries and logs each divergence for human review.

import (
	"context"

	"autopartes/internal/dto"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Conciliador is satisfied by service.ClienteService.
type Conciliador interface {
	ConciliarTodos(ctx context.Context) ([]dto.ConciliacionResponse, error)
}

// StartConciliacionCron registers the sweep on schedule (robfig/cron syntax,
// e.g. "@every 1h") and stops the scheduler when ctx is cancelled.
func StartConciliacionCron(ctx context.Context, schedule string, c Conciliador) error {
	sched := cron.New()
	_, err := sched.AddFunc(schedule, func() { runConciliacion(ctx, c) })
	if err != nil {
		return err
	}
	sched.Start()
	log.Info().Str("schedule", schedule).Msg("conciliacion_cron: started")

	go func() {
		<-ctx.Done()
		<-sched.Stop().Done()
		log.Info().Msg("conciliacion_cron: shutting down")
	}()
	return nil
}

// runConciliacion returns the number of divergent clients found.
func runConciliacion(ctx context.Context, c Conciliador) int {
	divergentes, err := c.ConciliarTodos(ctx)
	if err != nil {
		log.Error().Err(err).Msg("conciliacion_cron: sweep failed")
		return 0
	}
	for _, d := range divergentes {
		log.Error().
			Str("cliente_id", d.ClienteID).
			Str("saldo_registrado", d.SaldoRegistrado.StringFixed(2)).
			Str("saldo_ledger", d.SaldoLedger.StringFixed(2)).
			Str("diferencia", d.Diferencia.StringFixed(2)).
			Msg("conciliacion_cron: saldo no coincide con el historial")
	}
	if len(divergentes) == 0 {
		log.Debug().Msg("conciliacion_cron: all balances consistent")
	}
	return len(divergentes)
}
