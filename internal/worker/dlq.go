package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Jobs that run out of attempts, or that no handler accepts, are parked in a
// capped Redis list per source queue: dlq:{queue}.
const (
	DLQPrefix = "dlq:"
	maxDLQ    = 500
)

// CartaMuerta is one parked job. Stock alerts keep the product reference at
// the top level so the stock can be re-checked without decoding Payload.
type CartaMuerta struct {
	Cola       string          `json:"cola"`
	Tipo       string          `json:"tipo"`
	ProductoID string          `json:"producto_id,omitempty"`
	SKU        string          `json:"sku,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	Motivo     string          `json:"motivo"`
	Intentos   int             `json:"intentos"`
	FallidaAt  string          `json:"fallida_at"` // RFC 3339
}

func nuevaCartaMuerta(queue string, job Job, motivo string, now time.Time) CartaMuerta {
	c := CartaMuerta{
		Cola:      queue,
		Tipo:      job.Type,
		Payload:   job.Payload,
		Motivo:    motivo,
		Intentos:  job.Attempts,
		FallidaAt: now.UTC().Format(time.RFC3339),
	}
	if len(c.Payload) == 0 {
		c.Payload = json.RawMessage("null")
	}
	if job.Type == JobAlertaStock {
		var p AlertaStockPayload
		if json.Unmarshal(job.Payload, &p) == nil {
			c.ProductoID, c.SKU = p.ProductoID, p.SKU
		}
	}
	return c
}

// textoCrudo wraps an undecodable message as a JSON string so it can still be
// parked.
func textoCrudo(raw string) json.RawMessage {
	b, _ := json.Marshal(raw)
	return b
}

func enviarADLQ(ctx context.Context, rdb *redis.Client, queue string, job Job, motivo string) {
	carta := nuevaCartaMuerta(queue, job, motivo, time.Now())
	data, err := json.Marshal(carta)
	if err != nil {
		log.Error().Err(err).Str("cola", queue).Msg("dlq: carta ilegible")
		return
	}

	key := DLQPrefix + queue
	pipe := rdb.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, maxDLQ-1)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Error().Err(err).Str("dlq_key", key).Msg("dlq: no se pudo guardar el job")
		return
	}

	log.Warn().
		Str("cola", queue).
		Str("tipo", job.Type).
		Str("sku", carta.SKU).
		Str("motivo", motivo).
		Int("intentos", job.Attempts).
		Msg("dlq: job descartado")
}

// DLQLength reports how many jobs are parked for queue; /health exposes it.
func DLQLength(ctx context.Context, rdb *redis.Client, queue string) (int64, error) {
	return rdb.LLen(ctx, DLQPrefix+queue).Result()
}
