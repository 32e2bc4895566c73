package worker

// alerta_stock_worker.go
// Processes low-stock alerts from QueueAlertasStock. Each alert is logged and
// prepended to a capped Redis list that backs GET /v1/inventario/alertas/recientes.

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	KeyAlertasRecientes = "alertas:stock:recientes"
	maxAlertasRecientes = 50
)

// AlertaStockPayload is the job body sent to QueueAlertasStock after a sale
// leaves a product at or below its minimum.
type AlertaStockPayload struct {
	ProductoID  string `json:"producto_id"`
	SKU         string `json:"sku"`
	Nombre      string `json:"nombre"`
	StockActual int    `json:"stock_actual"`
	StockMinimo int    `json:"stock_minimo"`
	DetectadaAt string `json:"detectada_at"` // RFC 3339
}

type AlertaStockWorker struct {
	rdb *redis.Client
}

func NewAlertaStockWorker(rdb *redis.Client) *AlertaStockWorker {
	return &AlertaStockWorker{rdb: rdb}
}

func (w *AlertaStockWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload AlertaStockPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		// A malformed payload will never succeed; drop it.
		log.Error().Err(err).Msg("alerta_stock_worker: invalid payload")
		return nil
	}

	log.Warn().
		Str("producto_id", payload.ProductoID).
		Str("sku", payload.SKU).
		Int("stock_actual", payload.StockActual).
		Int("stock_minimo", payload.StockMinimo).
		Msg("alerta_stock_worker: producto bajo stock mínimo")

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	pipe := w.rdb.TxPipeline()
	pipe.LPush(ctx, KeyAlertasRecientes, data)
	pipe.LTrim(ctx, KeyAlertasRecientes, 0, maxAlertasRecientes-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("guardar alerta reciente: %w", err)
	}
	return nil
}

// AlertasRecientes returns up to n alerts, newest first.
func AlertasRecientes(ctx context.Context, rdb *redis.Client, n int64) ([]AlertaStockPayload, error) {
	if n <= 0 || n > maxAlertasRecientes {
		n = maxAlertasRecientes
	}
	raws, err := rdb.LRange(ctx, KeyAlertasRecientes, 0, n-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]AlertaStockPayload, 0, len(raws))
	for _, raw := range raws {
		var p AlertaStockPayload
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			log.Warn().Err(err).Msg("alertas recientes: entrada ilegible descartada")
			continue
		}
		out = append(out, p)
	}
	return out, nil
}
