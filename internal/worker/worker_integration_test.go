//go:build integration

package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	rdC, err := tcRedis.RunContainer(ctx, testcontainers.WithImage("redis:7-alpine"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(ctx) })

	url, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	rdb := redis.NewClient(opts)
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestAlertaStockLlegaAlFeed(t *testing.T) {
	rdb := setupRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	StartWorkerPool(ctx, rdb, map[string]Handler{JobAlertaStock: NewAlertaStockWorker(rdb)}, 2)

	d := NewDispatcher(rdb)
	require.NoError(t, d.EnqueueAlertaStock(ctx, AlertaStockPayload{
		ProductoID: "p-1", SKU: "FIL-001", Nombre: "Filtro de aceite",
		StockActual: 1, StockMinimo: 3, DetectadaAt: time.Now().Format(time.RFC3339),
	}))

	require.Eventually(t, func() bool {
		alertas, err := AlertasRecientes(ctx, rdb, 10)
		return err == nil && len(alertas) == 1
	}, 10*time.Second, 100*time.Millisecond)

	alertas, err := AlertasRecientes(ctx, rdb, 10)
	require.NoError(t, err)
	assert.Equal(t, "FIL-001", alertas[0].SKU)
}

func TestJobSinHandlerVaALaDLQ(t *testing.T) {
	rdb := setupRedis(t)
	ctx := context.Background()

	processJob(ctx, rdb, map[string]Handler{}, QueueAlertasStock,
		`{"type":"alerta_stock","payload":{"producto_id":"p-1","sku":"FIL-001"}}`)
	processJob(ctx, rdb, map[string]Handler{}, QueueAlertasStock, `{no es json`)

	n, err := DLQLength(ctx, rdb, QueueAlertasStock)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	raw, err := rdb.LIndex(ctx, DLQPrefix+QueueAlertasStock, 1).Result()
	require.NoError(t, err)
	var carta CartaMuerta
	require.NoError(t, json.Unmarshal([]byte(raw), &carta))
	assert.Equal(t, "FIL-001", carta.SKU)
	assert.Equal(t, JobAlertaStock, carta.Tipo)
}
