package infra

import (
	"fmt"
	"time"

	"autopartes/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx. Schema changes are
// applied separately by RunMigrations.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	return db, nil
}

// RunMigrations creates or updates every table with AutoMigrate, then applies
// the constraints GORM cannot express. Both steps are idempotent.
func RunMigrations(db *gorm.DB) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto`).Error; err != nil {
		return fmt.Errorf("pgcrypto: %w", err)
	}
	if err := db.AutoMigrate(
		&model.Usuario{},
		&model.Producto{},
		&model.MovimientoStock{},
		&model.SesionCaja{},
		&model.MovimientoCaja{},
		&model.Cliente{},
		&model.MovimientoCliente{},
		&model.Venta{},
		&model.VentaItem{},
		&model.SecuenciaFactura{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	return applySchemaPatches(db)
}

// applySchemaPatches runs idempotent DDL that GORM AutoMigrate cannot handle
// on its own (partial indexes, CHECK constraints).
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		// At most one open cash session; a concurrent second open fails with 23505.
		{"ux_sesiones_caja_abierta", `
CREATE UNIQUE INDEX IF NOT EXISTS ux_sesiones_caja_abierta
    ON sesiones_caja ((estado)) WHERE estado = 'abierta'`},
		{"chk_productos_stock", addCheck("productos", "chk_productos_stock_no_negativo", "stock_actual >= 0")},
		{"drop_chk_movimientos_caja_monto_positivo", `
ALTER TABLE movimientos_caja DROP CONSTRAINT IF EXISTS chk_movimientos_caja_monto_positivo`},
		// Only the Apertura movement of a zero float may carry a zero amount.
		{"chk_movimientos_caja_monto", addCheck("movimientos_caja", "chk_movimientos_caja_monto",
			"monto > 0 OR (monto = 0 AND categoria = 'Apertura')")},
		{"chk_movimientos_caja_tipo", addCheck("movimientos_caja", "chk_movimientos_caja_tipo", "tipo IN ('ingreso', 'egreso')")},
		{"chk_movimientos_cliente_tipo", addCheck("movimientos_cliente", "chk_movimientos_cliente_tipo", "tipo IN ('venta', 'pago', 'uso_credito')")},
		{"chk_sesiones_caja_estado", addCheck("sesiones_caja", "chk_sesiones_caja_estado", "estado IN ('abierta', 'cerrada')")},
		{"chk_ventas_tipo_factura", addCheck("ventas", "chk_ventas_tipo_factura", "tipo_factura IN ('A', 'B', 'C')")},
		{"idx_productos_bajo_stock", `
CREATE INDEX IF NOT EXISTS idx_productos_bajo_stock
    ON productos (stock_actual) WHERE activo AND stock_actual <= stock_minimo`},
	}
	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}

func addCheck(table, name, expr string) string {
	return fmt.Sprintf(`
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = '%s') THEN
    ALTER TABLE %s ADD CONSTRAINT %s CHECK (%s);
  END IF;
END $$`, name, table, name, expr)
}
