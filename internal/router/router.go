package router

import (
	"autopartes/internal/config"
	"autopartes/internal/handler"
	"autopartes/internal/middleware"
	"autopartes/internal/repository"
	"autopartes/internal/service"
	"autopartes/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Services is the service graph built by Wire. cmd/server uses it to hand
// ClienteService to the reconciliation cron.
type Services struct {
	Auth       service.AuthService
	Caja       service.CajaService
	Ventas     service.VentaService
	Clientes   service.ClienteService
	Productos  service.ProductoService
	Inventario service.InventarioService
	Reportes   service.ReporteService
}

// Wire builds every service on top of store. rdb may be nil (memory mode).
// Dependency graph: Handler ← Service ← Store ← DB/Redis
func Wire(cfg *config.Config, store repository.Store, rdb *redis.Client) *Services {
	cajaSvc := service.NewCajaService(store, cfg.PuntoDeVenta, cfg.Location)

	// Worker dispatcher, injected into services that enqueue async jobs
	dispatcher := worker.NewDispatcher(rdb)

	return &Services{
		Auth:       service.NewAuthService(store.Repos().Usuarios, cfg),
		Caja:       cajaSvc,
		Ventas:     service.NewVentaService(store, cajaSvc, dispatcher, cfg.PuntoDeVenta, cfg.Location),
		Clientes:   service.NewClienteService(store, cajaSvc),
		Productos:  service.NewProductoService(store),
		Inventario: service.NewInventarioService(store, rdb),
		Reportes:   service.NewReporteService(store, cfg.Location),
	}
}

// New returns a configured Gin engine serving svcs.
func New(cfg *config.Config, store repository.Store, rdb *redis.Client, svcs *Services) (*gin.Engine, error) {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	globalLimit, err := middleware.NewLimiter(cfg.RateLimit, rdb, "global")
	if err != nil {
		return nil, err
	}
	loginLimit, err := middleware.NewLimiter(cfg.LoginRateLimit, rdb, "login")
	if err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimit(globalLimit, "Demasiadas solicitudes, intente en un minuto"))

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(svcs.Auth)
	usuariosH := handler.NewUsuariosHandler(svcs.Auth)
	cajaH := handler.NewCajaHandler(svcs.Caja)
	ventasH := handler.NewVentasHandler(svcs.Ventas)
	clientesH := handler.NewClientesHandler(svcs.Clientes)
	productosH := handler.NewProductosHandler(svcs.Productos, svcs.Inventario)
	inventarioH := handler.NewInventarioHandler(svcs.Inventario)
	reportesH := handler.NewReportesHandler(svcs.Reportes)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(store, rdb))

	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", middleware.RateLimit(loginLimit, "Demasiados intentos de login, intente en un minuto"), authH.Login)
		auth.POST("/refresh", authH.Refresh)
	}

	// Protected routes
	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret))
	todos := middleware.RequireRole("cajero", "administrador")
	{
		caja := v1.Group("/caja", todos)
		{
			caja.POST("/abrir", cajaH.Abrir)
			caja.POST("/cerrar", cajaH.Cerrar)
			caja.GET("/estado", cajaH.Estado)
			caja.GET("/diaria", cajaH.Diaria)
			caja.POST("/movimientos", cajaH.RegistrarMovimiento)
			caja.PUT("/movimientos/:id", middleware.RequireRole("administrador"), cajaH.ActualizarMovimiento)
			caja.DELETE("/movimientos/:id", middleware.RequireRole("administrador"), cajaH.EliminarMovimiento)
			caja.GET("/historial", middleware.RequireRole("administrador"), cajaH.Historial)
			caja.GET("/:id/reporte", cajaH.ObtenerReporte)
		}

		ventas := v1.Group("/ventas", todos)
		{
			ventas.POST("", ventasH.RegistrarVenta)
			ventas.GET("", ventasH.ListarVentas)
			ventas.GET("/:id", ventasH.ObtenerVenta)
		}

		clientes := v1.Group("/clientes", todos)
		{
			clientes.POST("", clientesH.Crear)
			clientes.GET("", clientesH.Listar)
			clientes.GET("/:id", clientesH.ObtenerPorID)
			clientes.PUT("/:id", clientesH.Actualizar)
			clientes.DELETE("/:id", middleware.RequireRole("administrador"), clientesH.Eliminar)
			clientes.POST("/:id/pagos", clientesH.RegistrarPago)
			clientes.GET("/:id/historial", clientesH.Historial)
			clientes.GET("/:id/conciliacion", middleware.RequireRole("administrador"), clientesH.Conciliar)
		}

		// GET /v1/productos: every role can read
		v1.GET("/productos", todos, productosH.Listar)
		v1.GET("/productos/:id", todos, productosH.ObtenerPorID)
		// PATCH stock: administrador only
		v1.PATCH("/productos/:id/stock", middleware.RequireRole("administrador"), productosH.AjustarStock)
		// Write operations: administrador only
		prods := v1.Group("/productos", middleware.RequireRole("administrador"))
		{
			prods.POST("", productosH.Crear)
			prods.PUT("/:id", productosH.Actualizar)
			prods.DELETE("/:id", productosH.Desactivar)
		}

		inv := v1.Group("/inventario", middleware.RequireRole("administrador"))
		{
			inv.GET("/alertas", inventarioH.ObtenerAlertas)
			inv.GET("/alertas/recientes", inventarioH.AlertasRecientes)
			inv.GET("/movimientos", inventarioH.ListarMovimientos)
		}

		rep := v1.Group("/reportes", middleware.RequireRole("administrador"))
		{
			rep.GET("/ventas", reportesH.VentasPorDia)
			rep.GET("/flujo-caja", reportesH.FlujoDeCaja)
			rep.GET("/top-productos", reportesH.TopProductos)
			rep.GET("/deuda-clientes", reportesH.DeudaClientes)
			rep.GET("/stock", reportesH.ValorizacionStock)
			rep.GET("/salud", reportesH.SaludNegocio)
		}

		usuarios := v1.Group("/usuarios", middleware.RequireRole("administrador"))
		{
			usuarios.POST("", usuariosH.Crear)
			usuarios.GET("", usuariosH.Listar)
			usuarios.DELETE("/:id", usuariosH.Desactivar)
		}
	}

	// Swagger UI, only outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r, nil
}
