package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Lucassml-boop/commerce-e/internal/api"
	"github.com/Lucassml-boop/commerce-e/internal/assets"
	"github.com/Lucassml-boop/commerce-e/internal/cache"
	"github.com/Lucassml-boop/commerce-e/internal/cart"
	"github.com/Lucassml-boop/commerce-e/internal/config"
	"github.com/Lucassml-boop/commerce-e/internal/database"
	"github.com/Lucassml-boop/commerce-e/internal/event"
	"github.com/Lucassml-boop/commerce-e/internal/limiter"
	"github.com/Lucassml-boop/commerce-e/internal/logger"
	mw "github.com/Lucassml-boop/commerce-e/internal/middleware"
	"github.com/Lucassml-boop/commerce-e/internal/mq"
	"github.com/Lucassml-boop/commerce-e/internal/repo"
	"github.com/Lucassml-boop/commerce-e/internal/resp"
	"github.com/Lucassml-boop/commerce-e/internal/router"
	"github.com/Lucassml-boop/commerce-e/internal/service"
)

// AppDependencies 包含应用的所有依赖
type AppDependencies struct {
	UserHandler    *api.UserHandler
	ProductHandler *api.ProductHandler
	CartHandler    *api.CartHandler
	UploadHandler  *api.UploadHandler
	JWTService     service.JWTService

	Bus *event.Bus
	Hub *cart.Hub

	RateLimiter   limiter.Limiter
	IdempotencyMW gin.HandlerFunc

	// 生命周期收尾
	closers []func()
}

// initConfigAndLogger 初始化配置和日志器
func initConfigAndLogger() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %v", err)
	}

	// init logger
	lg, err := logger.New(cfg.App.Env, cfg.Log.Level, cfg.Log.Encoding, cfg.App.Name, cfg.App.Version)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %v", err)
	}

	return cfg, lg, nil
}

// initDatabase 初始化数据库连接并执行迁移
func initDatabase(cfg *config.Config, lg *zap.Logger) (*database.DB, error) {
	db, err := database.New(cfg, lg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %v", err)
	}

	// 迁移在HTTP服务器启动前执行，处理请求时数据库结构已经就绪
	migrationsDir := cfg.Migrations.Dir
	lg.Sugar().Infow("using migrations directory", "path", migrationsDir)

	if err := db.RunMigrations(migrationsDir); err != nil {
		return nil, fmt.Errorf("failed to run database migrations: %v", err)
	}

	return db, nil
}

// initCache 初始化缓存实例
func initCache(cfg *config.Config, lg *zap.Logger) cache.Cache {
	var cacheInstance cache.Cache
	if cfg.Cache.Enabled {
		switch cfg.Cache.Type {
		case "redis":
			redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
			redisCache, err := cache.NewRedisCache(redisAddr, cfg.Redis.Password, cfg.Redis.DB)
			if err != nil {
				lg.Sugar().Warnw("failed to connect to Redis, falling back to memory cache", "error", err)
				cacheInstance = cache.NewMemoryCache()
				lg.Sugar().Infow("cache enabled", "type", "memory (fallback)", "ttl", cfg.Cache.TTL)
			} else {
				cacheInstance = redisCache
				lg.Sugar().Infow("cache enabled", "type", "redis", "addr", redisAddr, "ttl", cfg.Cache.TTL)
			}
		case "memory":
			cacheInstance = cache.NewMemoryCache()
			lg.Sugar().Infow("cache enabled", "type", "memory", "ttl", cfg.Cache.TTL)
		default:
			lg.Sugar().Warnw("unknown cache type, using memory cache", "type", cfg.Cache.Type)
			cacheInstance = cache.NewMemoryCache()
			lg.Sugar().Infow("cache enabled", "type", "memory (default)", "ttl", cfg.Cache.TTL)
		}
	} else {
		cacheInstance = cache.NewNullCache()
		lg.Sugar().Infow("cache disabled")
	}
	return cacheInstance
}

// initCartProtection 初始化购物车写接口的限流和幂等性保护。
// 两者都依赖Redis，未配置Redis时购物车接口不启用这两项保护。
func initCartProtection(cfg *config.Config, lg *zap.Logger) (limiter.Limiter, gin.HandlerFunc, func()) {
	if !cfg.Cache.Enabled || cfg.Cache.Type != "redis" {
		lg.Sugar().Infow("cart rate limiting and idempotency disabled", "reason", "redis not configured")
		return nil, nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	tb := limiter.NewTokenBucketLimiter(client, &limiter.Config{
		Rate:      10,
		Window:    time.Second,
		Burst:     20,
		KeyPrefix: "limiter:cart",
	})
	idem := mw.GinIdempotency(client, nil, lg)

	lg.Sugar().Infow("cart rate limiting and idempotency enabled", "rate", 10, "burst", 20)
	return tb, idem, func() { _ = client.Close() }
}

// initCartEvents 初始化跨实例的购物车变更通知。
// MQ未启用时角标仍然工作，只是其他实例的变更无法实时感知。
func initCartEvents(cfg *config.Config, bus *event.Bus, instanceID string, lg *zap.Logger) []func() {
	if !cfg.MQ.Enabled {
		lg.Sugar().Infow("cart change notifications disabled", "reason", "mq not enabled")
		return nil
	}

	mqCfg := mq.DefaultConfig()
	mqCfg.Host = cfg.MQ.Host
	mqCfg.Port = cfg.MQ.Port
	mqCfg.Username = cfg.MQ.Username
	mqCfg.Password = cfg.MQ.Password
	mqCfg.VHost = cfg.MQ.VHost

	cm := mq.NewConnectionManager(mqCfg, lg)
	ctx, cancel := context.WithTimeout(context.Background(), mqCfg.ConnectionTimeout)
	defer cancel()
	if err := cm.Connect(ctx); err != nil {
		lg.Sugar().Warnw("failed to connect to RabbitMQ, cart change notifications disabled", "error", err)
		return nil
	}

	producer := mq.NewProducer(cm, mqCfg.Producer, lg)
	notifier := mq.NewCartNotifier(producer, instanceID, lg)
	notifier.Start(bus)

	listener := mq.NewCartListener(cm, mqCfg.Consumer, bus, instanceID, lg)
	if err := listener.Start(context.Background()); err != nil {
		lg.Sugar().Warnw("failed to start cart change listener", "error", err)
	}

	return []func(){
		func() { notifier.Close() },
		func() { _ = listener.Close() },
		func() { _ = producer.Close() },
		func() { _ = cm.Close() },
	}
}

// initDependencies 初始化应用依赖（仓储、服务、处理器）
func initDependencies(cfg *config.Config, db *database.DB, cacheInstance cache.Cache, lg *zap.Logger) (*AppDependencies, error) {
	// 实例ID用于跨实例消息去重
	instanceID := uuid.New().String()

	// 依赖注入链：仓储 -> 服务 -> API处理器
	userRepo := repo.NewUserRepository(db)
	userService := service.NewUserService(userRepo, lg)
	jwtService := service.NewJWTService(cfg, lg)
	userHandler := api.NewUserHandler(userService, jwtService, lg)

	baseProductRepo := repo.NewProductRepository(db)
	var productRepo repo.ProductRepository
	if cfg.Cache.Enabled {
		productRepo = repo.NewCachedProductRepository(baseProductRepo, cacheInstance, cfg.Cache.TTL)
	} else {
		productRepo = baseProductRepo
	}

	productService := service.NewProductService(productRepo, lg)
	productHandler := api.NewProductHandler(productService, lg)

	assetStore, err := assets.NewFSStore(cfg.Assets.Dir, cfg.Assets.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize asset store: %v", err)
	}
	uploadHandler := api.NewUploadHandler(productService, assetStore, lg)

	// 购物车：事件总线扩散变更，角标计数中心整体重算
	bus := event.NewBus()
	cartRepo := repo.NewCartRepository(db)
	cartService := service.NewCartService(cartRepo, productRepo, bus, lg)

	hub := cart.NewHub(cartRepo.CountByUser, lg)
	hub.SetUnsubscribe(bus.Subscribe(func(ev event.CartChanged) {
		hub.OnCartChanged(context.Background(), ev.UserID)
	}))

	// 登出时丢弃角标计数器
	userHandler.SetLogoutHook(hub.Drop)

	cartHandler := api.NewCartHandler(cartService, hub, lg)

	deps := &AppDependencies{
		UserHandler:    userHandler,
		ProductHandler: productHandler,
		CartHandler:    cartHandler,
		UploadHandler:  uploadHandler,
		JWTService:     jwtService,
		Bus:            bus,
		Hub:            hub,
	}
	deps.closers = append(deps.closers, hub.Close)

	// 限流和幂等性保护
	rateLimiter, idempotencyMW, closeRedis := initCartProtection(cfg, lg)
	deps.RateLimiter = rateLimiter
	deps.IdempotencyMW = idempotencyMW
	if closeRedis != nil {
		deps.closers = append(deps.closers, closeRedis)
	}

	// 跨实例的购物车变更通知
	deps.closers = append(deps.closers, initCartEvents(cfg, bus, instanceID, lg)...)

	return deps, nil
}

// Close 逆序释放依赖
func (d *AppDependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

// setupRoutes 设置路由和中间件
func setupRoutes(cfg *config.Config, deps *AppDependencies, lg *zap.Logger) http.Handler {
	mux := http.NewServeMux()

	// 健康检查端点
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		reqID := mw.RequestIDFromContext(r.Context())
		data := map[string]any{
			"status":  "ok",
			"version": cfg.App.Version,
		}
		resp.OK(w, &data, reqID, "")
	})

	// 用户认证相关API路由（无需认证）
	mux.HandleFunc("/api/v1/auth/register", deps.UserHandler.Register)
	mux.HandleFunc("/api/v1/auth/login", deps.UserHandler.Login)
	mux.HandleFunc("/api/v1/auth/refresh", deps.UserHandler.RefreshToken)

	// 需要认证的API路由
	authMiddleware := mw.AuthMiddleware(deps.JWTService, lg)
	mux.Handle("/api/v1/auth/logout", authMiddleware(http.HandlerFunc(deps.UserHandler.Logout)))
	mux.Handle("/api/v1/users/profile", authMiddleware(http.HandlerFunc(deps.UserHandler.GetProfile)))

	// 商品目录（无需认证）
	mux.HandleFunc("/api/v1/products", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			deps.ProductHandler.ListProducts(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/v1/products/categories", deps.ProductHandler.ListCategories)
	mux.HandleFunc("/api/v1/products/offers", deps.ProductHandler.ListOffers)
	mux.HandleFunc("/api/v1/products/", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			deps.ProductHandler.GetProduct(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	// 购物车接口走gin子路由（认证、限流都在子路由内）
	cartRouter := router.NewCartRouter(deps.CartHandler, deps.JWTService, deps.RateLimiter, deps.IdempotencyMW, lg)
	mux.Handle("/api/v1/cart", cartRouter)
	mux.Handle("/api/v1/cart/", cartRouter)

	// 管理员专用API路由（需要管理员权限）
	adminMiddleware := mw.RequireAdmin(lg)

	// 商品管理
	mux.Handle("/api/v1/admin/products", authMiddleware(adminMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			deps.ProductHandler.CreateProduct(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}))))
	mux.Handle("/api/v1/admin/products/", authMiddleware(adminMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/offer"):
			switch r.Method {
			case http.MethodPost:
				deps.ProductHandler.ApplyOffer(w, r)
			case http.MethodDelete:
				deps.ProductHandler.RemoveOffer(w, r)
			default:
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			}
		case strings.HasSuffix(r.URL.Path, "/image"):
			switch r.Method {
			case http.MethodPost:
				deps.UploadHandler.UploadProductImage(w, r)
			default:
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			}
		default:
			switch r.Method {
			case http.MethodPut:
				deps.ProductHandler.UpdateProduct(w, r)
			case http.MethodDelete:
				deps.ProductHandler.DeleteProduct(w, r)
			default:
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			}
		}
	}))))

	// 商品图片等静态资源
	assetPrefix := strings.TrimSuffix(cfg.Assets.BaseURL, "/") + "/"
	mux.Handle(assetPrefix, http.StripPrefix(assetPrefix, http.FileServer(http.Dir(cfg.Assets.Dir))))

	// 构建中间件链：请求进入时执行顺序为 access log → CORS → timeout → recovery → request ID
	// 响应返回时执行顺序为 request ID → recovery → timeout → CORS → access log
	handler := mw.RequestID(mux)
	handler = mw.Recovery(lg)(handler)
	handler = mw.Timeout(cfg.App.RequestTimeout)(handler)
	handler = mw.CORS(mw.CORSConfig{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: cfg.CORS.AllowedMethods,
		AllowedHeaders: cfg.CORS.AllowedHeaders,
	})(handler)
	handler = mw.AccessLog(lg)(handler)

	return handler
}

// startServer 启动服务器并处理优雅关闭
func startServer(cfg *config.Config, handler http.Handler, lg *zap.Logger) {
	addr := fmt.Sprintf(":%d", cfg.App.Port)
	lg.Sugar().Infow("server starting", "addr", addr)
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}

	// 启动服务器（异步）
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	select {
	case err := <-serverErrCh:
		if err != nil && err != http.ErrServerClosed {
			lg.Sugar().Fatalw("server error", "err", err)
		}
	case <-quit:
		lg.Sugar().Infow("shutdown signal received")
	}

	// 优雅关闭
	ctx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		lg.Sugar().Errorw("server shutdown error", "err", err)
	}
	lg.Sugar().Infow("server exited")
}

// main 为应用入口，协调各个组件的初始化和启动
func main() {
	// 1) 加载配置和初始化日志
	cfg, lg, err := initConfigAndLogger()
	if err != nil {
		log.Fatalf("failed to initialize config and logger: %v", err)
	}

	// 2) 初始化数据库连接并执行迁移
	db, err := initDatabase(cfg, lg)
	if err != nil {
		lg.Sugar().Fatalw("failed to initialize database", "err", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			lg.Sugar().Errorw("failed to close database connection", "err", err)
		}
	}()

	// 3) 初始化缓存
	cacheInstance := initCache(cfg, lg)

	// 4) 初始化应用依赖（仓储、服务、处理器、事件通道）
	deps, err := initDependencies(cfg, db, cacheInstance, lg)
	if err != nil {
		lg.Sugar().Fatalw("failed to initialize dependencies", "err", err)
	}
	defer deps.Close()

	// 5) 设置路由和中间件
	handler := setupRoutes(cfg, deps, lg)

	// 6) 启动 HTTP 服务器
	startServer(cfg, handler, lg)
}
