package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"lupora-api/internal/apperr"
	"lupora-api/internal/auth"
	"lupora-api/internal/client"
	"lupora-api/internal/config"
	"lupora-api/internal/handler"
	"lupora-api/internal/middleware"
	"lupora-api/internal/service"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

const (
	bodyLimit = "100K"

	apiLimitMessage  = "Too many requests, please try again later."
	authLimitMessage = "Too many attempts, please try again later."
)

type Deps struct {
	Config *config.Config
	Log    *zap.Logger
	Tokens auth.TokenManager
	Health client.HealthCheck

	UserService    service.UserService
	CatalogService service.CatalogService
	CartService    service.CartService
	OrderService   service.OrderService
	PaymentService service.PaymentService
	ReviewService  service.ReviewService

	// Now drives the rate limiter windows; defaults to time.Now.
	Now func() time.Time
}

type Server struct {
	echo   *echo.Echo
	cfg    *config.Config
	log    *zap.Logger
	tokens auth.TokenManager
	health client.HealthCheck

	apiLimiter  *middleware.FixedWindowStore
	authLimiter *middleware.FixedWindowStore

	authHandler    *handler.AuthHandler
	catalogHandler *handler.CatalogHandler
	cartHandler    *handler.CartHandler
	orderHandler   *handler.OrderHandler
	paymentHandler *handler.PaymentHandler
	reviewHandler  *handler.ReviewHandler
}

func NewServer(deps Deps) *Server {
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.IPExtractor = ipExtractor(deps.Config.TrustedProxies, deps.Log)

	s := &Server{
		echo:   e,
		cfg:    deps.Config,
		log:    deps.Log,
		tokens: deps.Tokens,
		health: deps.Health,

		apiLimiter:  middleware.NewFixedWindowStore(deps.Config.RateLimit.APIMax, deps.Config.RateLimit.APIWindow, now),
		authLimiter: middleware.NewFixedWindowStore(deps.Config.RateLimit.AuthMax, deps.Config.RateLimit.AuthWindow, now),

		authHandler:    handler.NewAuthHandler(deps.UserService),
		catalogHandler: handler.NewCatalogHandler(deps.CatalogService, deps.Config.Catalog.CacheTTL),
		cartHandler:    handler.NewCartHandler(deps.CartService),
		orderHandler:   handler.NewOrderHandler(deps.OrderService),
		paymentHandler: handler.NewPaymentHandler(deps.PaymentService),
		reviewHandler:  handler.NewReviewHandler(deps.ReviewService),
	}

	e.HTTPErrorHandler = s.handleError

	e.Use(echomw.Recover())
	e.Use(s.requestLogger())
	e.Use(echomw.Secure())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: deps.Config.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAuthorization,
			handler.HeaderIdempotencyKey,
		},
		AllowCredentials: true,
	}))
	e.Use(echomw.BodyLimit(bodyLimit))

	s.setupRoutes()
	return s
}

// ipExtractor only honours X-Forwarded-For when the request arrives from one
// of the trusted proxy ranges.
func ipExtractor(trustedProxies []string, log *zap.Logger) echo.IPExtractor {
	var ranges []echo.TrustOption
	for _, cidr := range trustedProxies {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			log.Warn("ignoring invalid trusted proxy", zap.String("cidr", cidr), zap.Error(err))
			continue
		}
		ranges = append(ranges, echo.TrustIPRange(ipNet))
	}
	if len(ranges) == 0 {
		return echo.ExtractIPDirect()
	}

	opts := append([]echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}, ranges...)
	return echo.ExtractIPFromXFFHeader(opts...)
}

func (s *Server) setupRoutes() {
	s.echo.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "Lupora Server is Running...")
	})

	api := s.echo.Group("/api", middleware.RateLimit(s.apiLimiter, apiLimitMessage))
	authLimit := middleware.RateLimit(s.authLimiter, authLimitMessage)
	requireAuth := middleware.Auth(s.tokens)

	api.GET("/health", s.healthCheck)

	// -------- catalog --------
	api.GET("/products", s.catalogHandler.ListProducts)
	api.GET("/products/:id", s.catalogHandler.GetProduct)
	api.GET("/products/:id/reviews", s.reviewHandler.ListReviews)
	api.POST("/products/:id/reviews", s.reviewHandler.CreateReview, requireAuth)
	api.GET("/media", s.catalogHandler.ListMedia)

	// -------- auth --------
	users := api.Group("/auth")
	users.POST("/register", s.authHandler.Register, authLimit)
	users.POST("/login", s.authHandler.Login, authLimit)
	users.GET("/me", s.authHandler.Me, requireAuth)
	users.PUT("/profile", s.authHandler.UpdateProfile, requireAuth)
	users.PUT("/change-password", s.authHandler.ChangePassword, requireAuth)

	// -------- cart --------
	cart := api.Group("/cart", requireAuth)
	cart.GET("", s.cartHandler.GetCart)
	cart.POST("/add", s.cartHandler.AddItem)
	cart.PUT("/update", s.cartHandler.UpdateItem)
	cart.DELETE("/remove/:productId", s.cartHandler.RemoveItem)
	cart.DELETE("/clear", s.cartHandler.Clear)

	// -------- orders --------
	orders := api.Group("/orders", requireAuth)
	orders.POST("", s.orderHandler.PlaceOrder)
	orders.GET("", s.orderHandler.ListOrders)
	orders.GET("/:id", s.orderHandler.GetOrder)

	// -------- payment --------
	payment := api.Group("/payment", authLimit)
	payment.POST("/create-order", s.paymentHandler.CreateOrder, requireAuth)
	payment.POST("/verify", s.paymentHandler.Verify, requireAuth)

	// gateway callback, authenticated by its signature
	api.POST("/payment/webhook", s.paymentHandler.Webhook)
}

func (s *Server) healthCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	if err := s.health(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status":   "degraded",
			"database": "disconnected",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status":   "ok",
		"database": "connected",
	})
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			if v.Status >= http.StatusInternalServerError {
				s.log.Error("request", fields...)
				return nil
			}
			s.log.Info("request", fields...)
			return nil
		},
	})
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := http.StatusText(http.StatusInternalServerError)

	var appErr *apperr.Error
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &appErr):
		status = appErr.Status()
		if status < http.StatusInternalServerError || appErr.Kind == apperr.KindUnavailable {
			message = appErr.Message
		}
	case errors.As(err, &httpErr):
		status = httpErr.Code
		if msg, ok := httpErr.Message.(string); ok {
			message = msg
		} else {
			message = http.StatusText(status)
		}
	}

	body := map[string]string{"message": message}
	if status >= http.StatusInternalServerError && !s.cfg.IsProduction() {
		body["error"] = err.Error()
	}

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(status)
	} else {
		writeErr = c.JSON(status, body)
	}
	if writeErr != nil {
		s.log.Error("write error response", zap.Error(writeErr))
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
