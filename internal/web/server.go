package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"orderservice/internal/domain"
	"orderservice/internal/order"
	"orderservice/internal/payment"
	"orderservice/internal/platform/observability"
	"orderservice/internal/shipment"
)

// Server is the HTTP boundary of the ordering core. Authenticated
// routes live under /api behind the identity middleware; the payment
// webhook is unauthenticated and relies on its HMAC signature instead.
type Server struct {
	router    *gin.Engine
	logger    observability.Logger
	orders    *order.Service
	payments  *payment.Service
	shipments *shipment.Service
}

// NewServer creates the server and registers all routes.
func NewServer(orders *order.Service, payments *payment.Service, shipments *shipment.Service, logger observability.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		router:    router,
		logger:    logger,
		orders:    orders,
		payments:  payments,
		shipments: shipments,
	}

	api := router.Group("/api")
	{
		authed := api.Group("", s.requireAuth)
		{
			authed.POST("/orders", s.requireRole(domain.RoleCustomer), s.handleCreateOrder)
			authed.GET("/orders", s.handleListOrders)
			authed.GET("/orders/:id", s.handleGetOrder)
			authed.POST("/orders/:id/ship", s.handleShipOrder)
			authed.POST("/orders/:id/deliver", s.handleDeliverOrder)
			authed.POST("/orders/:id/cancel", s.handleCancelOrder)
			authed.GET("/orders/:id/shipment", s.handleGetShipment)

			authed.POST("/payments", s.requireRole(domain.RoleCustomer), s.handlePayDirect)
		}

		api.POST("/webhooks/payment", s.handlePaymentWebhook)
	}

	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves HTTP until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.logger.Info("HTTP server listening", zap.String("addr", addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
