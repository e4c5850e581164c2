package web

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"orderservice/internal/domain"
	"orderservice/internal/order"
	"orderservice/internal/payment"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

func (s *Server) handleCreateOrder(c *gin.Context) {
	var req order.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.sendError(c, domain.Validation(err.Error()))
		return
	}

	requester := getRequester(c)
	o, p, err := s.orders.Create(c.Request.Context(), requester.ID, req)
	if err != nil {
		s.sendError(c, err)
		return
	}
	sendSuccess(c, http.StatusCreated, gin.H{"order": o, "payment": p}, "Order created successfully")
}

func (s *Server) handleListOrders(c *gin.Context) {
	page, limit := parsePagination(c.Query("page"), c.Query("limit"))
	orders, pagination, err := s.orders.List(c.Request.Context(), getRequester(c), order.ListQuery{
		Status: c.Query("status"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		s.sendError(c, err)
		return
	}
	if orders == nil {
		orders = []*domain.Order{}
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       orders,
		"pagination": pagination,
	})
}

func (s *Server) handleGetOrder(c *gin.Context) {
	o, err := s.orders.GetByID(c.Request.Context(), c.Param("id"), getRequester(c))
	if err != nil {
		s.sendError(c, err)
		return
	}
	sendSuccess(c, http.StatusOK, o, "")
}

func (s *Server) handleShipOrder(c *gin.Context) {
	var req struct {
		TrackingNumber string `json:"trackingNumber"`
	}
	// Body is optional; tracking defaults to empty.
	_ = c.ShouldBindJSON(&req)

	o, sh, err := s.orders.MarkShipped(c.Request.Context(), c.Param("id"), getRequester(c), req.TrackingNumber)
	if err != nil {
		s.sendError(c, err)
		return
	}
	sendSuccess(c, http.StatusOK, gin.H{"order": o, "shipment": sh}, "Order marked as shipped")
}

func (s *Server) handleDeliverOrder(c *gin.Context) {
	o, sh, err := s.orders.MarkDelivered(c.Request.Context(), c.Param("id"), getRequester(c))
	if err != nil {
		s.sendError(c, err)
		return
	}
	sendSuccess(c, http.StatusOK, gin.H{"order": o, "shipment": sh}, "Order marked as delivered")
}

func (s *Server) handleCancelOrder(c *gin.Context) {
	o, err := s.orders.Cancel(c.Request.Context(), c.Param("id"), getRequester(c))
	if err != nil {
		s.sendError(c, err)
		return
	}
	sendSuccess(c, http.StatusOK, o, "Order cancelled successfully")
}

func (s *Server) handleGetShipment(c *gin.Context) {
	sh, err := s.shipments.GetByOrderID(c.Request.Context(), c.Param("id"), getRequester(c))
	if err != nil {
		s.sendError(c, err)
		return
	}
	sendSuccess(c, http.StatusOK, sh, "")
}

func (s *Server) handlePayDirect(c *gin.Context) {
	var req payment.DirectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.sendError(c, domain.Validation(err.Error()))
		return
	}

	p, o, err := s.payments.PayDirect(c.Request.Context(), getRequester(c).ID, req)
	if err != nil {
		s.sendError(c, err)
		return
	}
	sendSuccess(c, http.StatusCreated, gin.H{"payment": p, "order": o}, "Payment successful")
}

func (s *Server) handlePaymentWebhook(c *gin.Context) {
	var req struct {
		payment.WebhookPayload
		Signature string `json:"signature"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.sendError(c, domain.Validation(err.Error()))
		return
	}

	if _, _, err := s.payments.Webhook(c.Request.Context(), req.WebhookPayload, req.Signature); err != nil {
		s.sendError(c, err)
		return
	}
	sendSuccess(c, http.StatusOK, nil, "Payment confirmed")
}

func parsePagination(pageStr, limitStr string) (page, limit int) {
	page, _ = strconv.Atoi(pageStr)
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(limitStr)
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}
