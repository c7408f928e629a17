package delivery

import (
	"net/http"
	"time"

	"deenice_finds/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type OrderHandler struct {
	useCase domain.OrderUseCase
	log     *logrus.Logger
}

func NewOrderHandler(uc domain.OrderUseCase, logger *logrus.Logger) *OrderHandler {
	return &OrderHandler{
		useCase: uc,
		log:     logger,
	}
}

func (h *OrderHandler) RegisterRoutes(router gin.IRouter, admin gin.HandlerFunc) {
	orders := router.Group("/orders")
	{
		orders.POST("", h.CreateOrder)
		orders.POST("/user", h.GetUserOrders)
		orders.POST("/updates", h.GetUpdates)
		orders.GET("/:id", h.GetOrderByID)

		orders.GET("", admin, h.ListOrders)
		orders.PUT("/:id/status", admin, h.UpdateStatus)
		orders.DELETE("/:id", admin, h.DeleteOrder)
	}
	router.POST("/admin/save", admin, h.Save)
}

func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req domain.CreateOrderRequest
	if !bindJSON(c, h.log, &req) {
		return
	}

	order, err := h.useCase.CreateOrder(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.log, err, "create order")
		return
	}

	h.log.Infof("Order %s created successfully", order.ID)
	SuccessResponse(c, http.StatusCreated, "Order created successfully", gin.H{"order": order})
}

func (h *OrderHandler) GetOrderByID(c *gin.Context) {
	order, err := h.useCase.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err, "retrieve order")
		return
	}
	SuccessResponse(c, http.StatusOK, "", gin.H{"order": order})
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	list, err := h.useCase.ListOrders(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err, "retrieve orders")
		return
	}
	SuccessResponse(c, http.StatusOK, "", gin.H{"orders": list.Orders, "total": list.Total, "stats": list.Stats})
}

type userOrdersRequest struct {
	LocalOrders []domain.Order `json:"localOrders"`
	LastSync    *time.Time     `json:"lastSync"`
}

func (h *OrderHandler) GetUserOrders(c *gin.Context) {
	var req userOrdersRequest
	if !bindJSON(c, h.log, &req) {
		return
	}

	orders, err := h.useCase.GetUserOrders(c.Request.Context(), req.LocalOrders, req.LastSync)
	if err != nil {
		respondError(c, h.log, err, "sync user orders")
		return
	}
	SuccessResponse(c, http.StatusOK, "", gin.H{"orders": orders})
}

type updatesRequest struct {
	OrderIDs      []string   `json:"orderIds"`
	LastSync      *time.Time `json:"lastSync"`
	SinceRevision uint64     `json:"sinceRevision"`
}

func (h *OrderHandler) GetUpdates(c *gin.Context) {
	var req updatesRequest
	if !bindJSON(c, h.log, &req) {
		return
	}

	res, err := h.useCase.GetUpdates(c.Request.Context(), domain.UpdatesQuery{
		OrderIDs:      req.OrderIDs,
		LastSync:      req.LastSync,
		SinceRevision: req.SinceRevision,
	})
	if err != nil {
		respondError(c, h.log, err, "check order updates")
		return
	}

	SuccessResponse(c, http.StatusOK, "", gin.H{
		"updatedOrders": res.Orders,
		"hasUpdates":    len(res.Orders) > 0,
		"serverTime":    time.Now().UTC(),
		"revision":      res.Revision,
	})
}

func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	id := c.Param("id")
	var req struct {
		Status domain.OrderStatus `json:"status"`
	}
	if !bindJSON(c, h.log, &req) {
		return
	}

	res, err := h.useCase.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		respondError(c, h.log, err, "update order status")
		return
	}

	var link any
	if res.WhatsAppURL != "" {
		link = res.WhatsAppURL
	}
	h.log.Infof("Order %s status set to %s", id, res.Order.Status)
	SuccessResponse(c, http.StatusOK, "Order status updated successfully", gin.H{
		"order":       res.Order,
		"whatsappURL": link,
	})
}

func (h *OrderHandler) DeleteOrder(c *gin.Context) {
	id := c.Param("id")
	deleted, err := h.useCase.DeleteOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err, "delete order")
		return
	}
	SuccessResponse(c, http.StatusOK, "Order deleted successfully", gin.H{"deletedOrder": deleted})
}

func (h *OrderHandler) Save(c *gin.Context) {
	if err := h.useCase.Save(c.Request.Context()); err != nil {
		respondError(c, h.log, err, "save orders")
		return
	}
	SuccessResponse(c, http.StatusOK, "Orders saved", gin.H{"count": h.useCase.Count()})
}
