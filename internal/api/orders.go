package api

import (
	"context"  // Service calls
	"net/http" // HTTP status codes

	"collector_hub/internal/domain" // Importing domain models
	"collector_hub/internal/orders" // Order service
	"collector_hub/internal/store"  // Persistence filters

	"github.com/gin-gonic/gin" // Gin web framework
)

// ShipRequest carries the carrier tracking number
type ShipRequest struct {
	TrackingNumber string `json:"tracking_number"` // Optional tracking number
}

// ListMyOrdersHandler lists the caller's orders as buyer, seller or both
func ListMyOrdersHandler(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		f := store.OrderFilter{
			Role:   c.Query("role"),                       // buyer, seller or both
			Status: domain.OrderStatus(c.Query("status")), // Order status
			Page:   pageFromQuery(c),                      // Pagination window
		}
		list, total, err := svc.List(c.Request.Context(), c.GetString("userID"), f)
		if err != nil {
			respondError(c, err, "List orders")
			return
		}
		c.JSON(http.StatusOK, paged("orders", list, f.Page, total))
	}
}

// GetOrderHandler returns one order to a participant
func GetOrderHandler(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		order, err := svc.Get(c.Request.Context(), c.GetString("userID"), c.Param("id"))
		if err != nil {
			respondError(c, err, "Get order")
			return
		}
		c.JSON(http.StatusOK, gin.H{"order": order})
	}
}

// orderAction adapts a two-argument order transition into a handler
func orderAction(action string, fn func(ctx context.Context, actorID, orderID string) (domain.Order, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		order, err := fn(c.Request.Context(), c.GetString("userID"), c.Param("id"))
		if err != nil {
			respondError(c, err, action)
			return
		}
		c.JSON(http.StatusOK, gin.H{"order": order})
	}
}

// MarkPaidHandler records an external payment. Seller only.
func MarkPaidHandler(svc *orders.Service) gin.HandlerFunc {
	return orderAction("Mark paid", svc.MarkPaid)
}

// PayWithWalletHandler pays the order from the buyer's wallet
func PayWithWalletHandler(svc *orders.Service) gin.HandlerFunc {
	return orderAction("Wallet payment", svc.PayWithWallet)
}

// DeliverHandler confirms delivery. Buyer only.
func DeliverHandler(svc *orders.Service) gin.HandlerFunc {
	return orderAction("Confirm delivery", svc.Deliver)
}

// CancelOrderHandler cancels an unshipped order
func CancelOrderHandler(svc *orders.Service) gin.HandlerFunc {
	return orderAction("Cancel order", svc.Cancel)
}

// RefundOrderHandler refunds the order. Seller only.
func RefundOrderHandler(svc *orders.Service) gin.HandlerFunc {
	return orderAction("Refund order", svc.Refund)
}

// ShipHandler marks the order shipped. Seller only.
func ShipHandler(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ShipRequest
		// An empty body is allowed
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
				return
			}
		}
		order, err := svc.Ship(c.Request.Context(), c.GetString("userID"), c.Param("id"), req.TrackingNumber)
		if err != nil {
			respondError(c, err, "Ship order")
			return
		}
		c.JSON(http.StatusOK, gin.H{"order": order})
	}
}
