package api

import (
	"net/http" // HTTP status codes
	"strings"  // Topic parsing

	"collector_hub/internal/gifts"       // Gift topics
	"collector_hub/internal/marketplace" // Listing and order topics
	"collector_hub/internal/messaging"   // Inbox topics
	"collector_hub/internal/orders"      // Order participants
	"collector_hub/internal/realtime"    // Websocket hub
	"collector_hub/internal/social"      // Feed topics

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// authorizeTopic reports whether userID may watch topic
func authorizeTopic(c *gin.Context, ordersSvc *orders.Service, userID, topic string) (bool, int) {
	switch {
	case topic == social.GlobalTopic,
		strings.HasPrefix(topic, marketplace.ListingTopic("")),
		strings.HasPrefix(topic, social.WallTopic("")):
		return true, 0 // Public channels
	case topic == messaging.Topic(userID), topic == gifts.Topic(userID):
		return true, 0 // Own inbox only
	case strings.HasPrefix(topic, orders.Topic("")):
		if _, err := ordersSvc.Get(c.Request.Context(), userID, strings.TrimPrefix(topic, orders.Topic(""))); err != nil {
			return false, statusFor(err)
		}
		return true, 0
	case strings.HasPrefix(topic, messaging.Topic("")), strings.HasPrefix(topic, gifts.Topic("")):
		return false, http.StatusForbidden
	}
	return false, http.StatusBadRequest
}

// RealtimeHandler upgrades to a websocket streaming the ?topic= channel
func RealtimeHandler(hub *realtime.Hub, ordersSvc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		topic := c.Query("topic")
		if ok, status := authorizeTopic(c, ordersSvc, userID, topic); !ok {
			c.JSON(status, gin.H{"error": "Cannot subscribe to " + topic})
			return
		}
		if err := hub.Serve(c.Writer, c.Request, topic); err != nil {
			// The upgrader already wrote the error response
			logrus.WithFields(logrus.Fields{"user_id": userID, "topic": topic, "error": err.Error()}).Debug("Websocket upgrade failed")
		}
	}
}
