package api

import (
	"net/http" // HTTP status codes

	"collector_hub/internal/domain"    // Importing domain models
	"collector_hub/internal/events"    // Tournament events
	"collector_hub/internal/gifts"     // Card gifts
	"collector_hub/internal/messaging" // Direct messages
	"collector_hub/internal/social"    // Follows and posts

	"github.com/gin-gonic/gin" // Gin web framework
)

// SendMessageRequest is a direct message
type SendMessageRequest struct {
	RecipientID string `json:"recipient_id" binding:"required"` // Recipient profile
	Body        string `json:"body" binding:"required"`         // Message text
}

// SendGiftRequest offers a card to another collector
type SendGiftRequest struct {
	RecipientID string `json:"recipient_id" binding:"required"` // Recipient profile
	CardID      string `json:"card_id" binding:"required"`      // Card to give away
	Note        string `json:"note"`                            // Optional note
}

// PostRequest is the JSON form of a text-only post
type PostRequest struct {
	Body string `json:"body"` // Post text
}

// SendMessageHandler sends a direct message
func SendMessageHandler(svc *messaging.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		msg, err := svc.Send(c.Request.Context(), c.GetString("userID"), req.RecipientID, req.Body)
		if err != nil {
			respondError(c, err, "Send message")
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": msg})
	}
}

// InboxHandler lists the caller's conversations, latest first
func InboxHandler(svc *messaging.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		inbox, err := svc.Inbox(c.Request.Context(), c.GetString("userID"))
		if err != nil {
			respondError(c, err, "Inbox")
			return
		}
		c.JSON(http.StatusOK, gin.H{"conversations": inbox})
	}
}

// ConversationHandler pages through the messages with one counterpart
func ConversationHandler(svc *messaging.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		page := pageFromQuery(c)
		msgs, err := svc.Conversation(c.Request.Context(), c.GetString("userID"), c.Param("id"), page)
		if err != nil {
			respondError(c, err, "Conversation")
			return
		}
		c.JSON(http.StatusOK, gin.H{"messages": msgs, "page": page.Page, "page_size": page.PageSize})
	}
}

// MarkReadHandler marks a conversation as read
func MarkReadHandler(svc *messaging.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := svc.MarkRead(c.Request.Context(), c.GetString("userID"), c.Param("id"))
		if err != nil {
			respondError(c, err, "Mark read")
			return
		}
		c.JSON(http.StatusOK, gin.H{"marked": n})
	}
}

// SendGiftHandler offers a card to another collector
func SendGiftHandler(svc *gifts.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SendGiftRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		gift, err := svc.Send(c.Request.Context(), c.GetString("userID"), req.RecipientID, req.CardID, req.Note)
		if err != nil {
			respondError(c, err, "Send gift")
			return
		}
		c.JSON(http.StatusCreated, gin.H{"gift": gift})
	}
}

// ListGiftsHandler lists received gifts, or sent ones with box=sent
func ListGiftsHandler(svc *gifts.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		sent := c.Query("box") == "sent"
		list, err := svc.List(c.Request.Context(), c.GetString("userID"), sent, domain.GiftStatus(c.Query("status")))
		if err != nil {
			respondError(c, err, "List gifts")
			return
		}
		c.JSON(http.StatusOK, gin.H{"gifts": list})
	}
}

// giftAction adapts a gift transition into a handler
func giftAction(action string, fn func(c *gin.Context) (domain.Gift, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		gift, err := fn(c)
		if err != nil {
			respondError(c, err, action)
			return
		}
		c.JSON(http.StatusOK, gin.H{"gift": gift})
	}
}

// AcceptGiftHandler takes ownership of a gifted card. Recipient only.
func AcceptGiftHandler(svc *gifts.Service) gin.HandlerFunc {
	return giftAction("Accept gift", func(c *gin.Context) (domain.Gift, error) {
		return svc.Accept(c.Request.Context(), c.GetString("userID"), c.Param("id"))
	})
}

// DeclineGiftHandler refuses a gift. Recipient only.
func DeclineGiftHandler(svc *gifts.Service) gin.HandlerFunc {
	return giftAction("Decline gift", func(c *gin.Context) (domain.Gift, error) {
		return svc.Decline(c.Request.Context(), c.GetString("userID"), c.Param("id"))
	})
}

// CancelGiftHandler withdraws a gift. Sender only.
func CancelGiftHandler(svc *gifts.Service) gin.HandlerFunc {
	return giftAction("Cancel gift", func(c *gin.Context) (domain.Gift, error) {
		return svc.Cancel(c.Request.Context(), c.GetString("userID"), c.Param("id"))
	})
}

// FollowHandler follows the profile in the path
func FollowHandler(svc *social.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		f, err := svc.Follow(c.Request.Context(), c.GetString("userID"), c.Param("id"))
		if err != nil {
			respondError(c, err, "Follow")
			return
		}
		c.JSON(http.StatusCreated, gin.H{"follow": f})
	}
}

// UnfollowHandler stops following the profile in the path
func UnfollowHandler(svc *social.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Unfollow(c.Request.Context(), c.GetString("userID"), c.Param("id")); err != nil {
			respondError(c, err, "Unfollow")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Unfollowed"})
	}
}

// FollowersHandler lists who follows the profile
func FollowersHandler(svc *social.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		page := pageFromQuery(c)
		list, total, err := svc.Followers(c.Request.Context(), c.Param("id"), page)
		if err != nil {
			respondError(c, err, "Followers")
			return
		}
		c.JSON(http.StatusOK, paged("follows", list, page, total))
	}
}

// FollowingHandler lists who the profile follows
func FollowingHandler(svc *social.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		page := pageFromQuery(c)
		list, total, err := svc.Following(c.Request.Context(), c.Param("id"), page)
		if err != nil {
			respondError(c, err, "Following")
			return
		}
		c.JSON(http.StatusOK, paged("follows", list, page, total))
	}
}

// readPost accepts either JSON {"body"} or a multipart form with body and
// an optional "media" file. The returned closer must be called.
func readPost(c *gin.Context) (string, *social.Media, func(), bool) {
	noop := func() {}
	if c.ContentType() != "multipart/form-data" {
		var req PostRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return "", nil, noop, false
		}
		return req.Body, nil, noop, true
	}
	body := c.PostForm("body")
	fh, err := c.FormFile("media")
	if err != nil {
		return body, nil, noop, true // Text-only post
	}
	f, err := fh.Open()
	if err != nil {
		return "", nil, noop, false
	}
	return body, &social.Media{ContentType: fh.Header.Get("Content-Type"), Body: f}, func() { f.Close() }, true
}

// WallPostHandler writes on the wall of the profile in the path
func WallPostHandler(svc *social.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, media, closeMedia, ok := readPost(c)
		defer closeMedia()
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		post, err := svc.PostToWall(c.Request.Context(), c.GetString("userID"), c.Param("id"), body, media)
		if err != nil {
			respondError(c, err, "Wall post")
			return
		}
		c.JSON(http.StatusCreated, gin.H{"post": post})
	}
}

// WallHandler lists the wall of the profile in the path
func WallHandler(svc *social.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		page := pageFromQuery(c)
		posts, total, err := svc.Wall(c.Request.Context(), c.Param("id"), page)
		if err != nil {
			respondError(c, err, "Wall")
			return
		}
		c.JSON(http.StatusOK, paged("posts", posts, page, total))
	}
}

// GlobalPostHandler posts to the global feed
func GlobalPostHandler(svc *social.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, media, closeMedia, ok := readPost(c)
		defer closeMedia()
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		post, err := svc.PostGlobal(c.Request.Context(), c.GetString("userID"), body, media)
		if err != nil {
			respondError(c, err, "Global post")
			return
		}
		c.JSON(http.StatusCreated, gin.H{"post": post})
	}
}

// FeedHandler lists the global feed
func FeedHandler(svc *social.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		page := pageFromQuery(c)
		posts, total, err := svc.Feed(c.Request.Context(), page)
		if err != nil {
			respondError(c, err, "Feed")
			return
		}
		c.JSON(http.StatusOK, paged("posts", posts, page, total))
	}
}

// CreateEventHandler schedules a tournament
func CreateEventHandler(svc *events.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req events.CreateInput
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		e, err := svc.Create(c.Request.Context(), c.GetString("userID"), req)
		if err != nil {
			respondError(c, err, "Create event")
			return
		}
		c.JSON(http.StatusCreated, gin.H{"event": e})
	}
}

// ListEventsHandler lists upcoming events, optionally for one game
func ListEventsHandler(svc *events.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		page := pageFromQuery(c)
		list, total, err := svc.ListUpcoming(c.Request.Context(), c.Query("game"), page)
		if err != nil {
			respondError(c, err, "List events")
			return
		}
		c.JSON(http.StatusOK, paged("events", list, page, total))
	}
}

// GetEventHandler returns one event with its attendees
func GetEventHandler(svc *events.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		e, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err, "Get event")
			return
		}
		attendees, err := svc.Attendees(c.Request.Context(), e.ID)
		if err != nil {
			respondError(c, err, "Get event")
			return
		}
		c.JSON(http.StatusOK, gin.H{"event": e, "attendees": attendees})
	}
}

// RegisterEventHandler signs the caller up for an event
func RegisterEventHandler(svc *events.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		reg, err := svc.Register(c.Request.Context(), c.Param("id"), c.GetString("userID"))
		if err != nil {
			respondError(c, err, "Register")
			return
		}
		c.JSON(http.StatusCreated, gin.H{"registration": reg})
	}
}

// UnregisterEventHandler removes the caller from an event
func UnregisterEventHandler(svc *events.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Unregister(c.Request.Context(), c.Param("id"), c.GetString("userID")); err != nil {
			respondError(c, err, "Unregister")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Unregistered"})
	}
}
