package api

import (
	"net/http" // HTTP status codes

	"collector_hub/internal/domain"      // Importing domain models
	"collector_hub/internal/marketplace" // Marketplace service
	"collector_hub/internal/store"       // Persistence filters

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Exact money amounts
)

// CreateListingRequest represents a new listing
type CreateListingRequest struct {
	CardID      string          `json:"card_id" binding:"required"` // Card to sell
	Title       string          `json:"title"`                      // Defaults to the card name
	Description string          `json:"description"`                // Free text
	AskingPrice decimal.Decimal `json:"asking_price"`               // Asking price
}

// OfferRequest carries an offer or counter-offer amount
type OfferRequest struct {
	Amount  decimal.Decimal `json:"amount"`  // Proposed price
	Message string          `json:"message"` // Optional note to the counterpart
}

// ThreadMessageRequest is a free text entry on a listing thread
type ThreadMessageRequest struct {
	RecipientID string `json:"recipient_id"`            // Required when the seller writes
	Body        string `json:"body" binding:"required"` // Message text
}

// ListListingsHandler searches listings, active ones by default
func ListListingsHandler(svc *marketplace.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		f := store.ListingFilter{
			SellerID: c.Query("seller_id"),                    // Filter by seller
			Game:     c.Query("game"),                         // Filter by game
			Status:   domain.ListingStatus(c.Query("status")), // Defaults to active
			Search:   c.Query("q"),                            // Title search
			Page:     pageFromQuery(c),                        // Pagination window
		}
		listings, total, err := svc.ListListings(c.Request.Context(), f)
		if err != nil {
			respondError(c, err, "List listings")
			return
		}
		c.JSON(http.StatusOK, paged("listings", listings, f.Page, total))
	}
}

// GetListingHandler returns one listing
func GetListingHandler(svc *marketplace.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		listing, err := svc.GetListing(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err, "Get listing")
			return
		}
		c.JSON(http.StatusOK, gin.H{"listing": listing})
	}
}

// CreateListingHandler puts one of the caller's cards up for sale
func CreateListingHandler(svc *marketplace.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateListingRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil || !req.AskingPrice.IsPositive() {
			// If invalid, return bad request
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		listing, err := svc.CreateListing(c.Request.Context(), c.GetString("userID"), marketplace.CreateListingInput{
			CardID:      req.CardID,
			Title:       req.Title,
			Description: req.Description,
			AskingPrice: req.AskingPrice,
		})
		if err != nil {
			respondError(c, err, "Create listing")
			return
		}
		c.JSON(http.StatusCreated, gin.H{"listing": listing})
	}
}

// CancelListingHandler withdraws a listing. Seller only.
func CancelListingHandler(svc *marketplace.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		listing, err := svc.CancelListing(c.Request.Context(), c.GetString("userID"), c.Param("id"))
		if err != nil {
			respondError(c, err, "Cancel listing")
			return
		}
		c.JSON(http.StatusOK, gin.H{"listing": listing})
	}
}

// MakeOfferHandler proposes a price on a listing
func MakeOfferHandler(svc *marketplace.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req OfferRequest
		if err := c.ShouldBindJSON(&req); err != nil || !req.Amount.IsPositive() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid amount"})
			return
		}
		offer, err := svc.MakeOffer(c.Request.Context(), c.GetString("userID"), c.Param("id"), req.Amount, req.Message)
		if err != nil {
			respondError(c, err, "Make offer")
			return
		}
		c.JSON(http.StatusCreated, gin.H{"offer": offer})
	}
}

// ListOffersHandler lists the offers on a listing visible to the caller
func ListOffersHandler(svc *marketplace.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		offers, err := svc.ListOffers(c.Request.Context(), c.GetString("userID"), c.Param("id"))
		if err != nil {
			respondError(c, err, "List offers")
			return
		}
		c.JSON(http.StatusOK, gin.H{"offers": offers})
	}
}

// ActiveOfferHandler returns the caller's open offer on a listing
func ActiveOfferHandler(svc *marketplace.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		offer, err := svc.ActiveOffer(c.Request.Context(), c.GetString("userID"), c.Param("id"))
		if err != nil {
			respondError(c, err, "Active offer")
			return
		}
		c.JSON(http.StatusOK, gin.H{"offer": offer})
	}
}

// BuyNowHandler buys a listing at its asking price
func BuyNowHandler(svc *marketplace.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		order, err := svc.BuyNow(c.Request.Context(), c.GetString("userID"), c.Param("id"))
		if err != nil {
			respondError(c, err, "Buy now")
			return
		}
		c.JSON(http.StatusCreated, gin.H{"order": order})
	}
}

// AcceptOfferHandler accepts an offer and returns the created order
func AcceptOfferHandler(svc *marketplace.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		order, err := svc.AcceptOffer(c.Request.Context(), c.GetString("userID"), c.Param("id"))
		if err != nil {
			respondError(c, err, "Accept offer")
			return
		}
		c.JSON(http.StatusOK, gin.H{"order": order})
	}
}

// DeclineOfferHandler declines an offer
func DeclineOfferHandler(svc *marketplace.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		offer, err := svc.DeclineOffer(c.Request.Context(), c.GetString("userID"), c.Param("id"))
		if err != nil {
			respondError(c, err, "Decline offer")
			return
		}
		c.JSON(http.StatusOK, gin.H{"offer": offer})
	}
}

// CounterOfferHandler answers an offer with a new price
func CounterOfferHandler(svc *marketplace.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req OfferRequest
		if err := c.ShouldBindJSON(&req); err != nil || !req.Amount.IsPositive() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid amount"})
			return
		}
		counter, err := svc.CounterOffer(c.Request.Context(), c.GetString("userID"), c.Param("id"), req.Amount, req.Message)
		if err != nil {
			respondError(c, err, "Counter offer")
			return
		}
		c.JSON(http.StatusCreated, gin.H{"offer": counter})
	}
}

// CancelOfferHandler withdraws the caller's own offer
func CancelOfferHandler(svc *marketplace.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		offer, err := svc.CancelOffer(c.Request.Context(), c.GetString("userID"), c.Param("id"))
		if err != nil {
			respondError(c, err, "Cancel offer")
			return
		}
		c.JSON(http.StatusOK, gin.H{"offer": offer})
	}
}

// OfferLineageHandler returns the negotiation chain an offer belongs to
func OfferLineageHandler(svc *marketplace.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		lineage, err := svc.Lineage(c.Request.Context(), c.GetString("userID"), c.Param("id"))
		if err != nil {
			respondError(c, err, "Offer lineage")
			return
		}
		c.JSON(http.StatusOK, gin.H{"offers": lineage})
	}
}

// ListingThreadHandler returns the negotiation thread of a listing
func ListingThreadHandler(svc *marketplace.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		messages, err := svc.Thread(c.Request.Context(), c.GetString("userID"), c.Param("id"))
		if err != nil {
			respondError(c, err, "Listing thread")
			return
		}
		c.JSON(http.StatusOK, gin.H{"messages": messages})
	}
}

// PostThreadMessageHandler adds a free text entry to a listing thread
func PostThreadMessageHandler(svc *marketplace.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ThreadMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		msg, err := svc.PostThreadMessage(c.Request.Context(), c.GetString("userID"), c.Param("id"), req.RecipientID, req.Body)
		if err != nil {
			respondError(c, err, "Post thread message")
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": msg})
	}
}
