package api

import (
	"net/http" // Static file serving

	"collector_hub/internal/cardlookup"  // Catalog lookup
	"collector_hub/internal/collection"  // Collection service
	"collector_hub/internal/events"      // Tournament events
	"collector_hub/internal/gifts"       // Card gifts
	"collector_hub/internal/marketplace" // Listings and offers
	"collector_hub/internal/messaging"   // Direct messages
	"collector_hub/internal/metrics"     // Prometheus collectors
	"collector_hub/internal/middleware"  // Auth and rate limiting
	"collector_hub/internal/orders"      // Order fulfillment
	"collector_hub/internal/realtime"    // Websocket hub
	"collector_hub/internal/social"      // Follows and posts
	"collector_hub/internal/store"       // Persistence contract
	"collector_hub/internal/wallet"      // Wallet service

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
)

// Deps is everything the router hands to the handlers
type Deps struct {
	Store       store.Store
	Redis       redis.Cmdable
	Hub         *realtime.Hub
	JWTSecret   string
	StorageDir  string // Served under /storage when set
	LookupLimit *middleware.RateLimiter

	Marketplace *marketplace.Service
	Orders      *orders.Service
	Wallet      *wallet.Service
	Collection  *collection.Service
	Lookup      *cardlookup.Service
	Messaging   *messaging.Service
	Gifts       *gifts.Service
	Social      *social.Service
	Events      *events.Service
}

// NewRouter registers every route on a fresh engine
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	if gin.Mode() != gin.TestMode {
		r.Use(gin.Logger()) // Access log
	}
	r.Use(gin.Recovery(), metrics.Middleware())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	if d.StorageDir != "" {
		r.StaticFS("/storage", http.Dir(d.StorageDir)) // Public bucket objects
	}

	// Auth routes
	r.POST("/auth/register", RegisterHandler(d.Store, d.JWTSecret)) // Registration endpoint
	r.POST("/auth/login", LoginHandler(d.Store, d.JWTSecret))       // Login endpoint

	// Public read routes
	r.GET("/listings", ListListingsHandler(d.Marketplace))
	r.GET("/listings/:id", GetListingHandler(d.Marketplace))
	r.GET("/events", ListEventsHandler(d.Events))
	r.GET("/events/:id", GetEventHandler(d.Events))
	r.GET("/feed", FeedHandler(d.Social))
	r.GET("/profiles/:id", GetProfileHandler(d.Store))
	r.GET("/profiles/:id/wall", WallHandler(d.Social))
	r.GET("/profiles/:id/followers", FollowersHandler(d.Social))
	r.GET("/profiles/:id/following", FollowingHandler(d.Social))

	// Everything below needs a token
	auth := r.Group("")
	auth.Use(middleware.JWTAuthMiddleware(d.JWTSecret))
	auth.GET("/me", MeHandler(d.Store))
	auth.GET("/realtime", RealtimeHandler(d.Hub, d.Orders))

	walletGroup := auth.Group("/wallet")
	walletGroup.POST("", CreateWalletHandler(d.Wallet))                      // Create wallet endpoint
	walletGroup.GET("", GetWalletHandler(d.Wallet))                          // Get wallet endpoint
	walletGroup.POST("/deposit", DepositHandler(d.Wallet))                   // Deposit endpoint
	walletGroup.POST("/transfer", TransferHandler(d.Wallet))                 // Transfer endpoint
	walletGroup.GET("/transactions", GetTransactionHistoryHandler(d.Wallet)) // Transaction history endpoint

	cards := auth.Group("/cards")
	cards.GET("", ListCardsHandler(d.Collection))
	cards.POST("", AddCardHandler(d.Collection))
	cards.GET("/:id", GetCardHandler(d.Collection))
	cards.PATCH("/:id", UpdateCardHandler(d.Collection))
	cards.DELETE("/:id", DeleteCardHandler(d.Collection))
	cards.POST("/:id/image", UploadCardImageHandler(d.Collection))

	lookup := auth.Group("/lookup")
	if d.LookupLimit != nil {
		lookup.Use(d.LookupLimit.Middleware()) // Upstream APIs are metered
		cards.POST("/:id/price", d.LookupLimit.Middleware(), RefreshPriceHandler(d.Collection))
	} else {
		cards.POST("/:id/price", RefreshPriceHandler(d.Collection))
	}
	lookup.GET("", LookupHandler(d.Lookup))
	lookup.POST("/identify", IdentifyHandler(d.Lookup))

	listings := auth.Group("/listings")
	listings.POST("", CreateListingHandler(d.Marketplace))
	listings.POST("/:id/cancel", CancelListingHandler(d.Marketplace))
	listings.POST("/:id/buy", BuyNowHandler(d.Marketplace))
	listings.GET("/:id/offers", ListOffersHandler(d.Marketplace))
	listings.POST("/:id/offers", MakeOfferHandler(d.Marketplace))
	listings.GET("/:id/offers/active", ActiveOfferHandler(d.Marketplace))
	listings.GET("/:id/thread", ListingThreadHandler(d.Marketplace))
	listings.POST("/:id/thread", PostThreadMessageHandler(d.Marketplace))

	offers := auth.Group("/offers")
	offers.GET("/:id/lineage", OfferLineageHandler(d.Marketplace))
	offers.POST("/:id/accept", AcceptOfferHandler(d.Marketplace))
	offers.POST("/:id/decline", DeclineOfferHandler(d.Marketplace))
	offers.POST("/:id/counter", CounterOfferHandler(d.Marketplace))
	offers.POST("/:id/cancel", CancelOfferHandler(d.Marketplace))

	orderGroup := auth.Group("/orders")
	orderGroup.GET("", ListMyOrdersHandler(d.Orders))
	orderGroup.GET("/:id", GetOrderHandler(d.Orders))
	orderGroup.POST("/:id/mark-paid", MarkPaidHandler(d.Orders))
	orderGroup.POST("/:id/pay", PayWithWalletHandler(d.Orders))
	orderGroup.POST("/:id/ship", ShipHandler(d.Orders))
	orderGroup.POST("/:id/deliver", DeliverHandler(d.Orders))
	orderGroup.POST("/:id/cancel", CancelOrderHandler(d.Orders))
	orderGroup.POST("/:id/refund", RefundOrderHandler(d.Orders))

	messages := auth.Group("/messages")
	messages.GET("", InboxHandler(d.Messaging))
	messages.POST("", SendMessageHandler(d.Messaging))
	messages.GET("/:id", ConversationHandler(d.Messaging))
	messages.POST("/:id/read", MarkReadHandler(d.Messaging))

	giftGroup := auth.Group("/gifts")
	giftGroup.GET("", ListGiftsHandler(d.Gifts))
	giftGroup.POST("", SendGiftHandler(d.Gifts))
	giftGroup.POST("/:id/accept", AcceptGiftHandler(d.Gifts))
	giftGroup.POST("/:id/decline", DeclineGiftHandler(d.Gifts))
	giftGroup.POST("/:id/cancel", CancelGiftHandler(d.Gifts))

	auth.POST("/profiles/:id/follow", FollowHandler(d.Social))
	auth.DELETE("/profiles/:id/follow", UnfollowHandler(d.Social))
	auth.POST("/profiles/:id/wall", WallPostHandler(d.Social))
	auth.POST("/feed", GlobalPostHandler(d.Social))

	auth.POST("/events", CreateEventHandler(d.Events))
	auth.POST("/events/:id/register", RegisterEventHandler(d.Events))
	auth.DELETE("/events/:id/register", UnregisterEventHandler(d.Events))

	// Admin routes (protected, admin only)
	adminGroup := auth.Group("/admin")
	adminGroup.Use(middleware.AdminOnlyMiddleware(d.Store))
	adminGroup.GET("/profiles", ListProfilesHandler(d.Store, d.Redis))         // List profiles endpoint
	adminGroup.GET("/orders", ListOrdersHandler(d.Store, d.Redis))             // List orders endpoint
	adminGroup.GET("/transactions", ListTransactionsHandler(d.Store, d.Redis)) // List transactions endpoint

	return r
}
