package api

import (
	"context"  // Context for Redis operations
	"net/http" // HTTP status codes
	"strings"  // String manipulation
	"time"     // Time durations

	"collector_hub/internal/domain" // Importing domain models
	"collector_hub/internal/store"  // Persistence contract
	"collector_hub/internal/utils"  // Utility functions

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
)

// AdminCacheTTL is how long admin listings stay cached
const AdminCacheTTL = 60 * time.Second

// ProfileAdminResponse represents the profile data returned to admin
type ProfileAdminResponse struct {
	ID       string         `json:"id"`               // Profile ID
	Email    string         `json:"email"`            // Email
	Username string         `json:"username"`         // Username
	Role     string         `json:"role"`             // Profile role
	Wallet   *domain.Wallet `json:"wallet,omitempty"` // Associated wallet, if created
}

// adminCacheKey builds a cache key from the listed query params
func adminCacheKey(c *gin.Context, prefix string, params ...string) string {
	var keyParts []string // Parts of the cache key
	// Append each query parameter to the key parts
	for _, k := range params {
		keyParts = append(keyParts, k+"="+c.DefaultQuery(k, "")) // Append key-value pair
	}
	return prefix + strings.Join(keyParts, ":") // Join key parts to form the final cache key
}

// cachedAdmin serves key from Redis or computes, caches and serves it
func cachedAdmin(c *gin.Context, rdb redis.Cmdable, key string, load func(ctx context.Context) (gin.H, error), action string) {
	ctx := c.Request.Context()
	var cached map[string]any
	// If cached data found, return it
	if found, err := utils.GetCache(ctx, rdb, key, &cached); err == nil && found {
		cached["cached"] = true // Indicate response is from cache
		c.JSON(http.StatusOK, cached)
		return
	}
	respData, err := load(ctx)
	if err != nil {
		respondError(c, err, action)
		return
	}
	respData["cached"] = false // Indicate response is not from cache
	// Cache the response for future requests
	_ = utils.SetCache(ctx, rdb, key, respData, AdminCacheTTL)
	c.JSON(http.StatusOK, respData) // Return the response
}

// ListProfilesHandler returns all profiles with their wallet info
func ListProfilesHandler(st store.Store, rdb redis.Cmdable) gin.HandlerFunc {
	return func(c *gin.Context) {
		page := pageFromQuery(c)
		key := adminCacheKey(c, "admin:profiles:", "page", "page_size")
		cachedAdmin(c, rdb, key, func(ctx context.Context) (gin.H, error) {
			profiles, total, err := st.ListProfiles(ctx, page)
			if err != nil {
				return nil, err
			}
			resp := make([]ProfileAdminResponse, len(profiles))
			// Map profiles to response format
			for i, p := range profiles {
				resp[i] = ProfileAdminResponse{ID: p.ID, Email: p.Email, Username: p.Username, Role: p.Role}
				if w, err := st.GetWalletByUser(ctx, p.ID); err == nil {
					resp[i].Wallet = &w
				}
			}
			return paged("profiles", resp, page, total), nil
		}, "List profiles")
	}
}

// ListOrdersHandler returns all orders, optionally filtered by participant and status
func ListOrdersHandler(st store.Store, rdb redis.Cmdable) gin.HandlerFunc {
	return func(c *gin.Context) {
		f := store.OrderFilter{
			UserID: c.Query("user_id"),                    // Buyer or seller
			Role:   c.Query("role"),                       // buyer, seller or both
			Status: domain.OrderStatus(c.Query("status")), // Order status
			Page:   pageFromQuery(c),                      // Pagination window
		}
		key := adminCacheKey(c, "admin:orders:", "user_id", "role", "status", "page", "page_size")
		cachedAdmin(c, rdb, key, func(ctx context.Context) (gin.H, error) {
			orders, total, err := st.ListOrders(ctx, f)
			if err != nil {
				return nil, err
			}
			return paged("orders", orders, f.Page, total), nil
		}, "List orders")
	}
}

// ListTransactionsHandler returns all transactions, with optional filtering by user, type, or date
func ListTransactionsHandler(st store.Store, rdb redis.Cmdable) gin.HandlerFunc {
	return func(c *gin.Context) {
		from, okFrom := timeQuery(c, "from")
		to, okTo := timeQuery(c, "to")
		if !okFrom || !okTo {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date filter"})
			return
		}
		f := store.TransactionFilter{Type: c.Query("type"), From: from, To: to, Page: pageFromQuery(c)}
		key := adminCacheKey(c, "admin:txs:", "user_id", "type", "from", "to", "page", "page_size")
		cachedAdmin(c, rdb, key, func(ctx context.Context) (gin.H, error) {
			if userID := c.Query("user_id"); userID != "" {
				w, err := st.GetWalletByUser(ctx, userID) // Filter by the user's wallet
				if err != nil {
					return nil, err
				}
				f.WalletID = w.ID
			}
			txs, total, err := st.ListTransactions(ctx, f)
			if err != nil {
				return nil, err
			}
			return paged("transactions", txs, f.Page, total), nil
		}, "List transactions")
	}
}
