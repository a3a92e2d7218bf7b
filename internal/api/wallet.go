package api

import (
	"net/http" // HTTP status codes

	"collector_hub/internal/store"  // Persistence filters
	"collector_hub/internal/wallet" // Wallet service

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Exact money amounts
)

// TransferRequest represents a transfer request
type TransferRequest struct {
	ToUsername string          `json:"to_username" binding:"required"` // Target username
	Amount     decimal.Decimal `json:"amount"`                         // Transfer amount
}

// DepositRequest represents a deposit request
type DepositRequest struct {
	Amount decimal.Decimal `json:"amount"` // Deposit amount
}

// CreateWalletHandler creates a wallet for a user (one wallet per user)
func CreateWalletHandler(svc *wallet.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		w, err := svc.Create(c.Request.Context(), c.GetString("userID"))
		if err != nil {
			respondError(c, err, "Create wallet")
			return
		}
		// Return success response
		c.JSON(http.StatusCreated, gin.H{"message": "Wallet created", "wallet": w})
	}
}

// GetWalletHandler returns wallet info for the authenticated user
func GetWalletHandler(svc *wallet.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		w, cached, err := svc.Get(c.Request.Context(), c.GetString("userID")) // Cache first, store second
		if err != nil {
			respondError(c, err, "Get wallet")
			return
		}
		c.JSON(http.StatusOK, gin.H{"wallet": w, "cached": cached}) // Return wallet info
	}
}

// DepositHandler allows a user to deposit funds into their wallet
func DepositHandler(svc *wallet.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req DepositRequest // Bind JSON request to struct
		// Validate request
		if err := c.ShouldBindJSON(&req); err != nil || !req.Amount.IsPositive() {
			// If invalid, return bad request
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid amount"})
			return
		}
		w, err := svc.Deposit(c.Request.Context(), c.GetString("userID"), req.Amount)
		if err != nil {
			respondError(c, err, "Deposit")
			return
		}
		// Return success response
		c.JSON(http.StatusOK, gin.H{"message": "Deposit successful", "wallet": w})
	}
}

// TransferHandler allows a user to transfer funds to another user's wallet
func TransferHandler(svc *wallet.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TransferRequest // Bind JSON request to struct
		// Validate request
		if err := c.ShouldBindJSON(&req); err != nil || !req.Amount.IsPositive() {
			// If invalid, return bad request
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		t, err := svc.Transfer(c.Request.Context(), c.GetString("userID"), req.ToUsername, req.Amount)
		if err != nil {
			respondError(c, err, "Transfer")
			return
		}
		// Return success response
		c.JSON(http.StatusOK, gin.H{"message": "Transfer successful", "transaction": t})
	}
}

// GetTransactionHistoryHandler returns the paginated ledger of the authenticated user's wallet
func GetTransactionHistoryHandler(svc *wallet.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		from, okFrom := timeQuery(c, "from") // Optional lower bound
		to, okTo := timeQuery(c, "to")       // Optional upper bound
		if !okFrom || !okTo {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date filter"})
			return
		}
		f := store.TransactionFilter{Type: c.Query("type"), From: from, To: to, Page: pageFromQuery(c)}
		h, cached, err := svc.History(c.Request.Context(), c.GetString("userID"), f)
		if err != nil {
			respondError(c, err, "Transaction history")
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"transactions": h.Transactions, // List of transactions
			"page":         h.Page,         // Current page
			"page_size":    h.PageSize,     // Page size
			"total":        h.Total,        // Total transactions
			"total_pages":  h.TotalPages,   // Total pages
			"cached":       cached,         // Whether the page came from Redis
		})
	}
}
