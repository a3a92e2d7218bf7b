package api

import (
	"errors"   // Error matching
	"net/http" // HTTP status codes
	"net/mail" // Email address parsing
	"regexp"   // Regular expressions
	"strings"  // String manipulation
	"time"     // Token expiry

	"collector_hub/internal/domain" // Importing domain models
	"collector_hub/internal/store"  // Persistence contract
	"collector_hub/internal/utils"  // Utility functions

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/google/uuid"     // Profile ids
	"github.com/sirupsen/logrus" // Logging library
	"golang.org/x/crypto/bcrypt" // Password hashing
)

// Request and Response structs
type RegisterRequest struct {
	Email       string `json:"email" binding:"required"`    // Email must be provided
	Username    string `json:"username" binding:"required"` // Username must be provided
	Password    string `json:"password" binding:"required"` // Password must be provided
	DisplayName string `json:"display_name"`                // Optional display name
}

// Request struct for login, login accepts either the email or the username
type LoginRequest struct {
	Login    string `json:"login" binding:"required"`    // Email or username
	Password string `json:"password" binding:"required"` // Password must be provided
}

// Response struct for authentication
type AuthResponse struct {
	Token     string         `json:"token"`      // JWT token
	ExpiresAt time.Time      `json:"expires_at"` // Token expiry
	Profile   domain.Profile `json:"profile"`    // Authenticated profile
}

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,32}$`)

// isValidUsername checks the username is 3-32 letters, digits or underscores
func isValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

// isValidPassword checks if the password length is between 8 and 72 bytes
func isValidPassword(password string) bool {
	return len(password) >= 8 && len(password) <= 72 // bcrypt ignores anything past 72 bytes
}

// isValidEmail checks the address parses and carries no display name
func isValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// RegisterHandler creates a profile and returns a token for it
func RegisterHandler(st store.Store, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			// If binding fails, return bad request
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		req.Email = strings.ToLower(strings.TrimSpace(req.Email)) // Emails are case-insensitive
		// Validate email, username and password
		if !isValidEmail(req.Email) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email address"})
			return
		}
		if !isValidUsername(req.Username) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Username must be 3-32 letters, digits or underscores"})
			return
		}
		if !isValidPassword(req.Password) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Password must be 8-72 characters"})
			return
		}
		// Hash the password and create the profile
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			// If hashing fails, return internal server error
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
			return
		}
		profile := domain.Profile{
			ID:          uuid.NewString(),
			Email:       req.Email,
			Username:    strings.ToLower(req.Username), // Lowercase username to ensure uniqueness
			Password:    string(hash),
			DisplayName: strings.TrimSpace(req.DisplayName),
			Role:        domain.RoleUser,
		}
		if profile.DisplayName == "" {
			profile.DisplayName = req.Username
		}
		// Attempt to create the profile in the store
		if err := st.CreateProfile(c.Request.Context(), &profile); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				// Email or username already taken
				c.JSON(http.StatusConflict, gin.H{"error": "Email or username already exists"})
				return
			}
			respondError(c, err, "Registration")
			return
		}
		token, err := utils.IssueToken(profile.ID, jwtSecret, time.Now()) // Sign the new user in right away
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
			return
		}
		logrus.WithFields(logrus.Fields{"user_id": profile.ID, "username": profile.Username}).Info("Profile registered")
		c.JSON(http.StatusCreated, AuthResponse{Token: token.Value, ExpiresAt: token.ExpiresAt, Profile: profile})
	}
}

// LoginHandler authenticates a user and returns a JWT token
func LoginHandler(st store.Store, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			// If binding fails, return bad request
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		login := strings.ToLower(strings.TrimSpace(req.Login))
		var profile domain.Profile
		var err error
		// Fetch the profile by email or username
		if strings.Contains(login, "@") {
			profile, err = st.GetProfileByEmail(c.Request.Context(), login)
		} else {
			profile, err = st.GetProfileByUsername(c.Request.Context(), login)
		}
		if err != nil {
			// If profile not found, return unauthorized
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		// Compare provided password with stored hash
		if err := bcrypt.CompareHashAndPassword([]byte(profile.Password), []byte(req.Password)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		// Generate JWT token
		token, err := utils.IssueToken(profile.ID, jwtSecret, time.Now())
		if err != nil {
			// If token generation fails, return internal server error
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
			return
		}
		// Return the token in the response
		c.JSON(http.StatusOK, AuthResponse{Token: token.Value, ExpiresAt: token.ExpiresAt, Profile: profile})
	}
}

// MeHandler returns the authenticated profile
func MeHandler(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		profile, err := st.GetProfile(c.Request.Context(), c.GetString("userID"))
		if err != nil {
			respondError(c, err, "Profile lookup")
			return
		}
		c.JSON(http.StatusOK, gin.H{"profile": profile})
	}
}

// GetProfileHandler returns a public profile by id
func GetProfileHandler(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		profile, err := st.GetProfile(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err, "Profile lookup")
			return
		}
		profile.Email = "" // Emails stay private
		c.JSON(http.StatusOK, gin.H{"profile": profile})
	}
}
