package api

import (
	"errors"   // Error matching
	"net/http" // HTTP status codes

	"collector_hub/internal/cardlookup"  // Card lookup errors
	"collector_hub/internal/collection"  // Collection errors
	"collector_hub/internal/events"      // Event errors
	"collector_hub/internal/gifts"       // Gift errors
	"collector_hub/internal/imagecrop"   // Crop errors
	"collector_hub/internal/marketplace" // Marketplace errors
	"collector_hub/internal/messaging"   // Messaging errors
	"collector_hub/internal/orders"      // Order errors
	"collector_hub/internal/social"      // Social errors
	"collector_hub/internal/storage"     // Upload errors
	"collector_hub/internal/store"       // Store errors
	"collector_hub/internal/wallet"      // Wallet errors

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// errorStatus maps domain errors onto HTTP status codes
var errorStatus = []struct {
	status int
	errs   []error
}{
	{http.StatusNotFound, []error{
		store.ErrNotFound, marketplace.ErrListingNotFound, marketplace.ErrOfferNotFound, marketplace.ErrCardNotFound,
		orders.ErrOrderNotFound, collection.ErrCardNotFound, gifts.ErrGiftNotFound, gifts.ErrCardNotFound,
		gifts.ErrRecipientNotFound, messaging.ErrRecipientNotFound, wallet.ErrWalletNotFound, wallet.ErrTargetNotFound,
		events.ErrEventNotFound, social.ErrProfileNotFound, social.ErrNotFollowing, events.ErrNotRegistered,
		storage.ErrObjectNotFound,
	}},
	{http.StatusForbidden, []error{
		marketplace.ErrForbidden, marketplace.ErrNotCardOwner, marketplace.ErrNotSeller, orders.ErrForbidden,
		collection.ErrNotOwner, gifts.ErrForbidden, gifts.ErrNotCardOwner,
	}},
	{http.StatusConflict, []error{
		store.ErrDuplicate, store.ErrConflict, marketplace.ErrListingNotActive, marketplace.ErrInvalidTransition,
		marketplace.ErrOfferExpired, marketplace.ErrCardAlreadyListed, orders.ErrInvalidTransition, orders.ErrCardRelisted,
		collection.ErrCardListed, gifts.ErrCardListed, gifts.ErrAlreadyGifted, gifts.ErrNotPending,
		wallet.ErrWalletExists, wallet.ErrInsufficientFunds, events.ErrEventFull, events.ErrAlreadyRegistered,
		events.ErrEventStarted, social.ErrAlreadyFollows,
	}},
	{http.StatusRequestEntityTooLarge, []error{storage.ErrTooLarge, imagecrop.ErrTooManyPixels}},
	{http.StatusUnsupportedMediaType, []error{storage.ErrUnsupportedType, collection.ErrNotAnImage, imagecrop.ErrUnsupportedFormat}},
	{http.StatusBadGateway, []error{cardlookup.ErrUpstream}},
	{http.StatusServiceUnavailable, []error{cardlookup.ErrNoVision}},
	{http.StatusBadRequest, []error{
		marketplace.ErrOwnListing, marketplace.ErrInvalidAmount, collection.ErrNameRequired, collection.ErrUnknownGame,
		collection.ErrBadQuantity, collection.ErrNoPriceSource, gifts.ErrGiftToSelf, messaging.ErrEmptyBody,
		messaging.ErrBodyTooLong, messaging.ErrMessageToSelf, wallet.ErrSelfTransfer, wallet.ErrInvalidAmount,
		events.ErrTitleRequired, events.ErrUnknownGame, events.ErrStartsInPast, events.ErrInvalidCapacity,
		events.ErrInvalidFee, social.ErrFollowSelf, social.ErrEmptyPost, social.ErrPostTooLong,
		cardlookup.ErrUnknownGame, cardlookup.ErrEmptyQuery, cardlookup.ErrUnidentified, imagecrop.ErrInvalidRect,
		storage.ErrUnknownBucket, storage.ErrInvalidName,
	}},
}

// statusFor returns the HTTP status of err, 500 when it is not a known domain error
func statusFor(err error) int {
	for _, group := range errorStatus {
		for _, target := range group.errs {
			if errors.Is(err, target) {
				return group.status
			}
		}
	}
	return http.StatusInternalServerError
}

// respondError writes err as a JSON error. Unknown errors are logged and hidden.
func respondError(c *gin.Context, err error, action string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		// Log the error with context
		logrus.WithFields(logrus.Fields{
			"user_id": c.GetString("userID"), // Authenticated user, if any
			"path":    c.FullPath(),          // Route template
			"error":   err.Error(),           // Error message
		}).Error(action + " failed")
		c.JSON(status, gin.H{"error": action + " failed"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
