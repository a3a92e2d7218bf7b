package api

import (
	"io"       // Reading uploads
	"net/http" // HTTP status codes
	"strconv"  // Crop parameters

	"collector_hub/internal/cardlookup" // Catalog lookup
	"collector_hub/internal/collection" // Collection service
	"collector_hub/internal/imagecrop"  // Crop rectangles
	"collector_hub/internal/storage"    // Upload limits
	"collector_hub/internal/store"      // Persistence filters

	"github.com/gin-gonic/gin" // Gin web framework
)

// AddCardHandler puts a card into the caller's collection
func AddCardHandler(svc *collection.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req collection.CardInput // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		card, err := svc.Add(c.Request.Context(), c.GetString("userID"), req)
		if err != nil {
			respondError(c, err, "Add card")
			return
		}
		c.JSON(http.StatusCreated, gin.H{"card": card})
	}
}

// ListCardsHandler lists a collection. Without owner_id the caller's own.
func ListCardsHandler(svc *collection.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := c.DefaultQuery("owner_id", c.GetString("userID"))
		f := store.CardFilter{OwnerID: owner, Game: c.Query("game"), Page: pageFromQuery(c)}
		cards, total, err := svc.List(c.Request.Context(), f)
		if err != nil {
			respondError(c, err, "List cards")
			return
		}
		c.JSON(http.StatusOK, paged("cards", cards, f.Page, total))
	}
}

// GetCardHandler returns one card
func GetCardHandler(svc *collection.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		card, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err, "Get card")
			return
		}
		c.JSON(http.StatusOK, gin.H{"card": card})
	}
}

// UpdateCardHandler patches the fields present in the body
func UpdateCardHandler(svc *collection.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req collection.CardInput
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		card, err := svc.Update(c.Request.Context(), c.GetString("userID"), c.Param("id"), req)
		if err != nil {
			respondError(c, err, "Update card")
			return
		}
		c.JSON(http.StatusOK, gin.H{"card": card})
	}
}

// DeleteCardHandler removes a card that is not listed
func DeleteCardHandler(svc *collection.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Delete(c.Request.Context(), c.GetString("userID"), c.Param("id")); err != nil {
			respondError(c, err, "Delete card")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Card deleted"})
	}
}

// UploadCardImageHandler stores the "image" form file as the card photo.
// crop_x, crop_y, crop_width and crop_height (percent) crop it first.
func UploadCardImageHandler(svc *collection.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		fh, err := c.FormFile("image")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing image file"})
			return
		}
		if fh.Size > storage.MaxImageBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": storage.ErrTooLarge.Error()})
			return
		}
		crop, ok := cropFromForm(c)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid crop rectangle"})
			return
		}
		f, err := fh.Open()
		if err != nil {
			respondError(c, err, "Upload image")
			return
		}
		defer f.Close()
		card, err := svc.UploadImage(c.Request.Context(), c.GetString("userID"), c.Param("id"), fh.Header.Get("Content-Type"), f, crop)
		if err != nil {
			respondError(c, err, "Upload image")
			return
		}
		c.JSON(http.StatusOK, gin.H{"card": card})
	}
}

// cropFromForm reads the optional crop rectangle
func cropFromForm(c *gin.Context) (*imagecrop.Rect, bool) {
	if c.PostForm("crop_width") == "" && c.PostForm("crop_height") == "" {
		return nil, true // No crop requested
	}
	var vals [4]float64
	for i, name := range []string{"crop_x", "crop_y", "crop_width", "crop_height"} {
		v, err := strconv.ParseFloat(c.DefaultPostForm(name, "0"), 64)
		if err != nil {
			return nil, false
		}
		vals[i] = v
	}
	r := imagecrop.Rect{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}
	if r.Validate() != nil {
		return nil, false
	}
	return &r, true
}

// RefreshPriceHandler updates the estimated price from the catalog
func RefreshPriceHandler(svc *collection.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		card, err := svc.RefreshPrice(c.Request.Context(), c.GetString("userID"), c.Param("id"))
		if err != nil {
			respondError(c, err, "Refresh price")
			return
		}
		c.JSON(http.StatusOK, gin.H{"card": card})
	}
}

// LookupHandler searches the third-party catalogs for a game
func LookupHandler(svc *cardlookup.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svc.Search(c.Request.Context(), c.Query("game"), c.Query("q"))
		if err != nil {
			respondError(c, err, "Card lookup")
			return
		}
		cached := res.Source == "redis" || res.Source == "database" // Served from a cache tier
		c.JSON(http.StatusOK, gin.H{
			"cards":      res.Cards,     // Matching cards
			"source":     res.Source,    // Cache tier or provider
			"fetched_at": res.FetchedAt, // Upstream fetch time
			"cached":     cached,        // No upstream call was made
		})
	}
}

// IdentifyHandler recognizes the cards in an uploaded photo
func IdentifyHandler(svc *cardlookup.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		fh, err := c.FormFile("image")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing image file"})
			return
		}
		if fh.Size > storage.MaxImageBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": storage.ErrTooLarge.Error()})
			return
		}
		f, err := fh.Open()
		if err != nil {
			respondError(c, err, "Identify")
			return
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, storage.MaxImageBytes))
		if err != nil {
			respondError(c, err, "Identify")
			return
		}
		mime := fh.Header.Get("Content-Type")
		if mime == "" {
			mime = http.DetectContentType(data)
		}
		cards, err := svc.Identify(c.Request.Context(), data, mime)
		if err != nil {
			respondError(c, err, "Identify")
			return
		}
		c.JSON(http.StatusOK, gin.H{"cards": cards})
	}
}
