// Package importer loads a CSV export of profiles, cards and listings into
// the store, remapping the exported ids onto freshly created rows.
package importer

import (
	"context"
	"crypto/rand"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"collector_hub/internal/domain"
	"collector_hub/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// Export file names
const (
	ProfilesFile = "profiles.csv"
	CardsFile    = "user_cards.csv"
	ListingsFile = "marketplace_listings.csv"
)

var ErrNoFallbackUser = errors.New("fallback user does not exist")

// RowError records one row that could not be imported. Line is 1-based
// and counts the header.
type RowError struct {
	Line   int    `json:"line"`
	OldID  string `json:"old_id,omitempty"`
	Reason string `json:"reason"`
}

// EntityReport summarises one file.
type EntityReport struct {
	Created int        `json:"created"`
	Skipped int        `json:"skipped"`
	Failed  []RowError `json:"failed"`
}

func (r *EntityReport) fail(line int, oldID string, err error) {
	r.Failed = append(r.Failed, RowError{Line: line, OldID: oldID, Reason: err.Error()})
}

// Report is the result of a full import.
type Report struct {
	Profiles EntityReport `json:"profiles"`
	Cards    EntityReport `json:"cards"`
	Listings EntityReport `json:"listings"`
	DryRun   bool         `json:"dry_run"`
}

// Importer holds the id maps built while importing.
type Importer struct {
	store        store.Store
	fallbackUser string
	dryRun       bool

	users map[string]string
	cards map[string]string
}

// New creates an importer. Rows whose user reference cannot be resolved
// are attached to fallbackUser. With dryRun set nothing is written.
func New(st store.Store, fallbackUser string, dryRun bool) *Importer {
	return &Importer{
		store:        st,
		fallbackUser: fallbackUser,
		dryRun:       dryRun,
		users:        map[string]string{},
		cards:        map[string]string{},
	}
}

// ImportDir reads the three export files from dir. A missing file is
// treated as empty.
func (im *Importer) ImportDir(ctx context.Context, dir string) (Report, error) {
	report := Report{DryRun: im.dryRun}
	if im.fallbackUser != "" {
		if _, err := im.store.GetProfile(ctx, im.fallbackUser); err != nil {
			return report, fmt.Errorf("%w: %s", ErrNoFallbackUser, im.fallbackUser)
		}
	}
	steps := []struct {
		file string
		run  func(context.Context, io.Reader) (EntityReport, error)
		into *EntityReport
	}{
		{ProfilesFile, im.ImportProfiles, &report.Profiles},
		{CardsFile, im.ImportCards, &report.Cards},
		{ListingsFile, im.ImportListings, &report.Listings},
	}
	for _, step := range steps {
		f, err := os.Open(filepath.Join(dir, step.file))
		if errors.Is(err, os.ErrNotExist) {
			logrus.WithField("file", step.file).Warn("Export file missing, skipping")
			continue
		} else if err != nil {
			return report, err
		}
		r, err := step.run(ctx, f)
		f.Close()
		if err != nil {
			return report, fmt.Errorf("%s: %w", step.file, err)
		}
		*step.into = r
		logrus.WithFields(logrus.Fields{
			"file":    step.file,
			"created": r.Created,
			"skipped": r.Skipped,
			"failed":  len(r.Failed),
			"dry_run": im.dryRun,
		}).Info("Import step finished")
	}
	return report, nil
}

// rows yields header-keyed records.
func rows(r io.Reader, fn func(line int, rec map[string]string)) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil
	} else if err != nil {
		return err
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff")))
	}
	line := 1
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		line++
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		rec := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(fields) {
				rec[name] = strings.TrimSpace(fields[i])
			}
		}
		fn(line, rec)
	}
}

// ImportProfiles creates a profile per row. Rows whose email already
// exists are skipped and mapped onto the existing profile.
func (im *Importer) ImportProfiles(ctx context.Context, r io.Reader) (EntityReport, error) {
	var rep EntityReport
	err := rows(r, func(line int, rec map[string]string) {
		oldID, email := rec["id"], strings.ToLower(rec["email"])
		if email == "" {
			rep.fail(line, oldID, errors.New("email is required"))
			return
		}
		existing, err := im.store.GetProfileByEmail(ctx, email)
		if err == nil {
			im.mapUser(oldID, existing.ID)
			rep.Skipped++
			return
		} else if !errors.Is(err, store.ErrNotFound) {
			rep.fail(line, oldID, err)
			return
		}
		username := strings.ToLower(strings.TrimSpace(rec["username"]))
		if username == "" {
			username = strings.SplitN(email, "@", 2)[0]
		}
		hash, err := randomPasswordHash()
		if err != nil {
			rep.fail(line, oldID, err)
			return
		}
		p := domain.Profile{
			ID:          uuid.NewString(),
			Email:       email,
			Username:    username,
			Password:    hash,
			DisplayName: rec["display_name"],
			Bio:         rec["bio"],
			AvatarURL:   rec["avatar_url"],
			Role:        domain.RoleUser,
		}
		if !im.dryRun {
			if err := im.store.CreateProfile(ctx, &p); err != nil {
				rep.fail(line, oldID, err)
				return
			}
		}
		im.mapUser(oldID, p.ID)
		rep.Created++
	})
	return rep, err
}

// ImportCards creates a card per row, owned by the remapped user.
func (im *Importer) ImportCards(ctx context.Context, r io.Reader) (EntityReport, error) {
	var rep EntityReport
	err := rows(r, func(line int, rec map[string]string) {
		oldID := rec["id"]
		owner, err := im.resolveUser(rec["user_id"])
		if err != nil {
			rep.fail(line, oldID, err)
			return
		}
		if rec["name"] == "" {
			rep.fail(line, oldID, errors.New("name is required"))
			return
		}
		c := domain.UserCard{
			ID:         uuid.NewString(),
			OwnerID:    owner,
			Name:       rec["name"],
			Game:       strings.ToLower(rec["game"]),
			SetName:    rec["set_name"],
			Number:     rec["number"],
			Rarity:     rec["rarity"],
			Condition:  rec["condition"],
			Quantity:   1,
			ImageURL:   rec["image_url"],
			ExternalID: rec["external_id"],
		}
		if q := rec["quantity"]; q != "" {
			n, err := strconv.Atoi(q)
			if err != nil || n < 1 {
				rep.fail(line, oldID, fmt.Errorf("invalid quantity %q", q))
				return
			}
			c.Quantity = n
		}
		if p := rec["estimated_price"]; p != "" {
			d, err := decimal.NewFromString(p)
			if err != nil {
				rep.fail(line, oldID, fmt.Errorf("invalid estimated_price %q", p))
				return
			}
			c.EstimatedPrice = &d
		}
		if !im.dryRun {
			if err := im.store.CreateCard(ctx, &c); err != nil {
				rep.fail(line, oldID, err)
				return
			}
		}
		if oldID != "" {
			im.cards[oldID] = c.ID
		}
		rep.Created++
	})
	return rep, err
}

// ImportListings creates a listing per row. The card must have been
// imported in the same run.
func (im *Importer) ImportListings(ctx context.Context, r io.Reader) (EntityReport, error) {
	var rep EntityReport
	err := rows(r, func(line int, rec map[string]string) {
		oldID := rec["id"]
		seller, err := im.resolveUser(rec["seller_id"])
		if err != nil {
			rep.fail(line, oldID, err)
			return
		}
		cardID, ok := im.cards[rec["card_id"]]
		if !ok {
			rep.fail(line, oldID, fmt.Errorf("unknown card %q", rec["card_id"]))
			return
		}
		price, err := decimal.NewFromString(rec["asking_price"])
		if err != nil || !price.IsPositive() {
			rep.fail(line, oldID, fmt.Errorf("invalid asking_price %q", rec["asking_price"]))
			return
		}
		status := domain.ListingStatus(strings.ToLower(rec["status"]))
		switch status {
		case "":
			status = domain.ListingActive
		case domain.ListingActive, domain.ListingSold, domain.ListingCancelled:
		default:
			rep.fail(line, oldID, fmt.Errorf("invalid status %q", rec["status"]))
			return
		}
		l := domain.Listing{
			ID:          uuid.NewString(),
			SellerID:    seller,
			CardID:      cardID,
			Title:       rec["title"],
			Description: rec["description"],
			Game:        strings.ToLower(rec["game"]),
			Condition:   rec["condition"],
			AskingPrice: price.Round(2),
			Status:      status,
		}
		if l.Title == "" {
			l.Title = "Imported listing"
		}
		if sp := rec["sold_price"]; sp != "" && status == domain.ListingSold {
			d, err := decimal.NewFromString(sp)
			if err != nil {
				rep.fail(line, oldID, fmt.Errorf("invalid sold_price %q", sp))
				return
			}
			d = d.Round(2)
			l.SoldPrice = &d
		}
		if !im.dryRun {
			if err := im.store.CreateListing(ctx, &l); err != nil {
				rep.fail(line, oldID, err)
				return
			}
		}
		rep.Created++
	})
	return rep, err
}

func (im *Importer) mapUser(oldID, newID string) {
	if oldID != "" {
		im.users[oldID] = newID
	}
}

// resolveUser maps an exported user id, falling back for unknown or
// empty references.
func (im *Importer) resolveUser(oldID string) (string, error) {
	if id, ok := im.users[oldID]; ok && oldID != "" {
		return id, nil
	}
	if im.fallbackUser == "" {
		return "", fmt.Errorf("unknown user %q and no fallback user", oldID)
	}
	return im.fallbackUser, nil
}

// randomPasswordHash gives imported accounts an unusable password until
// they reset it.
func randomPasswordHash() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(hex.EncodeToString(buf)), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
