package cardlookup

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"collector_hub/internal/domain"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

const identifyPrompt = `Identify every trading card visible in this photo. ` +
	`Answer with JSON only: an array of objects with the keys ` +
	`"name", "game" (one of pokemon, magic, yugioh, onepiece, lorcana), ` +
	`"set_name", "number" and "rarity". Use empty strings for unknown values.`

// Vision calls an OpenAI-compatible chat completions endpoint with an
// image attached as a data URL.
type Vision struct {
	client   *http.Client
	endpoint string
	apiKey   string
	model    string
}

func NewVision(client *http.Client, endpoint, apiKey, model string) *Vision {
	return &Vision{client: client, endpoint: endpoint, apiKey: apiKey, model: model}
}

type visionContent struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *visionImageURL `json:"image_url,omitempty"`
}

type visionImageURL struct {
	URL string `json:"url"`
}

type visionMessage struct {
	Role    string          `json:"role"`
	Content []visionContent `json:"content"`
}

type visionRequest struct {
	Model       string          `json:"model"`
	Messages    []visionMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
}

// Describe returns the raw model answer for the image.
func (v *Vision) Describe(ctx context.Context, image []byte, mime string) (string, error) {
	wire := visionRequest{
		Model: v.model,
		Messages: []visionMessage{{
			Role: "user",
			Content: []visionContent{
				{Type: "text", Text: identifyPrompt},
				{Type: "image_url", ImageURL: &visionImageURL{
					URL: "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(image),
				}},
			},
		}},
	}
	body, err := json.Marshal(wire)
	if err != nil {
		return "", fmt.Errorf("vision: marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("vision: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if v.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+v.apiKey)
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("vision: sending request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("vision: reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(raw, "error.message").String()
		if msg == "" {
			msg = truncate(string(raw), 200)
		}
		return "", fmt.Errorf("vision: HTTP %d: %s", resp.StatusCode, msg)
	}
	content := gjson.GetBytes(raw, "choices.0.message.content")
	if !content.Exists() {
		return "", fmt.Errorf("vision: response has no message content")
	}
	return content.String(), nil
}

// Identified is a card recognized in a photo, enriched with catalogue data
// when a lookup matched.
type Identified struct {
	Name    string `json:"name"`
	Game    string `json:"game"`
	SetName string `json:"set_name"`
	Number  string `json:"number"`
	Rarity  string `json:"rarity"`
	Match   *Card  `json:"match,omitempty"`
}

// ParseIdentified reads the model answer. It accepts a bare array, an
// object with a "cards" array, and either wrapped in a ``` fence.
func ParseIdentified(content string) ([]Identified, error) {
	text := stripFence(content)
	parsed := gjson.Parse(text)
	if parsed.IsObject() {
		parsed = parsed.Get("cards")
	}
	if !gjson.Valid(text) || !parsed.IsArray() {
		return nil, fmt.Errorf("%w: unexpected model answer", ErrUnidentified)
	}
	var out []Identified
	parsed.ForEach(func(_, item gjson.Result) bool {
		id := Identified{
			Name:    strings.TrimSpace(item.Get("name").String()),
			Game:    strings.ToLower(strings.TrimSpace(item.Get("game").String())),
			SetName: item.Get("set_name").String(),
			Number:  item.Get("number").String(),
			Rarity:  item.Get("rarity").String(),
		}
		if id.Name != "" {
			out = append(out, id)
		}
		return true
	})
	if len(out) == 0 {
		return nil, ErrUnidentified
	}
	return out, nil
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:] // drop the language tag line
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// Identify recognizes the cards in a photo and looks each one up. Lookup
// failures leave Match empty rather than failing the whole call.
func (s *Service) Identify(ctx context.Context, image []byte, mime string) ([]Identified, error) {
	if s.vision == nil {
		return nil, ErrNoVision
	}
	content, err := s.vision.Describe(ctx, image, mime)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	cards, err := ParseIdentified(content)
	if err != nil {
		return nil, err
	}
	for i, c := range cards {
		if !domain.IsKnownGame(c.Game) {
			continue
		}
		res, err := s.Search(ctx, c.Game, c.Name)
		if err != nil {
			logrus.WithFields(logrus.Fields{"name": c.Name, "error": err.Error()}).Debug("Identify lookup failed")
			continue
		}
		if m, ok := BestMatch(res.Cards, "", c.Number); ok {
			cards[i].Match = &m
		}
	}
	return cards, nil
}
