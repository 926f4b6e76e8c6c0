// Package identify reads a medicine identity from a packaging photo with a vision model.
package identify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/giygas/leaflet-api/entities"
	"github.com/giygas/leaflet-api/interfaces"
	"github.com/giygas/leaflet-api/logging"
)

const defaultMaxTokens = 300

var (
	// ErrUnidentified is returned when the model output holds no usable identity
	ErrUnidentified = errors.New("could not identify the medicine")

	// ErrNotConfigured is returned when no vision model is available
	ErrNotConfigured = errors.New("vision model not configured")
)

var _ interfaces.Identifier = (*Identifier)(nil)

// Identifier sends packaging images to a multimodal chat model
type Identifier struct {
	chat      model.BaseChatModel
	maxTokens int
}

// NewIdentifier creates an identifier; chat may be nil when no model is configured
func NewIdentifier(chat model.BaseChatModel) *Identifier {
	return &Identifier{chat: chat, maxTokens: defaultMaxTokens}
}

// Identify expects image as a data URL (data:image/jpeg;base64,...)
func (i *Identifier) Identify(ctx context.Context, image string) (entities.MedicineIdentity, error) {
	if i.chat == nil {
		return entities.MedicineIdentity{}, ErrNotConfigured
	}

	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		{
			Role: schema.User,
			MultiContent: []schema.ChatMessagePart{
				{Type: schema.ChatMessagePartTypeText, Text: userPrompt},
				{
					Type: schema.ChatMessagePartTypeImageURL,
					ImageURL: &schema.ChatMessageImageURL{
						URL:    image,
						Detail: schema.ImageURLDetailLow,
					},
				},
			},
		},
	}

	resp, err := i.chat.Generate(ctx, messages, model.WithMaxTokens(i.maxTokens), model.WithTemperature(0))
	if err != nil {
		return entities.MedicineIdentity{}, fmt.Errorf("vision model request failed: %w", err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return entities.MedicineIdentity{}, fmt.Errorf("%w: empty response", ErrUnidentified)
	}

	identity, err := ParseIdentity(resp.Content)
	if err != nil {
		logging.Warn("Unparseable identification response", "error", err, "content_length", len(resp.Content))
		return entities.MedicineIdentity{}, err
	}

	logging.Info("Medicine identified",
		"name", identity.Name,
		"substance", identity.ActiveSubstance,
		"dosage", identity.Dosage)
	return identity, nil
}

// ParseIdentity decodes the JSON object in content. Markdown fences and text
// around the object are ignored. An identity without name and substance is rejected.
func ParseIdentity(content string) (entities.MedicineIdentity, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return entities.MedicineIdentity{}, fmt.Errorf("%w: no JSON object in response", ErrUnidentified)
	}

	var identity entities.MedicineIdentity
	if err := json.Unmarshal([]byte(content[start:end+1]), &identity); err != nil {
		return entities.MedicineIdentity{}, fmt.Errorf("%w: %v", ErrUnidentified, err)
	}

	identity.Name = strings.TrimSpace(identity.Name)
	identity.Brand = strings.TrimSpace(identity.Brand)
	identity.ActiveSubstance = strings.TrimSpace(identity.ActiveSubstance)
	identity.Dosage = strings.TrimSpace(identity.Dosage)

	if identity.Name == "" && identity.ActiveSubstance == "" {
		return entities.MedicineIdentity{}, fmt.Errorf("%w: no name or active substance", ErrUnidentified)
	}
	return identity, nil
}
