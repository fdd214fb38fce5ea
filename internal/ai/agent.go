package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
	"github.com/openai/openai-go/shared/constant"

	"shop-admin/internal/core"
)

// OrderExtractor turns a pasted customer conversation into a tentative order.
type OrderExtractor interface {
	ExtractOrder(ctx context.Context, conversation string, catalog []core.Product) (*OrderDraft, error)
}

type Agent struct {
	client *openai.Client
	model  string
}

func NewAgent(apiKey, model string) *Agent {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	if model == "" {
		model = string(shared.ChatModelGPT4o)
	}
	return &Agent{client: &client, model: model}
}

func (a *Agent) ExtractOrder(ctx context.Context, conversation string, catalog []core.Product) (*OrderDraft, error) {
	conversation = strings.TrimSpace(conversation)
	if conversation == "" {
		return nil, fmt.Errorf("conversation is empty")
	}
	if len(catalog) == 0 {
		return nil, fmt.Errorf("catalog is empty")
	}

	schemaMap, err := draftSchema()
	if err != nil {
		return nil, err
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(a.model),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: param.NewOpt(buildPrompt(conversation, catalog)),
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Type:        constant.JSONSchema("json_schema"),
					Name:        "order_draft",
					Strict:      param.NewOpt(true),
					Schema:      schemaMap,
					Description: param.NewOpt("A tentative shop order extracted from a customer conversation"),
				},
			},
		},
	}

	resp, err := a.client.Responses.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai responses error: %w", err)
	}

	content := resp.OutputText()
	if content == "" {
		return nil, fmt.Errorf("empty response content")
	}

	var draft OrderDraft
	if err := json.Unmarshal([]byte(content), &draft); err != nil {
		return nil, fmt.Errorf("failed to parse completion: %w", err)
	}

	draft.Normalize(catalog)
	return &draft, nil
}

func buildPrompt(conversation string, catalog []core.Product) string {
	var b strings.Builder
	for _, p := range catalog {
		fmt.Fprintf(&b, "- id=%d | %s | price %s | in stock %d\n", p.ID, p.Name, p.Price.StringFixed(2), p.Quantity)
	}

	return fmt.Sprintf(`You are an order-entry assistant for a small online shop.
Read the conversation between the shop and a customer and extract the order the customer placed.
Rules:
1. Use ONLY product ids from the catalog below. Skip anything you cannot match and say so in notes.
2. Quantities are whole numbers of at least 1.
3. Prices are decimal strings with two places (e.g. "20.00"). Use the catalog price unless the conversation agrees on another price.
4. courier_price is the delivery charge for the line, "0.00" when none was mentioned.
5. Leave a customer field empty when the conversation does not contain it. Never invent a phone number or address.
6. Provide a confidence score (0.0-1.0).

Catalog:
%s
Conversation:
%s`, b.String(), conversation)
}

func draftSchema() (map[string]any, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schemaJSON, err := json.Marshal(reflector.Reflect(&OrderDraft{}))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema to map: %w", err)
	}
	// the Responses API rejects the draft-2020 meta keys
	delete(schemaMap, "$schema")
	delete(schemaMap, "$id")
	return schemaMap, nil
}
