package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"warehouse-ledger/internal/core"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
	"github.com/openai/openai-go/shared/constant"
)

// StockAssistant turns a free-text stock event into a proposal or a clarifying question.
type StockAssistant interface {
	Propose(ctx context.Context, text string, tools *ToolRegistry) (*core.AssistantResponse, error)
}

type Agent struct {
	client *openai.Client
	model  string
}

var _ StockAssistant = (*Agent)(nil)

func NewAgent(apiKey, model string) *Agent {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	if model == "" {
		model = shared.ChatModelGPT4oMini
	}
	return &Agent{client: &client, model: model}
}

func (a *Agent) Propose(ctx context.Context, text string, tools *ToolRegistry) (*core.AssistantResponse, error) {
	if text == "" {
		return nil, core.NewValidationError("event description is required")
	}
	toolContext, err := tools.Render(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build assistant context: %w", err)
	}

	schemaMap, err := responseSchema()
	if err != nil {
		return nil, err
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(a.model),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: param.NewOpt(BuildPrompt(text, toolContext)),
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Type:        constant.JSONSchema("json_schema"),
					Name:        "stock_action_response",
					Schema:      schemaMap,
					Description: param.NewOpt("A stock adjustment or transfer proposal, or a clarification request"),
				},
			},
		},
	}

	resp, err := a.client.Responses.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai responses error: %w", err)
	}
	return ParseResponse(resp.OutputText())
}

// BuildPrompt assembles the instructions, tool context and user event.
func BuildPrompt(text, toolContext string) string {
	return fmt.Sprintf(`You are a warehouse inventory controller.
Interpret the stock event below and propose exactly one stock action.
Rules:
1. Use ONLY SKUs and warehouse IDs that appear in the context.
2. "adjust" corrects on-hand stock at one warehouse: negative quantity for loss, damage or shrinkage, positive for found stock.
3. "transfer" moves a positive quantity from warehouse_id to to_warehouse_id. Never transfer more than is available.
4. Purchases and sales are NOT stock actions. Ask for clarification instead.
5. If the product, warehouse or quantity is ambiguous, set is_clarification_request and ask one question.
6. Provide a confidence score (0.0-1.0) and explain your reasoning.

Context:
%s
Event: %s`, toolContext, text)
}

// ParseResponse decodes model output and checks that exactly one branch is set.
func ParseResponse(content string) (*core.AssistantResponse, error) {
	if content == "" {
		return nil, errors.New("empty response content")
	}
	var out core.AssistantResponse
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return nil, fmt.Errorf("failed to parse completion: %w", err)
	}
	if out.IsClarificationRequest {
		if out.Clarification == nil || out.Clarification.Message == "" {
			return nil, core.NewValidationError("clarification request without a message")
		}
		out.Proposal = nil
		return &out, nil
	}
	if out.Proposal == nil {
		return nil, core.NewValidationError("response has neither a proposal nor a clarification")
	}
	out.Clarification = nil
	out.Proposal.Normalize()
	if err := out.Proposal.Validate(); err != nil {
		return nil, fmt.Errorf("proposal validation failed: %w", err)
	}
	return &out, nil
}

func responseSchema() (map[string]any, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schemaJSON, err := json.Marshal(reflector.Reflect(core.AssistantResponse{}))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema to map: %w", err)
	}
	return schemaMap, nil
}
