package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared/constant"

	"github.com/mfateev/turnctl/internal/models"
	"github.com/mfateev/turnctl/internal/tools"
)

// OpenAIClient implements LLMClient using OpenAI's Responses API.
//
// Maps to: codex-rs/core/src/client.rs OpenAI implementation
type OpenAIClient struct {
	client openai.Client
}

// NewOpenAIClient creates an OpenAI client
func NewOpenAIClient() *OpenAIClient {
	apiKey := os.Getenv("OPENAI_API_KEY")
	client := openai.NewClient(option.WithAPIKey(apiKey))

	return &OpenAIClient{
		client: client,
	}
}

// Call sends a request to OpenAI's Responses API and returns the complete
// response. PreviousResponseID/ResponseID chain successive calls so only
// the newest items need to be resent each turn.
func (c *OpenAIClient) Call(ctx context.Context, request LLMRequest) (LLMResponse, error) {
	inputItems := c.convertHistoryToInput(request.History)

	params := responses.ResponseNewParams{
		Model: request.ModelConfig.Model,
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: inputItems,
		},
	}

	if instr := combinedInstructions(request); instr != "" {
		params.Instructions = param.NewOpt(instr)
	}

	if request.PreviousResponseID != "" {
		params.PreviousResponseID = param.NewOpt(request.PreviousResponseID)
	}

	if len(request.ToolSpecs) > 0 {
		params.Tools = c.buildToolDefinitions(request.ToolSpecs)
	}

	if request.ModelConfig.Temperature > 0 {
		params.Temperature = param.NewOpt(request.ModelConfig.Temperature)
	}
	if request.ModelConfig.MaxTokens > 0 {
		params.MaxOutputTokens = param.NewOpt(int64(request.ModelConfig.MaxTokens))
	}

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return LLMResponse{}, classifyOpenAIError(err)
	}

	items, finishReason := parseResponsesOutput(resp)

	return LLMResponse{
		Items:        items,
		FinishReason: finishReason,
		ResponseID:   resp.ID,
		TokenUsage: models.TokenUsage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
			CachedTokens:     int(resp.Usage.InputTokensDetails.CachedTokens),
		},
	}, nil
}

// Compact runs request.Input through the summarization prompt in
// request.Instructions and returns the model's raw response items.
// build_compacted_history (internal/activities/llm.go) is responsible for
// extracting the summary text and assembling it with the initial-context
// items and the prior user messages; Compact only runs the model call.
//
// Maps to: codex-rs/core/src/compact.rs run_compact_task (model call half)
func (c *OpenAIClient) Compact(ctx context.Context, request CompactRequest) (CompactResponse, error) {
	response, err := c.Call(ctx, LLMRequest{
		History: request.Input,
		ModelConfig: models.ModelConfig{
			Provider: "openai",
			Model:    request.Model,
		},
		BaseInstructions: request.Instructions,
	})
	if err != nil {
		return CompactResponse{}, err
	}

	return CompactResponse{Items: response.Items, TokenUsage: response.TokenUsage}, nil
}

// combinedInstructions merges the three-tier instruction hierarchy into the
// single Instructions string the Responses API accepts.
func combinedInstructions(request LLMRequest) string {
	var parts []string
	if request.BaseInstructions != "" {
		parts = append(parts, request.BaseInstructions)
	}
	if request.DeveloperInstructions != "" {
		parts = append(parts, request.DeveloperInstructions)
	}
	if request.UserInstructions != "" {
		parts = append(parts, request.UserInstructions)
	}
	return strings.Join(parts, "\n\n")
}

// convertHistoryToInput converts conversation history into Responses API
// input items: user/assistant messages, function calls, and function call
// outputs.
func (c *OpenAIClient) convertHistoryToInput(history []models.ConversationItem) []responses.ResponseInputItemUnionParam {
	items := make([]responses.ResponseInputItemUnionParam, 0, len(history))

	for _, item := range history {
		switch item.Type {
		case models.ItemTypeUserMessage, models.ItemTypeModelSwitch, models.ItemTypeCompacted:
			// ModelSwitch/Compacted carry synthetic developer-role content
			// (model-switch notice, compaction summary); the Responses API
			// has no separate developer turn mid-conversation, so they ride
			// in as a user turn like any other synthesized message.
			items = append(items, easyMessageItem(item.Content, responses.EasyInputMessageRoleUser))

		case models.ItemTypeAssistantMessage:
			if item.Content != "" {
				items = append(items, easyMessageItem(item.Content, responses.EasyInputMessageRoleAssistant))
			}

		case models.ItemTypeFunctionCall:
			fnCall := responses.ResponseFunctionToolCallParam{
				CallID:    item.CallID,
				Name:      item.Name,
				Arguments: item.Arguments,
			}
			items = append(items, responses.ResponseInputItemUnionParam{OfFunctionCall: &fnCall})

		case models.ItemTypeFunctionCallOutput:
			if item.Output == nil {
				continue
			}
			output := responses.ResponseInputItemFunctionCallOutputParam{
				CallID: item.CallID,
				Output: responses.ResponseInputItemFunctionCallOutputOutputUnionParam{
					OfString: param.NewOpt(item.Output.Content),
				},
			}
			items = append(items, responses.ResponseInputItemUnionParam{OfFunctionCallOutput: &output})
		}
	}

	return items
}

// easyMessageItem builds a single-text-part message input item for the
// given role.
func easyMessageItem(text string, role responses.EasyInputMessageRole) responses.ResponseInputItemUnionParam {
	textType := "input_text"
	if role == responses.EasyInputMessageRoleAssistant {
		textType = "output_text"
	}
	contentParam := responses.ResponseInputContentParamOfInputText(text)
	if textParam := contentParam.OfInputText; textParam != nil {
		textParam.Type = constant.InputText(textType)
	}
	message := responses.EasyInputMessageParam{
		Role: role,
		Type: "message",
		Content: responses.EasyInputMessageContentUnionParam{
			OfInputItemContentList: responses.ResponseInputMessageContentListParam{contentParam},
		},
	}
	return responses.ResponseInputItemUnionParam{OfMessage: &message}
}

// buildToolDefinitions converts ToolSpecs into Responses API function tools.
func (c *OpenAIClient) buildToolDefinitions(specs []tools.ToolSpec) []responses.ToolUnionParam {
	toolDefs := make([]responses.ToolUnionParam, 0, len(specs))

	for _, spec := range specs {
		properties := make(map[string]interface{})
		required := make([]string, 0)

		for _, p := range spec.Parameters {
			properties[p.Name] = map[string]interface{}{
				"type":        p.Type,
				"description": p.Description,
			}

			if p.Required {
				required = append(required, p.Name)
			}
		}

		function := responses.FunctionToolParam{
			Name: spec.Name,
			Parameters: map[string]interface{}{
				"type":       "object",
				"properties": properties,
				"required":   required,
			},
			Type: "function",
		}
		if spec.Description != "" {
			function.Description = param.NewOpt(spec.Description)
		}

		toolDefs = append(toolDefs, responses.ToolUnionParam{OfFunction: &function})
	}

	return toolDefs
}

// parseResponsesOutput converts a Responses API response into conversation
// items and a finish reason.
func parseResponsesOutput(resp *responses.Response) ([]models.ConversationItem, models.FinishReason) {
	var items []models.ConversationItem
	hasToolCalls := false

	for _, outputItem := range resp.Output {
		switch outputItem.Type {
		case "message":
			message := outputItem.AsMessage()
			for _, content := range message.Content {
				if content.Type == "output_text" {
					text := content.AsOutputText()
					items = append(items, models.ConversationItem{
						Type:    models.ItemTypeAssistantMessage,
						Role:    "assistant",
						Content: text.Text,
					})
				}
			}

		case "function_call":
			fn := outputItem.AsFunctionCall()
			items = append(items, models.ConversationItem{
				Type:      models.ItemTypeFunctionCall,
				CallID:    fn.CallID,
				Name:      fn.Name,
				Arguments: fn.Arguments,
			})
			hasToolCalls = true
		}
	}

	if len(items) == 0 {
		items = append(items, models.ConversationItem{
			Type: models.ItemTypeAssistantMessage,
			Role: "assistant",
		})
	}

	finishReason := models.FinishReasonStop
	if hasToolCalls {
		finishReason = models.FinishReasonToolCalls
	}
	return items, finishReason
}

// classifyOpenAIError categorizes an OpenAI API error, preferring the typed
// status code and falling back to message heuristics for context-overflow
// detection (the Responses API reports this via message text, not a
// dedicated status code).
func classifyOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		errMsg := strings.ToLower(apiErr.Message)
		if strings.Contains(errMsg, "context_length") || strings.Contains(errMsg, "maximum context length") || strings.Contains(errMsg, "context window") {
			return models.NewContextOverflowError(apiErr.Message)
		}
		return classifyByStatusCode(apiErr.StatusCode, err)
	}

	errMsg := strings.ToLower(err.Error())
	if strings.Contains(errMsg, "context_length") || strings.Contains(errMsg, "maximum context length") {
		return models.NewContextOverflowError(err.Error())
	}
	if strings.Contains(errMsg, "rate_limit") || strings.Contains(errMsg, "rate limit") {
		return models.NewAPILimitError(err.Error())
	}
	return models.NewTransientError(fmt.Sprintf("OpenAI API error: %v", err))
}
