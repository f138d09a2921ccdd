package contract

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4.1-mini"

// oracleSystemPrompt frames the chat completion the same way the agent is framed.
const oracleSystemPrompt = "You are a Linux kernel commit analyzer. Classify the commit and score it " +
	"against the technical, impact, quality and community rubric. Reply with a single JSON object only."

// chatCompleter is the subset of the go-openai client used here.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIOracle scores commits through an OpenAI-compatible chat completion endpoint.
type OpenAIOracle struct {
	client chatCompleter
	model  string
}

var _ Oracle = &OpenAIOracle{} // Compile-time check

// NewOpenAIOracle creates an OpenAIOracle. An empty baseURL keeps the library default.
func NewOpenAIOracle(apiKey, baseURL, model string) (*OpenAIOracle, error) {
	if apiKey == "" {
		return nil, errors.New("openai-api-key is required when using the openai oracle")
	}
	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIOracle{client: openai.NewClientWithConfig(clientConfig), model: model}, nil
}

// Invoke implements the Oracle interface.
func (o *OpenAIOracle) Invoke(ctx context.Context, prompt string) (OracleResponse, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: oracleSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return OracleResponse{}, fmt.Errorf("openai %s: %w", o.model, ctxErr)
		}
		if isRateLimit(err) {
			return OracleResponse{Stderr: err.Error()}, fmt.Errorf("openai %s: %w", o.model, ErrRateLimited)
		}
		return OracleResponse{Stderr: err.Error()}, fmt.Errorf("failed to call openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return OracleResponse{}, errors.New("openai returned empty response")
	}
	return OracleResponse{Stdout: resp.Choices[0].Message.Content}, nil
}

func isRateLimit(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return false
}
