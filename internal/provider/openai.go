package provider

import (
	"encoding/json"
	"fmt"
)

type openAIRequest struct {
	Model               string        `json:"model"`
	Messages            []chatMessage `json:"messages"`
	MaxCompletionTokens int           `json:"max_completion_tokens"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// openAIAdapter는 OpenAI Chat Completions 형식입니다.
// 알 수 없는 제공자의 기본 형식이기도 합니다.
type openAIAdapter struct {
	cfg Config
}

func (a *openAIAdapter) Kind() Kind { return KindOpenAI }

func (a *openAIAdapter) url() string {
	if a.cfg.Endpoint != "" {
		return a.cfg.Endpoint + "/v1/chat/completions"
	}
	return defaultOpenAIURL
}

func (a *openAIAdapter) body(messages []Message) openAIRequest {
	return openAIRequest{
		Model:               a.cfg.Model,
		Messages:            toChatMessages(messages),
		MaxCompletionTokens: a.cfg.MaxTokens,
	}
}

func (a *openAIAdapter) BuildRequest(messages []Message) (*Request, error) {
	header := jsonHeader()
	header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	return newRequest(a.url(), header, a.body(messages))
}

func (a *openAIAdapter) ParseReply(body []byte) (string, error) {
	var resp openAIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// azureAdapter는 Azure OpenAI 배포 엔드포인트 형식입니다.
// 본문과 응답은 openai와 같고 URL과 인증 헤더만 다릅니다.
type azureAdapter struct {
	openAIAdapter
}

func (a *azureAdapter) Kind() Kind { return KindAzureOpenAI }

func (a *azureAdapter) url() string {
	if a.cfg.Endpoint == "" {
		return defaultOpenAIURL
	}
	return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		a.cfg.Endpoint, a.cfg.Model, azureAPIVersion)
}

func (a *azureAdapter) BuildRequest(messages []Message) (*Request, error) {
	header := jsonHeader()
	header.Set("api-key", a.cfg.APIKey)
	return newRequest(a.url(), header, a.body(messages))
}
