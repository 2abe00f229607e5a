package provider

import (
	"encoding/json"
	"fmt"
	"strings"
)

type anthropicRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	Messages  []chatMessage `json:"messages"`
	System    string        `json:"system,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// anthropicAdapter는 Anthropic Messages API 형식입니다.
type anthropicAdapter struct {
	cfg Config
}

func (a *anthropicAdapter) Kind() Kind { return KindAnthropic }

func (a *anthropicAdapter) url() string {
	if a.cfg.Endpoint != "" {
		return a.cfg.Endpoint + "/v1/chat/completions"
	}
	return defaultAnthropicURL
}

// BuildRequest는 system 메시지를 별도 system 필드로 올리고 나머지는 그대로 전달합니다.
func (a *anthropicAdapter) BuildRequest(messages []Message) (*Request, error) {
	var system []string
	rest := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		rest = append(rest, m)
	}

	header := jsonHeader()
	header.Set("x-api-key", a.cfg.APIKey)
	header.Set("anthropic-version", anthropicVersion)

	return newRequest(a.url(), header, anthropicRequest{
		Model:     a.cfg.Model,
		MaxTokens: a.cfg.MaxTokens,
		Messages:  toChatMessages(rest),
		System:    strings.Join(system, "\n\n"),
	})
}

func (a *anthropicAdapter) ParseReply(body []byte) (string, error) {
	var resp anthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	if len(resp.Content) == 0 {
		return "", nil
	}
	return resp.Content[0].Text, nil
}
