package provider

import (
	"encoding/json"
	"fmt"
)

type ollamaRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type ollamaResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

// ollamaAdapter는 Ollama /api/chat 형식입니다. 인증 헤더를 보내지 않습니다.
type ollamaAdapter struct {
	cfg Config
}

func (a *ollamaAdapter) Kind() Kind { return KindOllama }

func (a *ollamaAdapter) url() string {
	if a.cfg.Endpoint != "" {
		return a.cfg.Endpoint + "/api/chat"
	}
	return defaultOllamaURL
}

func (a *ollamaAdapter) BuildRequest(messages []Message) (*Request, error) {
	return newRequest(a.url(), jsonHeader(), ollamaRequest{
		Model:    a.cfg.Model,
		Messages: toChatMessages(messages),
		Stream:   false,
	})
}

func (a *ollamaAdapter) ParseReply(body []byte) (string, error) {
	var resp ollamaResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	return resp.Message.Content, nil
}
