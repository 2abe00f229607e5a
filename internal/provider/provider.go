// Package provider는 정규화된 메시지 목록을 LLM 제공자별 와이어 프로토콜로 변환하고,
// 제공자 응답에서 답변 텍스트를 추출합니다.
package provider

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Kind는 LLM 제공자 식별자입니다.
type Kind string

const (
	KindOpenAI      Kind = "openai"
	KindAzureOpenAI Kind = "azure-openai"
	KindAnthropic   Kind = "anthropic"
	KindOllama      Kind = "ollama"
)

// ParseKind는 설정 문자열을 Kind로 변환합니다.
// 알 수 없는 값은 openai로 처리하며, 두 번째 반환값으로 인식 여부를 알려줍니다.
func ParseKind(s string) (Kind, bool) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindOpenAI, KindAzureOpenAI, KindAnthropic, KindOllama:
		return k, true
	default:
		return KindOpenAI, false
	}
}

// 기본 엔드포인트
const (
	defaultOpenAIURL    = "https://api.openai.com/v1/chat/completions"
	defaultAnthropicURL = "https://api.anthropic.com/v1/messages"
	defaultOllamaURL    = "http://localhost:11434/api/chat"

	azureAPIVersion  = "2024-12-01-preview"
	anthropicVersion = "2023-06-01"

	// DefaultMaxTokens는 응답 토큰 상한 기본값입니다.
	DefaultMaxTokens = 4096
)

// Role은 정규화된 메시지 역할입니다.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
	RoleAgent  Role = "agent"
)

// Message는 제공자 변환 전의 정규화된 메시지입니다.
type Message struct {
	Role    Role
	Content string
}

// Config는 어댑터 선택과 요청 구성에 필요한 값입니다.
type Config struct {
	Provider  string
	Model     string
	APIKey    string
	Endpoint  string
	MaxTokens int
}

// Request는 제공자로 전송할 HTTP 요청의 구성 요소입니다.
type Request struct {
	URL    string
	Header http.Header
	Body   []byte
}

// Adapter는 하나의 제공자 와이어 형식을 구현합니다.
type Adapter interface {
	// Kind는 어댑터가 구현하는 제공자 식별자입니다.
	Kind() Kind
	// BuildRequest는 메시지 목록으로 제공자 요청을 만듭니다.
	BuildRequest(messages []Message) (*Request, error)
	// ParseReply는 응답 본문에서 답변 텍스트를 추출합니다.
	// 필드가 없으면 빈 문자열을 반환하고, JSON이 아닌 본문에만 에러를 반환합니다.
	ParseReply(body []byte) (string, error)
}

// New는 설정된 제공자에 맞는 Adapter를 반환합니다.
// 인식하지 못한 제공자는 openai 형식을 사용합니다.
func New(cfg Config) Adapter {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	cfg.Endpoint = strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")

	kind, _ := ParseKind(cfg.Provider)
	switch kind {
	case KindAzureOpenAI:
		return &azureAdapter{openAIAdapter{cfg: cfg}}
	case KindAnthropic:
		return &anthropicAdapter{cfg: cfg}
	case KindOllama:
		return &ollamaAdapter{cfg: cfg}
	default:
		return &openAIAdapter{cfg: cfg}
	}
}

// chatMessage는 openai 호환 제공자들이 공유하는 메시지 형식입니다.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// wireRole은 정규화된 역할을 제공자 역할로 변환합니다.
func wireRole(r Role) string {
	if r == RoleAgent {
		return "assistant"
	}
	return string(r)
}

func toChatMessages(messages []Message) []chatMessage {
	out := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, chatMessage{Role: wireRole(m.Role), Content: m.Content})
	}
	return out
}

func jsonHeader() http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	return h
}

func newRequest(url string, header http.Header, body any) (*Request, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return &Request{URL: url, Header: header, Body: data}, nil
}
