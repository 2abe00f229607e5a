package mocks

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/cnap-oss/agent-runner/internal/provider"
)

// RecordedRequest는 가짜 제공자 서버가 받은 요청입니다.
type RecordedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   map[string]interface{}
}

// ProviderServer는 제공자별 응답 형식을 흉내내는 HTTP 서버입니다.
type ProviderServer struct {
	*httptest.Server

	kind provider.Kind

	mu         sync.Mutex
	reply      string
	statusCode int
	rawBody    string
	requests   []RecordedRequest
}

// NewProviderServer는 kind 형식으로 reply를 돌려주는 서버를 시작합니다.
// 테스트 종료 시 자동으로 닫힙니다.
func NewProviderServer(t testing.TB, kind provider.Kind, reply string) *ProviderServer {
	t.Helper()

	s := &ProviderServer{kind: kind, reply: reply, statusCode: http.StatusOK}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// FailWith는 이후 요청에 status와 body를 그대로 반환하게 합니다.
func (s *ProviderServer) FailWith(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusCode = status
	s.rawBody = body
}

// Requests는 받은 요청 목록을 반환합니다.
func (s *ProviderServer) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedRequest(nil), s.requests...)
}

func (s *ProviderServer) handle(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	var body map[string]interface{}
	_ = json.Unmarshal(data, &body)

	s.mu.Lock()
	s.requests = append(s.requests, RecordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Header: r.Header.Clone(),
		Body:   body,
	})
	status, raw, reply := s.statusCode, s.rawBody, s.reply
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK || raw != "" {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, raw)
		return
	}
	_ = json.NewEncoder(w).Encode(ReplyBody(s.kind, reply))
}

// ReplyBody는 kind 제공자의 성공 응답 본문을 만듭니다.
func ReplyBody(kind provider.Kind, text string) interface{} {
	switch kind {
	case provider.KindAnthropic:
		return map[string]interface{}{
			"content": []map[string]interface{}{{"type": "text", "text": text}},
		}
	case provider.KindOllama:
		return map[string]interface{}{
			"message": map[string]interface{}{"role": "assistant", "content": text},
			"done":    true,
		}
	default:
		return map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]interface{}{"role": "assistant", "content": text}},
			},
		}
	}
}
