package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// 기본 에러 타입
var (
	// ErrMalformedReply는 제공자 응답 본문이 JSON이 아닐 때 반환됩니다.
	ErrMalformedReply = errors.New("malformed provider reply")
	// ErrUnexpectedStatus는 제공자가 2xx 이외의 상태 코드를 반환했을 때 사용됩니다.
	ErrUnexpectedStatus = errors.New("unexpected provider status")
)

// Error는 제공자 호출 실패를 래핑합니다.
// 진단을 위해 상태 코드와 응답 본문을 보존합니다.
type Error struct {
	Provider   Kind   // 제공자 식별자
	StatusCode int    // HTTP 상태 코드 (전송 실패 시 0)
	Body       string // 응답 본문
	Err        error  // 원본 에러
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("LLM API error %d: %s", e.StatusCode, e.Body)
	}
	if e.Body != "" {
		return fmt.Sprintf("LLM API request failed (%s): %v: %s", e.Provider, e.Err, e.Body)
	}
	return fmt.Sprintf("LLM API request failed (%s): %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable은 호출자가 재시도해 볼 만한 에러인지 확인합니다.
// 429, 5xx, 타임아웃, 네트워크 에러가 해당됩니다. 호출자 취소는 제외합니다.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var perr *Error
	if errors.As(err, &perr) && perr.StatusCode != 0 {
		return perr.StatusCode == http.StatusTooManyRequests || perr.StatusCode >= http.StatusInternalServerError
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
