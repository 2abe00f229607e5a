package controller

import (
	"context"
	"time"

	"github.com/cnap-oss/agent-runner/internal/common"
)

// TaskContext는 Task별 실행 컨텍스트를 관리합니다.
type TaskContext struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// Config는 태스크 실행 설정입니다.
type Config struct {
	// SystemPrompt는 모든 요청 앞에 붙는 system 메시지입니다. 비어있으면 생략합니다.
	SystemPrompt string
	// Timeout은 슬롯 대기와 제공자 호출을 합한 최대 시간입니다
	Timeout time.Duration
	// MaxConcurrent는 동시에 진행되는 제공자 호출 수의 상한입니다
	MaxConcurrent int
	// MaxRetries는 재시도 가능한 에러에 대한 추가 시도 횟수입니다
	MaxRetries int
	// InitialBackoff는 첫 재시도 전 대기 시간입니다
	InitialBackoff time.Duration
}

// 기본 실행 설정
const (
	DefaultTimeout        = 120 * time.Second
	DefaultMaxConcurrent  = 16
	DefaultInitialBackoff = 500 * time.Millisecond
)

// ConfigFromCommon은 애플리케이션 설정에서 실행 설정을 구성합니다.
func ConfigFromCommon(cfg *common.Config) Config {
	return Config{
		SystemPrompt:   cfg.Agent.Description,
		Timeout:        cfg.Runner.Timeout,
		MaxConcurrent:  cfg.Runner.MaxConcurrent,
		MaxRetries:     cfg.Runner.MaxRetries,
		InitialBackoff: DefaultInitialBackoff,
	}
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = DefaultMaxConcurrent
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = DefaultInitialBackoff
	}
	return c
}
