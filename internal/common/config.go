package common

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
	gormlogger "gorm.io/gorm/logger"
)

// Config는 에이전트 프로세스의 모든 설정을 관리합니다.
// 프로세스 시작 시 한 번 로드되며 이후 변경되지 않습니다.
type Config struct {
	App    AppConfig    `yaml:"app"`
	Agent  AgentConfig  `yaml:"agent"`
	Store  StoreConfig  `yaml:"store"`
	Runner RunnerConfig `yaml:"runner"`
}

// AppConfig는 애플리케이션 기본 설정입니다.
type AppConfig struct {
	// Env는 실행 환경입니다 (development, production)
	Env string `yaml:"env" envconfig:"RUNNER_ENV"`
	// LogLevel은 애플리케이션 로그 레벨입니다 (debug, info, warn, error)
	LogLevel string `yaml:"log_level" envconfig:"RUNNER_LOG_LEVEL"`
}

// AgentConfig는 에이전트 정체성과 LLM 제공자 설정입니다.
type AgentConfig struct {
	// Name은 에이전트 이름입니다
	Name string `yaml:"name" envconfig:"AGENT_NAME"`
	// Kitchen은 에이전트가 속한 tenant 범위입니다
	Kitchen string `yaml:"kitchen" envconfig:"AGENT_KITCHEN"`
	// Host는 listen 주소입니다
	Host string `yaml:"host" envconfig:"AGENT_HOST"`
	// Port는 listen 포트입니다
	Port int `yaml:"port" envconfig:"AGENT_PORT"`
	// Description은 에이전트 설명이자 system 프롬프트입니다
	Description string `yaml:"description" envconfig:"AGENT_DESCRIPTION"`
	// Provider는 LLM 제공자입니다 (openai, azure-openai, anthropic, ollama)
	Provider string `yaml:"provider" envconfig:"AGENT_MODEL_PROVIDER"`
	// Model은 모델 식별자입니다
	Model string `yaml:"model" envconfig:"AGENT_MODEL_NAME"`
	// APIKey는 제공자 API 키입니다
	APIKey string `yaml:"api_key" envconfig:"AGENT_API_KEY"`
	// APIEndpoint는 제공자 엔드포인트 override입니다 (Azure OpenAI, Ollama 등)
	APIEndpoint string `yaml:"api_endpoint" envconfig:"AGENT_API_ENDPOINT"`
	// Skills는 에이전트 카드에 노출할 스킬 목록입니다
	Skills SkillList `yaml:"skills" envconfig:"AGENT_SKILLS"`
	// MaxTurns는 에이전트 루프 최대 턴 수입니다. 단일 턴 실행에서는 강제하지 않습니다.
	MaxTurns int `yaml:"max_turns" envconfig:"AGENT_MAX_TURNS"`
}

// StoreConfig는 태스크 저장소 설정입니다.
type StoreConfig struct {
	// Driver는 저장소 종류입니다 (memory, sql)
	Driver string `yaml:"driver" envconfig:"RUNNER_STORE_DRIVER"`
	// DSN은 sql 저장소 연결 문자열입니다
	DSN string `yaml:"dsn" envconfig:"RUNNER_STORE_DSN"`
	// LogLevel은 GORM 로그 레벨입니다
	LogLevel string `yaml:"log_level" envconfig:"RUNNER_STORE_LOG_LEVEL"`
}

// RunnerConfig는 태스크 실행 설정입니다.
type RunnerConfig struct {
	// Timeout은 제공자 호출 하나의 최대 시간입니다
	Timeout time.Duration `yaml:"timeout" envconfig:"RUNNER_TIMEOUT"`
	// MaxConcurrent는 동시에 진행할 수 있는 제공자 호출 수입니다
	MaxConcurrent int `yaml:"max_concurrent" envconfig:"RUNNER_MAX_CONCURRENT"`
	// MaxRetries는 재시도 가능한 제공자 에러에 대한 재시도 횟수입니다 (기본 0)
	MaxRetries int `yaml:"max_retries" envconfig:"RUNNER_MAX_RETRIES"`
	// MaxTokens는 제공자 응답 토큰 상한입니다
	MaxTokens int `yaml:"max_tokens" envconfig:"RUNNER_MAX_TOKENS"`
}

// SkillList는 쉼표로 구분된 스킬 목록입니다.
type SkillList []string

// Decode는 envconfig.Decoder를 구현합니다.
func (s *SkillList) Decode(value string) error {
	*s = ParseSkills(value)
	return nil
}

// ParseSkills는 쉼표로 구분된 문자열을 정규화된 스킬 목록으로 변환합니다.
// 공백은 제거하고 빈 항목은 버리며, 유니코드 NFC로 정규화합니다.
func ParseSkills(value string) SkillList {
	skills := SkillList{}
	for _, s := range strings.Split(value, ",") {
		s = strings.TrimSpace(norm.NFC.String(s))
		if s != "" {
			skills = append(skills, s)
		}
	}
	return skills
}

// ConfigPathEnv는 설정 파일 경로를 지정하는 환경 변수입니다.
const ConfigPathEnv = "AGENT_CONFIG"

// 저장소 드라이버
const (
	StoreDriverMemory = "memory"
	StoreDriverSQL    = "sql"
)

// DefaultConfig는 기본 설정을 반환합니다.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Env:      "production",
			LogLevel: "info",
		},
		Agent: AgentConfig{
			Name:        "unnamed-agent",
			Kitchen:     "default",
			Host:        "0.0.0.0",
			Port:        9000,
			Description: "A managed A2A agent",
			Provider:    "openai",
			Model:       "gpt-5",
			Skills:      SkillList{},
			MaxTurns:    10,
		},
		Store: StoreConfig{
			Driver:   StoreDriverMemory,
			DSN:      "file::memory:?cache=shared",
			LogLevel: "warn",
		},
		Runner: RunnerConfig{
			Timeout:       120 * time.Second,
			MaxConcurrent: 16,
			MaxRetries:    0,
			MaxTokens:     4096,
		},
	}
}

// LoadConfig는 기본값, YAML 파일, .env, 환경 변수 순으로 설정을 적용합니다.
// path가 비어있으면 AGENT_CONFIG 환경 변수를 확인하고, 그것도 없으면 파일 없이 진행합니다.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = os.Getenv(ConfigPathEnv)
	}
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	// .env 파일은 선택 사항이며 이미 설정된 환경 변수를 덮어쓰지 않습니다
	_ = godotenv.Load()

	if err := cfg.mergeEnv(); err != nil {
		return nil, err
	}

	cfg.normalize()
	return cfg, nil
}

// LoadConfigFromFile은 YAML 파일과 환경 변수에서 설정을 로드합니다.
func LoadConfigFromFile(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config: empty path")
	}
	return LoadConfig(path)
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("설정 파일 읽기 실패: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("설정 파일 파싱 실패: %w", err)
	}
	return nil
}

// mergeEnv는 설정된 환경 변수만 덮어씁니다. 없는 값은 기존 값을 유지합니다.
// 태그에 전체 키를 적어 prefix 없이 처리합니다.
func (c *Config) mergeEnv() error {
	targets := []struct {
		name string
		dst  interface{}
	}{
		{"agent", &c.Agent},
		{"app", &c.App},
		{"store", &c.Store},
		{"runner", &c.Runner},
	}
	for _, target := range targets {
		if err := envconfig.Process("", target.dst); err != nil {
			return fmt.Errorf("failed to load %s env: %w", target.name, err)
		}
	}
	return nil
}

func (c *Config) normalize() {
	c.Agent.Name = strings.TrimSpace(norm.NFC.String(c.Agent.Name))
	c.Agent.Provider = strings.ToLower(strings.TrimSpace(c.Agent.Provider))
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	if c.Agent.Skills == nil {
		c.Agent.Skills = SkillList{}
	} else {
		c.Agent.Skills = ParseSkills(strings.Join(c.Agent.Skills, ","))
	}
}

// Validate는 필수 설정 값들을 검증합니다.
func (c *Config) Validate() error {
	if c.Agent.Name == "" {
		return fmt.Errorf("AGENT_NAME is required")
	}
	if c.Agent.Port < 0 || c.Agent.Port > 65535 {
		return fmt.Errorf("AGENT_PORT out of range: %d", c.Agent.Port)
	}
	if c.Agent.Model == "" {
		return fmt.Errorf("AGENT_MODEL_NAME is required")
	}
	if c.Runner.Timeout <= 0 {
		return fmt.Errorf("RUNNER_TIMEOUT must be positive: %s", c.Runner.Timeout)
	}
	if c.Runner.MaxConcurrent <= 0 {
		return fmt.Errorf("RUNNER_MAX_CONCURRENT must be positive: %d", c.Runner.MaxConcurrent)
	}
	if c.Runner.MaxRetries < 0 {
		return fmt.Errorf("RUNNER_MAX_RETRIES must not be negative: %d", c.Runner.MaxRetries)
	}
	switch c.Store.Driver {
	case StoreDriverMemory, StoreDriverSQL:
	default:
		return fmt.Errorf("unknown store driver: %s", c.Store.Driver)
	}
	return nil
}

// Warnings는 실행은 가능하지만 주의가 필요한 설정을 반환합니다.
func (c *Config) Warnings(knownProvider bool) []string {
	var warnings []string
	if !knownProvider {
		warnings = append(warnings, fmt.Sprintf("unknown provider %q, using openai request format", c.Agent.Provider))
	}
	if c.Agent.APIKey == "" && c.Agent.Provider != "ollama" {
		warnings = append(warnings, "No API key set (AGENT_API_KEY). LLM calls will fail.")
	}
	if c.Agent.Provider == "azure-openai" && c.Agent.APIEndpoint == "" {
		warnings = append(warnings, "azure-openai without AGENT_API_ENDPOINT falls back to the OpenAI endpoint")
	}
	return warnings
}

// ModelLabel은 "provider/model" 형식의 표시용 문자열입니다.
func (a AgentConfig) ModelLabel() string {
	return a.Provider + "/" + a.Model
}

// Address는 listen 주소를 반환합니다.
func (a AgentConfig) Address() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// GormLogLevel은 저장소 로그 레벨을 GORM 레벨로 변환합니다.
func (s StoreConfig) GormLogLevel() gormlogger.LogLevel {
	switch strings.ToLower(s.LogLevel) {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
