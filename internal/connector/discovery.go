package connector

import (
	"fmt"
	"os"

	"github.com/cnap-oss/agent-runner/internal/a2a"
	"github.com/cnap-oss/agent-runner/internal/common"
	"github.com/cnap-oss/agent-runner/internal/controller"
)

// AgentCardVersion은 에이전트 카드에 노출되는 버전입니다.
const AgentCardVersion = "1.0.0"

// HealthStatus는 /health 응답입니다.
type HealthStatus struct {
	Status  string                      `json:"status"`
	Agent   string                      `json:"agent"`
	Kitchen string                      `json:"kitchen"`
	Model   string                      `json:"model"`
	PID     int                         `json:"pid"`
	Tasks   *controller.MetricsSnapshot `json:"tasks,omitempty"`
}

// Discovery는 설정에서 헬스와 에이전트 카드를 만듭니다.
type Discovery struct {
	agent   common.AgentConfig
	metrics MetricsSource
	pid     int
}

// NewDiscovery는 새로운 Discovery를 생성합니다. metrics는 nil일 수 있습니다.
func NewDiscovery(agent common.AgentConfig, metrics MetricsSource) *Discovery {
	return &Discovery{agent: agent, metrics: metrics, pid: os.Getpid()}
}

// Health는 현재 헬스 상태를 반환합니다.
func (d *Discovery) Health() HealthStatus {
	status := HealthStatus{
		Status:  "healthy",
		Agent:   d.agent.Name,
		Kitchen: d.agent.Kitchen,
		Model:   d.agent.ModelLabel(),
		PID:     d.pid,
	}
	if d.metrics != nil {
		snapshot := d.metrics.Metrics()
		status.Tasks = &snapshot
	}
	return status
}

// Card는 A2A 에이전트 카드를 반환합니다.
func (d *Discovery) Card() a2a.AgentCard {
	skills := make([]a2a.AgentSkill, 0, len(d.agent.Skills))
	for _, s := range d.agent.Skills {
		skills = append(skills, a2a.AgentSkill{ID: s, Name: s})
	}

	return a2a.AgentCard{
		Name:        d.agent.Name,
		Description: d.agent.Description,
		URL:         fmt.Sprintf("http://localhost:%d", d.agent.Port),
		Version:     AgentCardVersion,
		Capabilities: a2a.AgentCapabilities{
			Streaming:         false,
			PushNotifications: false,
		},
		Skills:             skills,
		DefaultInputModes:  []string{"text"},
		DefaultOutputModes: []string{"text"},
	}
}
