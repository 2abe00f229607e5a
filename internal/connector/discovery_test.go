package connector_test

import (
	"testing"

	"github.com/cnap-oss/agent-runner/internal/common"
	"github.com/cnap-oss/agent-runner/internal/connector"
	"github.com/cnap-oss/agent-runner/internal/controller"
	"github.com/stretchr/testify/assert"
)

type staticMetrics struct {
	snapshot controller.MetricsSnapshot
}

func (s staticMetrics) Metrics() controller.MetricsSnapshot { return s.snapshot }

func TestDiscovery_HealthWithoutMetrics(t *testing.T) {
	d := connector.NewDiscovery(testAgentConfig(), nil)

	health := d.Health()
	assert.Equal(t, "healthy", health.Status)
	assert.Nil(t, health.Tasks)
}

func TestDiscovery_HealthIncludesMetrics(t *testing.T) {
	d := connector.NewDiscovery(testAgentConfig(), staticMetrics{controller.MetricsSnapshot{TasksSubmitted: 3, TasksFailed: 1}})

	health := d.Health()
	if assert.NotNil(t, health.Tasks) {
		assert.Equal(t, int64(3), health.Tasks.TasksSubmitted)
		assert.Equal(t, int64(1), health.Tasks.TasksFailed)
	}
}

func TestDiscovery_CardDefaults(t *testing.T) {
	cfg := common.DefaultConfig()
	card := connector.NewDiscovery(cfg.Agent, nil).Card()

	assert.Equal(t, "unnamed-agent", card.Name)
	assert.Equal(t, "A managed A2A agent", card.Description)
	assert.Equal(t, "http://localhost:9000", card.URL)
	assert.Equal(t, connector.AgentCardVersion, card.Version)
	assert.False(t, card.Capabilities.Streaming)
	assert.False(t, card.Capabilities.PushNotifications)
	assert.NotNil(t, card.Skills)
	assert.Empty(t, card.Skills)
	assert.Equal(t, []string{"text"}, card.DefaultInputModes)
	assert.Equal(t, []string{"text"}, card.DefaultOutputModes)
}
