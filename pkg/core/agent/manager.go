// Package agent hosts the pipeline's LLM-driven roles: the Extractor that
// turns a raw article into zero or more draft Information Units, the Merger
// that fuses units describing the same event, the Analysts that annotate an
// article before extraction, and the Curator that selects a digest from the
// day's units.
package agent

import (
	"fmt"

	"github.com/y437li/infounit/pkg/core/llm"
)

// Config selects which provider backs each named role, with a global
// fallback when a role has no override.
type Config struct {
	ActiveProvider string            `yaml:"active_provider"`
	Roles          map[string]string `yaml:"roles"`
}

// Manager resolves a role name to its configured Gateway.
type Manager struct {
	config    Config
	gateways  map[string]*llm.Gateway
}

// NewManager builds a Manager over the given named gateways (typically
// "deepseek" and "gemini").
func NewManager(config Config, gateways map[string]*llm.Gateway) *Manager {
	return &Manager{config: config, gateways: gateways}
}

// GatewayFor resolves the gateway serving a named role: a role-specific
// override if configured, else the global active provider.
func (m *Manager) GatewayFor(role string) (*llm.Gateway, error) {
	if name, ok := m.config.Roles[role]; ok && name != "" {
		if g, ok := m.gateways[name]; ok {
			return g, nil
		}
	}
	if g, ok := m.gateways[m.config.ActiveProvider]; ok {
		return g, nil
	}
	return nil, fmt.Errorf("no gateway configured for role %q (active provider %q)", role, m.config.ActiveProvider)
}
