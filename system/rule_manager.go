package system

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/KOMKZ/go-aegis/logger"
)

// RuleManager holds the active system rules keyed by metric type. When
// several rules share a metric type the strictest trigger applies.
type RuleManager struct {
	mu    sync.RWMutex
	rules map[MetricType][]*Rule

	log *logger.CtxZapLogger
}

func NewRuleManager() *RuleManager {
	return &RuleManager{
		rules: make(map[MetricType][]*Rule),
		log:   logger.GetLogger("aegis"),
	}
}

// LoadRules replaces the active rule set, all-or-nothing
func (m *RuleManager) LoadRules(rules []*Rule) error {
	byType := make(map[MetricType][]*Rule, len(rules))
	for i, rule := range rules {
		if err := rule.Validate(); err != nil {
			return fmt.Errorf("system: invalid rule at index %d: %w", i, err)
		}
		byType[rule.MetricType] = append(byType[rule.MetricType], rule)
	}

	m.mu.Lock()
	m.rules = byType
	m.mu.Unlock()

	m.log.Info("system rules loaded", zap.Int("count", len(rules)))
	return nil
}

// RulesFor returns the rules watching the metric type, nil when none
func (m *RuleManager) RulesFor(metricType MetricType) []*Rule {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rules[metricType]
}

// Rules returns a copy of the active rule set
func (m *RuleManager) Rules() []*Rule {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Rule, 0)
	for _, rs := range m.rules {
		out = append(out, rs...)
	}
	return out
}

// HasRules reports whether any system rule is active
func (m *RuleManager) HasRules() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rules) > 0
}

// ClearRules drops every system rule
func (m *RuleManager) ClearRules() {
	m.mu.Lock()
	m.rules = make(map[MetricType][]*Rule)
	m.mu.Unlock()
}
