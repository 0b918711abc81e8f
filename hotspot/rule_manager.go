package hotspot

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/KOMKZ/go-aegis/logger"
)

// RuleManager holds the active hotspot rules and controllers, whole-set
// replacement like the other rule kinds. Per-value counters belong to the
// controller and restart on reload.
type RuleManager struct {
	mu          sync.RWMutex
	rules       []*Rule
	controllers map[string][]TrafficShapingController

	log *logger.CtxZapLogger
}

func NewRuleManager() *RuleManager {
	return &RuleManager{
		controllers: make(map[string][]TrafficShapingController),
		log:         logger.GetLogger("aegis"),
	}
}

// LoadRules replaces the active rule set, all-or-nothing
func (m *RuleManager) LoadRules(rules []*Rule) error {
	controllers := make(map[string][]TrafficShapingController, len(rules))
	for i, rule := range rules {
		c, err := NewTrafficShapingController(rule)
		if err != nil {
			return fmt.Errorf("hotspot: invalid rule at index %d: %w", i, err)
		}
		controllers[rule.Resource] = append(controllers[rule.Resource], c)
	}

	m.mu.Lock()
	m.rules = rules
	m.controllers = controllers
	m.mu.Unlock()

	m.log.Info("hotspot rules loaded", zap.Int("count", len(rules)))
	return nil
}

// ControllersFor returns the controllers of the resource, nil when none
func (m *RuleManager) ControllersFor(resource string) []TrafficShapingController {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.controllers[resource]
}

// Rules returns a copy of the active rule set
func (m *RuleManager) Rules() []*Rule {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Rule, len(m.rules))
	copy(out, m.rules)
	return out
}

// ClearRules drops every hotspot rule
func (m *RuleManager) ClearRules() {
	m.mu.Lock()
	m.rules = nil
	m.controllers = make(map[string][]TrafficShapingController)
	m.mu.Unlock()
}
