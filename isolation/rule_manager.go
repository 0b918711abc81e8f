package isolation

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/KOMKZ/go-aegis/logger"
)

// RuleManager holds the active isolation rules, whole-set replacement
type RuleManager struct {
	mu    sync.RWMutex
	rules map[string][]*Rule

	log *logger.CtxZapLogger
}

func NewRuleManager() *RuleManager {
	return &RuleManager{
		rules: make(map[string][]*Rule),
		log:   logger.GetLogger("aegis"),
	}
}

// LoadRules replaces the active rule set, all-or-nothing
func (m *RuleManager) LoadRules(rules []*Rule) error {
	byResource := make(map[string][]*Rule, len(rules))
	for i, rule := range rules {
		if err := rule.Validate(); err != nil {
			return fmt.Errorf("isolation: invalid rule at index %d: %w", i, err)
		}
		byResource[rule.Resource] = append(byResource[rule.Resource], rule)
	}

	m.mu.Lock()
	m.rules = byResource
	m.mu.Unlock()

	m.log.Info("isolation rules loaded", zap.Int("count", len(rules)))
	return nil
}

// RulesFor returns the rules of the resource, nil when none
func (m *RuleManager) RulesFor(resource string) []*Rule {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rules[resource]
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

// ClearRules drops every isolation rule
func (m *RuleManager) ClearRules() {
	m.mu.Lock()
	m.rules = make(map[string][]*Rule)
	m.mu.Unlock()
}
