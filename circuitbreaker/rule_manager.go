package circuitbreaker

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/KOMKZ/go-aegis/logger"
)

// RuleManager holds the active breakers. LoadRules replaces the whole set
// atomically; a breaker whose rule kept the same window geometry keeps its
// accumulated statistics across the reload.
type RuleManager struct {
	mu        sync.RWMutex
	rules     []*Rule
	breakers  map[string][]CircuitBreaker
	listeners []StateChangeListener

	log *logger.CtxZapLogger
}

func NewRuleManager() *RuleManager {
	return &RuleManager{
		breakers: make(map[string][]CircuitBreaker),
		log:      logger.GetLogger("aegis"),
	}
}

// LoadRules replaces the active rule set, all-or-nothing
func (m *RuleManager) LoadRules(rules []*Rule) error {
	for i, rule := range rules {
		if err := rule.Validate(); err != nil {
			return fmt.Errorf("circuitbreaker: invalid rule at index %d: %w", i, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	breakers := make(map[string][]CircuitBreaker, len(rules))
	for _, rule := range rules {
		b, err := newBreaker(rule, m, m.findReusable(rule))
		if err != nil {
			return fmt.Errorf("circuitbreaker: building breaker for %q: %w", rule.Resource, err)
		}
		breakers[rule.Resource] = append(breakers[rule.Resource], b)
	}

	m.rules = rules
	m.breakers = breakers
	m.log.Info("circuit breaker rules loaded", zap.Int("count", len(rules)))
	return nil
}

// findReusable returns an old breaker whose window the new rule may keep.
// Callers hold m.mu.
func (m *RuleManager) findReusable(rule *Rule) CircuitBreaker {
	for _, old := range m.breakers[rule.Resource] {
		if rule.isStatReusable(old.Rule()) {
			return old
		}
	}
	return nil
}

// BreakersFor returns the breakers guarding the resource, nil when none
func (m *RuleManager) BreakersFor(resource string) []CircuitBreaker {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.breakers[resource]
}

// Rules returns a copy of the active rule set
func (m *RuleManager) Rules() []*Rule {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Rule, len(m.rules))
	copy(out, m.rules)
	return out
}

// ClearRules drops every breaker
func (m *RuleManager) ClearRules() {
	m.mu.Lock()
	m.rules = nil
	m.breakers = make(map[string][]CircuitBreaker)
	m.mu.Unlock()
}

// RegisterStateChangeListener adds a transition observer. Listeners apply
// to existing and future breakers alike.
func (m *RuleManager) RegisterStateChangeListener(l StateChangeListener) {
	if l == nil {
		return
	}
	m.mu.Lock()
	m.listeners = append(m.listeners, l)
	m.mu.Unlock()
}

func (m *RuleManager) stateListeners() []StateChangeListener {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listeners
}
