package datasource

import (
	"encoding/json"
	"fmt"

	"github.com/KOMKZ/go-aegis/circuitbreaker"
	"github.com/KOMKZ/go-aegis/flow"
	"github.com/KOMKZ/go-aegis/hotspot"
	"github.com/KOMKZ/go-aegis/isolation"
	"github.com/KOMKZ/go-aegis/system"
)

// NewFlowRulesHandler parses a JSON array of flow rules into the manager.
// An empty document clears the rule set.
func NewFlowRulesHandler(manager *flow.RuleManager) PropertyHandler {
	return PropertyHandlerFunc(func(src []byte) error {
		if len(src) == 0 {
			manager.ClearRules()
			return nil
		}
		var rules []*flow.Rule
		if err := json.Unmarshal(src, &rules); err != nil {
			return fmt.Errorf("datasource: parse flow rules: %w", err)
		}
		return manager.LoadRules(rules)
	})
}

// NewCircuitBreakerRulesHandler parses a JSON array of breaker rules
func NewCircuitBreakerRulesHandler(manager *circuitbreaker.RuleManager) PropertyHandler {
	return PropertyHandlerFunc(func(src []byte) error {
		if len(src) == 0 {
			manager.ClearRules()
			return nil
		}
		var rules []*circuitbreaker.Rule
		if err := json.Unmarshal(src, &rules); err != nil {
			return fmt.Errorf("datasource: parse circuit breaker rules: %w", err)
		}
		return manager.LoadRules(rules)
	})
}

// NewSystemRulesHandler parses a JSON array of system rules
func NewSystemRulesHandler(manager *system.RuleManager) PropertyHandler {
	return PropertyHandlerFunc(func(src []byte) error {
		if len(src) == 0 {
			manager.ClearRules()
			return nil
		}
		var rules []*system.Rule
		if err := json.Unmarshal(src, &rules); err != nil {
			return fmt.Errorf("datasource: parse system rules: %w", err)
		}
		return manager.LoadRules(rules)
	})
}

// NewIsolationRulesHandler parses a JSON array of isolation rules
func NewIsolationRulesHandler(manager *isolation.RuleManager) PropertyHandler {
	return PropertyHandlerFunc(func(src []byte) error {
		if len(src) == 0 {
			manager.ClearRules()
			return nil
		}
		var rules []*isolation.Rule
		if err := json.Unmarshal(src, &rules); err != nil {
			return fmt.Errorf("datasource: parse isolation rules: %w", err)
		}
		return manager.LoadRules(rules)
	})
}

// NewHotSpotRulesHandler parses a JSON array of hotspot rules
func NewHotSpotRulesHandler(manager *hotspot.RuleManager) PropertyHandler {
	return PropertyHandlerFunc(func(src []byte) error {
		if len(src) == 0 {
			manager.ClearRules()
			return nil
		}
		var rules []*hotspot.Rule
		if err := json.Unmarshal(src, &rules); err != nil {
			return fmt.Errorf("datasource: parse hotspot rules: %w", err)
		}
		return manager.LoadRules(rules)
	})
}
