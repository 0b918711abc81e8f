package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	clientv3 "go.etcd.io/etcd/client/v3"

	aegis "github.com/KOMKZ/go-aegis"
	"github.com/KOMKZ/go-aegis/circuitbreaker"
	"github.com/KOMKZ/go-aegis/flow"
	"github.com/KOMKZ/go-aegis/hotspot"
	"github.com/KOMKZ/go-aegis/isolation"
	"github.com/KOMKZ/go-aegis/system"
)

// ruleFile is the on-disk rule document, one section per rule kind
type ruleFile struct {
	Flow           []*flow.Rule           `json:"flow"`
	CircuitBreaker []*circuitbreaker.Rule `json:"circuitBreaker"`
	System         []*system.Rule         `json:"system"`
	Isolation      []*isolation.Rule      `json:"isolation"`
	HotSpot        []*hotspot.Rule        `json:"hotSpot"`
}

func readRuleFile(path string) (*ruleFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var rf ruleFile
	if err := json.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &rf, nil
}

func (rf *ruleFile) validate() error {
	for i, r := range rf.Flow {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("flow rule %d: %w", i, err)
		}
	}
	for i, r := range rf.CircuitBreaker {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("circuit breaker rule %d: %w", i, err)
		}
	}
	for i, r := range rf.System {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("system rule %d: %w", i, err)
		}
	}
	for i, r := range rf.Isolation {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("isolation rule %d: %w", i, err)
		}
	}
	for i, r := range rf.HotSpot {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("hotspot rule %d: %w", i, err)
		}
	}
	return nil
}

func (rf *ruleFile) count() int {
	return len(rf.Flow) + len(rf.CircuitBreaker) + len(rf.System) + len(rf.Isolation) + len(rf.HotSpot)
}

func (rf *ruleFile) apply(engine *aegis.Engine) error {
	if err := engine.LoadFlowRules(rf.Flow); err != nil {
		return err
	}
	if err := engine.LoadCircuitBreakerRules(rf.CircuitBreaker); err != nil {
		return err
	}
	if err := engine.LoadSystemRules(rf.System); err != nil {
		return err
	}
	if err := engine.LoadIsolationRules(rf.Isolation); err != nil {
		return err
	}
	return engine.LoadHotSpotRules(rf.HotSpot)
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <rules.json>",
		Short: "Validate a rule document without loading it anywhere",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rf, err := readRuleFile(args[0])
			if err != nil {
				return err
			}
			if err := rf.validate(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rules, all valid\n", args[0], rf.count())
			return nil
		},
	}
}

func newPushCmd() *cobra.Command {
	var (
		endpoints []string
		key       string
		section   string
	)
	cmd := &cobra.Command{
		Use:   "push <rules.json>",
		Short: "Publish one section of a rule document to etcd",
		Long: "Validates the document, then writes the chosen section as a JSON\n" +
			"array to the etcd key watched by the running engines.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rf, err := readRuleFile(args[0])
			if err != nil {
				return err
			}
			if err := rf.validate(); err != nil {
				return err
			}

			var payload interface{}
			switch section {
			case "flow":
				payload = rf.Flow
			case "circuitbreaker":
				payload = rf.CircuitBreaker
			case "system":
				payload = rf.System
			case "isolation":
				payload = rf.Isolation
			case "hotspot":
				payload = rf.HotSpot
			default:
				return fmt.Errorf("unknown section %q", section)
			}
			value, err := json.Marshal(payload)
			if err != nil {
				return err
			}

			client, err := clientv3.New(clientv3.Config{
				Endpoints:   endpoints,
				DialTimeout: 5 * time.Second,
			})
			if err != nil {
				return fmt.Errorf("connect etcd: %w", err)
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, err := client.Put(ctx, key, string(value)); err != nil {
				return fmt.Errorf("etcd put: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "pushed %s rules to %s\n", section, key)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&endpoints, "endpoints", []string{"127.0.0.1:2379"}, "etcd endpoints")
	cmd.Flags().StringVar(&key, "key", "/aegis/rules/flow", "etcd key to write")
	cmd.Flags().StringVar(&section, "section", "flow", "rule section to push: flow, circuitbreaker, system, isolation, hotspot")
	return cmd
}
