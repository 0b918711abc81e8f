package main

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	aegis "github.com/KOMKZ/go-aegis"
	"github.com/KOMKZ/go-aegis/base"
	"github.com/KOMKZ/go-aegis/config"
)

func newSimulateCmd() *cobra.Command {
	var (
		rulesPath string
		resource  string
		workers   int
		duration  time.Duration
		errRate   float64
		argPool   int
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run synthetic traffic against an in-process engine",
		Long: "Builds an engine, loads the rule document and hammers one\n" +
			"resource from concurrent workers, printing per-second snapshots.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg config.EngineConfig
			if configPath != "" {
				loaded, err := config.LoadEngineConfig(configPath)
				if err != nil {
					return err
				}
				cfg = *loaded
			} else {
				cfg = config.DefaultEngineConfig()
			}

			engine, err := aegis.NewEngine(cfg)
			if err != nil {
				return err
			}
			defer engine.Close()

			if rulesPath != "" {
				rf, err := readRuleFile(rulesPath)
				if err != nil {
					return err
				}
				if err := rf.apply(engine); err != nil {
					return err
				}
			}

			var passed, blocked atomic.Int64
			stop := make(chan struct{})
			var wg sync.WaitGroup

			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func(seed int64) {
					defer wg.Done()
					rng := rand.New(rand.NewSource(seed))
					for {
						select {
						case <-stop:
							return
						default:
						}

						entry, blockErr := engine.Entry(resource,
							aegis.WithTrafficType(base.Inbound),
							aegis.WithArgs(fmt.Sprintf("user-%d", rng.Intn(argPool))),
						)
						if blockErr != nil {
							blocked.Add(1)
							time.Sleep(time.Millisecond)
							continue
						}
						passed.Add(1)

						// a synthetic backend call
						time.Sleep(time.Duration(1+rng.Intn(5)) * time.Millisecond)
						if rng.Float64() < errRate {
							entry.Exit(base.WithError(fmt.Errorf("synthetic failure")))
						} else {
							entry.Exit()
						}
					}
				}(int64(i))
			}

			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()
			deadline := time.After(duration)

			out := cmd.OutOrStdout()
			for done := false; !done; {
				select {
				case <-ticker.C:
					snap := engine.Snapshot(resource)
					w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
					fmt.Fprintf(w, "pass_qps\t%.1f\n", snap.PassQPS)
					fmt.Fprintf(w, "block_qps\t%.1f\n", snap.BlockQPS)
					fmt.Fprintf(w, "concurrency\t%d\n", snap.Concurrency)
					fmt.Fprintf(w, "avg_rt_ms\t%.2f\n", snap.AvgRT)
					fmt.Fprintf(w, "total_pass\t%d\n", snap.TotalPass)
					fmt.Fprintf(w, "total_block\t%d\n", snap.TotalBlock)
					fmt.Fprintf(w, "total_error\t%d\n", snap.TotalError)
					w.Flush()
					fmt.Fprintln(out)
				case <-deadline:
					done = true
				}
			}

			close(stop)
			wg.Wait()

			fmt.Fprintf(out, "finished: %d passed, %d blocked\n", passed.Load(), blocked.Load())
			return nil
		},
	}
	cmd.Flags().StringVar(&rulesPath, "rules", "", "rule document to load before the run")
	cmd.Flags().StringVar(&resource, "resource", "simulated", "resource name to exercise")
	cmd.Flags().IntVar(&workers, "workers", 8, "concurrent workers")
	cmd.Flags().DurationVar(&duration, "duration", 10*time.Second, "how long to run")
	cmd.Flags().Float64Var(&errRate, "error-rate", 0, "fraction of calls reporting an error")
	cmd.Flags().IntVar(&argPool, "arg-pool", 10, "distinct hotspot argument values")
	return cmd
}
