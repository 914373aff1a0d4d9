package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	rescache "github.com/Borislavv/go-ash-rescache"
	"github.com/Borislavv/go-ash-rescache/model"
	"github.com/spf13/cobra"
)

func newFetchCmd(flags *rootFlags) *cobra.Command {
	var (
		priority    string
		concurrency int
		repeat      int
	)

	cmd := &cobra.Command{
		Use:   "fetch URL...",
		Short: "Fetch urls; identical concurrent requests share one round trip",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prio, err := model.ParsePriority(priority)
			if err != nil {
				return err
			}
			if concurrency < 1 {
				concurrency = 1
			}

			r, err := flags.resources(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer r.Close()

			out := cmd.OutOrStdout()
			for i := 0; i < max(repeat, 1); i++ {
				for _, target := range args {
					var (
						wg   sync.WaitGroup
						mu   sync.Mutex
						body []byte
						ferr error
					)
					r.StartProfile("fetch")
					for c := 0; c < concurrency; c++ {
						wg.Add(1)
						go func() {
							defer wg.Done()
							b, err := r.Fetch(cmd.Context(), target, nil, prio, func(ctx context.Context) ([]byte, error) {
								return flags.get(ctx, target)
							})
							mu.Lock()
							body, ferr = b, err
							mu.Unlock()
						}()
					}
					wg.Wait()
					elapsed := r.EndProfile("fetch")

					if ferr != nil {
						fmt.Fprintf(out, "%s: error: %v\n", target, ferr)
						continue
					}
					fmt.Fprintf(out, "%s: %s in %s\n", target, size(body), elapsed.Round(time.Microsecond))
				}
			}

			report(out, r)
			return nil
		},
	}

	cmd.Flags().StringVarP(&priority, "priority", "p", string(rescache.PriorityLow), "request priority: low|high")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "n", 1, "concurrent identical requests per url")
	cmd.Flags().IntVarP(&repeat, "repeat", "r", 1, "fetch every url this many times")
	return cmd
}

func newPrefetchCmd(flags *rootFlags) *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "prefetch URL...",
		Short: "Warm the cache with urls in background and report what was loaded",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := flags.resources(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer r.Close()

			r.Prefetch(args, flags.get)

			ctx, cancel := context.WithTimeout(cmd.Context(), wait)
			defer cancel()
			ticker := time.NewTicker(10 * time.Millisecond)
			defer ticker.Stop()

		loop:
			for {
				s := r.CoalescerMetrics()
				if int(s.Prefetched+s.PrefetchFailed) >= len(args) {
					break
				}
				select {
				case <-ctx.Done():
					break loop
				case <-ticker.C:
				}
			}

			out := cmd.OutOrStdout()
			s := r.CoalescerMetrics()
			fmt.Fprintf(out, "prefetched %d of %d (failed %d)\n", s.Prefetched, len(args), s.PrefetchFailed)
			report(out, r)
			return nil
		},
	}

	cmd.Flags().DurationVarP(&wait, "wait", "w", 15*time.Second, "how long to wait for prefetches to settle")
	return cmd
}
