package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	rescache "github.com/Borislavv/go-ash-rescache"
	"github.com/Borislavv/go-ash-rescache/config"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type rootFlags struct {
	configPath string
	logLevel   string
	client     *http.Client
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{client: &http.Client{}}

	cmd := &cobra.Command{
		Use:           "rescache",
		Short:         "Fetch resources through the coalescing, score-evicting cache",
		SilenceUsage:  true,
	}
	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to a yaml config")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "zerolog level")

	cmd.AddCommand(newFetchCmd(flags), newPrefetchCmd(flags))
	return cmd
}

func (f *rootFlags) logger(w io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(f.logLevel)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("parse log level: %w", err)
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger(), nil
}

func (f *rootFlags) config() (*config.Config, error) {
	if f.configPath == "" {
		return config.Default(), nil
	}
	return config.LoadConfig(f.configPath)
}

func (f *rootFlags) resources(ctx context.Context, stderr io.Writer) (*rescache.Resources[[]byte], error) {
	logger, err := f.logger(stderr)
	if err != nil {
		return nil, err
	}
	cfg, err := f.config()
	if err != nil {
		return nil, err
	}
	return rescache.New[[]byte](ctx, cfg, logger)
}

// get reads the whole body of target; non-2xx statuses are errors.
func (f *rootFlags) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return body, nil
}

func report(w io.Writer, r *rescache.Resources[[]byte]) {
	stats := r.CacheMetrics()
	co := r.CoalescerMetrics()
	fmt.Fprintf(w, "cache: entries=%d hits=%d misses=%d evicted=%d\n", r.Len(), stats.Hits, stats.Misses, stats.Evicted)
	fmt.Fprintf(w, "coalescer: requests=%d executed=%d deduplicated=%d timeouts=%d\n",
		co.Requests, co.Started, co.Deduplicated(), co.Timeouts)

	if m := r.Metric(rescache.MetricNetworkRequest); m.Count > 0 {
		fmt.Fprintf(w, "latency: current=%.1fms avg=%.1fms trend=%s\n", m.Current, m.Average, m.Trend)
	}
	for _, a := range r.Analyze() {
		fmt.Fprintf(w, "advice[%s]: %s\n", a.Rule, a.Suggestion)
	}
}

func size(b []byte) string {
	return humanize.Bytes(uint64(len(b)))
}
