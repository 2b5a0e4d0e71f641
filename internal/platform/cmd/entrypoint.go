// Package cmd is the startup plumbing of the avalon binary: configuration
// from AVALON_ variables and flags, and a traced run loop.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	otelcodes "go.opentelemetry.io/otel/codes"

	"github.com/louisbranch/avalon/internal/platform/config"
	avalonotel "github.com/louisbranch/avalon/internal/platform/otel"
)

// ServiceAvalon names the binary in traces and log prefixes.
const ServiceAvalon = "avalon"

const defaultFlushTimeout = 5 * time.Second

// FlagBinder registers flags that write into cfg. Flag defaults should read
// from cfg so environment values stay in effect when a flag is absent.
type FlagBinder[T any] func(fs *flag.FlagSet, cfg *T)

// ParseConfig fills a T from AVALON_ variables, lets bind register flags over
// those values, then parses args.
func ParseConfig[T any](fs *flag.FlagSet, args []string, bind FlagBinder[T]) (T, error) {
	var cfg T
	if fs == nil {
		return cfg, errors.New("flag set is required")
	}
	if err := config.ParsePrefixedEnv(&cfg, config.EnvPrefix); err != nil {
		return cfg, err
	}
	if bind != nil {
		bind(fs, &cfg)
	}
	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		var zero T
		return zero, err
	}
	return cfg, nil
}

// RunOption tunes Run.
type RunOption func(*runOptions)

type runOptions struct {
	flushTimeout time.Duration
}

// WithFlushTimeout bounds how long Run waits for pending spans on exit.
func WithFlushTimeout(d time.Duration) RunOption {
	return func(o *runOptions) {
		o.flushTimeout = d
	}
}

// Run sets up tracing for service and calls fn inside a root span named
// "<service>.run". Pending spans are flushed before Run returns.
func Run(ctx context.Context, service string, fn func(context.Context) error, opts ...RunOption) error {
	service = strings.TrimSpace(service)
	if service == "" {
		return fmt.Errorf("service name is required")
	}
	if fn == nil {
		return fmt.Errorf("run function is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	o := runOptions{flushTimeout: defaultFlushTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.flushTimeout <= 0 {
		o.flushTimeout = defaultFlushTimeout
	}

	shutdown, err := avalonotel.Setup(ctx, service)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), o.flushTimeout)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			log.Printf("%s trace flush: %v", service, err)
		}
	}()

	ctx, span := otel.Tracer(service).Start(ctx, service+".run")
	defer span.End()
	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return err
	}
	return nil
}
