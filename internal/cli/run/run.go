// Package run implements a worker invocation recorded by the collector.
package run

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/coral-mesh/coral-collect/internal/cli/helpers"
	"github.com/coral-mesh/coral-collect/pkg/collector"
	"github.com/coral-mesh/coral-collect/pkg/exithook"
	"github.com/coral-mesh/coral-collect/pkg/hostenv"
)

// Options controls one worker run.
type Options struct {
	Millis  int
	Name    string
	Profile bool
	Fail    bool
	Panic   bool
}

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	var opts Options

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a demo worker job recorded by the collector",
		Long: `Run a worker job as one collector session.

The job burns CPU inside a custom timer and then stops the session. The
operation name defaults to the program name. A failed, panicking or
interrupted job is discarded.

Examples:
  coral-collect run --ms 200
  coral-collect run --ms 500 --name nightly-import --profile
  coral-collect run --fail`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Millis < 0 {
				return fmt.Errorf("--ms must not be negative")
			}

			env, err := helpers.LoadEnv(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("profile") {
				env.Config.Sampling.Profile = opts.Profile
			}

			backend, release, err := env.OpenBackend()
			if err != nil {
				return err
			}
			defer release()

			ctx, stop := exithook.Notify(cmd.Context())
			defer stop()

			w := &worker{
				backend:  backend,
				decision: env.Decision(),
				profiler: env.NewProfiler(),
				process:  hostenv.NewProcess(),
				hooks:    exithook.Default,
				guard:    collector.ProcessHookGuard,
				logger:   env.Logger,
			}
			return w.run(ctx, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Millis, "ms", 100, "Milliseconds of CPU to burn")
	cmd.Flags().StringVar(&opts.Name, "name", "", "Operation name (default: program name)")
	cmd.Flags().BoolVar(&opts.Profile, "profile", false, "Profile the job (overrides sampling.profile)")
	cmd.Flags().BoolVar(&opts.Fail, "fail", false, "Record a user error before stopping")
	cmd.Flags().BoolVar(&opts.Panic, "panic", false, "Panic inside the job")

	return cmd
}

type worker struct {
	backend  collector.Backend
	decision collector.StartDecision
	profiler collector.Profiler
	process  *hostenv.Process
	hooks    *exithook.Registry
	guard    *collector.HookGuard
	logger   zerolog.Logger
}

// run executes one job. The exit hooks run when it returns or panics.
// A canceled ctx interrupts the job and discards the session.
func (w *worker) run(ctx context.Context, opts Options) error {
	defer w.hooks.Run()
	w.hooks.ObservePanic(w.process.RecordPanic)

	c := collector.New(w.backend, w.decision,
		collector.WithProfiler(w.profiler),
		collector.WithInvocationContext(w.process),
		collector.WithExitRegistrar(w.hooks),
		collector.WithHookGuard(w.guard),
		collector.WithLogger(w.logger),
	)

	c.Start()
	timer := c.StartCustomTimer("job", "burn")
	helpers.Burn(ctx, time.Duration(opts.Millis)*time.Millisecond)
	c.StopCustomTimer(timer)

	if ctx.Err() != nil {
		cause := context.Cause(ctx)
		c.LogUserFatal(fmt.Sprintf("job interrupted: %v", cause), "", 0)
		w.logger.Warn().Err(cause).Msg("Job interrupted")
		return fmt.Errorf("job interrupted: %w", cause)
	}

	if opts.Panic {
		panic("demo job panic")
	}
	if opts.Fail {
		c.LogUserFatal("demo job failed", "", 0)
	}

	c.Stop(opts.Name)

	w.logger.Info().
		Str("operation", c.OperationName()).
		Bool("sampled", c.IsSampled()).
		Bool("discarded", c.Fatal() != nil).
		Msg("Job finished")

	if opts.Fail {
		return fmt.Errorf("job failed")
	}
	return nil
}
