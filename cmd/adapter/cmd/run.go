package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/psantana5/adapter-skeleton/internal/config"
	"github.com/psantana5/adapter-skeleton/internal/diag"
	"github.com/psantana5/adapter-skeleton/internal/fault"
	"github.com/psantana5/adapter-skeleton/internal/health"
	"github.com/psantana5/adapter-skeleton/internal/invoke"
	"github.com/psantana5/adapter-skeleton/internal/metrics"
	"github.com/psantana5/adapter-skeleton/internal/registry"
	"github.com/psantana5/adapter-skeleton/internal/shutdown"
	"github.com/psantana5/adapter-skeleton/internal/sink"
	"github.com/psantana5/adapter-skeleton/internal/tasks"
	"github.com/psantana5/adapter-skeleton/pkg/logging"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the configured task chain once",
	Long: `Builds the diagnostic sinks, installs the fault interceptor and invokes
every configured task in order. The process exits 0 when all tasks complete
and 1 after any fault.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runAdapter(viper.GetViper(), configErr, runOptions{
			stdout:  os.Stdout,
			stderr:  os.Stderr,
			exit:    os.Exit,
			signals: true,
		})
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// runOptions holds the process boundaries of a run.
type runOptions struct {
	stdout  io.Writer
	stderr  io.Writer
	exit    func(code int)
	signals bool
	// container overrides the task resolver; nil uses the built-in tasks.
	container *registry.Container
}

// runAdapter executes one adapter run. Every path ends in opts.exit,
// called by the interceptor.
func runAdapter(v *viper.Viper, readErr error, opts runOptions) {
	m := metrics.New()
	in := fault.New(fault.Options{
		ReserveSize: fault.DefaultReserveSize,
		Threshold:   fault.SeverityAll,
		Raw:         opts.stderr,
		Exit:        opts.exit,
		Signals:     opts.signals,
		Metrics:     m,
	})
	in.Register()
	defer in.Recover()

	if readErr != nil {
		in.Fatal(fault.Condition{Class: fault.ClassParse, Message: readErr.Error()})
		return
	}

	cfg, err := config.Load(v)
	if err != nil {
		in.Catch(err)
		return
	}
	in.SetContext(cfg.Context())
	in.Reserve(cfg.Fault.MemoryReserve)
	threshold, _ := cfg.Threshold() // validated by Load
	in.SetThreshold(threshold)

	runID := uuid.NewString()
	custom, err := sink.NewBuilder(sink.Builtin(), sink.Env{
		Context: cfg.Context(),
		RunID:   runID,
		Stdout:  opts.stdout,
		Stderr:  opts.stderr,
	}).Build(cfg.Handlers)
	if err != nil {
		in.Catch(err)
		return
	}

	log := diag.New(cfg.Context(), sink.NewConsole(opts.stdout, logging.DEBUG), custom,
		diag.WithDebug(cfg.Debug),
		diag.WithMetrics(m),
	)
	in.SetLog(log)

	// Hooks run LIFO: batch sinks flush before metrics are exported.
	exits := shutdown.New(diag.DefaultSinkTimeout, func(err error) {
		log.Local(logging.WARN, err.Error())
	})
	exits.Register("metrics push", func(ctx context.Context) error {
		return m.Push(ctx, cfg.Metrics.Pushgateway, cfg.Name, map[string]string{
			"company": cfg.Company,
			"run_id":  runID,
		})
	})
	exits.Register("metrics textfile", func(context.Context) error {
		return m.WriteTextfile(cfg.Metrics.Textfile)
	})
	exits.Register("diagnostic log", shutdown.CloseResource(log, "diagnostic log"))
	in.OnExit(exits.Shutdown)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reporter, err := health.FromConfig(cfg.HealthCheck, func(message string) {
		log.Local(logging.WARN, message)
	}, health.WithMetrics(m))
	if err != nil {
		in.Catch(err)
		return
	}
	in.OnFault(func() {
		m.RunFinished(false)
		reporter.Failure(context.Background())
	})

	if limit := cfg.Fault.MemoryLimit; limit > 0 {
		if available, err := fault.HostAvailable(); err == nil && limit > available {
			warning := fmt.Errorf("fault.memory_limit %d exceeds available host memory %d", limit, available)
			if escalated := in.HandleError(fault.SeverityWarning, warning); escalated != nil {
				log.Warn(escalated.Error())
			}
		}
		go fault.NewMemoryGuard(in, limit, cfg.Fault.MemoryPoll).Run(ctx)
	}

	container := opts.container
	if container == nil {
		container = registry.New()
		tasks.Register(container)
	}

	if _, err := invoke.NewChain(container, log, invoke.WithMetrics(m)).Run(ctx, cfg.Tasks); err != nil {
		in.Catch(err)
		return
	}

	m.RunFinished(true)
	reporter.Success(ctx)
	in.Shutdown()
}
