package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wayneeseguin/logpipe/pkg/config"
	"github.com/wayneeseguin/logpipe/pkg/formatters"
	"github.com/wayneeseguin/logpipe/pkg/logpipe"
	"github.com/wayneeseguin/logpipe/pkg/types"
)

const maxLineSize = 1024 * 1024

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("LOGPIPE")

	cmd := &cobra.Command{
		Use:           "logpipe",
		Short:         "Send stdin lines through a log pipeline",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipe(cmd, v)
		},
	}

	addConfigFlags(cmd)
	flags := cmd.Flags()
	flags.String("line-level", "INFO", "Level every input line is logged at")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address while running")
	flags.Bool("stats", false, "Print per-sink delivery stats to stderr on exit")

	v.BindPFlag("line_level", flags.Lookup("line-level"))
	v.BindPFlag("metrics_addr", flags.Lookup("metrics-addr"))
	v.BindPFlag("stats", flags.Lookup("stats"))
	v.BindEnv("line_level")
	v.BindEnv("metrics_addr")

	cmd.AddCommand(newCheckCmd())
	return cmd
}

// addConfigFlags registers the flags that map onto config.Options.
func addConfigFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringP("config", "c", "", "Config file (.yaml, .json or .toml); defaults to $LOGPIPE_CONFIG")
	flags.String("name", "", "Logger name")
	flags.String("level", "", "Logger level")
	flags.String("fmt", "", "Line template, e.g. \"{time} [{level}] {name}: {message}\"")
	flags.String("formatter", "", "Renderer: text, json or color")
	flags.Bool("console", true, "Log to stderr")
	flags.String("file", "", "Append to this file")
	flags.Bool("use-queue", false, "Deliver to non-console sinks asynchronously")
	flags.Int("queue-size", logpipe.DefaultQueueSize, "Async queue capacity per sink")
}

// optionsFromFlags turns the flags the user actually set into explicit
// options, so unset flags fall through to the file and environment.
func optionsFromFlags(cmd *cobra.Command) (config.Options, error) {
	flags := cmd.Flags()
	opts := config.Options{}
	opts.ConfigPath, _ = flags.GetString("config")

	str := func(name string) *string {
		if !flags.Changed(name) {
			return nil
		}
		s, _ := flags.GetString(name)
		return &s
	}
	opts.Name = str("name")
	opts.Format = str("fmt")
	opts.Formatter = str("formatter")
	if lvl := str("level"); lvl != nil {
		l, err := types.ParseLevel(*lvl)
		if err != nil {
			return opts, err
		}
		opts.Level = config.String(l.String())
	}
	if flags.Changed("console") {
		b, _ := flags.GetBool("console")
		opts.Console = &b
	}
	if path := str("file"); path != nil {
		opts.File = &config.FileSection{Filename: *path}
	}
	if flags.Changed("use-queue") {
		b, _ := flags.GetBool("use-queue")
		opts.UseQueue = &b
	}
	if flags.Changed("queue-size") {
		n, _ := flags.GetInt("queue-size")
		opts.QueueSize = &n
	}
	return opts, nil
}

// resolveSpec resolves every configuration source. A console sink with no
// renderer configured gets colors when stderr is a terminal.
func resolveSpec(cmd *cobra.Command, console io.Writer) (*config.Settings, logpipe.Spec, error) {
	opts, err := optionsFromFlags(cmd)
	if err != nil {
		return nil, logpipe.Spec{}, err
	}
	opts.ConsoleWriter = console

	settings, err := config.Resolve(opts)
	if err != nil {
		return nil, logpipe.Spec{}, err
	}
	spec, err := config.ToSpec(settings, opts)
	if err != nil {
		return nil, logpipe.Spec{}, err
	}

	if spec.Formatter == "" && isatty.IsTerminal(os.Stderr.Fd()) && console == nil {
		for i := range spec.Sinks {
			if spec.Sinks[i].Kind == logpipe.KindConsole && spec.Sinks[i].Formatter == "" {
				spec.Sinks[i].Formatter = formatters.TagColor
			}
		}
	}
	return settings, spec, nil
}

func runPipe(cmd *cobra.Command, v *viper.Viper) error {
	level, err := types.ParseLevel(v.GetString("line_level"))
	if err != nil {
		return errors.Wrap(err, "line-level")
	}

	var console io.Writer
	if w := cmd.ErrOrStderr(); w != os.Stderr {
		console = w
	}
	_, spec, err := resolveSpec(cmd, console)
	if err != nil {
		return err
	}
	logger, err := logpipe.Build(spec)
	if err != nil {
		return err
	}

	if addr := v.GetString("metrics_addr"); addr != "" {
		stop, err := serveMetrics(addr, logger)
		if err != nil {
			logger.Close()
			return err
		}
		defer stop()
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pipeErr := pipe(ctx, cmd.InOrStdin(), logger, level)
	closeErr := logger.Close()

	if v.GetBool("stats") {
		printStats(cmd.ErrOrStderr(), logger.Stats())
	}
	if pipeErr != nil {
		return pipeErr
	}
	return closeErr
}

// pipe logs every non-empty line of in until EOF or ctx is done.
func pipe(ctx context.Context, in io.Reader, logger *logpipe.Logger, level types.Level) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		logger.Log(level, line)
	}
	return scanner.Err()
}

func serveMetrics(addr string, logger *logpipe.Logger) (func(), error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(logger.Collector()); err != nil {
		return nil, errors.Wrap(err, "register metrics")
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "metrics listener")
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go srv.Serve(ln)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}, nil
}

func printStats(w io.Writer, stats []logpipe.SinkStats) {
	for _, st := range stats {
		fmt.Fprintf(w, "%s (%s): delivered %s, filtered %s, dropped %s, errors %s, written %s, rotations %d\n",
			st.Name, st.Kind,
			humanize.Comma(int64(st.Delivered)),
			humanize.Comma(int64(st.Filtered)),
			humanize.Comma(int64(st.QueueFull+st.ShutdownDrops)),
			humanize.Comma(int64(st.Errors)),
			humanize.Bytes(st.BytesWritten),
			st.Rotations,
		)
	}
}
