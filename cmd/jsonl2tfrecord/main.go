// Package main is the entry point for the jsonl2tfrecord CLI tool.
//
// jsonl2tfrecord converts every JSON Lines object under an input prefix into
// a TFRecord object of tf.train.Example records under an output prefix.
// Objects whose output already exists are skipped, so an interrupted run can
// simply be restarted. Configuration is read from a YAML file, CLI flags and
// environment variables, in increasing order of precedence for flags.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/maruel/jsonl2tfrecord/internal/convert"
	"github.com/maruel/jsonl2tfrecord/internal/objstore"
)

// exitInterrupted is the exit status of a run stopped by SIGINT or SIGTERM.
const exitInterrupted = 130

func main() {
	if err := mainImpl(); err != nil {
		os.Exit(report(os.Stderr, err))
	}
}

// report prints err and returns the process exit status.
func report(w io.Writer, err error) int {
	if errors.Is(err, context.Canceled) {
		_, _ = fmt.Fprintf(w, "jsonl2tfrecord: interrupted: %v\n", err)
		return exitInterrupted
	}
	_, _ = fmt.Fprintf(w, "jsonl2tfrecord: %v\n", err)
	return 1
}

func mainImpl() error {
	version := flag.Bool("version", false, "Print version and exit")
	configSchema := flag.Bool("config-schema", false, "Print the JSON Schema of the config file and exit")
	configPath := flag.String("config", "", "YAML config file (optional)")
	input := flag.String("input", "", "Input URI prefix, e.g. gs://bucket/jsonl-data (or set JSONL2TFRECORD_INPUT)")
	output := flag.String("output", "", "Output URI prefix, e.g. gs://bucket/tfrecord-data/ (or set JSONL2TFRECORD_OUTPUT)")
	compression := flag.String("compression", "none", "TFRecord compression (none, gzip, zlib)")
	parallel := flag.Int("parallel", 1, "Number of objects converted concurrently")
	qps := flag.Float64("qps", 0, "Maximum object store requests per second (0=unlimited)")
	localRoot := flag.String("local-root", ".", "Root directory served as file://<dir>/...")
	dryRun := flag.Bool("dry-run", false, "List inputs and derive outputs without converting")
	quiet := flag.Bool("quiet", false, "Do not print per-record progress")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()
	if len(flag.Args()) > 0 {
		return fmt.Errorf("unknown arguments: %v", flag.Args())
	}

	if *version {
		printVersion()
		return nil
	}
	if *configSchema {
		b, err := convert.ConfigSchema()
		if err != nil {
			return err
		}
		_, err = fmt.Printf("%s\n", b)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	ll := &slog.LevelVar{}
	slog.SetDefault(slog.New(newLogHandler(ll)))
	switch *logLevel {
	case "debug":
		ll.Set(slog.LevelDebug)
	case "info":
	case "warn":
		ll.Set(slog.LevelWarn)
	case "error":
		ll.Set(slog.LevelError)
	default:
		return fmt.Errorf("unknown log level: %q", *logLevel)
	}

	cfg := convert.DefaultConfig()
	if *configPath != "" {
		c, err := convert.LoadConfig(*configPath)
		if err != nil {
			return err
		}
		cfg = *c
	}

	// Override config file values only with flags explicitly set.
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	if set["input"] {
		cfg.InputURI = *input
	} else if cfg.InputURI == "" {
		cfg.InputURI = os.Getenv("JSONL2TFRECORD_INPUT")
	}
	if set["output"] {
		cfg.OutputPrefix = *output
	} else if cfg.OutputPrefix == "" {
		cfg.OutputPrefix = os.Getenv("JSONL2TFRECORD_OUTPUT")
	}
	if set["compression"] {
		cfg.Compression = *compression
	}
	if set["parallel"] {
		cfg.Parallelism = *parallel
	}
	if set["qps"] {
		cfg.QPS = *qps
	}
	if set["dry-run"] {
		cfg.DryRun = *dryRun
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	stores, closeStores, err := newStores(ctx, &cfg, *localRoot)
	if err != nil {
		return err
	}
	defer closeStores()

	progress := &convert.CLIProgress{Out: os.Stdout, Err: os.Stderr}
	var reporter convert.ProgressReporter = progress
	if *quiet {
		reporter = quietProgress{progress}
	}
	d := &convert.Driver{Config: cfg, Stores: stores, Progress: reporter}
	_, err = d.Run(ctx)
	return err
}

// newStores registers the file backend, and the gs backend when the
// configuration refers to it. The GCS client is only created when needed
// since it looks up default credentials.
func newStores(ctx context.Context, cfg *convert.Config, localRoot string) (*objstore.Mux, func(), error) {
	mux := objstore.NewMux()
	mux.Handle("file", objstore.NewLocalStore(localRoot))
	needGCS := false
	for _, uri := range []string{cfg.InputURI, cfg.OutputPrefix} {
		scheme, _, _, err := objstore.SplitURI(uri)
		if err != nil {
			return nil, nil, err
		}
		needGCS = needGCS || scheme == "gs"
	}
	if !needGCS {
		return mux, func() {}, nil
	}
	gcs, err := objstore.NewGCSStore(ctx, cfg.PageSize)
	if err != nil {
		return nil, nil, err
	}
	mux.Handle("gs", gcs)
	return mux, func() {
		if err := gcs.Close(); err != nil {
			slog.Warn("Failed to close GCS client", "err", err)
		}
	}, nil
}

// quietProgress drops per-record markers.
type quietProgress struct {
	*convert.CLIProgress
}

func (quietProgress) OnRecord(string, int) {}

func newLogHandler(ll *slog.LevelVar) slog.Handler {
	// Skip timestamps when running under systemd (it adds its own).
	underSystemd := os.Getenv("JOURNAL_STREAM") != ""
	return tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000", // Like time.TimeOnly plus milliseconds.
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if underSystemd && a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			skip := false
			switch t := a.Value.Any().(type) {
			case string:
				skip = t == ""
			case bool:
				skip = !t
			case int64:
				skip = t == 0
			case float64:
				skip = t == 0
			case time.Duration:
				skip = t == 0
			case nil:
				skip = true
			}
			if skip {
				return slog.Attr{}
			}
			return a
		},
	})
}

func printVersion() {
	version, goVersion, revision, dirty := getBuildInfo()
	fmt.Printf("jsonl2tfrecord %s\n", version)
	fmt.Printf("  Go version: %s\n", goVersion)
	fmt.Printf("  Revision:   %s\n", revision)
	if dirty {
		fmt.Printf("  Modified:   true\n")
	}
}

func getBuildInfo() (version, goVersion, revision string, dirty bool) {
	version = "unknown"
	goVersion = "unknown"
	revision = "unknown"
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	version = info.Main.Version
	if version == "" || version == "(devel)" {
		version = "dev"
	}
	goVersion = info.GoVersion
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	return
}
