package navcli

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"codenav/internal/config"
	"codenav/internal/index/gtags"
	"codenav/internal/index/registry"
)

type Options struct {
	ConfigPath    string
	File          string
	LogLevel      string
	Storage       string
	Jsonl         bool
	VimLines      bool
	NoColor       bool
	Explain       string
	ListDatabases bool

	cfg      *config.Config
	testMode bool
}

func (o *Options) Prepare() error {
	o.normalize()

	switch o.Explain {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid --explain %q (expected: text|json)", o.Explain)
	}

	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return err
	}
	if o.Storage != "" {
		cfg.Storage = o.Storage
	}
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	o.cfg = cfg
	return nil
}

func (o *Options) normalize() {
	o.File = strings.TrimSpace(o.File)
	o.Storage = strings.ToLower(strings.TrimSpace(o.Storage))
	o.Explain = strings.ToLower(strings.TrimSpace(o.Explain))
}

// Config is the loaded configuration; valid after Prepare.
func (o *Options) Config() *config.Config {
	if o.cfg == nil {
		return config.Default()
	}
	return o.cfg
}

// openStore opens the registry and an IndexStore for one command. The
// returned close func releases both.
func (o *Options) openStore(cmd *cobra.Command) (*gtags.Store, func(), error) {
	cfg := o.Config()
	log := o.logger(cmd)

	reg, err := registry.Open(cfg.Registry.Backend, cfg.Registry.Path)
	if err != nil {
		return nil, nil, err
	}
	sopts, err := gtags.OptionsFromConfig(cfg)
	if err != nil {
		_ = reg.Close()
		return nil, nil, err
	}
	sopts.Registry = reg
	sopts.Logger = log

	st := gtags.New(sopts)
	return st, func() {
		_ = st.Close()
		_ = reg.Close()
	}, nil
}

func (o *Options) logger(cmd *cobra.Command) *slog.Logger {
	return config.NewLogger(o.Config().LogLevel, cmd.ErrOrStderr())
}

type optionsKey struct{}

func optionsFrom(cmd *cobra.Command) *Options {
	if cmd == nil {
		return nil
	}
	root := cmd.Root()
	if root == nil {
		root = cmd
	}
	ctx := root.Context()
	if ctx == nil {
		return nil
	}
	opts, _ := ctx.Value(optionsKey{}).(*Options)
	return opts
}

func isTestMode(cmd *cobra.Command) bool {
	opts := optionsFrom(cmd)
	return opts != nil && opts.testMode
}

func bindFlags(cmd *cobra.Command, opts *Options) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.ConfigPath, "config", opts.ConfigPath, "config file (default: $"+config.EnvConfigPath+")")
	pf.StringVarP(&opts.File, "file", "f", opts.File, "current file; selects the project root")
	pf.StringVar(&opts.LogLevel, "log-level", opts.LogLevel, "log level: debug|info|warn|error")
	pf.StringVar(&opts.Storage, "storage", opts.Storage, "database location: cache|project|rootmarker")
	pf.BoolVar(&opts.Jsonl, "jsonl", opts.Jsonl, "output as JSONL")
	pf.BoolVarP(&opts.VimLines, "vim-lines", "L", opts.VimLines, "vim friendly lines")
	pf.BoolVarP(&opts.NoColor, "no-color", "z", opts.NoColor, "suppress colors")
	pf.StringVar(&opts.Explain, "explain", opts.Explain, "print explain info to stderr (text|json)")
	if f := pf.Lookup("explain"); f != nil {
		f.NoOptDefVal = "text"
	}
	cmd.Flags().BoolVarP(&opts.ListDatabases, "list-databases", "l", opts.ListDatabases, "lists databases available")
}

// ExecuteForTest parses and validates the command line without touching
// the index or spawning tools.
func ExecuteForTest(cmd *cobra.Command) (string, Options, error) {
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)

	opts := optionsFrom(cmd)
	if opts != nil {
		opts.testMode = true
	}

	err := cmd.Execute()
	if opts == nil {
		return out.String(), Options{}, err
	}
	opts.normalize()
	return out.String(), *opts, err
}

func newDefaultOptions() *Options {
	return &Options{}
}

func withOptionsContext(cmd *cobra.Command, opts *Options) {
	cmd.SetContext(context.WithValue(context.Background(), optionsKey{}, opts))
}
