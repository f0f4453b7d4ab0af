// Command estatecache runs the cached marketplace client against a backend
// and prints results and cache diagnostics.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/jessevdk/go-flags"

	"github.com/saiset-co/estate-client/config"
	"github.com/saiset-co/estate-client/service"
	"github.com/saiset-co/estate-client/types"
	"github.com/saiset-co/estate-client/utils"
)

type Opts struct {
	Config      string `short:"c" long:"config" env:"ESTATE_CONFIG" description:"path to the YAML config file"`
	BaseURL     string `long:"base-url" description:"API base URL, overrides the config file"`
	Token       string `long:"token" description:"bearer token, overrides the config file"`
	Role        string `long:"role" choice:"AGENT" choice:"CLIENT" description:"stored user role"`
	LogLevel    string `long:"log-level" description:"debug, info, warn or error"`
	ShowMetrics bool   `long:"metrics" description:"print collected metrics before exiting"`
}

var opts Opts

func main() {
	parser := flags.NewParser(&opts, flags.Default)
	parser.ShortDescription = "cached marketplace API client"

	commands := []struct {
		name, short string
		data        interface{}
	}{
		{"list", "List properties", &listCommand{}},
		{"property", "Show property details", &propertyCommand{}},
		{"search", "Search properties", &searchCommand{}},
		{"profile", "Show the current user profile", &profileCommand{}},
		{"transactions", "List transaction history", &transactionsCommand{}},
		{"analytics", "Show agent analytics", &analyticsCommand{}},
		{"inspect", "Report on the well-known cache keys", &inspectCommand{}},
		{"warm", "Run the configured cache warmers", &warmCommand{}},
	}

	for _, c := range commands {
		if _, err := parser.AddCommand(c.name, c.short, "", c.data); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

// load reads the config file, if any, and applies command-line overrides.
func (o *Opts) load() (*types.ServiceConfig, error) {
	loader := config.NewLoader()

	var data []byte
	if o.Config != "" {
		var err error
		data, err = os.ReadFile(o.Config)
		if err != nil {
			return nil, types.WrapError(err, "failed to read config file")
		}
	}

	cfg, err := loader.Parse(data)
	if err != nil {
		return nil, err
	}

	if o.BaseURL != "" {
		if cfg.Client == nil {
			cfg.Client = &types.ClientConfig{}
		}
		cfg.Client.BaseURL = strings.TrimRight(o.BaseURL, "/")
	}
	if o.Token != "" || o.Role != "" {
		if cfg.Session == nil {
			cfg.Session = &types.SessionConfig{}
		}
		if o.Token != "" {
			cfg.Session.Token = o.Token
		}
		if o.Role != "" {
			cfg.Session.Role = o.Role
		}
	}
	if o.LogLevel != "" {
		if cfg.Logger == nil {
			cfg.Logger = &types.LoggerConfig{}
		}
		cfg.Logger.Level = o.LogLevel
	}

	return cfg, nil
}

// withService builds the stack, runs fn and prints metrics when asked.
func withService(fn func(ctx context.Context, svc *service.Service) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := opts.load()
	if err != nil {
		return err
	}

	manager, err := config.NewStaticManager(cfg)
	if err != nil {
		return err
	}

	svc, err := service.New(ctx, manager)
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := fn(ctx, svc); err != nil {
		return err
	}

	if opts.ShowMetrics {
		values, err := svc.Metrics().GetMetrics()
		if err != nil {
			return types.WrapError(err, "metrics are not available, enable them in the config")
		}
		for _, v := range values {
			fmt.Printf("%s%s %g\n", v.Name, formatLabels(v.Labels), v.Value)
		}
	}

	return nil
}

func printJSON(v interface{}) error {
	data, err := utils.Marshal(v)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}

	pairs := make([]string, 0, len(labels))
	for name, value := range labels {
		pairs = append(pairs, fmt.Sprintf("%s=%q", name, value))
	}
	sort.Strings(pairs)

	return "{" + strings.Join(pairs, ",") + "}"
}
