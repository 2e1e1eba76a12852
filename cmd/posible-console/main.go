// ABOUTME: Entry point for posible-console, the web admin console
// ABOUTME: Serves one backend session per browser over HTTP or a tailnet

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/posible/posible-admin/internal/config"
	"github.com/posible/posible-admin/internal/logging"
	"github.com/posible/posible-admin/internal/metrics"
	"github.com/posible/posible-admin/internal/tenant"
	"github.com/posible/posible-admin/internal/webconsole"
)

// version is set by goreleaser at build time.
var version = "dev"

const banner = `
                     _ _     _
 _ __   ___  ___(_) |__ | | ___
| '_ \ / _ \/ __| | '_ \| |/ _ \
| |_) | (_) \__ \ | |_) | |  __/
| .__/ \___/|___/_|_.__/|_|\___|
|_|
`

const shutdownTimeout = 5 * time.Second

// getConfigPath returns the path to the console config file.
// Priority: POSIBLE_CONSOLE_CONFIG env var > XDG_CONFIG_HOME/posible/console.yaml > ~/.config/posible/console.yaml
func getConfigPath() string {
	if envPath := os.Getenv("POSIBLE_CONSOLE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "console.yaml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "posible", "console.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: posible-console <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve    Start the web console")
		fmt.Println("  health   Check console health")
		fmt.Println("  version  Print the version")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "health":
		err = runHealth(ctx)
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	policy, err := cfg.Tenant.Policy()
	if err != nil {
		return fmt.Errorf("tenant policy: %w", err)
	}

	printStartup(configPath, cfg, policy)

	consoleCfg := webconsole.Config{
		BackendURL:      cfg.Backend.BaseURL,
		BackendTimeout:  cfg.Backend.Timeout,
		Policy:          policy,
		IdleTimeout:     cfg.Sessions.IdleTimeout,
		CleanupInterval: cfg.Sessions.CleanupInterval,
		RecheckInterval: cfg.Sessions.RecheckInterval,
		SecureCookies:   cfg.Sessions.SecureCookies,
		Logger:          logger,
	}

	var bm *metrics.BackendMetrics
	if cfg.Metrics.Enabled {
		bm = metrics.New(nil)
		consoleCfg.Recorder = bm
	}

	console, err := webconsole.New(consoleCfg)
	if err != nil {
		return fmt.Errorf("creating console: %w", err)
	}
	defer console.Close()

	mux := http.NewServeMux()
	mux.Handle("/", console.Handler())
	if bm != nil {
		mux.Handle("GET "+cfg.Metrics.Path, bm.Handler())
	}
	mux.Handle("GET /{$}", http.RedirectHandler("/admin/", http.StatusFound))

	var ln net.Listener
	var tn *tailnet
	if cfg.Tailscale.Enabled {
		tn, ln, err = listenTailnet(ctx, cfg.Tailscale, logger)
	} else {
		ln, err = net.Listen("tcp", cfg.Server.HTTPAddr)
	}
	if err != nil {
		return err
	}
	if tn != nil {
		defer tn.Close()
	}

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("starting posible-console",
		"config", configPath,
		"addr", ln.Addr().String(),
		"backend", cfg.Backend.BaseURL,
		"tenant_mode", string(policy.Mode),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}

	if serveErr != nil {
		return fmt.Errorf("serving http: %w", serveErr)
	}
	return nil
}

func printStartup(configPath string, cfg *config.Config, policy tenant.Policy) {
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)
	gray := color.New(color.FgHiBlack)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Backend:   %s\n", cfg.Backend.BaseURL)
	green.Print("    ▶ ")
	fmt.Printf("Tenant:    ")
	if policy.Mode == tenant.Permissive {
		yellow.Println(string(policy.Mode))
	} else {
		fmt.Println(string(policy.Mode))
	}

	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	} else {
		green.Print("    ▶ ")
		fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	}
	if cfg.Metrics.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Metrics:   %s\n", cfg.Metrics.Path)
	}

	fmt.Println()
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Server.HTTPAddr == "" {
		return errors.New("health check needs server.http_addr")
	}

	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}
