package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/gibbs-codes/projectorUIv2/pkg/config"
	"github.com/gibbs-codes/projectorUIv2/pkg/debug"
	"github.com/gibbs-codes/projectorUIv2/pkg/ui"
	"github.com/gibbs-codes/projectorUIv2/pkg/version"
)

func main() {
	urlFlag := flag.String("url", "", "Dashboard server base URL (overrides config)")
	keyFlag := flag.String("key", "", "Dashboard API key (overrides config)")
	viewFlag := flag.String("view", "", "Starting view name")
	modeFlag := flag.String("mode", "", "Data mode: views or profile")
	mockFlag := flag.String("mock", "", "Serve from a local fixture directory instead of the network")
	configFlag := flag.String("config", "", "Config file path (default: XDG config dir)")
	noRemote := flag.Bool("no-remote-config", false, "Skip the server config probe on startup")
	help := flag.Bool("help", false, "Show help")
	versionFlag := flag.Bool("version", false, "Show version")
	flag.Parse()

	if *help {
		fmt.Println("Usage: projector [options]")
		fmt.Println("\nA terminal dashboard client.")
		flag.PrintDefaults()
		os.Exit(0)
	}
	if *versionFlag {
		fmt.Printf("projector %s\n", version.Version)
		os.Exit(0)
	}

	cfg, err := loadConfig(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Flags beat config. Remote probe and env come after so the precedence
	// ends up file < remote < env < flags.
	if *urlFlag != "" {
		cfg.BaseURL = *urlFlag
	}

	if !*noRemote && *mockFlag == "" && cfg.MockDir == "" && cfg.BaseURL != "" {
		if rc, ok := config.FetchRemote(context.Background(), cfg.BaseURL); ok {
			cfg.ApplyRemote(rc)
			debug.Log("applied remote config from %s", cfg.BaseURL)
		}
	}

	cfg.ApplyEnv()

	if *urlFlag != "" {
		cfg.BaseURL = *urlFlag
	}
	if *keyFlag != "" {
		cfg.DashKey = *keyFlag
	}
	if *modeFlag != "" {
		if *modeFlag != config.ModeViews && *modeFlag != config.ModeProfile {
			fmt.Fprintf(os.Stderr, "Unknown mode %q (want %s or %s)\n",
				*modeFlag, config.ModeViews, config.ModeProfile)
			os.Exit(2)
		}
		cfg.Mode = *modeFlag
	}
	if *mockFlag != "" {
		cfg.MockDir = *mockFlag
	}
	if *viewFlag != "" {
		if !cfg.HasView(*viewFlag) {
			fmt.Fprintf(os.Stderr, "Unknown view %q (configured: %v)\n", *viewFlag, cfg.Views)
			os.Exit(2)
		}
		cfg.DefaultView = *viewFlag
	}

	for _, w := range cfg.Warnings() {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}

	app, err := ui.NewApp(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting dashboard: %v\n", err)
		os.Exit(1)
	}

	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running dashboard: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}
