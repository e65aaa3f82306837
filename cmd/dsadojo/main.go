// Package main provides the CLI entrypoint for dsadojo.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	clog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"dsadojo/internal/app"
	"dsadojo/internal/engine"
	"dsadojo/internal/questions"
	"dsadojo/internal/telemetry"
)

var (
	flagSetsDir    string
	flagDataDir    string
	flagLogPath    string
	flagEngine     string
	flagEngineMode string
	flagTheme      string
	flagMotion     string
	flagASCII      bool
	flagDev        bool
	flagDemo       string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "dsadojo",
		Short:         "Terminal dojo for practicing data structures and algorithms",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runTUI,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagSetsDir, "sets", "", "directory holding question sets")
	flags.StringVar(&flagDataDir, "data-dir", "", "directory for the state database and drafts")
	flags.StringVar(&flagLogPath, "log", "", "session log file (JSON lines)")
	flags.StringVar(&flagEngine, "engine", "", "judge engine command override")
	flags.StringVar(&flagEngineMode, "engine-mode", "", "engine mode: auto, external or mock")

	rootCmd.Flags().StringVar(&flagTheme, "theme", "", "UI theme: modern_arcade, cozy_clean or retro_terminal")
	rootCmd.Flags().StringVar(&flagMotion, "motion", "", "animation level: full, reduced or off")
	rootCmd.Flags().BoolVar(&flagASCII, "ascii", false, "draw with ASCII characters only")
	rootCmd.Flags().BoolVar(&flagDev, "dev", false, "start the local dev HTTP harness")
	rootCmd.Flags().StringVar(&flagDemo, "demo", "", "apply a demo scenario on startup (implies --dev)")

	rootCmd.AddCommand(newDoctorCmd(), newPacksCmd())
	return rootCmd
}

// loadConfig layers explicitly set flags over the environment config.
func loadConfig(cmd *cobra.Command) (app.Config, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return cfg, err
	}
	if flagSetsDir != "" {
		cfg.SetsDir = flagSetsDir
	}
	if flagDataDir != "" {
		cfg.DataDir = flagDataDir
	}
	if flagLogPath != "" {
		cfg.LogPath = flagLogPath
	}
	if flagEngine != "" {
		cfg.EngineOverride = flagEngine
	}
	if flagEngineMode != "" {
		cfg.EngineMode = flagEngineMode
	}
	if flagTheme != "" {
		cfg.UI.StyleVariant = flagTheme
	}
	if flagMotion != "" {
		cfg.UI.MotionLevel = flagMotion
	}
	if cmd.Flags().Changed("ascii") {
		cfg.ASCIIOnly = flagASCII
	}
	if cmd.Flags().Changed("dev") {
		cfg.Dev = flagDev
	}
	if flagDemo != "" {
		cfg.Dev = true
		cfg.DemoScenario = flagDemo
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func runTUI(cmd *cobra.Command, _ []string) error {
	logger := stderrLogger()

	cfg, err := loadConfig(cmd)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		return err
	}

	a, err := app.New(cfg)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		logger.Error("session ended with error", "error", err)
		return err
	}
	return nil
}

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the judge engine installation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := stderrLogger()

			cfg, err := loadConfig(cmd)
			if err != nil {
				logger.Error("invalid configuration", "error", err)
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			tlog, err := telemetry.NewJSONLogger("")
			if err != nil {
				return err
			}
			defer func() { _ = tlog.Close() }()

			var eng engine.Engine
			if cfg.EngineMode == "mock" {
				eng = engine.NewMock(tlog)
			} else {
				eng, err = engine.Detect(ctx, cfg.EngineOverride, false, tlog)
			}
			if err != nil {
				logger.Error("engine not usable", "error", err)
				fmt.Printf("engine:  not found (%v)\n", err)
				fmt.Printf("hint:    install %s on PATH, set DSADOJO_ENGINE, or use DSADOJO_ENGINE_MODE=mock\n", engine.DefaultBinary)
				return err
			}
			defer func() { _ = eng.Close() }()

			info := eng.Info()
			fmt.Printf("engine:  %s %s", info.Name, info.Version)
			if info.Mock {
				fmt.Print(" (builtin mock)")
			}
			fmt.Println()

			if err := eng.Ping(ctx); err != nil {
				logger.Error("ping failed", "error", err)
				fmt.Println("ping:    failed")
				return err
			}
			fmt.Println("ping:    ok")

			if err := eng.EnvCheck(ctx); err != nil {
				logger.Error("environment check failed", "error", err)
				fmt.Printf("env:     %v\n", err)
				return err
			}
			fmt.Println("env:     ok")
			return nil
		},
	}
}

func newPacksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "packs",
		Short: "Validate and list the question sets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := stderrLogger()

			cfg, err := loadConfig(cmd)
			if err != nil {
				logger.Error("invalid configuration", "error", err)
				return err
			}

			sets, err := questions.NewLoader().LoadSets(cmd.Context(), cfg.SetsDir)
			if err != nil {
				logger.Error("question sets failed validation", "dir", cfg.SetsDir, "error", err)
				return err
			}
			if len(sets) == 0 {
				err := fmt.Errorf("no question sets under %s/", cfg.SetsDir)
				logger.Error("no sets found", "dir", cfg.SetsDir)
				return err
			}

			for _, set := range sets {
				fmt.Printf("%s %s: %s (%d questions)\n", set.SetID, set.Version, set.Name, len(set.LoadedQuestions))
				for _, q := range set.LoadedQuestions {
					fmt.Printf("  %-28s %s [%s, difficulty %d]\n", q.QuestionID, q.Title, q.Language, q.Difficulty)
				}
			}
			return nil
		},
	}
}

func stderrLogger() *clog.Logger {
	return clog.NewWithOptions(os.Stderr, clog.Options{Prefix: "dsadojo"})
}
