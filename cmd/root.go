package cmd

import (
	"fmt"
	"os"

	"vmrelay/internal/config"
	"vmrelay/internal/logging"
	"vmrelay/internal/relay"
	"vmrelay/internal/supervisor"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	configFile string
	rowsFlag   int
	colsFlag   int

	// exitCode is what the process reports; the relay session sets it to
	// the child's own code.
	exitCode int

	rootCmd = &cobra.Command{
		Use:   "vmrelay [command [args...]]",
		Short: "Console-to-PTY relay for microVM guests",
		Long: `vmrelay bridges a guest console that cannot reliably enter raw mode
(and that rewrites carriage return to line feed) to a real PTY, so
interactive applications behave normally inside the sandbox.

Without arguments it runs the configured default command; otherwise the
given command vector is executed on the PTY's subordinate side. The relay's
own exit status equals the child's exit code, or 1 on setup failure or
abnormal termination.

The launcher exports ` + config.EnvRows + ` and ` + config.EnvCols + ` with the host
terminal size; the identity-override shim preloaded into the child reads
the same two variables to patch zero-sized terminal queries.`,
		Args: cobra.ArbitraryArgs,
		Run: func(cmd *cobra.Command, args []string) {
			exitCode = runRelay(args)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file path")
	rootCmd.Flags().IntVar(&rowsFlag, "rows", 0, "Initial terminal rows (overrides env)")
	rootCmd.Flags().IntVar(&colsFlag, "cols", 0, "Initial terminal columns (overrides env)")
	// Everything after the command name belongs to the child.
	rootCmd.Flags().SetInterspersed(false)
	rootCmd.AddCommand(newInfoCmd())
}

// Execute runs the command tree and returns the process exit status.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		return supervisor.FallbackExitCode
	}
	return exitCode
}

func runRelay(args []string) int {
	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vmrelay: %v\n", err)
		return supervisor.FallbackExitCode
	}
	if rowsFlag > 0 {
		cfg.Rows = rowsFlag
	}
	if colsFlag > 0 {
		cfg.Cols = colsFlag
	}

	logging.Init(os.Stderr, logging.ParseLevel(cfg.LogLevel), map[string]interface{}{
		"app": "vmrelay",
	})

	var command string
	if len(args) > 0 {
		command = args[0]
		args = args[1:]
	} else {
		args = nil
	}

	sess := relay.New(int(os.Stdin.Fd()), int(os.Stdout.Fd()))
	return sess.Run(cfg, command, args)
}

// newInfoCmd creates the info subcommand
func newInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Display effective relay configuration for debugging",
		Run: func(cmd *cobra.Command, args []string) {
			runInfo()
		},
	}
	return cmd
}

func runInfo() {
	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Printf("❌ Failed to load config: %v\n", err)
		exitCode = supervisor.FallbackExitCode
		return
	}

	fmt.Println("🔍 Relay Configuration")
	fmt.Println()
	if cfg.ConfigPath != "" {
		fmt.Printf("📄 Config file: %s\n", cfg.ConfigPath)
	} else {
		fmt.Printf("📄 Config file: none (defaults + environment)\n")
	}
	fmt.Printf("📐 Terminal size: %d rows x %d cols\n", cfg.Rows, cfg.Cols)
	fmt.Printf("🚀 Default command: %s\n", cfg.DefaultCommand)
	fmt.Printf("🪵 Log level: %s\n", cfg.LogLevel)
	fmt.Println()

	for _, name := range []string{config.EnvRows, config.EnvCols, config.EnvDefaultCommand, config.EnvLogLevel} {
		if v, ok := os.LookupEnv(name); ok {
			fmt.Printf("   %s=%s\n", name, v)
		} else {
			fmt.Printf("   %s (unset)\n", name)
		}
	}
	fmt.Println()

	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Println("✅ stdin is a terminal (raw mode will be attempted)")
	} else {
		fmt.Println("⚠️  stdin is not a terminal (input stays line-buffered; Enter still works)")
	}
}
