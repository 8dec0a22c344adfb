package main

import (
	"fmt"
	"os"

	"ashare-trader/internal/cli"
	"ashare-trader/internal/config"
	"ashare-trader/internal/logging"
)

func main() {
	cfg, err := config.Load(configDirFromArgs(os.Args[1:]))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger()

	rootCmd := cli.NewRootCmd(cfg, logger)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// configDirFromArgs extracts the --config flag before cobra parses anything,
// since the config feeds command construction itself.
func configDirFromArgs(args []string) string {
	for i, arg := range args {
		if arg == "--config" && i+1 < len(args) {
			return args[i+1]
		}
		if len(arg) > len("--config=") && arg[:len("--config=")] == "--config=" {
			return arg[len("--config="):]
		}
	}
	return ""
}
