package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/pashusagar/pashusagar-cli/internal/cli"
	"github.com/pashusagar/pashusagar-cli/internal/config"
	"github.com/pashusagar/pashusagar-cli/pkg/logger"
)

const version = "pashusagar-cli v1.0.0"

func main() {
	if err := run(); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	args, err := parseFlags(cfg, os.Args[1:])
	if err != nil {
		return err
	}

	logger.SetLevel(cfg.LogLevel)
	logger.Debugf("config: ServerURL=%s SocketURL=%s Home=%s", cfg.ServerURL, cfg.SocketURL, cfg.Home)

	if len(args) == 0 {
		return cli.ChatCommand(cfg)
	}

	switch args[0] {
	case "login":
		return cli.LoginCommand(cfg)
	case "chat":
		return cli.ChatCommand(cfg)
	case "version", "--version", "-v":
		fmt.Println(version)
		return nil
	case "help", "--help", "-h":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// parseFlags applies command-line overrides on top of the environment config
// and returns the remaining positional arguments.
func parseFlags(cfg *config.Config, args []string) ([]string, error) {
	fs := flag.NewFlagSet("pashusagar", flag.ContinueOnError)
	fs.Usage = printUsage

	server := fs.String("server", "", "override the API server URL")
	socket := fs.String("socket", "", "override the live-connection URL")
	debug := fs.Bool("debug", false, "enable debug logging")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *server != "" {
		cfg.ServerURL = *server
		cfg.SocketURL = config.DeriveSocketURL(*server)
	}
	if *socket != "" {
		cfg.SocketURL = *socket
	}
	if *debug {
		cfg.Debug = true
		if cfg.LogLevel > logger.LevelDebug {
			cfg.LogLevel = logger.LevelDebug
		}
	}
	return fs.Args(), nil
}

func printUsage() {
	fmt.Println("Usage: pashusagar [flags] [command]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  login      authenticate and store an access token")
	fmt.Println("  chat       open the interactive messaging session (default)")
	fmt.Println("  version    print the version")
	fmt.Println("  help       print this help")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  -server URL   override the API server URL (PASHUSAGAR_SERVER_URL)")
	fmt.Println("  -socket URL   override the live-connection URL (PASHUSAGAR_SOCKET_URL)")
	fmt.Println("  -debug        enable debug logging (PASHUSAGAR_DEBUG)")
}
