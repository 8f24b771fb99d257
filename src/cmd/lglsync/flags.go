package main

import (
	"fmt"
	"strings"
)

// FlagConfig holds the flags consumed by the launcher itself. Anything
// shaped like --path.to.key=value passes through to the config loader
// untouched, so every config field is overridable from the command
// line.
type FlagConfig struct {
	ConfigFile  string
	ShowVersion bool
	Background  bool
	Quiet       bool

	// Unconsumed --key=value arguments for the config loader
	Overrides []string
}

// ParseFlags scans the raw argument list. The launcher flags are
// deliberately parsed by hand: the stdlib flag package aborts on
// unknown flags, and config overrides are unknown by design.
func ParseFlags(args []string) (*FlagConfig, error) {
	fc := &FlagConfig{}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-v" || arg == "--version":
			fc.ShowVersion = true

		case arg == "-b" || arg == "--background":
			fc.Background = true

		case arg == "-q" || arg == "--quiet":
			fc.Quiet = true

		case arg == "-c" || arg == "--config":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("%s requires a file path", arg)
			}
			i++
			fc.ConfigFile = args[i]

		case strings.HasPrefix(arg, "--config="):
			fc.ConfigFile = strings.TrimPrefix(arg, "--config=")
			if fc.ConfigFile == "" {
				return nil, fmt.Errorf("--config requires a file path")
			}

		case strings.HasPrefix(arg, "--") && strings.Contains(arg, "="):
			fc.Overrides = append(fc.Overrides, arg)

		case strings.HasPrefix(arg, "-"):
			return nil, fmt.Errorf("unknown flag: %s (run 'lglsync help' for usage)", arg)

		default:
			return nil, fmt.Errorf("unexpected argument: %s (run 'lglsync help' for usage)", arg)
		}
	}

	return fc, nil
}
