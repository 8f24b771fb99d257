package main

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// Environment marker set on the re-executed child so it skips the
// daemonize branch.
const backgroundEnv = "LGLSYNC_BACKGROUND"

// Reports whether this process is the detached child.
func isBackgroundProcess() bool {
	return os.Getenv(backgroundEnv) == "1"
}

// Re-executes the binary detached from the controlling terminal.
// The parent prints the child PID and exits.
func runInBackground() error {
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate executable: %w", err)
	}

	// Strip the background flag so the child runs in the foreground
	// of its own session
	args := make([]string, 0, len(os.Args)-1)
	for _, arg := range os.Args[1:] {
		if arg == "-b" || arg == "--background" {
			continue
		}
		args = append(args, arg)
	}

	cmd := exec.Command(executable, args...)
	cmd.Env = append(os.Environ(), backgroundEnv+"=1")
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true, // Detach from the controlling terminal
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start background process: %w", err)
	}

	Print("Started in background, pid %d\n", cmd.Process.Pid)

	// Let the child outlive the parent
	return cmd.Process.Release()
}
