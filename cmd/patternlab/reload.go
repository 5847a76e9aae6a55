package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

func reloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Ask a running server to reload its configuration and topics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := signalRunningServer()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent SIGHUP to patternlab (pid %d)\n", pid)
			return nil
		},
	}
}

// signalRunningServer sends SIGHUP to the server recorded in the pid file.
func signalRunningServer() (int, error) {
	data, err := os.ReadFile(pidPath())
	if err != nil {
		return 0, fmt.Errorf("no running server: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("malformed pid file %s", pidPath())
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, err
	}
	// Signal 0 checks liveness without side effects.
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		os.Remove(pidPath())
		return 0, fmt.Errorf("server (pid %d) is not running", pid)
	}
	return pid, proc.Signal(syscall.SIGHUP)
}
