package cli

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"RepoSentinel/internal/domain"
)

var (
	pidFile    string
	background bool
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the daily scheduler",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if background {
			return spawnDetached()
		}

		application, err := newApp(true)
		if err != nil {
			return err
		}
		defer application.Close(cmd.Context())

		if err := writePIDFile(pidFile); err != nil {
			return err
		}
		defer os.Remove(pidFile)

		if err := application.Scheduler.Start(cmd.Context()); err != nil {
			return err
		}

		status := application.Scheduler.Status()
		if status.NextRun != nil {
			application.Log.Info("scheduler running", "next_run", status.NextRun.Format(time.RFC3339))
		}

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigs:
			application.Log.Info("shutting down", "signal", sig.String())
		case <-cmd.Context().Done():
		}

		return application.Scheduler.Stop(cmd.Context())
	},
}

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Control the background scheduler",
}

var schedulerStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the scheduler (alias for daemon)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return daemonCmd.RunE(cmd, args)
	},
}

var schedulerStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running scheduler daemon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := readPIDFile(pidFile)
		if err != nil {
			return err
		}

		proc, err := os.FindProcess(pid)
		if err != nil {
			return fmt.Errorf("find process %d: %w", pid, err)
		}
		if err := proc.Signal(syscall.SIGTERM); err != nil {
			return fmt.Errorf("signal process %d: %w", pid, err)
		}
		fmt.Printf("sent SIGTERM to pid %d\n", pid)
		return nil
	},
}

var schedulerStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether the scheduler daemon is running",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := readPIDFile(pidFile)
		if err != nil {
			fmt.Println(domain.SchedulerStopped)
			return nil
		}

		proc, err := os.FindProcess(pid)
		if err == nil {
			err = proc.Signal(syscall.Signal(0))
		}
		if err != nil {
			fmt.Printf("%s (stale pid file, pid %d)\n", domain.SchedulerStopped, pid)
			return nil
		}

		fmt.Printf("%s (pid %d)\n", domain.SchedulerRunning, pid)
		return nil
	},
}

// spawnDetached re-execs the daemon in its own session; the child writes
// the pid file.
func spawnDetached() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	child := exec.Command(exe, "daemon", "--pid-file", pidFile)
	child.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	child.Stdout = nil
	child.Stderr = nil
	if err := child.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	fmt.Printf("daemon started (pid %d)\n", child.Process.Pid)
	return nil
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create pid dir: %w", err)
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read pid file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, fmt.Errorf("parse pid file %s: %w", path, err)
	}
	return pid, nil
}

func init() {
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerStopCmd)
	schedulerCmd.AddCommand(schedulerStatusCmd)

	for _, cmd := range []*cobra.Command{daemonCmd, schedulerCmd} {
		cmd.PersistentFlags().StringVar(&pidFile, "pid-file", filepath.Join("data", "reposentinel.pid"), "scheduler pid file")
	}
	daemonCmd.Flags().BoolVar(&background, "background", false, "detach and run the scheduler in a new session")
}
