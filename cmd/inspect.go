package cmd

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zjrosen/appwatch/internal/procinfo"
	"github.com/zjrosen/appwatch/internal/sysctl"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect PID...",
	Short: "Classify processes with the system descriptor lookup and process table",
	Long: `Report, for each pid, whether the system descriptor marks it as a background
pseudo-application and whether the kernel process table reports it as a zombie.

Both checks need darwin; elsewhere every answer is "no".`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	pids := make([]int32, len(args))
	for i, arg := range args {
		pid, err := strconv.ParseInt(arg, 10, 32)
		if err != nil || pid <= 0 {
			return fmt.Errorf("invalid pid %q", arg)
		}
		pids[i] = int32(pid)
	}

	return inspect(cmd, procinfo.NewClassifier(procinfo.Live()), sysctl.NewDetector(sysctl.Live()), pids)
}

type pidChecker interface {
	IsPseudoApplication(pid int32) bool
}

type zombieChecker interface {
	IsZombie(pid int32) bool
}

func inspect(cmd *cobra.Command, classifier pidChecker, zombies zombieChecker, pids []int32) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PID\tPSEUDO\tZOMBIE")
	for _, pid := range pids {
		fmt.Fprintf(w, "%d\t%s\t%s\n", pid, yesNo(classifier.IsPseudoApplication(pid)), yesNo(zombies.IsZombie(pid)))
	}
	return w.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
