package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/docvault/docvault/internal/jobs"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "maintenance job commands",
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	jobsCmd.AddCommand(runJobsCmd())
	jobsCmd.AddCommand(sweepCacheCmd())
}

func runJobsCmd() *cobra.Command {
	var schedule string

	command := &cobra.Command{
		Use:   "run",
		Short: "run maintenance jobs on a schedule until interrupted",
		Run: func(cmd *cobra.Command, args []string) {
			vault, err := newVault()
			if err != nil {
				logrus.Error(err)
				return
			}

			executor := jobs.NewTaskExecutor([]jobs.CronJob{
				jobs.NewCacheJanitor(schedule, vault.Store, vault.Cache),
			})
			executor.Run()
			defer executor.Stop()

			logrus.Infof("jobs scheduled at %q, waiting for interrupt", schedule)

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop
		},
	}

	command.Flags().StringVarP(&schedule, "schedule", "s", "@hourly", "cron schedule for the jobs")

	return command
}

func sweepCacheCmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "sweep-cache",
		Short: "purge cache partitions whose version is gone, once",
		Run: func(cmd *cobra.Command, args []string) {
			vault, err := newVault()
			if err != nil {
				logrus.Error(err)
				return
			}

			jobs.NewCacheJanitor("", vault.Store, vault.Cache).Run()
		},
	}

	return command
}
