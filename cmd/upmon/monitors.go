package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hamed0406/upmon/internal/config"
	"github.com/hamed0406/upmon/internal/domain"
	"github.com/hamed0406/upmon/internal/scheduler"
)

func runMonitors(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	file, err := config.LoadMonitors(cfg.MonitorsPath)
	if err != nil {
		return err
	}
	specs, err := file.Resolve()
	if err != nil {
		return err
	}
	printSchedule(cmd.OutOrStdout(), specs)
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d monitors, retention %s\n", len(specs), retention(cfg, file))
	return nil
}

func printSchedule(out io.Writer, specs []domain.MonitorSpec) {
	delays := scheduler.StaggerDelays(specs)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROJECT\tSITE\tMETHOD\tURL\tEVERY\tTIMEOUT\tEXPECT\tFIRST PROBE")
	for i, m := range specs {
		expect := fmt.Sprint(m.ExpectedStatusCode)
		if m.HasExpectedBody {
			expect += "+body"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t+%s\n",
			m.ProjectID, m.SiteKey, m.HTTPMethod, m.URL, m.Interval, m.Timeout, expect, delays[i])
	}
	tw.Flush()
}
