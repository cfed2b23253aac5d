package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"shuttle/internal/config"
	"shuttle/internal/daemonctl"
	"shuttle/internal/ipc"
	"shuttle/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show system and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			statusResp, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.socketPath(), cfg)
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("System Status", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range systemStatusLines(cfg, statusResp, colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Storage", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range storageStatusLines(cfg, statusResp, colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Queue Status", colorize) {
				fmt.Fprintln(stdout, line)
			}
			rows := buildQueueStatusRows(statusResp.QueueStats)
			if len(rows) == 0 {
				fmt.Fprintln(stdout, "Queue is empty")
				return nil
			}
			table := renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
			fmt.Fprint(stdout, table)
			return nil
		},
	}
}

func systemStatusLines(cfg *config.Config, resp *ipc.StatusResponse, colorize bool) []string {
	lines := make([]string, 0, 4)

	if resp.Running {
		lines = append(lines, renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", resp.PID), colorize))
	} else {
		lines = append(lines, renderStatusLine("Daemon", statusInfo, "Stopped", colorize))
	}

	endpoint := preflight.CheckEndpointFromConfig(cfg)
	lines = append(lines, renderStatusLine("Collector", checkStatusKind(endpoint), endpoint.Detail, colorize))

	if resp.Running {
		if resp.InFlightMediaID != "" {
			lines = append(lines, renderStatusLine("Upload", statusInfo, fmt.Sprintf("Uploading %s", shortMediaID(resp.InFlightMediaID)), colorize))
		} else {
			lines = append(lines, renderStatusLine("Upload", statusOK, "Idle", colorize))
		}
	}
	if resp.LastError != "" {
		lines = append(lines, renderStatusLine("Last error", statusWarn, resp.LastError, colorize))
	}
	return lines
}

func storageStatusLines(cfg *config.Config, resp *ipc.StatusResponse, colorize bool) []string {
	lines := make([]string, 0, 5)

	dbPath := resp.QueueDBPath
	if dbPath == "" && cfg != nil {
		dbPath = cfg.DatabasePath()
	}
	if _, err := os.Stat(dbPath); err != nil {
		lines = append(lines, renderStatusLine("Queue database", statusInfo, fmt.Sprintf("%s (not created yet)", dbPath), colorize))
	} else {
		lines = append(lines, renderStatusLine("Queue database", statusOK, dbPath, colorize))
	}

	spoolDetail := fmt.Sprintf("%d files (%s)", resp.SpoolFiles, formatSize(resp.SpoolBytes))
	lines = append(lines, renderStatusLine("Spool", statusOK, spoolDetail, colorize))

	if cfg != nil {
		lines = append(lines, directoryStatusLine("Data directory", cfg.Paths.DataDir, colorize))
		lines = append(lines, directoryStatusLine("Spool inbox", cfg.SpoolInboxDir(), colorize))
		free := preflight.CheckFreeSpace("Free space", cfg.SpoolContentDir(), cfg.Workflow.MinFreeSpaceMiB)
		lines = append(lines, renderStatusLine("Free space", checkStatusKind(free), free.Detail, colorize))
	}
	return lines
}

func directoryStatusLine(label, path string, colorize bool) string {
	result := preflight.CheckDirectoryAccess(label, path)
	if result.Passed {
		return renderStatusLine(label, statusOK, result.Detail, colorize)
	}
	return renderStatusLine(label, statusError, result.Detail, colorize)
}
