package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"shuttle/internal/api"
	"shuttle/internal/ipc"
	"shuttle/internal/queue"
)

// buildQueueStatusRows orders counts by queue lifecycle, with unknown
// statuses sorted after the known ones.
func buildQueueStatusRows(stats map[string]int) [][]string {
	if len(stats) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(stats))
	ordered := make([]string, 0, len(stats))
	for _, status := range queue.AllStatuses() {
		key := string(status)
		if _, ok := stats[key]; ok {
			ordered = append(ordered, key)
			seen[key] = struct{}{}
		}
	}
	extras := make([]string, 0)
	for key := range stats {
		if _, ok := seen[key]; !ok {
			extras = append(extras, key)
		}
	}
	sort.Strings(extras)
	ordered = append(ordered, extras...)

	rows := make([][]string, 0, len(ordered))
	for _, key := range ordered {
		rows = append(rows, []string{api.StatusLabel(key), fmt.Sprintf("%d", stats[key])})
	}
	return rows
}

// buildQueueListRows renders tasks newest first.
func buildQueueListRows(tasks []ipc.Task) [][]string {
	if len(tasks) == 0 {
		return nil
	}
	sorted := make([]ipc.Task, len(tasks))
	copy(sorted, tasks)

	sort.Slice(sorted, func(i, j int) bool {
		ti := parseQueueTime(sorted[i].EnqueuedAt)
		tj := parseQueueTime(sorted[j].EnqueuedAt)
		if ti.Equal(tj) {
			return sorted[i].MediaID > sorted[j].MediaID
		}
		return ti.After(tj)
	})

	rows := make([][]string, 0, len(sorted))
	for _, task := range sorted {
		rows = append(rows, []string{
			shortMediaID(task.MediaID),
			api.StatusLabel(task.Status),
			formatSize(task.SizeBytes),
			formatDisplayTime(task.CapturedAt),
			fmt.Sprintf("%d", task.RetryCount),
		})
	}
	return rows
}

func shortMediaID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) > 8 {
		return id[:8]
	}
	if id == "" {
		return "-"
	}
	return id
}

func formatSize(bytes int64) string {
	if bytes < 0 {
		return "-"
	}
	return humanize.IBytes(uint64(bytes))
}

func formatDisplayTime(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC().Format("2006-01-02 15:04")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC().Format("2006-01-02 15:04")
	}
	return value
}

func parseQueueTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	return time.Time{}
}

func formatFingerprint(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	if len(value) > 12 {
		return value[:12]
	}
	return value
}
