package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// SummaryReport is the human-readable record of one migration run
type SummaryReport struct {
	GeneratedAt time.Time
	Duration    time.Duration

	RunID string
	State string
	Error string

	// Source
	LegacyDir     string
	LegacyRemoved bool

	// Destination
	WebviewVersion string
	Layout         string
	Backend        string
	StorePath      string

	// Local storage
	RecordsMigrated int

	// Directories
	DirectoriesMoved   []string
	DirectoriesSkipped []string
	DirectoryFailures  map[string]string
	BytesRelocated     int64

	EventLogPath string
}

// WriteMarkdownReport writes the summary report as Markdown
func WriteMarkdownReport(report *SummaryReport, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := os.WriteFile(outputPath, []byte(RenderMarkdown(report)), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// RenderMarkdown formats the report without touching the filesystem
func RenderMarkdown(report *SummaryReport) string {
	var md strings.Builder

	md.WriteString("# Crosswalk Storage Migration - Summary Report\n\n")
	md.WriteString(fmt.Sprintf("**Generated:** %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05")))
	if report.RunID != "" {
		md.WriteString(fmt.Sprintf("**Run:** `%s`\n\n", report.RunID))
	}
	if report.EventLogPath != "" {
		md.WriteString(fmt.Sprintf("**Event Log:** `%s`\n\n", report.EventLogPath))
	}

	md.WriteString("---\n\n")

	md.WriteString("## Overview\n\n")
	md.WriteString("| Metric | Value |\n")
	md.WriteString("|--------|-------|\n")
	md.WriteString(fmt.Sprintf("| Final State | %s |\n", report.State))
	if report.LegacyDir != "" {
		md.WriteString(fmt.Sprintf("| Legacy Data | `%s` |\n", truncatePath(report.LegacyDir, 60)))
	}
	md.WriteString(fmt.Sprintf("| Legacy Removed | %t |\n", report.LegacyRemoved))
	if report.Duration > 0 {
		md.WriteString(fmt.Sprintf("| Duration | %s |\n", report.Duration.Round(time.Millisecond)))
	}
	md.WriteString("\n")

	if report.WebviewVersion != "" {
		md.WriteString("## Destination\n\n")
		md.WriteString("| Metric | Value |\n")
		md.WriteString("|--------|-------|\n")
		md.WriteString(fmt.Sprintf("| WebView Version | %s |\n", report.WebviewVersion))
		md.WriteString(fmt.Sprintf("| Layout | %s |\n", report.Layout))
		md.WriteString(fmt.Sprintf("| Backend | %s |\n", report.Backend))
		if report.StorePath != "" {
			md.WriteString(fmt.Sprintf("| Local Storage | `%s` |\n", truncatePath(report.StorePath, 60)))
		}
		md.WriteString(fmt.Sprintf("| Records Migrated | %s |\n", humanize.Comma(int64(report.RecordsMigrated))))
		md.WriteString("\n")
	}

	if len(report.DirectoriesMoved) > 0 || len(report.DirectoriesSkipped) > 0 || len(report.DirectoryFailures) > 0 {
		md.WriteString("## Directories\n\n")
		md.WriteString("| Entry | Result |\n")
		md.WriteString("|-------|--------|\n")
		for _, name := range report.DirectoriesMoved {
			md.WriteString(fmt.Sprintf("| %s | moved |\n", name))
		}
		for _, name := range report.DirectoriesSkipped {
			md.WriteString(fmt.Sprintf("| %s | not present |\n", name))
		}
		failed := make([]string, 0, len(report.DirectoryFailures))
		for name := range report.DirectoryFailures {
			failed = append(failed, name)
		}
		sort.Strings(failed)
		for _, name := range failed {
			md.WriteString(fmt.Sprintf("| %s | failed: %s |\n", name, report.DirectoryFailures[name]))
		}
		md.WriteString("\n")
		md.WriteString(fmt.Sprintf("**Relocated:** %s\n\n", humanize.Bytes(uint64(report.BytesRelocated))))
	}

	if report.Error != "" {
		md.WriteString("## Error\n\n")
		md.WriteString(fmt.Sprintf("```\n%s\n```\n\n", report.Error))
	}

	md.WriteString("---\n\n")
	md.WriteString("*Generated by xwm*\n")

	return md.String()
}

// truncatePath truncates a file path to a maximum length
func truncatePath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	// Truncate from the middle, keeping start and end
	start := maxLen/2 - 2
	end := len(path) - (maxLen/2 - 2)
	return path[:start] + "..." + path[end:]
}
