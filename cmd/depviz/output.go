// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/AleutianAI/DependViz/services/depviz"
	"github.com/AleutianAI/DependViz/services/depviz/pipeline"
)

// Terminal palette.
var (
	colorAccent  = lipgloss.Color("#20B9B4")
	colorSuccess = lipgloss.Color("#2CD7C7")
	colorWarning = lipgloss.Color("#F4D03F")
	colorError   = lipgloss.Color("#E74C3C")
	colorMuted   = lipgloss.Color("#2C4A54")
)

var styles = struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Box     lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(colorAccent),
	Label:   lipgloss.NewStyle().Width(12),
	Muted:   lipgloss.NewStyle().Foreground(colorMuted),
	Success: lipgloss.NewStyle().Foreground(colorSuccess),
	Warning: lipgloss.NewStyle().Foreground(colorWarning),
	Error:   lipgloss.NewStyle().Foreground(colorError),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorAccent).
		Padding(0, 1),
}

// printBanner prints the startup summary of the HTTP server.
func printBanner(w io.Writer, svc *depviz.Service, port int, watching bool) {
	watch := styles.Muted.Render("off")
	if watching {
		watch = styles.Success.Render("on")
	}
	lines := []string{
		styles.Title.Render("DependViz " + depviz.Version),
		"",
		row("Workspace", svc.Workspace()),
		row("Sources", svc.Engine().SourceRoot()),
		row("API", fmt.Sprintf("http://localhost:%d/v1/depviz", port)),
		row("Metrics", fmt.Sprintf("http://localhost:%d/metrics", port)),
		row("Watching", watch),
	}
	fmt.Fprintln(w, styles.Box.Render(strings.Join(lines, "\n")))
}

// renderSweepReport formats a sweep result for the terminal.
func renderSweepReport(r *pipeline.SweepResult) string {
	status := styles.Success.Render("✓ complete")
	switch {
	case r.Cancelled:
		status = styles.Warning.Render("⚠ canceled")
	case r.FilesFailed > 0:
		status = styles.Warning.Render(fmt.Sprintf("⚠ %d file(s) failed", r.FilesFailed))
	}

	lines := []string{
		styles.Title.Render("Sweep " + r.ID),
		"",
		row("Root", r.Root),
		row("Status", status),
		row("Files", fmt.Sprintf("%d analyzed of %d discovered", r.FilesAnalyzed, r.FilesDiscovered)),
		row("Graph", fmt.Sprintf("%d nodes, %d edges", r.Nodes, r.Edges)),
		row("Duration", r.Duration.Round(time.Millisecond).String()),
	}

	var b strings.Builder
	b.WriteString(styles.Box.Render(strings.Join(lines, "\n")))
	b.WriteString("\n")
	for _, f := range r.Failures {
		b.WriteString(styles.Error.Render("✗ "))
		b.WriteString(f.Path)
		b.WriteString("\n  ")
		b.WriteString(styles.Muted.Render(f.Error))
		b.WriteString("\n")
	}
	return b.String()
}

func row(label, value string) string {
	return styles.Label.Render(label) + value
}

// progressPrinter redraws one progress line per update.
func progressPrinter(w io.Writer) pipeline.SweepProgressFunc {
	return func(p pipeline.SweepProgress) {
		fmt.Fprintf(w, "\r%s %d/%d files, %d failed",
			styles.Muted.Render("sweeping"), p.FilesDone, p.FilesTotal, p.FilesFailed)
		if p.FilesDone >= p.FilesTotal {
			fmt.Fprintln(w)
		}
	}
}
