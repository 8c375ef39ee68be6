package main

import (
	"fmt"
	"sort"
	"strings"

	"fedbuild/pkg/federation"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

var (
	primaryColor   = lipgloss.Color("#FF79C6") // Pink
	secondaryColor = lipgloss.Color("#8BE9FD") // Cyan
	accentColor    = lipgloss.Color("#50FA7B") // Green
	warningColor   = lipgloss.Color("#FFB86C") // Orange
	dangerColor    = lipgloss.Color("#FF5555") // Red
	mutedColor     = lipgloss.Color("#6272A4")
	bgLightColor   = lipgloss.Color("#44475A")
	fgColor        = lipgloss.Color("#F8F8F2")

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(1, 2)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	labelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(18)

	valueStyle = lipgloss.NewStyle().
			Foreground(fgColor).
			Bold(true)

	accentValueStyle = lipgloss.NewStyle().
				Foreground(accentColor).
				Bold(true)

	warningValueStyle = lipgloss.NewStyle().
				Foreground(warningColor).
				Bold(true)

	dangerValueStyle = lipgloss.NewStyle().
				Foreground(dangerColor).
				Bold(true)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(secondaryColor).
			Background(bgLightColor).
			Padding(0, 1)

	rowStyle = lipgloss.NewStyle().
			Padding(0, 1)
)

func inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Show the federation configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderFederation(cfg.Federation, cfg.UnexposedLoad))
			return nil
		},
	}
}

func renderFederation(cfg federation.Config, unexposedLoad string) string {
	var sections []string

	sections = append(sections, renderMapTable("REMOTES", []string{"SPECIFIER", "URL"}, cfg.Remotes))
	sections = append(sections, renderMapTable("EXPOSES", []string{"NAME", "LOCATION"}, cfg.Exposes))

	shared := make(map[string]string, len(cfg.Shared))
	for name, v := range cfg.Shared {
		shared[name] = v.String()
	}
	sections = append(sections, renderMapTable("SHARED", []string{"MODULE", "VERSION"}, shared))

	scope := cfg.ShareScope
	if scope == "" {
		scope = "(none)"
	}
	policy := unexposedLoad
	if policy == "" {
		policy = string(federation.UnexposedDecline)
	}
	policyValue := valueStyle.Render(policy)
	if federation.UnexposedLoad(strings.ToLower(policy)) == federation.UnexposedEmpty {
		policyValue = warningValueStyle.Render(policy + " (unexposed modules are blanked)")
	}
	sections = append(sections,
		renderField("Share scope", valueStyle.Render(scope)),
		renderField("Unexposed load", policyValue))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func renderMapTable(title string, headers []string, entries map[string]string) string {
	if len(entries) == 0 {
		return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render(title),
			mutedStyle.Render("none configured")))
	}

	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(bgLightColor)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return rowStyle.Foreground(fgColor)
		})

	t.Headers(headers...)
	for _, k := range keys {
		t.Row(k, entries[k])
	}

	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(title),
		t.Render()))
}
