package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/farmsense/cava/backend/internal/model/registration"
	registrationService "github.com/farmsense/cava/backend/internal/service/registration"
)

var (
	userStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	botStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	passStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	failStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))
)

func printUser(w io.Writer, text string) {
	fmt.Fprintf(w, "%s %s\n", userStyle.Render("you  >"), text)
}

func printReply(w io.Writer, resp registrationService.Response) {
	fmt.Fprintf(w, "%s %s\n", botStyle.Render("cava >"), strings.ReplaceAll(resp.ReplyText, "\n", "\n       "))
	fmt.Fprintln(w, metaStyle.Render(describe(resp)))
}

// describe is the one-line state summary printed under each reply.
func describe(resp registrationService.Response) string {
	parts := []string{"state=" + string(resp.State)}

	keys := make([]string, 0, len(resp.ExtractedFields))
	for f := range resp.ExtractedFields {
		keys = append(keys, string(f))
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", k, resp.ExtractedFields[registration.Field(k)]))
	}

	if resp.Pending != nil {
		parts = append(parts, fmt.Sprintf("pending=%s:%q", resp.Pending.Field, resp.Pending.Value))
	}
	if resp.Fallback {
		parts = append(parts, "fallback")
	}
	if resp.FarmerID != "" {
		parts = append(parts, "farmer_id="+resp.FarmerID)
	}
	return "       [" + strings.Join(parts, " ") + "]"
}
