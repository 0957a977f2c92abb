package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

type answerPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

var (
	questionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	answerStyle   = lipgloss.NewStyle().PaddingLeft(2)
	indexStyle    = lipgloss.NewStyle().Faint(true)
)

// isRunningInCI checks if we're running in a CI/CD environment
func isRunningInCI() bool {
	if os.Getenv("CI") != "" {
		return true
	}
	for _, v := range []string{
		"GITHUB_ACTIONS",
		"GITLAB_CI",
		"CIRCLECI",
		"BUILDKITE",
		"JENKINS_URL",
		"TF_BUILD", // Azure DevOps
	} {
		if os.Getenv(v) != "" {
			return true
		}
	}
	return false
}

// wantsJSON reports whether answers should be printed as JSON.
func wantsJSON(cmd *cobra.Command) bool {
	if asJSON, err := cmd.Flags().GetBool("json"); err == nil && asJSON {
		return true
	}
	if isRunningInCI() {
		return true
	}
	if f, ok := cmd.OutOrStdout().(*os.File); ok {
		return !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd())
	}
	return true
}

func writeAnswers(cmd *cobra.Command, questions, answers []string) error {
	out := cmd.OutOrStdout()
	if wantsJSON(cmd) {
		return writeAnswersJSON(out, questions, answers)
	}
	_, err := io.WriteString(out, renderAnswers(questions, answers))
	return err
}

func writeAnswersJSON(w io.Writer, questions, answers []string) error {
	pairs := make([]answerPair, len(answers))
	for i, a := range answers {
		pairs[i] = answerPair{Answer: a}
		if i < len(questions) {
			pairs[i].Question = questions[i]
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{"answers": pairs})
}

func renderAnswers(questions, answers []string) string {
	var b strings.Builder
	for i, a := range answers {
		q := ""
		if i < len(questions) {
			q = questions[i]
		}
		b.WriteString(indexStyle.Render(fmt.Sprintf("%d.", i+1)))
		b.WriteString(" ")
		b.WriteString(questionStyle.Render(q))
		b.WriteString("\n")
		b.WriteString(answerStyle.Render(a))
		b.WriteString("\n\n")
	}
	return b.String()
}
