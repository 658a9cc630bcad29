package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"innersight/internal/config"
	"innersight/internal/core"
	"innersight/internal/insights"
)

type taskFlags struct {
	provider  string
	showNotes bool
	noCache   bool
}

// NewTaskCmds returns one command per task kind.
func NewTaskCmds() []*cobra.Command {
	return []*cobra.Command{
		newTaskCmd(core.TaskAnalysis, "analyze", "Analyze themes and emotions of a journal entry",
			"Prints the structured analysis as JSON: themes, emotions whose percentages\nsum to 100, and a short perspective."),
		newTaskCmd(core.TaskReflection, "reflect", "Write a short reflection on a journal entry", ""),
		newTaskCmd(core.TaskTitle, "title", "Suggest a title for a journal entry", ""),
		newTaskCmd(core.TaskPerspective, "perspective", "Offer an alternative perspective on a journal entry", ""),
	}
}

func newTaskCmd(kind core.TaskKind, use, short, long string) *cobra.Command {
	var flags taskFlags

	if long != "" {
		long += "\n\n"
	}
	long += fmt.Sprintf(`The entry is read from FILE, or from stdin when FILE is "-" or omitted.
The command always prints a result. When the provider call fails the
predefined fallback is printed and the failing stage is reported on stderr.

Examples:
  innersight %[1]s entry.txt
  cat entry.txt | innersight %[1]s --provider openai`, use)

	cmd := &cobra.Command{
		Use:   use + " [FILE|-]",
		Short: short,
		Long:  long,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTask(cmd, kind, args, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.provider, "provider", "p", "", "provider id for this call (default: the active provider)")
	cmd.Flags().BoolVar(&flags.showNotes, "notes", false, "print normalization notes to stderr")
	cmd.Flags().BoolVar(&flags.noCache, "no-cache", false, "bypass the result cache")

	return cmd
}

func runTask(cmd *cobra.Command, kind core.TaskKind, args []string, flags taskFlags) error {
	entry, err := readEntry(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	cfg := config.Get()
	if flags.provider != "" {
		if _, ok := cfg.AI.Providers[strings.ToLower(flags.provider)]; !ok {
			return fmt.Errorf("unknown provider %q. Known providers: %s", flags.provider, strings.Join(config.ProviderIDs(cfg), ", "))
		}
	}

	stack, err := newInsightStack(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = stack.posthog.Shutdown(cmd.Context()) }()

	var opts []insights.CallOption
	if flags.provider != "" {
		opts = append(opts, insights.WithProvider(strings.ToLower(flags.provider)))
	}
	if flags.noCache {
		opts = append(opts, insights.WithoutCache())
	}

	report := stack.service.Run(cmd.Context(), kind, entry, opts...)
	return printReport(cmd.OutOrStdout(), cmd.ErrOrStderr(), report, flags.showNotes)
}

func printReport(out, errOut io.Writer, report insights.Report, showNotes bool) error {
	if report.Source == insights.SourceFallback {
		msg := fmt.Sprintf("Using fallback content (provider %s, stage %s)", orDash(report.Provider), report.Stage)
		if report.Err != nil {
			msg += ": " + report.Err.Error()
		}
		fmt.Fprintln(errOut, msg)
	}
	if showNotes {
		for _, n := range report.Notes {
			fmt.Fprintln(errOut, "note:", n.String())
		}
	}

	if !report.Task.IsStructured() {
		_, err := fmt.Fprintln(out, report.Text)
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(report.Analysis)
}

// readEntry reads the entry from the file named in args, or from in.
func readEntry(in io.Reader, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		b, err := os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("failed to read entry: %w", err)
		}
		return string(b), nil
	}
	b, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("failed to read entry from stdin: %w", err)
	}
	return string(b), nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
