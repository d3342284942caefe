package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"thoreinstein.com/quill/pkg/suggestion"
)

var (
	reflowColumn int
	reflowLine   string
)

// reflowCmd aligns a suggestion with the cursor column.
var reflowCmd = &cobra.Command{
	Use:   "reflow [file]",
	Short: "Align a multi-line suggestion with the cursor column",
	Long: `Align a multi-line suggestion with the cursor column.

The suggestion is read from the file argument or stdin. When the cursor line
has spaces directly before --column, the left-of-cursor context is cut from
every line and continuation lines are re-indented to match. Lines that reach
into code left of the cursor are dropped with a warning on stderr.

Examples:
  quill reflow --line "    " --column 4 suggestion.yml
  pbpaste | quill reflow --line "  - " --column 4`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readInput(cmd, args)
		if err != nil {
			return err
		}

		result, malformed := suggestion.ReflowIndentation(text, reflowLine, reflowColumn)
		for _, m := range malformed {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", m)
		}
		fmt.Fprintln(cmd.OutOrStdout(), result)
		return nil
	},
}

// snippetCmd converts placeholder tokens into editor snippet tab stops.
var snippetCmd = &cobra.Command{
	Use:   "snippet [file]",
	Short: "Turn _placeholder_ tokens into snippet tab stops",
	Long: `Turn _placeholder_ tokens into numbered snippet tab stops.

Every _name_ token becomes ${n:_name_} in reading order, except tokens that
directly follow '@' or '#'. The suggestion is read from the file argument or
stdin.

Examples:
  echo "name: _pkg_" | quill snippet     # name: ${1:_pkg_}`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readInput(cmd, args)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), suggestion.ToPlaceholderSnippet(text))
		return nil
	},
}

func init() {
	reflowCmd.Flags().IntVar(&reflowColumn, "column", 0, "Cursor column (0-based, in characters)")
	reflowCmd.Flags().StringVar(&reflowLine, "line", "", "Text of the line the cursor is on")

	rootCmd.AddCommand(reflowCmd)
	rootCmd.AddCommand(snippetCmd)
}

// readInput returns the contents of args[0], or of stdin when no file is given.
// A single trailing newline is removed.
func readInput(cmd *cobra.Command, args []string) (string, error) {
	var data []byte
	var err error
	if len(args) > 0 {
		data, err = os.ReadFile(args[0])
		if err != nil {
			return "", errors.Wrapf(err, "failed to read %s", args[0])
		}
	} else {
		data, err = io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", errors.Wrap(err, "failed to read stdin")
		}
	}

	text := string(data)
	if n := len(text); n > 0 && text[n-1] == '\n' {
		text = text[:n-1]
	}
	return text, nil
}
