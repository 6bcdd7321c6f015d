package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/loykin/sqlrun"
	"github.com/loykin/sqlrun/internal/constants"
)

// ErrAborted is returned when the downgrade confirmation is declined.
var ErrAborted = errors.New("downgrade aborted")

var DowngradeCmd = &cobra.Command{
	Use:     "downgrade",
	Aliases: []string{"down"},
	Short:   "Reverse the most recent migrations (-n) or everything after --target",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		n, _ := flags.GetInt("count")
		target, _ := flags.GetString("target")
		keep, _ := flags.GetBool("keep-target")
		yes, _ := flags.GetBool("yes")

		s, err := openSession(cmd, false)
		if err != nil {
			return err
		}
		defer s.close()

		var p sqlrun.Plan
		if target != "" {
			p, err = s.tool.PlanDowngradeTo(s.ctx, target, !keep)
		} else {
			p, err = s.tool.PlanDowngrade(s.ctx, n)
		}
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if p.Empty() {
			_, _ = fmt.Fprintln(out, "nothing to do")
			return nil
		}

		_, _ = fmt.Fprintln(out, "The following migrations will be reversed:")
		for _, f := range p.Filenames() {
			_, _ = fmt.Fprintf(out, "  %s\n", f)
		}
		if !yes {
			ok, err := confirm(cmd.InOrStdin(), out)
			if err != nil {
				return err
			}
			if !ok {
				return ErrAborted
			}
		}

		results, err := s.tool.Execute(s.ctx, p)
		if err != nil {
			return err
		}
		printSummary(out, "reversed", results)
		return nil
	},
}

func confirm(in io.Reader, out io.Writer) (bool, error) {
	_, _ = fmt.Fprint(out, "Proceed? [y/N]: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func init() {
	flags := DowngradeCmd.Flags()
	flags.IntP("count", "n", constants.DefaultDowngradeCount, "number of migrations to reverse")
	flags.String("target", "", "filename or sequence key to downgrade to")
	flags.Bool("keep-target", false, "leave --target applied and reverse only what follows it")
	flags.BoolP("yes", "y", false, "do not ask for confirmation")
	DowngradeCmd.MarkFlagsMutuallyExclusive("count", "target")
}
