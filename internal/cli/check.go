package cli

import (
	"errors"
	"fmt"

	"github.com/book-expert/read-aloud/internal/rules"
	"github.com/spf13/cobra"
)

// ErrRulesInvalid is returned by check when a rules file does not parse.
var ErrRulesInvalid = errors.New("rules check failed")

func newCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the transformation and substitution rules files",
		Long: `Parse and compile both rules files and report their contents.

Unlike reading, a broken substitution rules file is an error here.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd, rootOpts)
		},
	}
}

func runCheck(cmd *cobra.Command, rootOpts *RootOptions) error {
	application, err := newApp(cmd, rootOpts)
	if err != nil {
		return err
	}
	defer application.Close()

	files := []struct {
		role string
		path string
	}{
		{role: "transformation", path: application.cfg.Rules.TransformationFile},
		{role: "substitution", path: application.cfg.Rules.SubstitutionFile},
	}

	failed := 0

	for _, file := range files {
		if file.path == "" {
			fmt.Fprintf(application.out, "%s: not configured\n", file.role)

			continue
		}

		ruleset, parseErr := rules.ParseFile(file.path, application.cfg.ParseOptions())
		if parseErr != nil {
			fmt.Fprintf(application.out, "%s: %v\n", file.role, parseErr)
			application.log.Error("Invalid %s rules: %v", file.role, parseErr)

			failed++

			continue
		}

		apply, protect := countRules(ruleset)
		fmt.Fprintf(application.out, "%s: %s: %d section(s), %d rule(s), %d protection rule(s)\n",
			file.role, file.path, len(ruleset.Sections), apply, protect)
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d file(s) invalid", ErrRulesInvalid, failed)
	}

	return nil
}

func countRules(ruleset *rules.Ruleset) (apply, protect int) {
	for _, section := range ruleset.Sections {
		apply += len(section.Apply)
		protect += len(section.Protect)
	}

	return apply, protect
}
