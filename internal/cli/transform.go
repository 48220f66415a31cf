package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/book-expert/read-aloud/internal/pipeline"
	"github.com/book-expert/read-aloud/internal/textload"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Output formats of the transform command.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{FormatText, FormatJSON, FormatYAML}

// TransformOptions holds the flags of the transform command.
type TransformOptions struct {
	Format string
	Spoken bool
}

func newTransformCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TransformOptions{}

	cmd := &cobra.Command{
		Use:   "transform <file>",
		Short: "Print the units of a text without speaking them",
		Long: `Apply the transformation rules to a text and print the resulting units.

The text format prints one unit per line. The json and yaml formats also
include each unit's position and the text that would be spoken for it.`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(_ *cobra.Command, _ []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("%w: format %q must be one of %v", ErrInvalidFlag, opts.Format, ValidFormats)
			}

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransform(cmd, rootOpts, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", FormatText, "output format (text|json|yaml)")
	cmd.Flags().BoolVar(&opts.Spoken, "spoken", false, "print units after substitution (text format only)")

	return cmd
}

func runTransform(cmd *cobra.Command, rootOpts *RootOptions, opts *TransformOptions, path string) error {
	application, err := newApp(cmd, rootOpts)
	if err != nil {
		return err
	}
	defer application.Close()

	text, err := textload.Loader{Encoding: application.cfg.Input.Encoding}.LoadFile(path)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}

	segmenter, err := application.pipeline()
	if err != nil {
		return err
	}

	doc := segmenter.Segment(text.Content)
	exported := segmenter.Export(path, text.Fingerprint, doc)

	return writeExport(application.out, exported, opts)
}

func writeExport(out io.Writer, exported pipeline.Export, opts *TransformOptions) error {
	switch opts.Format {
	case FormatJSON:
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")

		err := encoder.Encode(exported)
		if err != nil {
			return fmt.Errorf("failed to encode units as JSON: %w", err)
		}
	case FormatYAML:
		encoder := yaml.NewEncoder(out)
		encoder.SetIndent(2)

		err := encoder.Encode(exported)
		if err != nil {
			return fmt.Errorf("failed to encode units as YAML: %w", err)
		}

		err = encoder.Close()
		if err != nil {
			return fmt.Errorf("failed to encode units as YAML: %w", err)
		}
	default:
		for _, unit := range exported.Units {
			line := unit.Text
			if opts.Spoken {
				line = unit.Spoken
			}

			fmt.Fprintln(out, line)
		}
	}

	return nil
}
