package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jmylchreest/umbra/internal/colour"
	"github.com/jmylchreest/umbra/internal/compression"
	"github.com/jmylchreest/umbra/internal/page"
	"github.com/jmylchreest/umbra/internal/prefs"
	"github.com/jmylchreest/umbra/internal/rewrite"
	"github.com/jmylchreest/umbra/internal/security"
)

func newCSSCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "css <file|->",
		Short: "Darken a stylesheet",
		Long: `Rewrite every colour-bearing declaration of a stylesheet with the dark
scheme policy and the thresholds from the preferences database.

The output starts with a marker comment; running it through css again leaves
it unchanged. Use "-" to read from stdin.

Examples:
  umbra css site.css > site.dark.css
  curl -s https://example.com/site.css | umbra css -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			p, err := e.loadPrefs(commandContext(cmd))
			if err != nil {
				return err
			}

			text, err := readCSS(cmd.InOrStdin(), args[0], e.cfg.Fetch.MaxBytes)
			if err != nil {
				return err
			}
			out := page.DarkenCSS(text, p)

			if output == "" {
				_, err = io.WriteString(cmd.OutOrStdout(), out)
				return err
			}
			if err := os.WriteFile(output, []byte(out), 0o644); err != nil { // #nosec G306 - Stylesheets are not sensitive
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	return cmd
}

func readCSS(stdin io.Reader, name string, maxBytes int64) (string, error) {
	var (
		data []byte
		err  error
	)
	if name == "-" {
		data, err = security.ReadAllLimited(stdin, maxBytes)
	} else {
		var f *os.File
		f, err = os.Open(name) // #nosec G304 - Input path comes from the command line
		if err != nil {
			return "", fmt.Errorf("failed to open %s: %w", name, err)
		}
		defer f.Close()
		data, err = security.ReadAllLimited(f, maxBytes)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", name, err)
	}

	res, err := compression.Decompress(data, name, "", maxBytes)
	if err != nil {
		return "", fmt.Errorf("failed to decompress %s: %w", name, err)
	}
	return string(res.Data), nil
}

func newColorCmd() *cobra.Command {
	var (
		property string
		swatch   bool
	)

	cmd := &cobra.Command{
		Use:   "color <value>",
		Short: "Show how a CSS value is rewritten",
		Long: `Run a single CSS property value through the dark scheme policy.

The property selects the colour goal: color aims light, background-color and
background aim dark, and background-image gradients are inverted. Any other
property rewrites the colour literals embedded in the value.

Examples:
  umbra color '#fff' --property background-color
  umbra color 'linear-gradient(white, #eee)' --property background-image
  umbra -v color 'rgb(200, 30, 30)' --swatch`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			p, err := e.loadPrefs(commandContext(cmd))
			if err != nil {
				return err
			}

			value := args[0]
			rw := rewrite.New(rewrite.DefaultTable(), p.Thresholds())
			result := rw.RewriteValue(property, value, nil)

			verbose, _ := cmd.Flags().GetBool("verbose")
			if !verbose {
				fmt.Fprintln(cmd.OutOrStdout(), result)
				return nil
			}
			if !cmd.Flags().Changed("swatch") {
				swatch = isTerminal(cmd.OutOrStdout())
			}
			return describeColor(cmd.OutOrStdout(), rw, p, property, value, result, swatch)
		},
	}

	cmd.Flags().StringVarP(&property, "property", "p", "color", "CSS property the value belongs to")
	cmd.Flags().BoolVar(&swatch, "swatch", false, "show 24-bit colour swatches in verbose output (default: when writing to a terminal)")
	return cmd
}

func describeColor(w io.Writer, rw *rewrite.Rewriter, p prefs.Preferences, property, value, result string, swatch bool) error {
	t := NewTable("field", "value")
	t.AddRow("property", property)
	t.AddRow("input", value)

	entry, hasGoal := rw.Table().Lookup(property)
	if hasGoal {
		t.AddRow("goal", entry.Goal.String())
	} else {
		t.AddRow("goal", "embedded literals")
	}

	if c, ok := colour.Parse(strings.TrimSpace(value)); ok {
		th := p.Thresholds()
		t.AddRow("parsed", c.String())
		t.AddRow("hex", c.Hex())
		t.AddRow("luminance", fmt.Sprintf("%.3f", colour.Luminance(c)))
		t.AddRow("grayscale", fmt.Sprint(colour.IsGrayscale(c, th.ColorThreshold)))
		if swatch {
			t.AddRow("before", colour.Swatch(c, c.Hex(), 0))
		}
	}

	t.AddRow("result", result)

	if rc, ok := colour.Parse(strings.TrimSpace(result)); ok {
		if hasGoal && entry.Goal != colour.GoalInvert {
			// Foregrounds are read against a dark page, backgrounds under light text.
			pole := colour.RGB(255, 255, 255)
			if entry.Goal > colour.GoalLight/2 {
				pole = colour.RGB(0, 0, 0)
			}
			t.AddRow("contrast", fmt.Sprintf("%.2f:1 against %s", colour.ContrastRatio(rc, pole), pole.Hex()))
		}
		if swatch {
			t.AddRow("after", colour.Swatch(rc, rc.Hex(), 0))
		}
	}
	return t.Render(w)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) // #nosec G115 - File descriptors fit in an int
}

// commandContext returns the command's context, or Background when run
// outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
