// The policy verb prints a variant's column policy and checks input headers against it.

package policycmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"sacctcollapse/collapse"
	"sacctcollapse/command"
	"sacctcollapse/policy"
)

type document struct {
	Variant         string                `yaml:"variant"`
	ByteUnit        string                `yaml:"byte_unit"`
	DurationColumns []string              `yaml:"duration_columns"`
	Header          bool                  `yaml:"header"`
	Output          []string              `yaml:"output"`
	Columns         []policy.ColumnPolicy `yaml:"columns"`
}

func New(env *command.Env) *cobra.Command {
	var (
		variant string
		check   string
	)
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Print the column policy of a variant as YAML",
		Long: `Print the column policy of a variant as YAML.  With --check, instead read the header
line of a file and report the columns the variant does not classify and the columns it needs
that are absent.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := env.Config()
			if err != nil {
				return err
			}
			engine, err := env.Engine(cfg, variant)
			if err != nil {
				return err
			}
			v := engine.Variant()
			if check != "" {
				return checkHeader(env.Stdout, v, check, cfg.Delimiter)
			}
			return Print(env.Stdout, v)
		},
	}
	cmd.Flags().StringVar(&variant, "variant", "", "collapse variant (first-pass, analytic); default from config")
	cmd.Flags().StringVar(&check, "check", "", "file whose header line to check")
	return cmd
}

func Print(w io.Writer, v *collapse.Variant) error {
	doc := document{
		Variant:         v.Name,
		ByteUnit:        v.Bytes.String(),
		DurationColumns: v.DurationColumns,
		Header:          v.Header,
		Output:          v.OutputColumns(),
		Columns:         v.Policy.Describe(),
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

func checkHeader(w io.Writer, v *collapse.Variant, filename, delimiter string) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	header, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && err != io.EOF {
		return err
	}
	columns := strings.Split(strings.TrimRight(header, "\r\n"), delimiter)
	return Check(w, v, columns)
}

// Check reports unclassified and missing columns, and fails if there are missing ones.
func Check(w io.Writer, v *collapse.Variant, columns []string) error {
	unmapped := v.Policy.Unmapped(columns)
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}
	var missing []string
	for _, c := range v.Required() {
		if !present[c] {
			missing = append(missing, c)
		}
	}
	for _, c := range unmapped {
		fmt.Fprintf(w, "unmapped: %s\n", c)
	}
	for _, c := range missing {
		fmt.Fprintf(w, "missing: %s\n", c)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%d required columns missing for %s", len(missing), v.Name)
	}
	fmt.Fprintf(w, "%d columns ok for %s, %d ignored\n", len(columns)-len(unmapped), v.Name, len(unmapped))
	return nil
}
