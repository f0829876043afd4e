package app

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tqrg-bot/ambari-sync/internal/query"
)

var compileCmd = &cobra.Command{
	Use:   "compile [file]",
	Short: "Compile YAML filter specs into an Ambari query string",
	Long: `Compile reads a YAML list of filter specs from a file, or from stdin when the
file is omitted or "-", and prints the compiled query parameters.

With --template the parameters are placed into a request template containing
"<parameters>" and printed as a cluster-scoped path.

Example input:

  - key: Hosts/host_name
    type: MATCH
    value: ".*c64.*"
  - key: Hosts/host_name
    type: SORT
    value: ASC`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := cmd.InOrStdin()
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open filter file: %w", err)
			}
			defer f.Close()
			in = f
		}

		template, _ := cmd.Flags().GetString("template")
		prefix, _ := cmd.Flags().GetString("api-prefix")
		cluster, _ := cmd.Flags().GetString("cluster")

		out, err := compileSpecs(in, template, query.NewURLBuilder(prefix, cluster, nil))
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
		return err
	},
}

func init() {
	compileCmd.Flags().String("template", "", "Request template containing "+query.ParametersPlaceholder)
	compileCmd.Flags().String("api-prefix", "/api/v1", "API prefix used with --template")
	compileCmd.Flags().String("cluster", "", "Cluster name used with --template")
}

func compileSpecs(in io.Reader, template string, urls *query.URLBuilder) (string, error) {
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("failed to read filter specs: %w", err)
	}

	var specs []query.Spec
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return "", fmt.Errorf("failed to parse filter specs: %w", err)
	}

	filters, err := query.FromSpecs(specs)
	if err != nil {
		return "", err
	}

	if template != "" {
		return urls.Complex(template, filters)
	}
	return urls.Compiler().Compile(filters)
}
