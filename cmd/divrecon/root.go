package main

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wakala/divrecon/internal/config"
	"github.com/wakala/divrecon/internal/logging"
)

// cli carries state shared by every command of one invocation.
type cli struct {
	v          *viper.Viper
	configFile string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}

	root := &cobra.Command{
		Use:   "divrecon",
		Short: "Dividend booking reconciliation",
		Long: `divrecon pairs an asset owner's dividend bookings with the custodian's
bookings for the same corporate-action events, exports the pairs as a
transposed matrix and a nested document, and records field-level
discrepancies for every run.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
	}

	f := root.PersistentFlags()
	f.StringVar(&c.configFile, "config", "", "config file (default is ./divrecon.yaml)")
	f.String("data-dir", "", "directory holding inputs and artifacts")
	f.String("db", "", "SQLite run ledger path")
	f.String("match-policy", "", "pairing policy: key or positional")
	f.String("retention", "", "field retention: prune or passthrough")
	f.String("tolerance", "", "numeric equality tolerance")
	f.String("schema", "", "YAML column alias schema overriding the built-in one")
	f.String("log-level", "", "log level: debug, info, warn, error")
	f.Bool("parallel", false, "normalize both sides concurrently")

	for key, flag := range map[string]string{
		config.KeyDataDir:     "data-dir",
		config.KeyDBPath:      "db",
		config.KeyMatchPolicy: "match-policy",
		config.KeyRetention:   "retention",
		config.KeyTolerance:   "tolerance",
		config.KeySchemaFile:  "schema",
		config.KeyLogLevel:    "log-level",
		config.KeyParallel:    "parallel",
	} {
		if err := c.v.BindPFlag(key, f.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("bind %s flag: %v", flag, err))
		}
	}

	root.AddCommand(
		c.newPairCmd(),
		c.newDiffCmd(),
		c.newRunsCmd(),
		c.newSeverityCmd(),
		c.newRemediationCmd(),
		c.newUpdateCmd(),
		c.newServeCmd(),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(c.v, c.configFile)
	if err != nil {
		return err
	}
	logging.SetLevel(cfg.LogLevel)
	c.cfg = cfg
	return nil
}

// --- helpers ---

func renderTable(w io.Writer, headers []string, rows [][]string) error {
	table := tablewriter.NewTable(w)
	h := make([]any, len(headers))
	for i, s := range headers {
		h[i] = s
	}
	table.Header(h...)
	for _, row := range rows {
		cells := make([]any, len(row))
		for i, s := range row {
			cells[i] = s
		}
		if err := table.Append(cells...); err != nil {
			return err
		}
	}
	return table.Render()
}
