// Package config resolves divrecon settings from defaults, an optional
// divrecon.yaml, a .env file, DIVRECON_* environment variables and bound CLI
// flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/wakala/divrecon/internal/domain"
	"github.com/wakala/divrecon/internal/export"
)

// EnvPrefix is prepended to every key when read from the environment.
const EnvPrefix = "DIVRECON"

// Keys.
const (
	KeyDataDir           = "data_dir"
	KeyOwnerFile         = "owner_file"
	KeyCustodianFile     = "custodian_file"
	KeyMatrixFile        = "matrix_file"
	KeyNestedFile        = "nested_file"
	KeySeverityFile      = "severity_file"
	KeyRemediationFile   = "remediation_file"
	KeyKnowledgeBaseFile = "knowledge_base_file"
	KeyDBPath            = "db_path"
	KeyPort              = "port"
	KeyMatchPolicy       = "match_policy"
	KeyRetention         = "retention"
	KeyOwnerLabel        = "owner_label"
	KeyCustodianLabel    = "custodian_label"
	KeyTolerance         = "tolerance"
	KeySchemaFile        = "schema_file"
	KeyLogLevel          = "log_level"
	KeyParallel          = "parallel"
	KeyRateLimit         = "rate_limit"
)

// Config is the resolved configuration. File paths are already joined with
// DataDir unless they were absolute.
type Config struct {
	DataDir           string
	OwnerFile         string
	CustodianFile     string
	MatrixFile        string
	NestedFile        string
	SeverityFile      string
	RemediationFile   string
	KnowledgeBaseFile string
	DBPath            string
	Port              int
	MatchPolicy       domain.MatchPolicy
	Retention         domain.RetentionPolicy
	Labels            export.Labels
	Tolerance         decimal.Decimal
	SchemaFile        string
	LogLevel          string
	Parallel          bool
	RateLimit         int
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyDataDir, "data")
	v.SetDefault(KeyOwnerFile, "NBIM_Dividend_Bookings.csv")
	v.SetDefault(KeyCustodianFile, "CUSTODY_Dividend_Bookings.csv")
	v.SetDefault(KeyMatrixFile, "paired_transposed.csv")
	v.SetDefault(KeyNestedFile, "paired_transposed.json")
	v.SetDefault(KeySeverityFile, "severity_results.json")
	v.SetDefault(KeyRemediationFile, "approved_remediations.json")
	v.SetDefault(KeyKnowledgeBaseFile, "knowledge_base.json")
	v.SetDefault(KeyDBPath, "divrecon.db")
	v.SetDefault(KeyPort, 8080)
	v.SetDefault(KeyMatchPolicy, string(domain.MatchByKey))
	v.SetDefault(KeyRetention, string(domain.RetainPrune))
	v.SetDefault(KeyOwnerLabel, export.DefaultLabels.Owner)
	v.SetDefault(KeyCustodianLabel, export.DefaultLabels.Custodian)
	v.SetDefault(KeyTolerance, "1.0")
	v.SetDefault(KeySchemaFile, "")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyParallel, false)
	v.SetDefault(KeyRateLimit, 50)
}

// Load reads configuration into v and resolves it. configFile may be empty,
// in which case divrecon.yaml is looked up in the working directory and a
// missing file is fine. envFiles default to ".env"; missing ones are skipped.
func Load(v *viper.Viper, configFile string, envFiles ...string) (*Config, error) {
	if err := loadDotEnv(envFiles); err != nil {
		return nil, err
	}

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("divrecon")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	return FromViper(v)
}

func loadDotEnv(files []string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// FromViper resolves and validates the settings held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	tol, err := decimal.NewFromString(strings.TrimSpace(v.GetString(KeyTolerance)))
	if err != nil {
		return nil, fmt.Errorf("%s: %q is not a number", KeyTolerance, v.GetString(KeyTolerance))
	}

	dataDir := v.GetString(KeyDataDir)
	path := func(key string) string {
		p := v.GetString(key)
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dataDir, p)
	}

	c := &Config{
		DataDir:           dataDir,
		OwnerFile:         path(KeyOwnerFile),
		CustodianFile:     path(KeyCustodianFile),
		MatrixFile:        path(KeyMatrixFile),
		NestedFile:        path(KeyNestedFile),
		SeverityFile:      path(KeySeverityFile),
		RemediationFile:   path(KeyRemediationFile),
		KnowledgeBaseFile: path(KeyKnowledgeBaseFile),
		DBPath:            path(KeyDBPath),
		Port:              v.GetInt(KeyPort),
		MatchPolicy:       domain.MatchPolicy(strings.ToLower(v.GetString(KeyMatchPolicy))),
		Retention:         domain.RetentionPolicy(strings.ToLower(v.GetString(KeyRetention))),
		Labels: export.Labels{
			Owner:     strings.TrimSpace(v.GetString(KeyOwnerLabel)),
			Custodian: strings.TrimSpace(v.GetString(KeyCustodianLabel)),
		},
		Tolerance:  tol,
		SchemaFile: v.GetString(KeySchemaFile),
		LogLevel:   v.GetString(KeyLogLevel),
		Parallel:   v.GetBool(KeyParallel),
		RateLimit:  v.GetInt(KeyRateLimit),
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks enumerations and ranges.
func (c *Config) Validate() error {
	switch c.MatchPolicy {
	case domain.MatchByKey, domain.MatchPositional:
	default:
		return fmt.Errorf("%s: unknown policy %q (want key or positional)", KeyMatchPolicy, c.MatchPolicy)
	}
	switch c.Retention {
	case domain.RetainPrune, domain.RetainPassthrough:
	default:
		return fmt.Errorf("%s: unknown policy %q (want prune or passthrough)", KeyRetention, c.Retention)
	}
	if !c.Tolerance.IsPositive() {
		return fmt.Errorf("%s: must be positive, got %s", KeyTolerance, c.Tolerance)
	}
	if c.Labels.Owner == "" || c.Labels.Custodian == "" {
		return fmt.Errorf("side labels must not be blank")
	}
	if strings.EqualFold(c.Labels.Owner, c.Labels.Custodian) {
		return fmt.Errorf("side labels must differ, both are %q", c.Labels.Owner)
	}
	if strings.Contains(c.Labels.Owner+c.Labels.Custodian, "#") {
		return fmt.Errorf("side labels must not contain '#'")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("%s: must not be negative, got %d", KeyRateLimit, c.RateLimit)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%s: %d out of range", KeyPort, c.Port)
	}
	return nil
}
