package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aretw0/folio"
	"github.com/aretw0/folio/pkg/core"
	"github.com/aretw0/folio/pkg/docsys"
)

var (
	verbose bool
	cfgFile string
	cfg     config
)

// config is folio.yaml, overridable by FOLIO_* variables and flags.
type config struct {
	Debounce    time.Duration   `mapstructure:"debounce"`
	EchoWindow  time.Duration   `mapstructure:"echo_window"`
	RecentLimit int             `mapstructure:"recent_limit"`
	Plugins     []string        `mapstructure:"plugins"`
	Ignore      []string        `mapstructure:"ignore"`
	OnModified  string          `mapstructure:"on_modified"`
	OnRemoved   string          `mapstructure:"on_removed"`
	Unattended  bool            `mapstructure:"unattended"`
	DocTypes    []docTypeConfig `mapstructure:"doc_types"`
}

type docTypeConfig struct {
	ID          string   `mapstructure:"id"`
	Name        string   `mapstructure:"name"`
	Description string   `mapstructure:"description"`
	Extensions  []string `mapstructure:"extensions"`
}

func (c config) docTypes() []docsys.DocType {
	out := make([]docsys.DocType, 0, len(c.DocTypes))
	for _, dt := range c.DocTypes {
		out = append(out, docsys.DocType{
			ID:          dt.ID,
			DisplayName: dt.Name,
			Description: dt.Description,
			Extensions:  dt.Extensions,
		})
	}
	return out
}

// options turns the configuration into runtime options. With persist the
// workspace settings file is loaded and saved back.
func (c config) options(logger *slog.Logger, handler core.PromptHandler, persist bool) []folio.Option {
	opts := []folio.Option{
		folio.WithLogger(logger),
		folio.WithPromptHandler(handler),
		folio.WithDebounce(c.Debounce),
		folio.WithEchoWindow(c.EchoWindow),
		folio.WithRecentLimit(c.RecentLimit),
		folio.WithIgnorePatterns(c.Ignore...),
		folio.WithDocTypes(c.docTypes()...),
	}
	if !persist {
		return opts
	}
	if root, err := folio.FindWorkspaceRoot("."); err == nil {
		opts = append(opts, folio.WithSettingsFile(folio.SettingsPath(root)))
	}
	return opts
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "folio",
	Short: "An open-document manager that keeps editors and the disk in agreement",
	Long: `Folio opens files as documents, saves them atomically and notices when
something else changes them on disk. Every external change is resolved by a
prompt: reload, ignore, save elsewhere or close.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)

		return loadConfig()
	},
}

func loadConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("folio")
		viper.SetConfigType("yaml")
		if root, err := folio.FindWorkspaceRoot("."); err == nil {
			viper.AddConfigPath(root)
		}
		viper.AddConfigPath(".")
	}
	viper.SetEnvPrefix("FOLIO")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("debounce", docsys.DefaultDebounce)
	viper.SetDefault("echo_window", docsys.DefaultEchoWindow)
	viper.SetDefault("recent_limit", docsys.DefaultRecentLimit)
	viper.SetDefault("on_modified", core.DecisionIgnore.String())
	viper.SetDefault("on_removed", core.DecisionClose.String())

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	} else {
		slog.Debug("config loaded", "file", viper.ConfigFileUsed())
	}

	cfg = config{}
	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fatal("folio", err)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: folio.yaml in the workspace root)")
	rootCmd.PersistentFlags().StringSlice("plugins", nil, "Plugin directories to bootstrap from")
	_ = viper.BindPFlag("plugins", rootCmd.PersistentFlags().Lookup("plugins"))
}
