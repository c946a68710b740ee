package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"pms-backup/internal/config"
	apperrors "pms-backup/internal/errors"
	"pms-backup/internal/logging"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// Global flag variables
var (
	verbose   bool
	quiet     bool
	debug     bool
	logFile   string
	logFormat string
	noColor   bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pms-backup",
	Short: "Scheduled backups of the PMS database and upload directories",
	Long: `pms-backup dumps the PMS MySQL database and archives the upload
directories of the upload based modules into the backup directory.

Examples:
  # Full backup, meant to be run from cron
  pms-backup cron:make-backup

  # Database only
  pms-backup cron:make-backup --skip-files

  # Skip one upload module
  pms-backup cron:make-backup --skip-upload-module=My\ Images

  # Use a specific configuration file
  pms-backup --config=/etc/pms-backup.yaml cron:make-backup`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		// Parse errors were already rendered by the console.
		if !apperrors.IsType(err, apperrors.ErrorTypeParse) {
			fmt.Fprintln(os.Stderr, "Error:", apperrors.FormatUserError(err))
		}
		stop()
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.pms-backup.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only print errors")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable color output")

	viper.BindPFlag("logging.verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("logging.quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	viper.BindPFlag("logging.debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("logging.file", rootCmd.PersistentFlags().Lookup("log-file"))
	viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(createVersionCommand())
	rootCmd.AddCommand(createConfigCommand())
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".pms-backup" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".pms-backup")
	}

	config.RegisterDefaults(viper.GetViper())
	config.ConfigureEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	} else if cfgFile != "" {
		cobra.CheckErr(fmt.Errorf("failed to read config file %s: %w", cfgFile, err))
	}
}

// loadConfig builds the configuration from file, environment and flags
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, apperrors.NewConfigurationError("failed to load configuration", err)
	}

	if noColor {
		cfg.Display.ColorEnabled = false
	}
	return cfg, nil
}

// newLogger creates the structured logger for cfg
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	logger, err := logging.NewLogger(logging.Config{
		Level:   logging.ParseLevel(cfg.Logging.Verbose, cfg.Logging.Quiet, cfg.Logging.Debug),
		Output:  os.Stderr,
		Format:  cfg.Logging.Format,
		LogFile: cfg.Logging.File,
	})
	if err != nil {
		return nil, apperrors.NewConfigurationError("failed to create logger", err)
	}
	return logger, nil
}

// Version information (set by main package)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
	goVersion = "unknown"
)

// SetVersionInfo sets the version information from build flags
func SetVersionInfo(v, bt, gc, gv string) {
	version = v
	buildTime = bt
	gitCommit = gc
	goVersion = gv
}

func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "pms-backup version %s\n", version)
			fmt.Fprintf(out, "Built: %s\n", buildTime)
			fmt.Fprintf(out, "Commit: %s\n", gitCommit)
			fmt.Fprintf(out, "Go version: %s\n", goVersion)
		},
	}
}

func createConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Generate a sample configuration file",
		Long: `Generate a sample configuration file that can be used with the --config flag.

Every key can also be set through the environment, for example:
  PMS_BACKUP_DATABASE_PASSWORD=secret
  PMS_BACKUP_UPLOADS_IMAGES_DIR=upload/images
  PMS_BACKUP_UPLOADS_FILES_DIR=upload/files

Examples:
  pms-backup config > ~/.pms-backup.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.SampleYAML()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "# pms-backup configuration")
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
