package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rowjay/mssql-restore/internal/app"
	"github.com/rowjay/mssql-restore/internal/config"
	"github.com/rowjay/mssql-restore/internal/logging"
	"github.com/rowjay/mssql-restore/internal/mssql"
	"github.com/rowjay/mssql-restore/internal/notify"
	"github.com/rowjay/mssql-restore/internal/restore"
	"github.com/rowjay/mssql-restore/internal/source"
	"github.com/rowjay/mssql-restore/internal/version"
)

type rootFlags struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
}

type overrideFlags struct {
	ServerHost    string
	ServerPort    int
	Instance      string
	Username      string
	Password      string
	SqlcmdPath    string
	Database      string
	DataDir       string
	Replace       bool
	PostScript    string
	DryRun        bool
	SourceBackend string
	TempDir       string
	DecryptionKey string
	S3Endpoint    string
	S3Bucket      string
	S3AccessKey   string
	S3SecretKey   string
	S3Region      string
	S3UseSSL      string
	S3PathStyle   string
}

func main() {
	root := &rootFlags{}
	overrides := &overrideFlags{}

	rootCmd := &cobra.Command{
		Use:   "msr",
		Short: "Restore SQL Server backups under a new database name with relocated files",
	}

	rootCmd.PersistentFlags().StringVar(&root.ConfigPath, "config", "", "Path to config file (yaml/toml/json or .enc)")
	rootCmd.PersistentFlags().StringVar(&root.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&root.LogFormat, "log-format", "", "Log format (json, console)")

	rootCmd.PersistentFlags().StringVar(&overrides.ServerHost, "server", "", "SQL Server host")
	rootCmd.PersistentFlags().IntVar(&overrides.ServerPort, "port", 0, "SQL Server port")
	rootCmd.PersistentFlags().StringVar(&overrides.Instance, "instance", "", "Named instance (overrides port addressing)")
	rootCmd.PersistentFlags().StringVar(&overrides.Username, "user", "", "SQL Server username")
	rootCmd.PersistentFlags().StringVar(&overrides.Password, "password", "", "SQL Server password")
	rootCmd.PersistentFlags().StringVar(&overrides.SqlcmdPath, "sqlcmd", "", "Path to the sqlcmd binary")

	rootCmd.PersistentFlags().StringVar(&overrides.SourceBackend, "source", "", "Backup source backend (local, s3)")
	rootCmd.PersistentFlags().StringVar(&overrides.TempDir, "temp-dir", "", "Staging directory for fetched backups")
	rootCmd.PersistentFlags().StringVar(&overrides.DecryptionKey, "decryption-key", "", "Key (base64 or hex) for encrypted backup artifacts")
	rootCmd.PersistentFlags().StringVar(&overrides.S3Endpoint, "s3-endpoint", "", "S3 endpoint (MinIO/OSS)")
	rootCmd.PersistentFlags().StringVar(&overrides.S3Bucket, "s3-bucket", "", "S3 bucket")
	rootCmd.PersistentFlags().StringVar(&overrides.S3AccessKey, "s3-access-key", "", "S3 access key")
	rootCmd.PersistentFlags().StringVar(&overrides.S3SecretKey, "s3-secret-key", "", "S3 secret key")
	rootCmd.PersistentFlags().StringVar(&overrides.S3Region, "s3-region", "", "S3 region")
	rootCmd.PersistentFlags().StringVar(&overrides.S3UseSSL, "s3-ssl", "", "Use SSL for S3 endpoint (true/false)")
	rootCmd.PersistentFlags().StringVar(&overrides.S3PathStyle, "s3-path-style", "", "Force path-style S3 (true/false)")

	rootCmd.AddCommand(newRestoreCmd(root, overrides))
	rootCmd.AddCommand(newInspectCmd(root, overrides))
	rootCmd.AddCommand(newValidateCmd(root, overrides))
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(restore.ExitCodeFor(err))
	}
}

func newRestoreCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	var backup string

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore a backup as a new database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			if backup == "" {
				return fmt.Errorf("--backup is required")
			}
			appSvc, cfg, logger, err := buildApp(root, overrides)
			if err != nil {
				return err
			}
			if cfg.Restore.Database == "" {
				return fmt.Errorf("target database name is required (--database)")
			}

			ctx, cancel := context.WithTimeout(context.Background(), cfg.Global.OperationTimeout)
			defer cancel()

			result, err := appSvc.Restore(ctx, backup)
			if result != nil {
				printResult(result)
			}
			if err != nil {
				logger.Error().Err(err).Str("backup", backup).Msg("restore failed")
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&backup, "backup", "", "Backup reference (local path or object key)")
	cmd.Flags().StringVar(&overrides.Database, "database", "", "Target database name")
	cmd.Flags().StringVar(&overrides.DataDir, "data-dir", "", "Destination directory for relocated files")
	cmd.Flags().BoolVar(&overrides.Replace, "replace", false, "Overwrite an existing database of the same name")
	cmd.Flags().StringVar(&overrides.PostScript, "post-script", "", "T-SQL script to run after a successful restore")
	cmd.Flags().BoolVar(&overrides.DryRun, "dry-run", false, "Resolve and plan without executing the restore")
	return cmd
}

func newInspectCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	var backup string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show a backup's file manifest and the restore statement that would run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			if backup == "" {
				return fmt.Errorf("--backup is required")
			}
			appSvc, cfg, _, err := buildApp(root, overrides)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), cfg.Global.OperationTimeout)
			defer cancel()

			manifest, plan, stmt, err := appSvc.Inspect(ctx, backup)
			if err != nil {
				return err
			}
			for i, entry := range manifest.Entries {
				fmt.Printf("%s\t%s\t%s -> %s\n", entry.Kind, entry.LogicalName, entry.PhysicalName, plan.Moves[i].Destination)
			}
			fmt.Println(stmt)
			return nil
		},
	}

	cmd.Flags().StringVar(&backup, "backup", "", "Backup reference (local path or object key)")
	cmd.Flags().StringVar(&overrides.Database, "database", "", "Target database name")
	cmd.Flags().StringVar(&overrides.DataDir, "data-dir", "", "Destination directory for relocated files")
	cmd.Flags().BoolVar(&overrides.Replace, "replace", false, "Plan with the overwrite directive")
	return cmd
}

func newValidateCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration, tooling, and engine connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			appSvc, cfg, logger, err := buildApp(root, overrides)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Global.OperationTimeout)
			defer cancel()
			if err := appSvc.Validate(ctx); err != nil {
				return err
			}
			logger.Info().Msg("validation succeeded")
			return nil
		},
	}
}

func newConfigCmd() *cobra.Command {
	var input string
	var output string
	var key string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Config utilities",
	}

	encrypt := &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt a config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if input == "" || output == "" || key == "" {
				return fmt.Errorf("--input, --output, and --key are required")
			}
			return config.EncryptConfigFile(input, output, key)
		},
	}
	encrypt.Flags().StringVar(&input, "input", "", "Input config file")
	encrypt.Flags().StringVar(&output, "output", "", "Output encrypted config file")
	encrypt.Flags().StringVar(&key, "key", "", "Encryption key (base64 or hex)")

	cmd.AddCommand(encrypt)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("msr %s (commit %s, built %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}

func buildApp(root *rootFlags, overrides *overrideFlags) (*app.App, *config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(root.ConfigPath)
	if err != nil {
		return nil, nil, zerolog.Logger{}, err
	}
	applyOverrides(cfg, root, overrides)

	logger := logging.Configure(cfg.Global.LogLevel, cfg.Global.LogFormat)
	runner := mssql.NewSqlcmd(cfg.Server)
	src, err := source.New(cfg.Source)
	if err != nil {
		return nil, nil, logger, err
	}
	appSvc := app.New(cfg, runner, src, logger, notify.FromConfig(cfg.Notifications))
	return appSvc, cfg, logger, nil
}

func printResult(result *restore.Result) {
	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return
	}
	fmt.Println(string(payload))
}

func applyOverrides(cfg *config.Config, root *rootFlags, overrides *overrideFlags) {
	if root.LogLevel != "" {
		cfg.Global.LogLevel = root.LogLevel
	}
	if root.LogFormat != "" {
		cfg.Global.LogFormat = root.LogFormat
	}

	if overrides.ServerHost != "" {
		cfg.Server.Host = overrides.ServerHost
	}
	if overrides.ServerPort != 0 {
		cfg.Server.Port = overrides.ServerPort
	}
	if overrides.Instance != "" {
		cfg.Server.Instance = overrides.Instance
	}
	if overrides.Username != "" {
		cfg.Server.Username = overrides.Username
	}
	if overrides.Password != "" {
		cfg.Server.Password = overrides.Password
	}
	if overrides.SqlcmdPath != "" {
		cfg.Server.SqlcmdPath = overrides.SqlcmdPath
	}

	if overrides.Database != "" {
		cfg.Restore.Database = overrides.Database
	}
	if overrides.DataDir != "" {
		cfg.Restore.DataDir = overrides.DataDir
	}
	if overrides.Replace {
		cfg.Restore.Replace = true
	}
	if overrides.PostScript != "" {
		cfg.Restore.PostScript = overrides.PostScript
	}
	if overrides.DryRun {
		cfg.Restore.DryRun = true
	}

	if overrides.SourceBackend != "" {
		cfg.Source.Backend = overrides.SourceBackend
	}
	if overrides.TempDir != "" {
		cfg.Source.TempDir = overrides.TempDir
	}
	if overrides.DecryptionKey != "" {
		cfg.Source.DecryptionKey = overrides.DecryptionKey
	}
	if overrides.S3Endpoint != "" {
		cfg.Source.S3.Endpoint = overrides.S3Endpoint
	}
	if overrides.S3Bucket != "" {
		cfg.Source.S3.Bucket = overrides.S3Bucket
	}
	if overrides.S3AccessKey != "" {
		cfg.Source.S3.AccessKey = overrides.S3AccessKey
	}
	if overrides.S3SecretKey != "" {
		cfg.Source.S3.SecretKey = overrides.S3SecretKey
	}
	if overrides.S3Region != "" {
		cfg.Source.S3.Region = overrides.S3Region
	}
	if overrides.S3UseSSL != "" {
		cfg.Source.S3.UseSSL = strings.EqualFold(overrides.S3UseSSL, "true") || overrides.S3UseSSL == "1"
	}
	if overrides.S3PathStyle != "" {
		cfg.Source.S3.ForcePathStyle = strings.EqualFold(overrides.S3PathStyle, "true") || overrides.S3PathStyle == "1"
	}

	cfg.Source.Backend = strings.ToLower(cfg.Source.Backend)
}
