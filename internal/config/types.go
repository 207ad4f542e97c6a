package config

import "time"

// Config is the root configuration schema.
type Config struct {
	Global        GlobalConfig        `mapstructure:"global"`
	Server        ServerConfig        `mapstructure:"server"`
	Restore       RestoreConfig       `mapstructure:"restore"`
	Source        SourceConfig        `mapstructure:"source"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Schedule      ScheduleConfig      `mapstructure:"schedule"`
}

type GlobalConfig struct {
	LogLevel          string        `mapstructure:"log_level"`
	LogFormat         string        `mapstructure:"log_format"` // json or console
	LockFile          string        `mapstructure:"lock_file"`  // empty disables the host-level guard
	OperationTimeout  time.Duration `mapstructure:"operation_timeout"`
	ConfigPassphrase  string        `mapstructure:"config_passphrase"` // optional; may come from env
	AllowMissingTools bool          `mapstructure:"allow_missing_tools"`
}

// ServerConfig describes the SQL Server instance that performs the restore.
type ServerConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	Instance          string        `mapstructure:"instance"` // named instance, overrides port addressing
	Username          string        `mapstructure:"username"`
	Password          string        `mapstructure:"password"`
	TrustCertificate  bool          `mapstructure:"trust_certificate"`
	Encrypt           bool          `mapstructure:"encrypt"`
	ConnectionTimeout time.Duration `mapstructure:"connection_timeout"`
	SqlcmdPath        string        `mapstructure:"sqlcmd_path"` // defaults to "sqlcmd" on PATH
}

type RestoreConfig struct {
	Database   string `mapstructure:"database"` // target database name
	DataDir    string `mapstructure:"data_dir"` // overrides the engine's default data path
	Replace    bool   `mapstructure:"replace"`  // overwrite an existing database of the same name
	PostScript string `mapstructure:"post_script"`
	DryRun     bool   `mapstructure:"dry_run"`
}

type SourceConfig struct {
	Backend       string  `mapstructure:"backend"` // local, s3
	S3            S3Store `mapstructure:"s3"`
	TempDir       string  `mapstructure:"temp_dir"` // staging area for fetched copies
	DecryptionKey string  `mapstructure:"decryption_key"`
}

type S3Store struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	AccessKey       string `mapstructure:"access_key"`
	SecretKey       string `mapstructure:"secret_key"`
	SessionToken    string `mapstructure:"session_token"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
	TLSInsecureSkip bool   `mapstructure:"tls_insecure_skip"`
}

type NotificationsConfig struct {
	Webhooks   []WebhookConfig  `mapstructure:"webhooks"`
	Mattermost []MattermostHook `mapstructure:"mattermost"`
	Matrix     []MatrixConfig   `mapstructure:"matrix"`
}

type WebhookConfig struct {
	Name    string            `mapstructure:"name"`
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
}

type MattermostHook struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

type MatrixConfig struct {
	Name        string `mapstructure:"name"`
	ServerURL   string `mapstructure:"server_url"`
	AccessToken string `mapstructure:"access_token"`
	RoomID      string `mapstructure:"room_id"`
}

type ScheduleConfig struct {
	WindowStart string `mapstructure:"window_start"` // HH:MM local time
	WindowEnd   string `mapstructure:"window_end"`
	Timezone    string `mapstructure:"timezone"`
}
