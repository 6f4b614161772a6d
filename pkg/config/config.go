package config

import (
	"os"
	"strings"

	"github.com/golang/glog"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	ListenAddr          = "listen-addr"
	StoreDriver         = "store-driver"
	DBHost              = "db-host"
	DBPort              = "db-port"
	DBUser              = "db-user"
	DBPassword          = "db-password"
	DBName              = "db-name"
	DBSSLMode           = "db-sslmode"
	JWTSigningKey       = "jwt-signing-key"
	CompletionThreshold = "completion-threshold"
	NotifyWebhookURL    = "notify-webhook-url"
	AdminRecipient      = "admin-recipient"
	CatalogFile         = "catalog-file"
	QuestionFile        = "question-file"
	CORSOrigins         = "cors-origins"
	EnvFile             = "env-file"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

const envPrefix = "TRAINING"

func init() {
	// Address the HTTP server listens on
	viper.SetDefault(ListenAddr, ":8080")

	// Record store backend, postgres or memory
	viper.SetDefault(StoreDriver, DriverPostgres)

	viper.SetDefault(DBHost, "localhost")
	viper.SetDefault(DBPort, "5432")
	viper.SetDefault(DBUser, "postgres")
	viper.SetDefault(DBPassword, "")
	viper.SetDefault(DBName, "training")
	viper.SetDefault(DBSSLMode, "disable")

	// HS256 key used to sign and verify bearer tokens
	viper.SetDefault(JWTSigningKey, "")

	// Share of a section video that must be watched to complete it
	viper.SetDefault(CompletionThreshold, 0.95)

	// Completion hook; empty disables it
	viper.SetDefault(NotifyWebhookURL, "")

	// Who receives the completion mail
	viper.SetDefault(AdminRecipient, "neej@exordiom.com")

	// Optional JSON files overriding the built-in section catalog and seeding questions
	viper.SetDefault(CatalogFile, "")
	viper.SetDefault(QuestionFile, "")

	viper.SetDefault(CORSOrigins, []string{"*"})

	viper.SetDefault(EnvFile, ".env")
}

// Flags returns the command line flags for every key. Their defaults come from viper.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("training", pflag.ContinueOnError)
	fs.String(ListenAddr, viper.GetString(ListenAddr), "address to listen on")
	fs.String(StoreDriver, viper.GetString(StoreDriver), "record store backend (postgres|memory)")
	fs.String(DBHost, viper.GetString(DBHost), "postgres host")
	fs.String(DBPort, viper.GetString(DBPort), "postgres port")
	fs.String(DBUser, viper.GetString(DBUser), "postgres user")
	fs.String(DBPassword, viper.GetString(DBPassword), "postgres password")
	fs.String(DBName, viper.GetString(DBName), "postgres database")
	fs.String(DBSSLMode, viper.GetString(DBSSLMode), "postgres sslmode")
	fs.String(JWTSigningKey, viper.GetString(JWTSigningKey), "HS256 signing key for bearer tokens")
	fs.Float64(CompletionThreshold, viper.GetFloat64(CompletionThreshold), "watched share needed to complete a section")
	fs.String(NotifyWebhookURL, viper.GetString(NotifyWebhookURL), "URL notified when a user passes the quiz")
	fs.String(AdminRecipient, viper.GetString(AdminRecipient), "recipient of the completion mail")
	fs.String(CatalogFile, viper.GetString(CatalogFile), "JSON section catalog")
	fs.String(QuestionFile, viper.GetString(QuestionFile), "JSON question bank to seed")
	fs.StringSlice(CORSOrigins, viper.GetStringSlice(CORSOrigins), "allowed CORS origins")
	fs.String(EnvFile, viper.GetString(EnvFile), "dotenv file loaded before reading the environment")
	return fs
}

// Load parses args, loads the dotenv file if present and binds flags and TRAINING_*
// environment variables into viper. Flags win over the environment.
func Load(fs *pflag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}

	envFile, _ := fs.GetString(EnvFile)
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !os.IsNotExist(err) {
				return err
			}
			glog.V(2).Infof("no env file at %s", envFile)
		}
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	return viper.BindPFlags(fs)
}
