//Package config gathers the bot's settings. Values are layered: built-in defaults, then an optional
//YAML file, then environment variables (a .env file is read first), then command line flags.
package config

import (
	"os"

	"github.com/callummance/reactbot/persist"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

const (
	TokenEnvVar        string = "REACTBOT_TOKEN"
	OwnerIDEnvVar      string = "REACTBOT_OWNER_ID"
	ClientIDEnvVar     string = "REACTBOT_CLIENT_ID"
	GuildIDEnvVar      string = "REACTBOT_GUILD_ID"
	DataDirEnvVar      string = "REACTBOT_DATA_DIR"
	PrefixEnvVar       string = "REACTBOT_PREFIX"
	LogLevelEnvVar     string = "REACTBOT_LOG_LEVEL"
	MetricsAddrEnvVar  string = "REACTBOT_METRICS_ADDR"
	GitHubOwnerEnvVar  string = "REACTBOT_GITHUB_OWNER"
	GitHubRepoEnvVar   string = "REACTBOT_GITHUB_REPO"
	GitHubBranchEnvVar string = "REACTBOT_GITHUB_BRANCH"
	GitHubTokenEnvVar  string = "REACTBOT_GITHUB_TOKEN"
	GitHubPathEnvVar   string = "REACTBOT_GITHUB_PATH"
	DBAddrEnvVar       string = "REACTBOT_DB_ADDR"
	DBNameEnvVar       string = "REACTBOT_DB_NAME"
)

const (
	defaultDataDir      = "."
	defaultPrefix       = "!"
	defaultLogLevel     = "info"
	defaultGitHubBranch = "main"
	defaultDBName       = "reactbot"
)

//envKeys maps each environment variable onto its config key
var envKeys = map[string]string{
	TokenEnvVar:        "token",
	OwnerIDEnvVar:      "owner-id",
	ClientIDEnvVar:     "client-id",
	GuildIDEnvVar:      "guild-id",
	DataDirEnvVar:      "data-dir",
	PrefixEnvVar:       "prefix",
	LogLevelEnvVar:     "log-level",
	MetricsAddrEnvVar:  "metrics-addr",
	GitHubOwnerEnvVar:  "github-owner",
	GitHubRepoEnvVar:   "github-repo",
	GitHubBranchEnvVar: "github-branch",
	GitHubTokenEnvVar:  "github-token",
	GitHubPathEnvVar:   "github-path",
	DBAddrEnvVar:       "db-addr",
	DBNameEnvVar:       "db-name",
}

//Config holds every setting the bot reads at startup
type Config struct {
	//Discord bot token
	Token string `koanf:"token"`
	//User who may run every command and is the only one allowed to edit permit-lists
	OwnerID string `koanf:"owner-id"`
	//Application ID, used to register slash commands and build invite links
	ClientID string `koanf:"client-id"`
	//Guild slash commands are registered to. Empty registers them globally.
	GuildID string `koanf:"guild-id"`
	//Directory holding the JSON documents
	DataDir string `koanf:"data-dir"`
	//Prefix for text commands
	Prefix   string `koanf:"prefix"`
	LogLevel string `koanf:"log-level"`
	//Address for the metrics and health endpoints. Empty disables them.
	MetricsAddr string `koanf:"metrics-addr"`

	GitHubOwner  string `koanf:"github-owner"`
	GitHubRepo   string `koanf:"github-repo"`
	GitHubBranch string `koanf:"github-branch"`
	GitHubToken  string `koanf:"github-token"`
	GitHubPath   string `koanf:"github-path"`

	//RethinkDB address. Empty disables the database mirror.
	DBAddr string `koanf:"db-addr"`
	DBName string `koanf:"db-name"`
}

//RegisterFlags adds a flag for every setting to fs
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("token", "", "discord bot token")
	fs.String("owner-id", "", "user ID of the bot owner")
	fs.String("client-id", "", "discord application ID")
	fs.String("guild-id", "", "guild to register slash commands in (empty = global)")
	fs.String("data-dir", defaultDataDir, "directory holding the JSON documents")
	fs.String("prefix", defaultPrefix, "prefix for text commands")
	fs.String("log-level", defaultLogLevel, "log level (trace, debug, info, warn, error)")
	fs.String("metrics-addr", "", "metrics/health HTTP address (empty = disabled)")
	fs.String("github-owner", "", "owner of the GitHub repository documents are mirrored to")
	fs.String("github-repo", "", "GitHub repository documents are mirrored to")
	fs.String("github-branch", defaultGitHubBranch, "branch documents are mirrored to")
	fs.String("github-token", "", "GitHub access token")
	fs.String("github-path", "", "directory inside the repository to mirror documents into")
	fs.String("db-addr", "", "RethinkDB address (empty = disabled)")
	fs.String("db-name", defaultDBName, "RethinkDB database name")
}

//Load builds the configuration. configFile may be empty and flags may be nil.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debugf("No .env file loaded: %v", err)
	}

	k := koanf.New(".")
	defaults := map[string]string{
		"data-dir":      defaultDataDir,
		"prefix":        defaultPrefix,
		"log-level":     defaultLogLevel,
		"github-branch": defaultGitHubBranch,
		"db-name":       defaultDBName,
	}
	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("key", key).Wrap(err)
		}
	}

	if configFile != "" {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("file", configFile).Wrapf(err, "failed to read config file")
		}
	}

	for envVar, key := range envKeys {
		if val, exists := os.LookupEnv(envVar); exists {
			if err := k.Set(key, val); err != nil {
				return nil, oops.Code("CONFIG_INVALID").With("key", key).Wrap(err)
			}
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_INVALID").Wrapf(err, "failed to read flags")
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrapf(err, "failed to decode configuration")
	}
	return &cfg, nil
}

//Validate checks the settings needed to connect to discord are present
func (c *Config) Validate() error {
	if c.Token == "" {
		return oops.Code("CONFIG_INVALID").Errorf("`%v` env variable was not set", TokenEnvVar)
	}
	if c.OwnerID == "" {
		logrus.Warnf("`%v` was not set; commands without a permit-list cannot be used by anyone", OwnerIDEnvVar)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return oops.Code("CONFIG_INVALID").With("log-level", c.LogLevel).Wrap(err)
	}
	return nil
}

//Level returns the configured log level, falling back to info
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

//GitHub returns the mirror settings for persist.NewGitHubSink
func (c *Config) GitHub() persist.GitHubConfig {
	return persist.GitHubConfig{
		Owner:      c.GitHubOwner,
		Repo:       c.GitHubRepo,
		Branch:     c.GitHubBranch,
		Token:      c.GitHubToken,
		PathPrefix: c.GitHubPath,
	}
}
