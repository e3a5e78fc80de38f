package core

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config contains all of the configuration options available to any of the
// server's components.
type Config struct {
	// Hostname or IP address on which the server will listen for connections.
	Hostname string `mapstructure:"hostname"`
	// Maximum number of concurrent connections the server will allow.
	MaxConnections int `mapstructure:"max_connections"`

	Logging struct {
		// Full path to file to which logs will be written. Blank will write to stdout.
		LogFilePath string `mapstructure:"log_file_path"`
		// Minimum level of a log required to be written. Options: debug, info, warn, error
		LogLevel string `mapstructure:"log_level"`
	} `mapstructure:"logging"`

	Database struct {
		// Hostname of the Postgres database instance.
		Host string `mapstructure:"host"`
		// Port on db_host on which the Postgres instance is accepting connections.
		Port int `mapstructure:"port"`
		// Name of the database for the server's accounts and match history.
		Name string `mapstructure:"name"`
		// Username and password of a user with full RW privileges to ${db_name}.
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
		// Set to verify-full if the Postgres instance supports SSL.
		SSLMode string `mapstructure:"sslmode"`
	} `mapstructure:"database"`

	GameServer struct {
		// Port on which the game server will listen for client connections.
		Port int `mapstructure:"port"`
		// How long a fresh connection may sit unauthenticated before it is dropped.
		AuthTimeout time.Duration `mapstructure:"auth_timeout"`
	} `mapstructure:"game_server"`

	Auth struct {
		// HMAC secret for verifying session tokens.
		JWTSecret string `mapstructure:"jwt_secret"`
		// How long an address stays on the ban list.
		BanDuration time.Duration `mapstructure:"ban_duration"`
	} `mapstructure:"auth"`

	Matchmaking struct {
		// Interval between matching passes over the species queues.
		TickInterval time.Duration `mapstructure:"tick_interval"`
		// Maximum time an entrant may wait before being evicted from the queue.
		MaxWaitTime time.Duration `mapstructure:"max_wait_time"`
	} `mapstructure:"matchmaking"`

	Game struct {
		// Full (or relative to the current directory) path to the directory
		// containing the unit/path/bounds asset files.
		AssetsDir string `mapstructure:"assets_dir"`
		// Interval between mineral accruals pushed to each player.
		MineralSyncInterval time.Duration `mapstructure:"mineral_sync_interval"`
		// Interval between server-pushed opponent position updates.
		LocationSyncInterval time.Duration `mapstructure:"location_sync_interval"`
		// Uninterrupted time a team must hold sole presence at a checkpoint
		// to occupy it.
		CheckpointDwellTime time.Duration `mapstructure:"checkpoint_dwell_time"`
		// Multiplier applied to a unit's rated speed when validating
		// client-reported movement. 1.05 tolerates 5% of network jitter.
		SpeedErrorMargin float64 `mapstructure:"speed_error_margin"`
		// Slack subtracted from spell cooldowns so legitimate near-cooldown
		// casts are not rejected due to latency.
		SpellErrorMargin time.Duration `mapstructure:"spell_error_margin"`
	} `mapstructure:"game"`

	Debugging struct {
		// Enable extra info-providing mechanisms for the server.
		PprofEnabled bool `mapstructure:"pprof_enabled"`
		// Port on which a pprof server will be started if debug mode is enabled.
		PprofPort int `mapstructure:"pprof_port"`
		// Log decoded packets to stdout.
		PacketLoggingEnabled bool `mapstructure:"packet_logging_enabled"`
		// Enable database-level query logging.
		DatabaseLoggingEnabled bool `mapstructure:"database_logging_enabled"`
	} `mapstructure:"debugging"`
}

const envVarPrefix = "WARPAWS"

// LoadConfig initializes Viper with the contents of the config file under configPath.
func LoadConfig(configPath string) *Config {
	viper.AddConfigPath(configPath)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix(envVarPrefix)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if errors.Is(err, viper.ConfigFileNotFoundError{}) {
			fmt.Printf("error reading config file: no config file in path %s", configPath)
		} else {
			fmt.Printf("error reading config file: %v", err)
		}
		os.Exit(1)
	}

	// This allows us to set nested yaml config options through environment
	// variables. For example, database.host can be set using: <envVarPrefix>_DATABASE_HOST
	for _, k := range viper.AllKeys() {
		envVar := strings.ReplaceAll(strings.ToUpper(k), ".", "_")
		if err := viper.BindEnv(k, envVarPrefix+"_"+envVar); err != nil {
			fmt.Printf("error binding %s to %s", k, envVarPrefix+"_"+envVar)
			os.Exit(1)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		fmt.Printf("error unmarshaling config object: %v", err)
		os.Exit(1)
	}
	return config
}

const databaseURITemplate = "host=%s port=%d dbname=%s user=%s password=%s sslmode=%s"

// DatabaseURL returns a database URL generated from the provided config values.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		databaseURITemplate,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.Username,
		c.Database.Password,
		c.Database.SSLMode,
	)
}

// GameServerAddress returns the host:port the frontend should bind.
func (c *Config) GameServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Hostname, c.GameServer.Port)
}
