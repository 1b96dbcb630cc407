package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Game     GameConfig     `mapstructure:"game"`
}

type ServerConfig struct {
	HTTPAddress    string `mapstructure:"http_address"`
	RPCAddress     string `mapstructure:"rpc_address"`
	MetricsAddress string `mapstructure:"metrics_address"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// GameConfig carries the lifecycle defaults applied to every game a room
// starts. A rule set's Setup hook may override ready_up, max_rounds and
// results_timeout per game.
type GameConfig struct {
	ReadyUp        bool          `mapstructure:"ready_up"`
	ResultsTimeout time.Duration `mapstructure:"results_timeout"`
	MinPlayers     int           `mapstructure:"min_players"`
	LeavePolicy    string        `mapstructure:"leave_policy"` // "skip" or "abort"
}

func LoadConfig(path string) (config *Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("game.ready_up", true)
	viper.SetDefault("game.results_timeout", 10*time.Second)
	viper.SetDefault("game.min_players", 2)
	viper.SetDefault("game.leave_policy", "skip")

	viper.AutomaticEnv()

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
