package cmd

import (
	"errors"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "devworth"
)

type Config struct {
	Server  *ServerConfig `mapstructure:"server"`
	GitHub  *GitHubConfig `mapstructure:"github"`
	Gemini  *GeminiConfig `mapstructure:"gemini"`
	MongoDB *MongoConfig  `mapstructure:"mongodb"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type GitHubConfig struct {
	TokenFile string `mapstructure:"token-file"`
}

type GeminiConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type MongoConfig struct {
	URI string `mapstructure:"uri"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "devworth estimates what a GitHub profile is worth on the Indian tech market",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}
	if err := viper.BindEnv("github.token-file", "GITHUB_TOKEN_FILE"); err != nil {
		log.Fatalf("binding GITHUB_TOKEN_FILE environment variable: %v", err)
	}
	if err := viper.BindEnv("mongodb.uri", "MONGODB_URI"); err != nil {
		log.Fatalf("binding MONGODB_URI environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is devworth.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// Every key has a default or an env binding, so a missing config file
	// is fine. An explicitly requested file must parse.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if config == nil {
		config = &Config{}
	}
	if config.Server == nil {
		config.Server = &ServerConfig{}
	}
	if config.Server.Host == "" {
		config.Server.Host = "localhost"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if config.GitHub == nil {
		config.GitHub = &GitHubConfig{}
	}
	if config.Gemini == nil {
		config.Gemini = &GeminiConfig{}
	}
	if config.MongoDB == nil {
		config.MongoDB = &MongoConfig{}
	}

	return config, nil
}
