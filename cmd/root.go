package cmd

import (
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "reply-tracker"
)

type Config struct {
	Interval           time.Duration   `mapstructure:"interval"`
	StateDir           string          `mapstructure:"state-dir"`
	MetricsAddr        string          `mapstructure:"metrics-addr"`
	HaltOnStorageError bool            `mapstructure:"halt-on-storage-error"`
	AI                 *AIConfig       `mapstructure:"ai"`
	Streams            []*StreamConfig `mapstructure:"streams"`
}

type AIConfig struct {
	Provider        string           `mapstructure:"provider"`
	Mode            string           `mapstructure:"mode"`
	InstructionFile string           `mapstructure:"instruction-file"`
	AssistantID     string           `mapstructure:"assistant-id"`
	ReuseThread     bool             `mapstructure:"reuse-thread"`
	MaxLogLength    int              `mapstructure:"max-log-length"`
	OpenAI          *OpenAIConfig    `mapstructure:"openai"`
	Gemini          *GeminiConfig    `mapstructure:"gemini"`
	Anthropic       *AnthropicConfig `mapstructure:"anthropic"`
}

type OpenAIConfig struct {
	APIKey       string        `mapstructure:"api-key"`
	APIKeyFile   string        `mapstructure:"api-key-file"`
	BaseURL      string        `mapstructure:"base-url"`
	Model        string        `mapstructure:"model"`
	MaxTokens    int64         `mapstructure:"max-tokens"`
	PollInterval time.Duration `mapstructure:"poll-interval"`
}

type GeminiConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	MaxRetries int    `mapstructure:"max-retries"`
}

type AnthropicConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	BaseURL    string `mapstructure:"base-url"`
	Model      string `mapstructure:"model"`
	MaxTokens  int64  `mapstructure:"max-tokens"`
}

type StreamConfig struct {
	Name   string        `mapstructure:"name"`
	Sheet  *SheetConfig  `mapstructure:"sheet"`
	Mail   *MailConfig   `mapstructure:"mail"`
	Sync   *SyncConfig   `mapstructure:"sync"`
	Notify *NotifyConfig `mapstructure:"notify"`
}

type SheetConfig struct {
	Path string `mapstructure:"path"`
	Name string `mapstructure:"name"`
}

type MailConfig struct {
	IMAPAddr     string `mapstructure:"imap-addr"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	PasswordFile string `mapstructure:"password-file"`
	Mailbox      string `mapstructure:"mailbox"`
	ExcludeFrom  string `mapstructure:"exclude-from"`
	Insecure     bool   `mapstructure:"insecure"`
}

type SyncConfig struct {
	BaseURL   string `mapstructure:"base-url"`
	Token     string `mapstructure:"token"`
	TokenFile string `mapstructure:"token-file"`
	Dir       string `mapstructure:"dir"`
	// Name of the remote file, defaults to the base name of the sheet path.
	Name string `mapstructure:"name"`
}

type NotifyConfig struct {
	Telegram *TelegramConfig `mapstructure:"telegram"`
	Email    *EmailConfig    `mapstructure:"email"`
}

type TelegramConfig struct {
	Token     string `mapstructure:"token"`
	TokenFile string `mapstructure:"token-file"`
	ChatID    int64  `mapstructure:"chat-id"`
	Endpoint  string `mapstructure:"endpoint"`
}

type EmailConfig struct {
	SMTPAddr     string `mapstructure:"smtp-addr"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	PasswordFile string `mapstructure:"password-file"`
	From         string `mapstructure:"from"`
	To           string `mapstructure:"to"`
	Subject      string `mapstructure:"subject"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "reply-tracker watches a mailbox for replies to job applications and records them in a spreadsheet",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is reply-tracker.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	viper.SetDefault("interval", "30s")
	viper.SetDefault("state-dir", ".reply-tracker")
}

func initConfig() {
	// Document commands pointed at a file work without a config.
	if !needsConfig() {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func needsConfig() bool {
	if runCmd.CalledAs() != "" || checkCmd.CalledAs() != "" {
		return true
	}

	for _, cmd := range []*cobra.Command{setCmd, snapshotCmd} {
		if cmd.CalledAs() != "" {
			return cmd.Flag("file").Value.String() == ""
		}
	}

	return false
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
