package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/trishield/internal/model"
)

const version = "v0.1.0"

var (
	cfgFile string
	verbose bool
)

// ExitError carries a process exit code without printing anything extra
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "trishield",
	Short: "TriShield - URL phishing and malware risk scoring",
	Long: `TriShield scores how risky a URL is before you open it.

It fuses three signals into one verdict:
- local heuristics over the URL text
- a local blacklist and brand typosquat check
- an optional VirusTotal reputation lookup

Every verdict carries a score in [0,1], a safe/risk label, a tier and the
reasons that produced it.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command and returns the process exit code
func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return 1
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("trishield %s\n", version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.trishield/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in .env, the config file and environment variables
func initConfig() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := configDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(dir)
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	bindEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// bindEnv maps TRISHIELD_* variables onto config keys, plus the conventional
// API key variables
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("TRISHIELD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("settings.vt_api_key", "TRISHIELD_VT_API_KEY", "VT_API_KEY")
	_ = v.BindEnv("llm.api_key", "TRISHIELD_LLM_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("llm.base_url", "TRISHIELD_LLM_BASE_URL", "OLLAMA_BASE_URL")
	_ = v.BindEnv("reputation.http_proxy", "TRISHIELD_REPUTATION_HTTP_PROXY", "HTTP_PROXY")
	_ = v.BindEnv("reputation.https_proxy", "TRISHIELD_REPUTATION_HTTPS_PROXY", "HTTPS_PROXY")
}

// configDir returns ~/.trishield
func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".trishield"), nil
}

// loadConfig layers v over the defaults and anchors relative data paths in
// the config directory
func loadConfig(v *viper.Viper, dir string) (*model.Config, error) {
	cfg := model.DefaultConfig()
	registerDefaults(v, "", reflect.ValueOf(cfg).Elem())
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.Settings = cfg.Settings.Normalize()
	if err := cfg.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	if dir != "" {
		cfg.History.Path = resolvePath(dir, cfg.History.Path)
		cfg.Cache.Dir = resolvePath(dir, cfg.Cache.Dir)
	}
	return cfg, nil
}

// registerDefaults makes every config key known to v, so environment variables
// apply even when no config file mentions the key
func registerDefaults(v *viper.Viper, prefix string, val reflect.Value) {
	t := val.Type()
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" {
			continue
		}
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}

		field := val.Field(i)
		if field.Kind() == reflect.Struct {
			registerDefaults(v, key, field)
			continue
		}
		v.SetDefault(key, field.Interface())
	}
}

func resolvePath(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// currentConfig loads the global viper configuration
func currentConfig() (*model.Config, error) {
	dir, err := configDir()
	if err != nil {
		dir = ""
	}
	return loadConfig(viper.GetViper(), dir)
}

// newLogger logs warnings to stderr, or everything with --verbose
func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
