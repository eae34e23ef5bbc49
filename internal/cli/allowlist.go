package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/trishield/internal/model"
)

const allowlistKey = "settings.allowlist"

// allowlistCmd represents the allowlist command
var allowlistCmd = &cobra.Command{
	Use:   "allowlist",
	Short: "Manage domains that are always treated as safe",
	Long: `A URL whose host ends with an allowlisted entry skips every check and is
reported safe with score 0. Entries are stored lowercased in the config file.`,
}

var allowlistListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show allowlisted domains",
	RunE: func(cmd *cobra.Command, args []string) error {
		entries := normalizeAllowlist(viper.GetStringSlice(allowlistKey))
		if len(entries) == 0 {
			fmt.Println("Allowlist is empty")
			return nil
		}
		for _, e := range entries {
			fmt.Println(e)
		}
		return nil
	},
}

var allowlistAddCmd = &cobra.Command{
	Use:   "add <domain>...",
	Short: "Add domains to the allowlist",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		current := viper.GetStringSlice(allowlistKey)
		return saveAllowlist(addDomains(current, args))
	},
}

var allowlistRemoveCmd = &cobra.Command{
	Use:   "remove <domain>...",
	Short: "Remove domains from the allowlist",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		current := viper.GetStringSlice(allowlistKey)
		return saveAllowlist(removeDomains(current, args))
	},
}

func normalizeAllowlist(entries []string) []string {
	return model.Settings{Allowlist: entries}.Normalize().Allowlist
}

func addDomains(current, add []string) []string {
	return normalizeAllowlist(append(append([]string{}, current...), add...))
}

func removeDomains(current, remove []string) []string {
	drop := make(map[string]bool, len(remove))
	for _, d := range remove {
		drop[strings.ToLower(strings.TrimSpace(d))] = true
	}

	var kept []string
	for _, d := range normalizeAllowlist(current) {
		if !drop[d] {
			kept = append(kept, d)
		}
	}
	return normalizeAllowlist(kept)
}

// saveAllowlist writes the list back to the config file in use, creating
// ~/.trishield/config.yaml when there is none. Only the file's own keys are
// rewritten so environment overrides never end up on disk.
func saveAllowlist(entries []string) error {
	path := viper.ConfigFileUsed()
	if path == "" {
		dir, err := configDir()
		if err != nil {
			return fmt.Errorf("error finding home directory: %w", err)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("error creating config directory: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}

	file := viper.New()
	file.SetConfigFile(path)
	if _, err := os.Stat(path); err == nil {
		if err := file.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	}
	file.Set(allowlistKey, entries)

	if err := file.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	viper.Set(allowlistKey, entries)

	fmt.Printf("✓ Allowlist saved (%d entries): %s\n", len(entries), path)
	return nil
}

func init() {
	rootCmd.AddCommand(allowlistCmd)
	allowlistCmd.AddCommand(allowlistListCmd)
	allowlistCmd.AddCommand(allowlistAddCmd)
	allowlistCmd.AddCommand(allowlistRemoveCmd)
}
