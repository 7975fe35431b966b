package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pendergraft/cleanfi/pkg/client"
)

const defaultServer = "http://localhost:8080"

var (
	cfgFile string
	server  string
	apiKey  string
)

// Execute runs the CLI
func Execute(version string) error {
	return newRootCmd(version).Execute()
}

func newRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "cleanfi",
		Short:        "CleanFi command line client",
		Long:         `cleanfi talks to a CleanFi server: it builds vote and stake transactions, reads cleanups and manages the leaderboard.`,
		Version:      version,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: cleanfi.toml)")
	rootCmd.PersistentFlags().StringVar(&server, "server", "", "server URL (default from config)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API key for authentication")

	rootCmd.AddCommand(createVoteCmd())
	rootCmd.AddCommand(createStakeCmd())
	rootCmd.AddCommand(createActionsCmd())
	rootCmd.AddCommand(createCleanupCmd())
	rootCmd.AddCommand(createLeaderboardCmd())
	rootCmd.AddCommand(createAuthCmd())
	rootCmd.AddCommand(createConfigCmd())

	return rootCmd
}

// getServer returns the server URL from flag, env, config file, or the default
func getServer() string {
	if server != "" {
		return server
	}
	if env := os.Getenv("CLEANFI_SERVER"); env != "" {
		return env
	}
	if config := loadProjectConfigSilent(); config != nil && config.Server != "" {
		return config.Server
	}
	return defaultServer
}

// getAPIKey returns the API key from flag, env, or the credentials file
func getAPIKey() string {
	if apiKey != "" {
		return apiKey
	}
	if env := os.Getenv("CLEANFI_API_KEY"); env != "" {
		return env
	}
	return getCredential(getServer())
}

func newClient() *client.Client {
	return client.New(getServer(), getAPIKey())
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:8] + "..." + key[len(key)-4:]
}

func truncateAddress(addr string) string {
	if len(addr) <= 14 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}
