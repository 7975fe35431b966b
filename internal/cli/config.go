package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
)

const projectConfigFile = "cleanfi.toml"

// ProjectConfig is the TOML configuration read from cleanfi.toml
type ProjectConfig struct {
	Server string `toml:"server"`
	// VoteType is used by `cleanfi vote` when no type argument is given.
	VoteType string `toml:"vote_type,omitempty"`
	// Limit is the default leaderboard page size.
	Limit int `toml:"limit,omitempty"`
}

func createConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}

	cmd.AddCommand(createConfigInitCmd())
	cmd.AddCommand(createConfigShowCmd())

	return cmd
}

func createConfigInitCmd() *cobra.Command {
	var serverURL string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create config file",
		Long: `Create a cleanfi.toml configuration file in the current directory.

EXAMPLES:
  # Create config with default server
  cleanfi config init

  # Create config for a specific server
  cleanfi config init --server https://cleanfi.example.com

  # Overwrite existing config
  cleanfi config init --force
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(cmd.OutOrStdout(), projectConfigFile, serverURL, force)
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", defaultServer, "server URL")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config")

	return cmd
}

func createConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current config",
		Long: `Display every configuration source and the effective server and API key.

EXAMPLES:
  cleanfi config show
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd.OutOrStdout())
		},
	}
}

func runConfigInit(out io.Writer, path, serverURL string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
	}

	content := fmt.Sprintf(`# CleanFi CLI configuration

server = %q

# Vote type used when "cleanfi vote <id>" is run without one
vote_type = "like"

# Leaderboard page size
limit = 10
`, serverURL)

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Fprintf(out, "Created %s\n", path)
	fmt.Fprintf(out, "  Server: %s\n", serverURL)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintln(out, "  1. Run 'cleanfi auth login' if you manage the leaderboard")
	fmt.Fprintln(out, "  2. Run 'cleanfi vote <cleanupId> like' to build a vote")

	return nil
}

func runConfigShow(out io.Writer) error {
	fmt.Fprintln(out, "Configuration sources (in order of precedence):")
	fmt.Fprintln(out)

	fmt.Fprintln(out, "1. Command line flags")
	fmt.Fprintln(out, "   --server, --api-key, --config")
	fmt.Fprintln(out)

	fmt.Fprintln(out, "2. Environment variables")
	if env := os.Getenv("CLEANFI_SERVER"); env != "" {
		fmt.Fprintf(out, "   CLEANFI_SERVER=%s\n", env)
	} else {
		fmt.Fprintln(out, "   CLEANFI_SERVER=(not set)")
	}
	if env := os.Getenv("CLEANFI_API_KEY"); env != "" {
		fmt.Fprintf(out, "   CLEANFI_API_KEY=%s\n", maskAPIKey(env))
	} else {
		fmt.Fprintln(out, "   CLEANFI_API_KEY=(not set)")
	}
	fmt.Fprintln(out)

	fmt.Fprintf(out, "3. Project config (%s)\n", projectConfigFile)
	config, path, err := loadProjectConfig()
	switch {
	case os.IsNotExist(err):
		fmt.Fprintln(out, "   (not found)")
	case err != nil:
		fmt.Fprintf(out, "   Error: %v\n", err)
	default:
		fmt.Fprintf(out, "   Loaded from: %s\n", path)
		if config.Server != "" {
			fmt.Fprintf(out, "   server: %s\n", config.Server)
		}
		if config.VoteType != "" {
			fmt.Fprintf(out, "   vote_type: %s\n", config.VoteType)
		}
		if config.Limit > 0 {
			fmt.Fprintf(out, "   limit: %d\n", config.Limit)
		}
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "4. Credentials (~/.cleanfi/credentials)")
	creds, err := loadCredentials()
	switch {
	case os.IsNotExist(err):
		fmt.Fprintln(out, "   (not found)")
	case err != nil:
		fmt.Fprintf(out, "   Error: %v\n", err)
	case len(creds.Servers) == 0:
		fmt.Fprintln(out, "   (no credentials stored)")
	default:
		for server, cred := range creds.Servers {
			fmt.Fprintf(out, "   %s: %s\n", server, maskAPIKey(cred.APIKey))
		}
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Effective configuration:")
	fmt.Fprintf(out, "   Server:  %s\n", getServer())
	if key := getAPIKey(); key != "" {
		fmt.Fprintf(out, "   API Key: %s\n", maskAPIKey(key))
	} else {
		fmt.Fprintln(out, "   API Key: (not set)")
	}

	return nil
}

// loadProjectConfig loads --config if given, else cleanfi.toml from the
// working directory.
func loadProjectConfig() (*ProjectConfig, string, error) {
	path := projectConfigFile
	if cfgFile != "" {
		path = cfgFile
	}
	if _, err := os.Stat(path); err != nil {
		return nil, path, err
	}
	config, err := loadProjectConfigFromPath(path)
	if err != nil {
		return nil, path, err
	}
	return config, path, nil
}

func loadProjectConfigFromPath(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config ProjectConfig
	if _, err := toml.Decode(string(data), &config); err != nil {
		return nil, fmt.Errorf("parsing TOML: %w", err)
	}

	return &config, nil
}

// loadProjectConfigSilent returns nil when there is no config file. Parse
// failures are reported on stderr.
func loadProjectConfigSilent() *ProjectConfig {
	config, _, err := loadProjectConfig()
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load project config: %v\n", err)
		}
		return nil
	}
	return config
}
