// This file implements API key commands. Keys are never stored; only their
// bcrypt hashes go into the api.api_key_hashes list of the configuration file.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/anstrom/portsweep/internal/auth"
	"github.com/anstrom/portsweep/internal/config"
)

const defaultConfigPath = "config.yaml"

var (
	apiKeyOutput string
	apiKeySave   bool
)

// apiKeysCmd represents the apikeys command group
var apiKeysCmd = &cobra.Command{
	Use:     "apikeys",
	Aliases: []string{"apikey", "keys", "key"},
	Short:   "Create API keys for client authentication",
	Long: `Create API keys for the portsweep API server.

The server keeps only bcrypt hashes of valid keys in api.api_key_hashes of its
configuration file. Clients send the key in the X-API-Key header or as a
Bearer token.`,
	Run: func(cmd *cobra.Command, args []string) {
		// Show help if no subcommand is provided
		_ = cmd.Help()
	},
}

// apiKeysCreateCmd creates a new API key
var apiKeysCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Generate a new API key",
	Long: `Generate a new random API key and its bcrypt hash.

The key is displayed only once. With --save the hash is appended to the
configuration file and authentication is enabled.`,
	Example: `  portsweep apikeys create
  portsweep apikeys create --save --config /etc/portsweep/config.yaml
  portsweep apikeys create --output json`,
	Args: cobra.NoArgs,
	RunE: runAPIKeysCreate,
}

// apiKeysHashCmd hashes an existing key
var apiKeysHashCmd = &cobra.Command{
	Use:   "hash <key>",
	Short: "Print the bcrypt hash of an existing API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := auth.HashAPIKey(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(apiKeysCmd)
	apiKeysCmd.AddCommand(apiKeysCreateCmd)
	apiKeysCmd.AddCommand(apiKeysHashCmd)

	apiKeysCreateCmd.Flags().StringVarP(&apiKeyOutput, "output", "o", "text", "Output format: text or json")
	apiKeysCreateCmd.Flags().BoolVar(&apiKeySave, "save", false, "Append the hash to the configuration file")
}

func runAPIKeysCreate(cmd *cobra.Command, _ []string) error {
	if apiKeyOutput != "text" && apiKeyOutput != "json" {
		return fmt.Errorf("unknown output format %q (want text or json)", apiKeyOutput)
	}

	key, err := auth.GenerateAPIKey()
	if err != nil {
		return err
	}

	path := ""
	if apiKeySave {
		if path, err = saveAPIKeyHash(key.Hash); err != nil {
			return err
		}
	}

	return writeAPIKey(cmd.OutOrStdout(), key, path, apiKeyOutput == "json")
}

// saveAPIKeyHash adds hash to the configuration file and returns its path.
func saveAPIKeyHash(hash string) (string, error) {
	path := viper.ConfigFileUsed()
	if path == "" {
		path = cfgFile
	}
	if path == "" {
		path = defaultConfigPath
	}

	cfg, err := config.Load(path)
	if err != nil {
		return "", fmt.Errorf("loading config: %w", err)
	}
	cfg.API.AuthEnabled = true
	cfg.API.APIKeyHashes = append(cfg.API.APIKeyHashes, hash)
	if err := cfg.Save(path); err != nil {
		return "", err
	}
	return path, nil
}

func writeAPIKey(w io.Writer, key *auth.GeneratedAPIKey, savedTo string, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(key)
	}

	fmt.Fprintf(w, "API key: %s\n", key.Key)
	fmt.Fprintf(w, "Hash:    %s\n\n", key.Hash)
	fmt.Fprintln(w, "Store the key now, it cannot be shown again.")
	if savedTo != "" {
		fmt.Fprintf(w, "The hash was added to %s.\n", savedTo)
		return nil
	}
	fmt.Fprintln(w, "Add the hash to the configuration file to accept the key:")
	fmt.Fprintf(w, "\napi:\n  auth_enabled: true\n  api_key_hashes:\n    - %q\n", key.Hash)
	return nil
}
