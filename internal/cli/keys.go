package cli

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/rpggio/activitylog/internal/repository"
	"github.com/rpggio/activitylog/internal/sqlite"
	"github.com/spf13/cobra"
)

func newKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage API keys",
		Long:  "Create, list, and revoke API keys directly in the server database",
	}
	cmd.PersistentFlags().String("db", envOr("ACTIVITYLOG_DB_PATH", "activitylog.db"), "Path to the server database")
	cmd.PersistentFlags().StringP("profile", "p", "default", "Profile id")

	cmd.AddCommand(newKeysCreateCmd())
	cmd.AddCommand(newKeysListCmd())
	cmd.AddCommand(newKeysRevokeCmd())
	return cmd
}

func newKeysCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key bound to a profile and extension",
		RunE: func(cmd *cobra.Command, args []string) error {
			profileID, _ := cmd.Flags().GetString("profile")
			extensionID, _ := cmd.Flags().GetString("extension")
			description, _ := cmd.Flags().GetString("description")

			repo, closeDB, err := openKeys(cmd)
			if err != nil {
				return err
			}
			defer closeDB()

			token := NewToken()
			err = repo.Create(cmd.Context(), &repository.APIKey{
				KeyHash:     sqlite.HashToken(token),
				ProfileID:   profileID,
				ExtensionID: extensionID,
				Description: description,
			})
			if err != nil {
				return fmt.Errorf("failed to create api key: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Created API key for %s in profile %s\n", extensionID, profileID)
			fmt.Fprintf(out, "  Token: %s\n", color.New(color.FgHiGreen).Sprint(token))
			fmt.Fprintln(out, "  The token is not stored and cannot be shown again.")
			return nil
		},
	}
	cmd.Flags().StringP("extension", "e", "", "Extension id the key acts as")
	cmd.Flags().String("description", "", "Free-form description")
	_ = cmd.MarkFlagRequired("extension")
	return cmd
}

func newKeysListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys of a profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			profileID, _ := cmd.Flags().GetString("profile")

			repo, closeDB, err := openKeys(cmd)
			if err != nil {
				return err
			}
			defer closeDB()

			keys, err := repo.ListByProfile(cmd.Context(), profileID)
			if err != nil {
				return fmt.Errorf("failed to list api keys: %w", err)
			}
			if len(keys) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No API keys found")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "HASH\tEXTENSION\tCREATED\tLAST USED\tDESCRIPTION")
			fmt.Fprintln(w, "----\t---------\t-------\t---------\t-----------")
			for _, k := range keys {
				lastUsed := "never"
				if k.LastUsed != nil {
					lastUsed = k.LastUsed.Format("2006-01-02 15:04")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					k.KeyHash[:12], k.ExtensionID, k.CreatedAt.Format("2006-01-02 15:04"), lastUsed, dash(k.Description))
			}
			w.Flush()
			return nil
		},
	}
	return cmd
}

func newKeysRevokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke [token-or-hash]",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, closeDB, err := openKeys(cmd)
			if err != nil {
				return err
			}
			defer closeDB()

			hash := args[0]
			if strings.HasPrefix(hash, tokenPrefix) {
				hash = sqlite.HashToken(hash)
			}
			if err := repo.Delete(cmd.Context(), hash); err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return fmt.Errorf("api key not found")
				}
				return fmt.Errorf("failed to revoke api key: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Revoked API key")
			return nil
		},
	}
	return cmd
}

const tokenPrefix = "al_"

// NewToken returns a fresh random API token.
func NewToken() string {
	return tokenPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func openKeys(cmd *cobra.Command) (repository.APIKeyRepository, func(), error) {
	path, _ := cmd.Flags().GetString("db")
	db, err := sqlite.New(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.RunMigrations(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return sqlite.NewAPIKeyRepository(db), func() { db.Close() }, nil
}

// KeysCmd returns the keys command
func KeysCmd() *cobra.Command {
	return newKeysCmd()
}

