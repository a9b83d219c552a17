package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/schoollib/library/internal/config"
	"github.com/schoollib/library/internal/database"
	"github.com/schoollib/library/internal/entities"
	"github.com/schoollib/library/internal/people"
)

// CreateAdminCommand creates a staff account directly in the database, for
// bootstrapping an installation that has no staff yet.
type CreateAdminCommand struct {
	Username string
	Name     string
	Role     string
	Password string
}

func newCreateAdminCommand() *cobra.Command {
	c := &CreateAdminCommand{}
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an Admin or Librarian account",
		Example: "  library create-admin --username desk --name \"Front Desk\" --role Librarian\n" +
			"  library create-admin --username root --name Root --password \"$ADMIN_PASSWORD\"",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.Password == "" {
				pw, err := promptPassword(cmd.OutOrStdout())
				if err != nil {
					return err
				}
				c.Password = pw
			}

			cfg := config.NewConfig()
			db, err := database.NewDatabase(cfg.Database)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			dir := people.NewDirectory(db.DB, cfg.Auth.BcryptCost, nil)
			entry, err := c.Run(cmd.Context(), dir)
			if err != nil {
				return err
			}
			cmd.Printf("Created %s %q (id %d)\n", entry.Role, entry.Username, entry.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&c.Username, "username", "", "login name (required)")
	cmd.Flags().StringVar(&c.Name, "name", "", "display name (required)")
	cmd.Flags().StringVar(&c.Role, "role", string(entities.RoleAdmin), "Admin or Librarian")
	cmd.Flags().StringVar(&c.Password, "password", "", "password; prompted for when omitted")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

// Run registers the account.
func (c *CreateAdminCommand) Run(ctx context.Context, dir *people.Directory) (*people.Entry, error) {
	role, err := parseStaffRole(c.Role)
	if err != nil {
		return nil, err
	}
	// System bootstrap; there is no authenticated actor yet.
	system := entities.Actor{Role: entities.RoleAdmin}
	return dir.Register(ctx, system, people.TypeAdmin, people.Profile{
		Username: c.Username,
		Name:     c.Name,
		Role:     role,
		Password: c.Password,
	})
}

func parseStaffRole(s string) (entities.Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "admin":
		return entities.RoleAdmin, nil
	case "librarian":
		return entities.RoleLibrarian, nil
	}
	return "", fmt.Errorf("role must be Admin or Librarian, got %q", s)
}

func promptPassword(out io.Writer) (string, error) {
	if !term.IsTerminal(int(syscall.Stdin)) {
		return "", errors.New("no terminal to prompt on; pass --password")
	}
	first, err := readPassword(out, "Password: ")
	if err != nil {
		return "", err
	}
	second, err := readPassword(out, "Confirm password: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errors.New("passwords do not match")
	}
	return first, nil
}

func readPassword(out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}
