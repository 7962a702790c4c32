package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"clipshelf/internal/api"
	"clipshelf/internal/client"
	"clipshelf/internal/services"
)

const passwordEnv = "CLIPSHELF_ADMIN_PASSWORD"

func newLoginCommand(ctx *commandContext) *cobra.Command {
	var username string
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in as the administrator and save the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd, passwordStdin)
			if err != nil {
				return err
			}
			c, err := ctx.apiClient()
			if err != nil {
				return err
			}
			resp, err := c.Login(cmd.Context(), username, password)
			if err != nil {
				return wrapClientError(err, c.BaseURL())
			}

			store, err := ctx.tokenStore()
			if err != nil {
				return err
			}
			saved := client.SavedSession{Server: c.BaseURL(), Token: resp.Token}
			if expires, err := api.ParseTime(resp.ExpiresAt); err == nil {
				saved.ExpiresAt = expires
			}
			if err := store.Save(saved); err != nil {
				return err
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]any{"server": c.BaseURL(), "expiresAt": resp.ExpiresAt})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in to %s (session file %s)\n", c.BaseURL(), store.Path())
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "admin", "Administrator username")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin instead of "+passwordEnv)
	return cmd
}

func readPassword(cmd *cobra.Command, fromStdin bool) (string, error) {
	if !fromStdin {
		if value, ok := os.LookupEnv(passwordEnv); ok && value != "" {
			return value, nil
		}
		return "", fmt.Errorf("no password supplied: set %s or pass --password-stdin", passwordEnv)
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password from stdin: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newLogoutCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := ctx.apiClient()
			if err != nil {
				return err
			}
			store, err := ctx.tokenStore()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if c.Token() == "" {
				fmt.Fprintln(out, "Not signed in")
				return nil
			}
			err = c.Logout(cmd.Context())
			// an expired session is already gone server side
			if err != nil && !errors.Is(err, services.ErrUnauthorized) {
				return wrapClientError(err, c.BaseURL())
			}
			if err := store.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(out, "Signed out")
			return nil
		},
	}
}

// sessionHint explains an unauthorized failure in CLI terms.
func sessionHint(err error, saved client.SavedSession) error {
	if !errors.Is(err, services.ErrUnauthorized) {
		return err
	}
	if saved.Token == "" {
		return fmt.Errorf("%w; run `clipshelf login` first", err)
	}
	if saved.Expired(time.Now()) {
		return fmt.Errorf("%w; saved session expired, run `clipshelf login` again", err)
	}
	return fmt.Errorf("%w; saved session was rejected, run `clipshelf login` again", err)
}
