package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/cobra"

	"github.com/R4255/news-portal/internal/auth"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage portal accounts",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		users, err := store.ListUsers(ctx)
		if err != nil {
			return err
		}

		if len(users) == 0 {
			fmt.Println("No accounts yet. Add one with: newsportal users add <username>")
			return nil
		}

		fmt.Println("Accounts:")
		fmt.Println()
		for _, u := range users {
			email := ""
			if u.Email != nil {
				email = " <" + *u.Email + ">"
			}
			lastLogin := "never"
			if u.LastLoginAt != nil {
				lastLogin = u.LastLoginAt.Format("2006-01-02 15:04")
			}
			fmt.Printf("  [%d] %s%s\n", u.ID, u.Username, email)
			fmt.Printf("        created %s, last login %s\n", u.CreatedAt.Format("2006-01-02"), lastLogin)
		}
		return nil
	},
}

var (
	addEmail    string
	addPassword string
)

var usersAddCmd = &cobra.Command{
	Use:   "add [username]",
	Short: "Create an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		password := addPassword
		if password == "" {
			fmt.Print("Password: ")
			line, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("reading password: %w", err)
			}
			password = strings.TrimRight(line, "\r\n")
		}

		manager := auth.NewManager(store, auth.Options{Secret: cfg.SessionSecret(), Logger: log})
		u, err := manager.Register(ctx, auth.RegisterForm{
			Username: args[0],
			Email:    addEmail,
			Password: password,
		})
		if err != nil {
			var verrs validation.Errors
			if errors.As(err, &verrs) {
				return fmt.Errorf("invalid account: %w", verrs)
			}
			return err
		}
		fmt.Printf("Added account [%d]: %s\n", u.ID, u.Username)
		return nil
	},
}

var usersRemoveCmd = &cobra.Command{
	Use:   "remove [id]",
	Short: "Remove an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid account ID: %s", args[0])
		}

		u, err := store.GetUserByID(ctx, id)
		if err != nil {
			return err
		}
		if u == nil {
			return fmt.Errorf("account %d not found", id)
		}

		if _, err := store.DeleteUser(ctx, id); err != nil {
			return err
		}
		fmt.Printf("Removed account [%d]: %s\n", id, u.Username)
		return nil
	},
}

func init() {
	usersAddCmd.Flags().StringVar(&addEmail, "email", "", "Optional email address")
	usersAddCmd.Flags().StringVar(&addPassword, "password", "", "Password (prompted when omitted)")

	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersAddCmd)
	usersCmd.AddCommand(usersRemoveCmd)
}
