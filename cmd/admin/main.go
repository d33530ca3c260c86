// Package main is the admin CLI for Stockfolio. It manages user accounts
// directly against the portfolio database, without going through the HTTP
// API. Intended for bootstrapping the first admin account and for password
// recovery when email is not available.
//
// Usage:
//
//	stockfolio-admin create-admin -username alice -email alice@example.com -password s3cret
//	stockfolio-admin reset-password -username alice -password n3wpass
//	stockfolio-admin list-users
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/bcrypt"

	"github.com/pkoukos/stockfolio/internal/config"
	"github.com/pkoukos/stockfolio/internal/database"
	"github.com/pkoukos/stockfolio/internal/domain"
	"github.com/pkoukos/stockfolio/internal/modules/auth"
	"github.com/pkoukos/stockfolio/pkg/logger"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	log := logger.New(logger.Config{Level: "warn", Pretty: true})

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	db, err := database.New(database.Config{
		Path: filepath.Join(cfg.DataDir, "portfolio.db"),
		Name: "portfolio",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open portfolio database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}

	users := auth.NewUserRepository(db.Conn(), log)

	var cmdErr error
	switch os.Args[1] {
	case "create-admin":
		cmdErr = createAdmin(users, os.Args[2:])
	case "reset-password":
		cmdErr = resetPassword(users, os.Args[2:])
	case "list-users":
		cmdErr = listUsers(users)
	default:
		usage()
		os.Exit(2)
	}

	if cmdErr != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", cmdErr)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: stockfolio-admin <create-admin|reset-password|list-users> [flags]")
}

func createAdmin(users *auth.UserRepository, args []string) error {
	fs := flag.NewFlagSet("create-admin", flag.ExitOnError)
	username := fs.String("username", "", "admin username")
	email := fs.String("email", "", "admin email")
	password := fs.String("password", "", "admin password")
	_ = fs.Parse(args)

	if *username == "" || *email == "" || *password == "" {
		return fmt.Errorf("username, email and password are required")
	}
	if len(*password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		Username:     *username,
		Email:        *email,
		PasswordHash: string(hash),
		IsAdmin:      true,
	}
	if err := users.Create(user); err != nil {
		return err
	}

	fmt.Printf("admin user %q created (id %d)\n", user.Username, user.ID)
	return nil
}

func resetPassword(users *auth.UserRepository, args []string) error {
	fs := flag.NewFlagSet("reset-password", flag.ExitOnError)
	username := fs.String("username", "", "username")
	password := fs.String("password", "", "new password")
	_ = fs.Parse(args)

	if *username == "" || *password == "" {
		return fmt.Errorf("username and password are required")
	}
	if len(*password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	user, err := users.GetByUsername(*username)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("user %q not found", *username)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := users.UpdatePassword(user.ID, string(hash)); err != nil {
		return err
	}

	fmt.Printf("password updated for %q\n", user.Username)
	return nil
}

func listUsers(users *auth.UserRepository) error {
	all, err := users.List()
	if err != nil {
		return err
	}

	for _, u := range all {
		role := "user"
		if u.IsAdmin {
			role = "admin"
		}
		fmt.Printf("%d\t%s\t%s\t%s\n", u.ID, u.Username, u.Email, role)
	}
	return nil
}
