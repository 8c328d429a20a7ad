// Package main is the entry point for the bug tracker admin CLI.
// It seeds demo data and manages user accounts directly against the store.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/prn-tf/bugtracker/internal/config"
	"github.com/prn-tf/bugtracker/internal/domain"
	"github.com/prn-tf/bugtracker/internal/lock"
	"github.com/prn-tf/bugtracker/internal/logging"
	"github.com/prn-tf/bugtracker/internal/repository"
	"github.com/prn-tf/bugtracker/internal/repository/database"
	"github.com/prn-tf/bugtracker/internal/seed"
	"github.com/prn-tf/bugtracker/internal/service"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "version":
		fmt.Printf("Bug Tracker Admin CLI\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "seed":
		err = runSeed(ctx, args)

	case "user":
		err = runUser(ctx, args)

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// env is the opened store shared by all subcommands.
type env struct {
	repos  *repository.Repositories
	logger zerolog.Logger
	close  func()
}

func open(ctx context.Context, configPath string) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	opened, err := database.Open(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	return &env{
		repos:  opened.Repos,
		logger: logger,
		close:  func() { _ = opened.Close() },
	}, nil
}

func newFlagSet(name string) (*pflag.FlagSet, *string) {
	fs := pflag.NewFlagSet(name, pflag.ExitOnError)
	configPath := fs.StringP("config", "c", "", "path to configuration file")
	return fs, configPath
}

func runSeed(ctx context.Context, args []string) error {
	fs, configPath := newFlagSet("seed")
	_ = fs.Parse(args)

	e, err := open(ctx, *configPath)
	if err != nil {
		return err
	}
	defer e.close()

	res, err := seed.Run(ctx, e.repos, 0, e.logger)
	if err != nil {
		return err
	}

	fmt.Printf("Seeded %d users (%d already existed) and %d bugs (%d already existed).\n", res.UsersCreated, res.UsersSkipped, res.BugsCreated, res.BugsSkipped)
	fmt.Println("You can log in with:")
	for _, acct := range seed.Accounts {
		fmt.Printf("  %s / %s\n", acct.Username, acct.Password)
	}
	return nil
}

func runUser(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: bugtracker-admin user <create|list|promote|demote> [flags]")
	}

	sub := args[0]
	fs, configPath := newFlagSet("user " + sub)
	username := fs.StringP("username", "u", "", "username")
	makeAdmin := fs.Bool("admin", false, "grant admin on creation")
	_ = fs.Parse(args[1:])

	switch sub {
	case "create", "promote", "demote":
		if *username == "" {
			return fmt.Errorf("--username is required for user %s", sub)
		}
	case "list":
	default:
		return fmt.Errorf("unknown user command: %s", sub)
	}

	e, err := open(ctx, *configPath)
	if err != nil {
		return err
	}
	defer e.close()

	switch sub {
	case "create":
		return createUser(ctx, e, *username, *makeAdmin)
	case "promote":
		return setAdmin(ctx, e, *username, true)
	case "demote":
		return setAdmin(ctx, e, *username, false)
	default:
		return listUsers(ctx, e)
	}
}

func createUser(ctx context.Context, e *env, username string, isAdmin bool) error {
	password, err := readPassword("Password: ")
	if err != nil {
		return err
	}
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		return err
	}

	auth := service.NewAuthService(e.repos.User, service.AuthServiceConfig{
		Locker: lock.NewNoOpLocker(),
	}, e.logger)
	user, err := auth.Register(ctx, service.RegisterInput{
		Username:  username,
		Password:  password,
		Password2: confirm,
	})
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			return errors.New(strings.Join(verr.Messages, "; "))
		}
		return err
	}

	if isAdmin {
		if err := e.repos.User.UpdateRole(ctx, user.ID, true); err != nil {
			return err
		}
	}

	fmt.Printf("Created user %s (id %s, admin=%t)\n", user.Username, user.ID, isAdmin)
	return nil
}

func setAdmin(ctx context.Context, e *env, username string, isAdmin bool) error {
	user, err := e.repos.User.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if err := e.repos.User.UpdateRole(ctx, user.ID, isAdmin); err != nil {
		return err
	}
	fmt.Printf("User %s admin=%t\n", username, isAdmin)
	return nil
}

func listUsers(ctx context.Context, e *env) error {
	users, err := e.repos.User.List(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSERNAME\tADMIN\tCREATED")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", u.ID, u.Username, u.IsAdmin, u.CreatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

// readPassword prompts without echo on a terminal and reads a plain line otherwise.
func readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, prompt)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

var stdin = bufio.NewReader(os.Stdin)

func printUsage() {
	fmt.Println(`Bug Tracker Admin CLI

Usage:
  bugtracker-admin <command> [arguments]

Commands:
  seed        Create the demo accounts and sample bugs
  user        Manage users (create, list, promote, demote)
  version     Print version information
  help        Show this help message

Examples:
  bugtracker-admin seed --config config.yaml
  bugtracker-admin user create --username alice --admin
  bugtracker-admin user promote --username user1
  bugtracker-admin user list`)
}
