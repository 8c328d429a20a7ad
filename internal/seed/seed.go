// Package seed loads the demo accounts and sample bug reports.
package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/prn-tf/bugtracker/internal/domain"
	"github.com/prn-tf/bugtracker/internal/pkg/crypto"
	"github.com/prn-tf/bugtracker/internal/repository"
)

// Account is a demo user.
type Account struct {
	Username string
	Password string
	IsAdmin  bool
}

// Report is a sample bug.
type Report struct {
	Page        string
	Description string
	Status      domain.BugStatus
	Creator     string
	CreatedAt   time.Time
}

// Accounts are the demo users.
var Accounts = []Account{
	{Username: "admin", Password: "admin123", IsAdmin: true},
	{Username: "user1", Password: "user123"},
	{Username: "user2", Password: "user123"},
}

func at(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04", s, time.Local)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

// Reports are the sample bugs.
var Reports = []Report{
	{
		Page:        "/products",
		Description: "Add to cart button doesn't work on mobile devices. When tapping the button, nothing happens and no items are added to the cart. This issue occurs on both iOS and Android devices.",
		Status:      domain.StatusOpen,
		Creator:     "user1",
		CreatedAt:   at("2025-05-01 10:30"),
	},
	{
		Page:        "/login",
		Description: "Password reset email is not being sent. When users request a password reset, they never receive the email. Confirmed this is happening for multiple email providers including Gmail and Outlook.",
		Status:      domain.StatusInProgress,
		Creator:     "user2",
		CreatedAt:   at("2025-05-03 14:15"),
	},
	{
		Page:        "/checkout",
		Description: `Payment form validation error on Safari browser. When submitting the payment form on Safari, users get a generic "Invalid form" error even when all fields are correctly filled.`,
		Status:      domain.StatusResolved,
		Creator:     "user1",
		CreatedAt:   at("2025-04-28 09:20"),
	},
	{
		Page:        "/profile",
		Description: "Profile picture upload not working. The spinner appears but then nothing happens and the default avatar remains.",
		Status:      domain.StatusOpen,
		Creator:     "user2",
		CreatedAt:   at("2025-05-05 11:45"),
	},
	{
		Page:        "/search",
		Description: "Search results not filtered correctly when using category filters. When selecting a category, all results are still shown instead of just the relevant ones.",
		Status:      domain.StatusCancelled,
		Creator:     "user1",
		CreatedAt:   at("2025-04-20 16:10"),
	},
}

// Result counts what Run inserted.
type Result struct {
	UsersCreated int
	UsersSkipped int
	BugsCreated  int
	BugsSkipped  int
}

// Run inserts the demo accounts and sample bugs. Existing accounts are
// left untouched and reused as bug creators. A sample bug is skipped when
// a bug with the same page, creator and creation time already exists, so
// repeated runs end in the same state.
func Run(ctx context.Context, repos *repository.Repositories, cost int, logger zerolog.Logger) (*Result, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	res := &Result{}
	owners := make(map[string]*domain.User, len(Accounts))

	for _, acct := range Accounts {
		existing, err := repos.User.GetByUsername(ctx, acct.Username)
		if err == nil {
			owners[acct.Username] = existing
			res.UsersSkipped++
			logger.Info().Str("username", acct.Username).Msg("user exists, skipping")
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return res, fmt.Errorf("failed to look up %s: %w", acct.Username, err)
		}

		hash, err := crypto.HashPassword(acct.Password, cost)
		if err != nil {
			return res, fmt.Errorf("failed to hash password: %w", err)
		}
		user := domain.NewUser(acct.Username, hash)
		user.IsAdmin = acct.IsAdmin
		if err := repos.User.Create(ctx, user); err != nil {
			return res, fmt.Errorf("failed to create %s: %w", acct.Username, err)
		}
		owners[acct.Username] = user
		res.UsersCreated++
		logger.Info().Str("username", acct.Username).Bool("is_admin", acct.IsAdmin).Msg("user created")
	}

	existing, err := repos.Bug.ListAll(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to list bugs: %w", err)
	}
	seen := make(map[string]bool, len(existing))
	for _, b := range existing {
		seen[reportKey(b.Page, b.CreatorUsername, b.CreatedAt)] = true
	}

	for _, rep := range Reports {
		if seen[reportKey(rep.Page, rep.Creator, rep.CreatedAt)] {
			res.BugsSkipped++
			continue
		}
		owner := owners[rep.Creator]
		bug := domain.NewBug(rep.Page, rep.Description, "", owner.Principal())
		bug.Status = rep.Status
		bug.CreatedAt = rep.CreatedAt
		bug.UpdatedAt = rep.CreatedAt
		if err := repos.Bug.Create(ctx, bug); err != nil {
			return res, fmt.Errorf("failed to create bug for %s: %w", rep.Page, err)
		}
		res.BugsCreated++
	}
	logger.Info().
		Int("created", res.BugsCreated).
		Int("skipped", res.BugsSkipped).
		Msg("sample bugs loaded")

	return res, nil
}

func reportKey(page, creator string, createdAt time.Time) string {
	return fmt.Sprintf("%s\x00%s\x00%d", page, creator, createdAt.Unix())
}
