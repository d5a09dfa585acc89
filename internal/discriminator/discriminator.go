// Package discriminator picks the 4-digit suffix that tells apart accounts
// sharing a username.
//
// Resolution reads the discriminators in use, draws candidates uniformly from
// 0001-9999 and confirms the winner against the store once more before
// returning it. The account row is written later by the caller, so two
// concurrent registrations of the same username can still pick the same
// value; the users table carries a UNIQUE(username, discriminator)
// constraint and the account registry re-resolves when it trips.
package discriminator

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync"

	"guildchat-backend/internal/globals"
)

const namespaceSize = globals.MaxDiscriminator - globals.MinDiscriminator + 1

type Lookup interface {
	// Discriminators returns every discriminator in use for username.
	Discriminators(ctx context.Context, username string) ([]string, error)
	DiscriminatorTaken(ctx context.Context, username string, discriminator string) (bool, error)
}

type Resolver struct {
	lookup Lookup

	mutex sync.Mutex
	draw  func(n int) int
}

type Option func(*Resolver)

// WithRand makes draws deterministic for a seeded source.
func WithRand(r *rand.Rand) Option {
	return func(res *Resolver) { res.draw = r.IntN }
}

// WithDraw replaces the random draw entirely. draw(n) must return a value in [0, n).
func WithDraw(draw func(n int) int) Option {
	return func(res *Resolver) { res.draw = draw }
}

func NewResolver(lookup Lookup, opts ...Option) *Resolver {
	r := &Resolver{lookup: lookup, draw: rand.IntN}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func Format(n int) string {
	return fmt.Sprintf("%04d", n)
}

// Valid reports whether s is a well formed discriminator.
func Valid(s string) bool {
	if len(s) != 4 {
		return false
	}
	for i := range len(s) {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	n, err := strconv.Atoi(s)
	return err == nil && n >= globals.MinDiscriminator && n <= globals.MaxDiscriminator
}

// Resolve returns an unused discriminator for username, or an error wrapping
// globals.ErrExhausted when all 9999 are taken. Random probing is capped at the
// number of free values; after that the lowest free value is used.
func (r *Resolver) Resolve(ctx context.Context, username string) (string, error) {
	used, err := r.lookup.Discriminators(ctx, username)
	if err != nil {
		return "", fmt.Errorf("failed to list discriminators: %w", err)
	}

	taken := make(map[int]bool, len(used))
	for _, d := range used {
		if n, err := strconv.Atoi(d); err == nil {
			taken[n] = true
		}
	}

	for attempts := namespaceSize - len(taken); attempts > 0 && len(taken) < namespaceSize; attempts-- {
		n := globals.MinDiscriminator + r.next(namespaceSize)
		if taken[n] {
			continue
		}

		free, err := r.confirm(ctx, username, n, taken)
		if err != nil {
			return "", err
		}
		if free {
			return Format(n), nil
		}
	}

	for n := globals.MinDiscriminator; n <= globals.MaxDiscriminator; n++ {
		if taken[n] {
			continue
		}

		free, err := r.confirm(ctx, username, n, taken)
		if err != nil {
			return "", err
		}
		if free {
			return Format(n), nil
		}
	}

	return "", fmt.Errorf("%w: all %d discriminators of %q are taken", globals.ErrExhausted, namespaceSize, username)
}

func (r *Resolver) next(n int) int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.draw(n)
}

// confirm re-checks a candidate against the store, catching accounts created
// since the snapshot was read.
func (r *Resolver) confirm(ctx context.Context, username string, n int, taken map[int]bool) (bool, error) {
	inUse, err := r.lookup.DiscriminatorTaken(ctx, username, Format(n))
	if err != nil {
		return false, fmt.Errorf("failed to check discriminator: %w", err)
	}
	if inUse {
		taken[n] = true
		return false, nil
	}
	return true, nil
}
