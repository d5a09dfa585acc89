// Package credentials hashes passwords and turns an Authorization header
// into a verified account.
//
// Headers look like "Basic base64(name#discriminator:password)". Anything
// malformed is treated as unauthenticated, never as an error: Authenticate
// only returns an error when the account lookup itself fails.
package credentials

import (
	"context"
	"encoding/base64"
	"strings"

	"guildchat-backend/internal/globals"
	"guildchat-backend/internal/models"

	"golang.org/x/crypto/bcrypt"
)

type Hasher struct {
	cost int
}

func NewHasher() *Hasher {
	return &Hasher{cost: globals.PasswordHashCost}
}

// Hash salts and hashes password with bcrypt.
func (h *Hasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (h *Hasher) Verify(password string, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

type AccountLookup interface {
	GetByTag(ctx context.Context, username string, discriminator string) (*models.Account, error)
}

type Authenticator struct {
	accounts AccountLookup
	hasher   *Hasher
}

func NewAuthenticator(accounts AccountLookup, hasher *Hasher) *Authenticator {
	return &Authenticator{accounts: accounts, hasher: hasher}
}

// ParseBasic splits a Basic header into its parts. ok is false when the
// scheme is not Basic, the payload is missing or not base64, or any of name,
// discriminator and password is empty.
func ParseBasic(header string) (username string, discriminator string, password string, ok bool) {
	scheme, payload, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || scheme != "Basic" {
		return "", "", "", false
	}

	payload = strings.TrimSpace(payload)
	if payload == "" {
		return "", "", "", false
	}

	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", "", "", false
	}

	tag, password, found := strings.Cut(string(decoded), ":")
	if !found || password == "" {
		return "", "", "", false
	}

	username, discriminator, found = strings.Cut(tag, "#")
	if !found || username == "" || discriminator == "" {
		return "", "", "", false
	}

	return username, discriminator, password, true
}

func EncodeBasic(tag string, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(tag+":"+password))
}

// Authenticate returns the account named by the header if the password
// matches, and nil otherwise.
func (a *Authenticator) Authenticate(ctx context.Context, header string) (*models.Account, error) {
	username, discriminator, password, ok := ParseBasic(header)
	if !ok {
		return nil, nil
	}

	account, err := a.accounts.GetByTag(ctx, username, discriminator)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, nil
	}

	if !a.hasher.Verify(password, account.PasswordHash) {
		return nil, nil
	}
	return account, nil
}
