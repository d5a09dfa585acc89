package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"guildchat-backend/internal/globals"
)

type UserIDKeyType struct{}

const userExistsTTL = 15 * time.Minute

func userExistsKey(userID int64) string {
	return fmt.Sprintf("user_exists:%d", userID)
}

func userIDFrom(ctx context.Context) int64 {
	return ctx.Value(UserIDKeyType{}).(int64)
}

// UserVerifier accepts either a Basic authorization header or the JWT session
// cookie, and passes the user's ID on in the request context.
func (h *Handler) UserVerifier(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var userID int64
		var ok bool

		if header := r.Header.Get("Authorization"); header != "" {
			userID, ok = h.verifyBasic(w, r, header)
		} else {
			userID, ok = h.verifyJwt(w, r)
		}
		if !ok {
			return
		}

		// this passes the authenticated user's ID to next handler
		ctx := context.WithValue(r.Context(), UserIDKeyType{}, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) verifyBasic(w http.ResponseWriter, r *http.Request, header string) (int64, bool) {
	account, err := h.authenticator.Authenticate(r.Context(), header)
	if err != nil {
		h.sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return 0, false
	}
	if account == nil {
		w.Header().Set("WWW-Authenticate", `Basic realm="guildchat"`)
		h.writeError(w, fmt.Errorf("%w: wrong credentials", globals.ErrUnauthorized))
		return 0, false
	}
	return account.ID, true
}

func (h *Handler) verifyJwt(w http.ResponseWriter, r *http.Request) (int64, bool) {
	ctx := r.Context()

	jwtCookie, err := r.Cookie(globals.JwtCookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			h.writeError(w, fmt.Errorf("%w: no jwt cookie was provided", globals.ErrUnauthorized))
		} else {
			h.writeError(w, fmt.Errorf("couldn't read jwt cookie: %w", err))
		}
		return 0, false
	}

	userToken, err := h.issuer.VerifyToken(jwtCookie.Value)
	if err != nil {
		h.writeError(w, fmt.Errorf("%w: couldn't verify jwt: %v", globals.ErrUnauthorized, err))
		return 0, false
	}

	// check if user exists
	key := userExistsKey(userToken.UserID)

	userFound := false

	value, err := h.cache.Get(ctx, key)
	if err != nil {
		h.sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return 0, false
	}

	if value == "" { // user isn't cached
		userFound, err = h.accounts.Exists(ctx, userToken.UserID)
		if err != nil {
			h.sugar.Error(err)
			http.Error(w, "", http.StatusInternalServerError)
			return 0, false
		}
		if userFound {
			err = h.cache.Set(ctx, key, "y", userExistsTTL)
			if err != nil {
				h.sugar.Error(err)
				http.Error(w, "", http.StatusInternalServerError)
				return 0, false
			}
			h.sugar.Debugf("User ID %d was found in database and was cached", userToken.UserID)
		} else {
			h.sugar.Debugf("User ID %d was not found in database", userToken.UserID)
		}
	} else {
		h.sugar.Debugf("User ID %d was found in cache", userToken.UserID)
		userFound = true
	}

	// the account was deleted while the client kept its token
	if !userFound {
		expired := h.issuer.ExpiredCookie()
		http.SetCookie(w, &expired)
		h.writeError(w, fmt.Errorf("%w: user ID [%d] no longer exists", globals.ErrUnauthorized, userToken.UserID))
		return 0, false
	}

	if h.issuer.NeedsRenewal(userToken) {
		updatedCookie, err := h.issuer.CreateToken(userToken.Remember, userToken.UserID)
		if err != nil {
			h.sugar.Error(err)
			http.Error(w, "Couldn't renew cookie", http.StatusInternalServerError)
			return 0, false
		}

		http.SetCookie(w, &updatedCookie)
	}

	return userToken.UserID, true
}
