package jwt

import (
	"errors"
	"net/http"
	"time"

	"guildchat-backend/internal/globals"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const RenewAfter = 15 * time.Minute

type UserToken struct {
	UserID   int64 `json:"userID"`
	Remember bool  `json:"rem"`
	jwt.RegisteredClaims
}

type Issuer struct {
	secret  []byte
	isHttps bool
	now     func() time.Time
}

func NewIssuer(secret string, isHttps bool) *Issuer {
	return NewIssuerWithClock(secret, isHttps, time.Now)
}

func NewIssuerWithClock(secret string, isHttps bool, now func() time.Time) *Issuer {
	return &Issuer{
		secret:  []byte(secret),
		isHttps: isHttps,
		now:     now,
	}
}

func (i *Issuer) CreateToken(rememberMe bool, userID int64) (http.Cookie, error) {
	var tokenLifeTime time.Duration
	if rememberMe {
		tokenLifeTime = time.Hour * 24 * 7 * 4 // 4 weeks
	} else {
		tokenLifeTime = time.Hour * 24 // 1 day
	}

	tokenID, err := uuid.NewV7()
	if err != nil {
		return http.Cookie{}, err
	}

	currentTime := i.now().UTC()
	expirationDate := currentTime.Add(tokenLifeTime)

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, UserToken{
		UserID:   userID,
		Remember: rememberMe,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID.String(),
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(expirationDate),
		},
	})

	tokenString, err := token.SignedString(i.secret)
	if err != nil {
		return http.Cookie{}, err
	}

	cookie := http.Cookie{
		Name:     globals.JwtCookieName,
		Value:    tokenString,
		Path:     "/",
		HttpOnly: true,
		Secure:   i.isHttps,
		SameSite: http.SameSiteLaxMode,
	}

	if rememberMe {
		cookie.Expires = expirationDate
	}

	return cookie, nil
}

// VerifyToken checks the signature and expiry.
func (i *Issuer) VerifyToken(tokenString string) (UserToken, error) {
	token, err := jwt.ParseWithClaims(tokenString, &UserToken{}, func(token *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}), jwt.WithTimeFunc(i.now), jwt.WithExpirationRequired())
	if err != nil {
		return UserToken{}, err
	} else if claims, ok := token.Claims.(*UserToken); ok {
		return *claims, nil
	} else {
		return UserToken{}, errors.New("invalid token")
	}
}

func (i *Issuer) NeedsRenewal(token UserToken) bool {
	if token.IssuedAt == nil {
		return true
	}
	return i.now().UTC().Sub(token.IssuedAt.Time) >= RenewAfter
}

// ExpiredCookie tells the client to drop its session cookie.
func (i *Issuer) ExpiredCookie() http.Cookie {
	return http.Cookie{
		Name:     globals.JwtCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   i.isHttps,
		SameSite: http.SameSiteLaxMode,
	}
}
