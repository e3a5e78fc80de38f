package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	gocache "github.com/patrickmn/go-cache"
)

var (
	ErrInvalidToken = errors.New("session token is invalid or expired")
	ErrMissingClaim = errors.New("session token is missing the subject claim")
)

// Service verifies client session tokens and tracks banned peer addresses.
// Tokens are HMAC-signed JWTs issued by the account service; the game server
// only ever verifies them.
type Service struct {
	secret  []byte
	banTTL  time.Duration
	banList *gocache.Cache
}

func NewService(jwtSecret string, banDuration time.Duration) *Service {
	return &Service{
		secret:  []byte(jwtSecret),
		banTTL:  banDuration,
		banList: gocache.New(banDuration, 10*time.Minute),
	}
}

// DecodeToken verifies the token's signature and expiry and returns the user
// identity from its subject claim.
func (s *Service) DecodeToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	userID, err := token.Claims.GetSubject()
	if err != nil || userID == "" {
		return "", ErrMissingClaim
	}
	return userID, nil
}

// AddBanAddress places an address on the ban list for the configured duration.
func (s *Service) AddBanAddress(ip string) {
	s.banList.Set(ip, true, s.banTTL)
}

// IsBanned reports whether an address is currently banned.
func (s *Service) IsBanned(ip string) bool {
	_, banned := s.banList.Get(ip)
	return banned
}
