package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mottorpay/push-gateway/internal/domain"
)

// assertionTTL is the lifetime claimed by the signed assertion; Google's
// token endpoint rejects anything longer than an hour.
const assertionTTL = time.Hour

type assertionClaims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope"`
}

// AssertionSigner mints the time-bounded RS256 assertion exchanged for an
// access token. Pure given a clock reading; no side effects.
type AssertionSigner struct {
	credential *ServiceCredential
}

func NewAssertionSigner(credential *ServiceCredential) (*AssertionSigner, error) {
	if credential == nil || credential.PrivateKey == nil {
		return nil, fmt.Errorf("%w: service credential is required", domain.ErrConfig)
	}
	return &AssertionSigner{credential: credential}, nil
}

// Sign builds the JWT-bearer assertion: issuer and subject are the service
// account email, audience the token endpoint, validity [now, now+1h].
func (s *AssertionSigner) Sign(now time.Time) (string, error) {
	claims := assertionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.credential.ClientEmail,
			Subject:   s.credential.ClientEmail,
			Audience:  jwt.ClaimStrings{s.credential.TokenURI},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(assertionTTL)),
		},
		Scope: MessagingScope,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(s.credential.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("%w: failed to sign assertion: %v", domain.ErrAuth, err)
	}
	return signed, nil
}
