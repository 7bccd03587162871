package auth

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"strings"

	"github.com/mottorpay/push-gateway/internal/domain"
)

const (
	// DefaultTokenURI is Google's OAuth token endpoint, used when the
	// service-account JSON omits token_uri.
	DefaultTokenURI = "https://oauth2.googleapis.com/token"
	// MessagingScope is the OAuth scope granted to the minted access token.
	MessagingScope = "https://www.googleapis.com/auth/firebase.messaging"
)

// ServiceCredential holds the identity claims and private key parsed from a
// Firebase service-account JSON. Loaded once at startup and never mutated.
type ServiceCredential struct {
	ClientEmail string
	ProjectID   string
	TokenURI    string
	PrivateKey  *rsa.PrivateKey
}

type serviceAccountJSON struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	ProjectID   string `json:"project_id"`
	TokenURI    string `json:"token_uri"`
}

// ParseServiceCredential parses the FIREBASE_SERVICE_ACCOUNT JSON blob.
// Any structural or key-material problem is a configuration error; the
// process still starts, but FCM dispatch stays disabled.
func ParseServiceCredential(raw []byte) (*ServiceCredential, error) {
	var sa serviceAccountJSON
	if err := json.Unmarshal(raw, &sa); err != nil {
		return nil, fmt.Errorf("%w: service account JSON is malformed: %v", domain.ErrConfig, err)
	}

	if strings.TrimSpace(sa.ClientEmail) == "" {
		return nil, fmt.Errorf("%w: service account client_email is required", domain.ErrConfig)
	}
	if strings.TrimSpace(sa.ProjectID) == "" {
		return nil, fmt.Errorf("%w: service account project_id is required", domain.ErrConfig)
	}

	key, err := parseRSAPrivateKey(sa.PrivateKey)
	if err != nil {
		return nil, err
	}

	tokenURI := strings.TrimSpace(sa.TokenURI)
	if tokenURI == "" {
		tokenURI = DefaultTokenURI
	}

	return &ServiceCredential{
		ClientEmail: strings.TrimSpace(sa.ClientEmail),
		ProjectID:   strings.TrimSpace(sa.ProjectID),
		TokenURI:    tokenURI,
		PrivateKey:  key,
	}, nil
}

func parseRSAPrivateKey(pemData string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("%w: service account private_key is not PEM", domain.ErrConfig)
	}

	// Google issues PKCS#8 keys; PKCS#1 accepted for locally generated ones.
	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: service account private_key is not RSA", domain.ErrConfig)
		}
		return rsaKey, nil
	}

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot parse service account private_key: %v", domain.ErrConfig, err)
	}
	return key, nil
}

// VAPIDKeys is the Web Push application server key pair plus the subscriber
// contact sent to push services.
type VAPIDKeys struct {
	PublicKey  string
	PrivateKey string
	Subscriber string
}

// NewVAPIDKeys validates the configured VAPID material.
func NewVAPIDKeys(publicKey, privateKey, subscriber string) (*VAPIDKeys, error) {
	publicKey = strings.TrimSpace(publicKey)
	privateKey = strings.TrimSpace(privateKey)
	subscriber = strings.TrimSpace(subscriber)

	if publicKey == "" || privateKey == "" {
		return nil, fmt.Errorf("%w: VAPID public and private keys are required", domain.ErrConfig)
	}
	if subscriber == "" {
		return nil, fmt.Errorf("%w: VAPID subscriber contact is required", domain.ErrConfig)
	}

	return &VAPIDKeys{
		PublicKey:  publicKey,
		PrivateKey: privateKey,
		Subscriber: subscriber,
	}, nil
}
