package auth

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/iho/rideledger/internal/domain"
)

// roleClaim is the Firebase custom claim carrying the account role.
const roleClaim = "role"

// FirebaseToken holds the verified token data the authenticator needs.
type FirebaseToken struct {
	UID    string
	Claims map[string]any
}

// TokenVerifier verifies a raw Firebase ID token.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*FirebaseToken, error)
}

type adminVerifier struct {
	client *fbauth.Client
}

func (v *adminVerifier) VerifyIDToken(ctx context.Context, idToken string) (*FirebaseToken, error) {
	token, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, err
	}
	return &FirebaseToken{UID: token.UID, Claims: token.Claims}, nil
}

// FirebaseAuthenticator authenticates Firebase ID tokens. The token UID is
// the account ID.
type FirebaseAuthenticator struct {
	verifier TokenVerifier
}

// NewFirebaseAuthenticator initialises the Admin SDK. An empty
// credentialsFile falls back to application default credentials.
func NewFirebaseAuthenticator(ctx context.Context, projectID, credentialsFile string) (*FirebaseAuthenticator, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise firebase app: %w", err)
	}

	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise firebase auth: %w", err)
	}

	return NewFirebaseAuthenticatorWithVerifier(&adminVerifier{client: client}), nil
}

// NewFirebaseAuthenticatorWithVerifier wraps an existing verifier.
func NewFirebaseAuthenticatorWithVerifier(v TokenVerifier) *FirebaseAuthenticator {
	return &FirebaseAuthenticator{verifier: v}
}

// Authenticate implements Authenticator.
func (a *FirebaseAuthenticator) Authenticate(ctx context.Context, token string) (domain.Principal, error) {
	verified, err := a.verifier.VerifyIDToken(ctx, token)
	if err != nil {
		if fbauth.IsIDTokenExpired(err) {
			return domain.Principal{}, domain.ErrExpiredToken
		}
		return domain.Principal{}, domain.ErrInvalidToken
	}
	if verified.UID == "" {
		return domain.Principal{}, domain.ErrInvalidToken
	}

	p := domain.Principal{AccountID: verified.UID}
	if role, ok := verified.Claims[roleClaim].(string); ok {
		p.Role = domain.Role(role)
	}

	return p, nil
}
