package codex

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// accessTokenEnv overrides the token file
	accessTokenEnv = "CODEX_ACCESS_TOKEN"

	// authClaim is the JWT claim that carries the ChatGPT account
	authClaim = "https://api.openai.com/auth"
)

var (
	// ErrNoToken is returned when no OAuth access token can be found
	ErrNoToken = errors.New("codex oauth token not found")

	// ErrNoAccountID is returned when the token does not name an account
	ErrNoAccountID = errors.New("codex token has no account id")
)

// Token is an OAuth access token together with the account it belongs to
type Token struct {
	AccessToken string
	AccountID   string
}

// TokenSource returns the current OAuth token
type TokenSource func() (*Token, error)

// authFile mirrors the token file written by the codex CLI login
type authFile struct {
	Tokens struct {
		AccessToken string `json:"access_token"`
		AccountID   string `json:"account_id"`
	} `json:"tokens"`
}

// DefaultAuthPath returns ~/.codex/auth.json
func DefaultAuthPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".codex", "auth.json")
	}
	return filepath.Join(home, ".codex", "auth.json")
}

// FileTokenSource reads the token from the environment, then from the token file at path
func FileTokenSource(path string) TokenSource {
	return func() (*Token, error) {
		if access := os.Getenv(accessTokenEnv); access != "" {
			accountID, err := AccountIDFromToken(access)
			if err != nil {
				return nil, err
			}
			return &Token{AccessToken: access, AccountID: accountID}, nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrNoToken, path)
			}
			return nil, fmt.Errorf("failed to read token file: %w", err)
		}

		var file authFile
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse token file: %w", err)
		}
		if file.Tokens.AccessToken == "" {
			return nil, fmt.Errorf("%w: %s", ErrNoToken, path)
		}

		accountID := file.Tokens.AccountID
		if accountID == "" {
			accountID, err = AccountIDFromToken(file.Tokens.AccessToken)
			if err != nil {
				return nil, err
			}
		}
		return &Token{AccessToken: file.Tokens.AccessToken, AccountID: accountID}, nil
	}
}

// StaticTokenSource always returns the same token
func StaticTokenSource(token Token) TokenSource {
	return func() (*Token, error) {
		t := token
		return &t, nil
	}
}

// AccountIDFromToken extracts the ChatGPT account id from the access token claims.
// The signature is not verified; the backend does that.
func AccountIDFromToken(accessToken string) (string, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())

	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(accessToken, claims); err != nil {
		return "", fmt.Errorf("failed to parse access token: %w", err)
	}

	auth, ok := claims[authClaim].(map[string]interface{})
	if !ok {
		return "", ErrNoAccountID
	}
	accountID, ok := auth["chatgpt_account_id"].(string)
	if !ok || accountID == "" {
		return "", ErrNoAccountID
	}
	return accountID, nil
}
