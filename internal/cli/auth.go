package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/videodiary/internal/cloud"
)

// accessTokenTTL matches the lifetime the remote service grants its bearer
// tokens. There is no refresh token; expiry re-runs this prompt.
const accessTokenTTL = time.Hour

// getSimpleText and getSecret are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getSecret = GetSecret

// TerminalAuthenticator obtains a bearer token interactively: the user
// pastes one issued by the remote service's console.
type TerminalAuthenticator struct {
	reader *bufio.Reader
}

func NewTerminalAuthenticator(reader *bufio.Reader) *TerminalAuthenticator {
	return &TerminalAuthenticator{reader: reader}
}

func (a *TerminalAuthenticator) SignIn(ctx context.Context) (cloud.Token, error) {
	fmt.Println("Cloud sign-in required.")
	token, err := getSecret(os.Stdout, "Paste access token")
	if err != nil {
		return cloud.Token{}, err
	}
	if len(token) == 0 {
		return cloud.Token{}, fmt.Errorf("empty token")
	}
	return cloud.Token{AccessToken: string(token), Expiry: time.Now().Add(accessTokenTTL)}, nil
}

func (a *TerminalAuthenticator) SignOut(ctx context.Context) error {
	fmt.Println("Signed out of cloud sync.")
	return nil
}
