package oauth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tournevent/ratebridge/pkg/shipper"
)

// ClientCredentials fetches tokens with the OAuth 2.0 client-credentials grant.
type ClientCredentials struct {
	Carrier      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scope        string
	Header       http.Header // extra headers, e.g. a merchant id
	Transport    shipper.Transport

	// Now overrides the clock used to compute expiry, for tests.
	Now func() time.Time
}

// tokenResponse is the authorization server's JSON answer. Some servers send
// expires_in as a string.
type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   json.Number `json:"expires_in"`
	Scope       string      `json:"scope"`
}

// FetchToken requests a new access token.
func (cc *ClientCredentials) FetchToken(ctx context.Context) (Token, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	if cc.Scope != "" {
		form.Set("scope", cc.Scope)
	}

	header := http.Header{}
	for k, vs := range cc.Header {
		for _, v := range vs {
			header.Add(k, v)
		}
	}
	header.Set("Content-Type", "application/x-www-form-urlencoded")
	header.Set("Accept", "application/json")
	header.Set("Authorization", "Basic "+basicAuth(cc.ClientID, cc.ClientSecret))

	now := time.Now
	if cc.Now != nil {
		now = cc.Now
	}

	resp, err := cc.Transport.Send(ctx, &shipper.Request{
		Method: http.MethodPost,
		URL:    cc.TokenURL,
		Header: header,
		Body:   []byte(form.Encode()),
	})
	if err != nil || !resp.OK() {
		classified := shipper.Classify(cc.Carrier, resp, err)
		authErr := shipper.NewAuthenticationError(cc.Carrier, "token request failed: "+classified.Message).
			WithCause(classified)
		if resp != nil {
			authErr.StatusCode = resp.StatusCode
			authErr.ResponseBody = string(resp.Body)
		}
		return Token{}, authErr
	}

	var body tokenResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return Token{}, shipper.NewAuthenticationError(cc.Carrier, "malformed token response").
			WithStatusCode(resp.StatusCode).
			WithCause(err)
	}
	if body.AccessToken == "" {
		return Token{}, shipper.NewAuthenticationError(cc.Carrier, "token response missing access_token").
			WithStatusCode(resp.StatusCode)
	}
	expiresIn, err := strconv.ParseInt(strings.TrimSpace(body.ExpiresIn.String()), 10, 64)
	if err != nil || expiresIn <= 0 {
		return Token{}, shipper.NewAuthenticationError(cc.Carrier,
			fmt.Sprintf("token response has invalid expires_in %q", body.ExpiresIn)).
			WithStatusCode(resp.StatusCode)
	}

	tokenType := body.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return Token{
		AccessToken: body.AccessToken,
		TokenType:   tokenType,
		ExpiresAt:   now().Add(time.Duration(expiresIn) * time.Second),
		Scope:       body.Scope,
	}, nil
}

func basicAuth(id, secret string) string {
	return base64.StdEncoding.EncodeToString([]byte(id + ":" + secret))
}

var _ Fetcher = (*ClientCredentials)(nil)
