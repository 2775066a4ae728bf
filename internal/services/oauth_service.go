package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/idtoken"
	"google.golang.org/api/option"
)

const oauthHTTPTimeout = 10 * time.Second

// SocialProfile is the identity a provider vouches for.
type SocialProfile struct {
	ID        string
	Email     string
	Name      string
	AvatarURL string
}

// SocialVerifier checks a provider credential sent by a client app.
type SocialVerifier interface {
	Verify(ctx context.Context, token string) (*SocialProfile, error)
}

// GoogleVerifier validates Google ID tokens against the configured client IDs.
type GoogleVerifier struct {
	validator *idtoken.Validator
	audiences []string
}

// NewGoogleVerifier builds the verifier once; it caches Google's signing keys.
func NewGoogleVerifier(ctx context.Context, clientIDs []string) (*GoogleVerifier, error) {
	validator, err := idtoken.NewValidator(ctx, option.WithHTTPClient(&http.Client{Timeout: oauthHTTPTimeout}))
	if err != nil {
		return nil, fmt.Errorf("google id token validator: %w", err)
	}
	return &GoogleVerifier{validator: validator, audiences: clientIDs}, nil
}

func (g *GoogleVerifier) Verify(ctx context.Context, token string) (*SocialProfile, error) {
	if len(g.audiences) == 0 {
		return nil, fmt.Errorf("%w: google sign-in is not configured", ErrInvalidToken)
	}

	payload, err := g.validator.Validate(ctx, token, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !slices.Contains(g.audiences, payload.Audience) {
		return nil, fmt.Errorf("%w: unexpected audience", ErrInvalidToken)
	}

	profile := &SocialProfile{ID: payload.Subject}
	profile.Email, _ = payload.Claims["email"].(string)
	profile.Name, _ = payload.Claims["name"].(string)
	profile.AvatarURL, _ = payload.Claims["picture"].(string)
	return profile, nil
}

// FacebookVerifier checks user access tokens with the Graph API.
type FacebookVerifier struct {
	appID     string
	appSecret string
	graphURL  string
	client    *http.Client
}

func NewFacebookVerifier(appID, appSecret, graphURL string) *FacebookVerifier {
	return &FacebookVerifier{
		appID:     appID,
		appSecret: appSecret,
		graphURL:  strings.TrimRight(graphURL, "/"),
		client:    &http.Client{Timeout: oauthHTTPTimeout},
	}
}

type facebookDebugResponse struct {
	Data struct {
		AppID   string `json:"app_id"`
		IsValid bool   `json:"is_valid"`
		UserID  string `json:"user_id"`
	} `json:"data"`
}

type facebookProfile struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	} `json:"picture"`
}

func (f *FacebookVerifier) Verify(ctx context.Context, token string) (*SocialProfile, error) {
	if f.appID == "" || f.appSecret == "" {
		return nil, fmt.Errorf("%w: facebook sign-in is not configured", ErrInvalidToken)
	}

	query := url.Values{
		"input_token":  {token},
		"access_token": {f.appID + "|" + f.appSecret},
	}
	var debug facebookDebugResponse
	if err := f.getJSON(ctx, f.client, f.graphURL+"/debug_token?"+query.Encode(), &debug); err != nil {
		return nil, err
	}
	if !debug.Data.IsValid {
		return nil, fmt.Errorf("%w: facebook token rejected", ErrInvalidToken)
	}
	if debug.Data.AppID != f.appID {
		return nil, fmt.Errorf("%w: token issued for another app", ErrInvalidToken)
	}

	// The profile call runs as the user, authenticated with their token.
	userClient := oauth2.NewClient(
		context.WithValue(ctx, oauth2.HTTPClient, f.client),
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
	)
	var me facebookProfile
	if err := f.getJSON(ctx, userClient, f.graphURL+"/me?fields=id,name,email,picture.type(large)", &me); err != nil {
		return nil, err
	}

	return &SocialProfile{
		ID:        me.ID,
		Email:     me.Email,
		Name:      me.Name,
		AvatarURL: me.Picture.Data.URL,
	}, nil
}

func (f *FacebookVerifier) getJSON(ctx context.Context, client *http.Client, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("facebook graph request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: facebook graph returned status %d", ErrInvalidToken, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
