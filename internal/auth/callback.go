package auth

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// ErrEmptyCallback is returned when a callback URL carries neither a code nor a token.
var ErrEmptyCallback = errors.New("callback carries no code or token")

// CallbackError is the error reported by the authorization server in a redirect.
type CallbackError struct {
	Code        string
	Description string
}

func (e *CallbackError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("oauth callback error: %s", e.Code)
	}
	return fmt.Sprintf("oauth callback error: %s: %s", e.Code, e.Description)
}

// Callback is a parsed OAuth redirect. Code is set for the authorization code
// flow, Token for implicit-style redirects that put tokens in the fragment.
type Callback struct {
	Code  string
	State string
	Token *oauth2.Token
}

// ParseCallbackURL reads an OAuth redirect URL. Query and fragment are both
// searched; fragment values win when a key appears in both.
func ParseCallbackURL(raw string, now time.Time) (*Callback, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse callback URL: %w", err)
	}

	values := u.Query()
	if u.Fragment != "" {
		frag, err := url.ParseQuery(u.Fragment)
		if err != nil {
			return nil, fmt.Errorf("failed to parse callback fragment: %w", err)
		}
		for k, v := range frag {
			values[k] = v
		}
	}

	if code := values.Get("error"); code != "" {
		return nil, &CallbackError{Code: code, Description: values.Get("error_description")}
	}

	cb := &Callback{
		Code:  values.Get("code"),
		State: values.Get("state"),
	}

	if access := values.Get("access_token"); access != "" {
		tok := &oauth2.Token{
			AccessToken:  access,
			RefreshToken: values.Get("refresh_token"),
			TokenType:    values.Get("token_type"),
		}
		if exp := values.Get("expires_in"); exp != "" {
			secs, err := strconv.ParseInt(exp, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid expires_in %q: %w", exp, err)
			}
			tok.Expiry = now.Add(time.Duration(secs) * time.Second)
		}
		extra := map[string]any{}
		for _, k := range []string{"id_token", "scope", "provider_token"} {
			if v := values.Get(k); v != "" {
				extra[k] = v
			}
		}
		if len(extra) > 0 {
			tok = tok.WithExtra(extra)
		}
		cb.Token = tok
	}

	if cb.Code == "" && cb.Token == nil {
		return nil, ErrEmptyCallback
	}
	return cb, nil
}
