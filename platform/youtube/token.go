package youtube

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// tokenFile accepts both the oauth2.Token layout and the layout written by
// Google's Python auth library ("token" plus an RFC 3339 "expiry").
type tokenFile struct {
	AccessToken  string `json:"access_token"`
	Token        string `json:"token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
	Expiry       string `json:"expiry"`
}

func loadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var tf tokenFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	tok := &oauth2.Token{
		AccessToken:  tf.AccessToken,
		TokenType:    tf.TokenType,
		RefreshToken: tf.RefreshToken,
	}
	if tok.AccessToken == "" {
		tok.AccessToken = tf.Token
	}
	if tf.Expiry != "" {
		if exp, err := time.Parse(time.RFC3339, tf.Expiry); err == nil {
			tok.Expiry = exp
		}
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, fmt.Errorf("%s holds neither an access token nor a refresh token", path)
	}
	return tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// persistingTokenSource writes refreshed tokens back to disk.
type persistingTokenSource struct {
	src  oauth2.TokenSource
	path string
	log  *zap.Logger

	mu   sync.Mutex
	last string
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := p.src.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken != p.last {
		p.last = tok.AccessToken
		if err := saveToken(p.path, tok); err != nil {
			p.log.Warn("could not save refreshed token", zap.String("path", p.path), zap.Error(err))
		} else {
			p.log.Info("token refreshed", zap.String("path", p.path))
		}
	}
	return tok, nil
}
