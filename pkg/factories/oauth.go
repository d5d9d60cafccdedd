package factories

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/minggrim/ResourcePool/pkg/logger"
	"github.com/minggrim/ResourcePool/pkg/pool"
	"github.com/minggrim/ResourcePool/pkg/poolerrors"
)

// OAuthConfig contains OAuth2 client-credentials parameters. The factory
// builds HTTP clients that attach and refresh bearer tokens transparently.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string

	// RefreshToken seeds the token source; the first request exchanges it
	// for an access token.
	RefreshToken string

	RequestTimeout time.Duration
}

func (c *OAuthConfig) validate() error {
	if c.ClientID == "" {
		return poolerrors.New(poolerrors.ErrorTypeConfig, "oauth client id is required")
	}
	if c.TokenURL == "" {
		return poolerrors.New(poolerrors.ErrorTypeConfig, "oauth token url is required")
	}
	return nil
}

// NewOAuthClientFactory returns a factory producing token-refreshing HTTP
// clients. Construction is offline; the token exchange happens lazily on
// the instance's first request.
func NewOAuthClientFactory(cfg OAuthConfig) pool.Factory[*http.Client] {
	log := logger.Get().With(zap.String("factory", "oauth"))

	return func(ctx context.Context) (*http.Client, error) {
		if err := cfg.validate(); err != nil {
			return nil, err
		}

		oauthConfig := &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL: cfg.TokenURL,
			},
			Scopes: cfg.Scopes,
		}

		token := &oauth2.Token{
			RefreshToken: cfg.RefreshToken,
		}

		// Background, not the construct ctx: the source keeps refreshing
		// for the life of the lease, long after construction returns.
		tokenSource := oauthConfig.TokenSource(context.Background(), token)
		client := oauth2.NewClient(context.Background(), tokenSource)
		if cfg.RequestTimeout > 0 {
			client.Timeout = cfg.RequestTimeout
		}

		log.Debug("oauth client created",
			zap.String("token_url", cfg.TokenURL),
			zap.Strings("scopes", cfg.Scopes))

		return client, nil
	}
}

// NewOAuthClientPool assembles a bounded pool of token-refreshing HTTP
// clients. Each instance caches its own access token, so pool occupancy
// bounds concurrent refresh traffic against the identity provider.
func NewOAuthClientPool(cfg OAuthConfig, idleLimit, maxLimit int) (*pool.Pool[*http.Client], error) {
	return pool.New(pool.Config[*http.Client]{
		Name:      "oauth",
		IdleLimit: idleLimit,
		MaxLimit:  maxLimit,
		Factory:   NewOAuthClientFactory(cfg),
		Close:     CloseHTTPClient,
	})
}
