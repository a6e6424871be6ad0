// Package auth holds the federated OAuth2 providers and the signed codes
// used by email sign-in links.
package auth

import "golang.org/x/oauth2"

type providerOptions struct {
	endpoint   oauth2.Endpoint
	profileURL string
	emailsURL  string
}

// Option overrides provider endpoints, e.g. for GitHub Enterprise or tests.
type Option func(*providerOptions)

// WithEndpoint replaces the OAuth2 authorize and token URLs.
func WithEndpoint(authURL, tokenURL string) Option {
	return func(o *providerOptions) {
		o.endpoint = oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL, AuthStyle: o.endpoint.AuthStyle}
	}
}

// WithProfileURL replaces the profile endpoint.
func WithProfileURL(u string) Option {
	return func(o *providerOptions) { o.profileURL = u }
}

// WithEmailsURL replaces the GitHub email listing endpoint.
func WithEmailsURL(u string) Option {
	return func(o *providerOptions) { o.emailsURL = u }
}

func applyOptions(endpoint oauth2.Endpoint, profileURL, emailsURL string, opts []Option) providerOptions {
	o := providerOptions{endpoint: endpoint, profileURL: profileURL, emailsURL: emailsURL}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
