package rotation

import (
	"context"
	"fmt"

	cferrors "github.com/systmms/cfrotate/internal/errors"
	"github.com/systmms/cfrotate/internal/logging"
)

// APITokenRotator rotates API tokens by alternating between two live token
// identities. Each rotation promotes the standby token to active, so the
// previously active token stays valid through any propagation delay and is
// only superseded on the next cycle.
//
// Given the current record, one of four paths applies:
//
//  1. bootstrap: no TokenId yet; issue a brand-new token.
//  2. self-heal: TokenId no longer exists upstream (deleted out of band);
//     treated exactly like bootstrap, dropping any stale standby reference.
//  3. alternate: the standby exists; renew it, roll its value, promote it.
//  4. establish pair: no usable standby; clone the active token into one and
//     promote the clone.
//
// After any successful call exactly one tracked identity is active and its
// value is the record's TokenValue.
type APITokenRotator struct {
	tokens TokenAPI
	logger *logging.Logger
}

// NewAPITokenRotator creates the rotator for KindAPIToken.
func NewAPITokenRotator(tokens TokenAPI, logger *logging.Logger) *APITokenRotator {
	return &APITokenRotator{tokens: tokens, logger: logger}
}

// Kind returns KindAPIToken.
func (r *APITokenRotator) Kind() Kind {
	return KindAPIToken
}

// Create produces the next record in the alternation sequence.
func (r *APITokenRotator) Create(ctx context.Context, secretID string, current Record) (Record, error) {
	attrs, err := current.APIToken()
	if err != nil {
		return Record{}, cferrors.ConfigurationError{SecretID: secretID, Message: err.Error()}
	}

	if attrs.TokenID == "" {
		// First rotation ever.
		return r.issue(ctx, current, attrs)
	}

	exists, err := r.tokens.TokenExists(ctx, attrs.TokenID)
	if err != nil {
		return Record{}, cferrors.ProviderError{Operation: "token existence check", Err: err}
	}
	if !exists {
		// The active token was deleted out of band. Re-issue from scratch;
		// a fresh pair starts forming on the next cycle.
		r.logger.Warn("api token %s no longer exists, issuing a replacement", attrs.TokenID)
		return r.issue(ctx, current, attrs)
	}

	return r.alternate(ctx, current, attrs)
}

// issue creates a brand-new token and makes it the sole tracked identity.
func (r *APITokenRotator) issue(ctx context.Context, current Record, attrs APITokenAttributes) (Record, error) {
	tok, err := r.tokens.CreateToken(ctx, attrs.Name, attrs.Policies, attrs.ValidDays)
	if err != nil {
		return Record{}, cferrors.ProviderError{Operation: "token creation", Err: err}
	}

	next := attrs
	next.TokenID = tok.ID
	next.TokenValue = tok.Value
	next.OtherTokenID = ""

	r.logger.Info("issued api token %s", tok.ID)
	return current.WithAttributes(next)
}

// alternate swaps the active and standby roles. The standby is renewed in
// place when it still exists; otherwise the active token is cloned to
// establish the pair.
func (r *APITokenRotator) alternate(ctx context.Context, current Record, attrs APITokenAttributes) (Record, error) {
	next := attrs

	standbyLive := false
	if attrs.OtherTokenID != "" {
		live, err := r.tokens.TokenExists(ctx, attrs.OtherTokenID)
		if err != nil {
			return Record{}, cferrors.ProviderError{Operation: "standby token existence check", Err: err}
		}
		standbyLive = live
	}

	if standbyLive {
		value, err := r.tokens.RenewToken(ctx, attrs.OtherTokenID)
		if err != nil {
			return Record{}, cferrors.ProviderError{Operation: "token renewal", Err: err}
		}
		next.TokenID = attrs.OtherTokenID
		next.OtherTokenID = attrs.TokenID
		next.TokenValue = value
		r.logger.Info("alternated api tokens %s -> %s", attrs.TokenID, next.TokenID)
		return current.WithAttributes(next)
	}

	tok, err := r.tokens.CloneToken(ctx, attrs.TokenID)
	if err != nil {
		return Record{}, cferrors.ProviderError{Operation: "token clone", Err: err}
	}
	next.TokenID = tok.ID
	next.OtherTokenID = attrs.TokenID
	next.TokenValue = tok.Value
	r.logger.Info("alternated api tokens %s -> %s (new standby pair)", attrs.TokenID, tok.ID)
	return current.WithAttributes(next)
}

// Test checks that the pending token value authenticates and is active. An
// inactive token is a validation failure that blocks finishSecret.
func (r *APITokenRotator) Test(ctx context.Context, secretID string, pending Record) error {
	attrs, err := pending.APIToken()
	if err != nil {
		return cferrors.ConfigurationError{SecretID: secretID, Message: err.Error()}
	}

	active, err := r.tokens.VerifyToken(ctx, attrs.TokenValue)
	if err != nil {
		return cferrors.ProviderError{Operation: "token verification", Err: err}
	}
	if !active {
		return cferrors.ValidationError{
			SecretID: secretID,
			Message:  fmt.Sprintf("api token %s is not active", attrs.TokenID),
		}
	}
	return nil
}
