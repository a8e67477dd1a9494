package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassification(t *testing.T) {
	t.Parallel()

	conf := ConfigurationError{SecretID: "arn:cf/token-1", Message: "rotation is not enabled"}
	notFound := NotFoundError{SecretID: "arn:cf/token-1", Version: "v1"}
	validation := ValidationError{SecretID: "arn:cf/token-1", Message: "token is not active"}
	provider := ProviderError{Operation: "token creation", Err: errors.New("boom")}

	assert.True(t, IsConfiguration(conf))
	assert.True(t, IsNotFound(notFound))
	assert.True(t, IsValidation(validation))

	// Classes never overlap.
	assert.False(t, IsConfiguration(notFound))
	assert.False(t, IsNotFound(conf))
	assert.False(t, IsValidation(provider))
	assert.False(t, IsNotFound(nil))
}

func TestClassificationThroughWrapping(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("createSecret failed: %w", NotFoundError{SecretID: "arn:cf/token-1"})
	assert.True(t, IsNotFound(wrapped))

	doubly := fmt.Errorf("phase failed: %w", wrapped)
	assert.True(t, IsNotFound(doubly))
}

func TestMessages(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		"configuration error for secret arn:cf/token-1: rotation is not enabled",
		ConfigurationError{SecretID: "arn:cf/token-1", Message: "rotation is not enabled"}.Error())
	assert.Equal(t,
		"configuration error: no store endpoint",
		ConfigurationError{Message: "no store endpoint"}.Error())

	assert.Equal(t,
		"not found: secret arn:cf/token-1 version v1",
		NotFoundError{SecretID: "arn:cf/token-1", Version: "v1"}.Error())

	cause := errors.New("api unreachable")
	provider := ProviderError{Operation: "token renewal", Err: cause}
	assert.Contains(t, provider.Error(), "token renewal")
	assert.ErrorIs(t, provider, cause)
}
