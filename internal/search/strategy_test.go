package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		query string
		want  Strategy
	}{
		{"what calls UserService", StrategyHybrid},
		{"UserService", StrategyStructural},
		{"who implements PaymentGateway", StrategyStructural},
		{"auth_handler", StrategyStructural},
		{"how does the retry logic work", StrategySemantic},
		{"find code that validates email addresses", StrategySemantic},
		{"error handling", StrategyHybrid},
		{"retry", StrategyHybrid},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, classify(tt.query), "query: %q", tt.query)
	}
}

func TestLooksLikeIdentifier(t *testing.T) {
	assert.True(t, looksLikeIdentifier("UserService"))
	assert.True(t, looksLikeIdentifier("auth_handler"))
	assert.True(t, looksLikeIdentifier("pkg.Func"))
	assert.False(t, looksLikeIdentifier("hello"))
	assert.False(t, looksLikeIdentifier("Find"))
}
