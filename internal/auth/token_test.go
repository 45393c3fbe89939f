// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package auth

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractToken_PriorityOrder(t *testing.T) {
	req := httptest.NewRequest("GET", "/status", nil)
	req.Header.Set("Authorization", "Bearer bearer-token")
	req.Header.Set(HeaderAPIToken, "header-token")
	assert.Equal(t, "bearer-token", ExtractToken(req))

	req.Header.Del("Authorization")
	assert.Equal(t, "header-token", ExtractToken(req))

	req.Header.Del(HeaderAPIToken)
	assert.Empty(t, ExtractToken(req))
}

func TestExtractToken_CaseInsensitiveScheme(t *testing.T) {
	req := httptest.NewRequest("GET", "/status", nil)
	req.Header.Set("Authorization", "bearer abc")
	assert.Equal(t, "abc", ExtractToken(req))
}

func TestAuthorizeToken(t *testing.T) {
	assert.True(t, AuthorizeToken("secret", "secret"))
	assert.False(t, AuthorizeToken("secret", "other"))
	assert.False(t, AuthorizeToken("", "secret"))
	assert.False(t, AuthorizeToken("secret", ""))
	assert.False(t, AuthorizeToken("secret", "   "))
}

func TestAuthorizeRequest(t *testing.T) {
	req := httptest.NewRequest("POST", "/start", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	assert.True(t, AuthorizeRequest(req, "s3cret"))
	assert.False(t, AuthorizeRequest(req, "nope"))
	assert.False(t, AuthorizeRequest(nil, "s3cret"))
}
