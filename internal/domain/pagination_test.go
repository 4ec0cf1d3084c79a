package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageRequest_Limit(t *testing.T) {
	assert.Equal(t, DefaultPageSize, PageRequest{}.Limit())
	assert.Equal(t, DefaultPageSize, PageRequest{MaxResults: -3}.Limit())
	assert.Equal(t, 10, PageRequest{MaxResults: 10}.Limit())
	assert.Equal(t, MaxPageSize, PageRequest{MaxResults: MaxPageSize + 1}.Limit())
}

func TestPageRequest_RoundTrip(t *testing.T) {
	token := NextPageToken(0, 10, 25)
	assert.NotEmpty(t, token)
	assert.Equal(t, 10, PageRequest{PageToken: token}.Offset())

	token = NextPageToken(10, 10, 25)
	assert.Equal(t, 20, PageRequest{PageToken: token}.Offset())

	assert.Empty(t, NextPageToken(20, 10, 25), "last page has no next token")
}

func TestPageRequest_InvalidToken(t *testing.T) {
	assert.Equal(t, 0, PageRequest{PageToken: "%%%"}.Offset())
	assert.Equal(t, 0, PageRequest{PageToken: "YWJj"}.Offset()) // "abc"
}
