package sessionbridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAsRetry_CopiesWithoutMutating(t *testing.T) {
	orig := NewRequest("POST", "/api/teams", []byte(`{"name":"x"}`), map[string]string{"X-Trace": "1"})
	retry := orig.AsRetry()

	assert.False(t, orig.Retried())
	assert.True(t, retry.Retried())
	assert.Equal(t, orig.ID, retry.ID)
	assert.Equal(t, orig.Body, retry.Body)
	assert.Equal(t, orig.Headers, retry.Headers)

	retry.Headers["X-Trace"] = "2"
	retry.Body[0] = '['
	assert.Equal(t, "1", orig.Headers["X-Trace"])
	assert.Equal(t, byte('{'), orig.Body[0])
}

func TestNewRequest_AssignsUniqueIDs(t *testing.T) {
	a := NewRequest("GET", "/a", nil, nil)
	b := NewRequest("GET", "/a", nil, nil)
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
}
