package stress

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Payload(t *testing.T) {
	assert := assert.New(t)

	var p Payload
	assert.Zero(p.Index())
	assert.False(p.Torn())

	p = NewPayload(42)
	assert.Equal(uint64(42), p.Index())
	assert.False(p.Torn())

	p.Words[PayloadWords/2] = 41
	assert.True(p.Torn())

	p.Stamp(43)
	assert.Equal(uint64(43), p.Index())
	assert.False(p.Torn())
}
