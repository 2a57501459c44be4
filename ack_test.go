package socketio

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAckRegistryCorrelation(t *testing.T) {
	r := newAckRegistry()

	var got []string
	first := r.register(func(body string) { got = append(got, "first:"+body) })
	second := r.register(func(body string) { got = append(got, "second:"+body) })

	assert.Equal(t, 0, first)
	assert.Equal(t, 1, second)
	assert.Equal(t, 2, r.len())

	found, err := r.resolve(second, `["ok"]`)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{`second:["ok"]`}, got)
	assert.Equal(t, 1, r.len())

	found, err = r.resolve(second, `["again"]`)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, []string{`second:["ok"]`}, got)
}

func TestAckRegistryUnknownID(t *testing.T) {
	r := newAckRegistry()
	r.register(func(string) {})

	found, err := r.resolve(42, "")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 1, r.len())
}

func TestAckRegistryRecoversPanic(t *testing.T) {
	r := newAckRegistry()
	boom := errors.New("boom")

	id := r.register(func(string) { panic(boom) })
	found, err := r.resolve(id, "")

	assert.True(t, found)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, r.len())

	id = r.register(func(string) { panic("plain") })
	_, err = r.resolve(id, "")
	assert.EqualError(t, err, "event call error: plain")
}

func TestAckRegistryForgetAndClear(t *testing.T) {
	r := newAckRegistry()
	a := r.register(func(string) {})
	r.register(func(string) {})
	r.register(func(string) {})

	r.forget(a)
	r.forget(a)
	assert.Equal(t, 2, r.len())

	r.clear()
	assert.Equal(t, 0, r.len())
	assert.Equal(t, 3, r.register(func(string) {}))
}
