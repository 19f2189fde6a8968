package cache

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftlabs/taskforge/internal/models"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(":memory:", true, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCache_NotSerializable_FallbackDisabled_DropsResult(t *testing.T) {
	c, err := New(":memory:", false, nil)
	require.NoError(t, err)
	defer c.Close()

	fn := func() {}
	c.Set("t1", fn)

	_, ok := c.Get("t1")
	assert.False(t, ok)
}

func TestCache_SetGet_DiskTier(t *testing.T) {
	c := newTestCache(t)
	c.Set("t1", "hello")

	v, ok := c.Get("t1")
	assert.True(t, ok)
	assert.Equal(t, "hello", v)
}

func TestCache_SetGet_LargeValueCompressed(t *testing.T) {
	c := newTestCache(t)
	big := make([]byte, 0, 2048)
	for i := 0; i < 2048; i++ {
		big = append(big, byte('a'))
	}
	c.Set("t1", string(big))

	v, ok := c.Get("t1")
	assert.True(t, ok)
	assert.Equal(t, string(big), v)
}

func TestCache_SetGet_Exception(t *testing.T) {
	c := newTestCache(t)
	exc := models.NewTaskException(errors.New("boom"))
	c.Set("t1", exc)

	v, ok := c.Get("t1")
	assert.True(t, ok)
	got, ok := v.(*models.TaskException)
	assert.True(t, ok, "exception must round-trip as a *models.TaskException, not a generic map")
	assert.Equal(t, "boom", got.Message)
}

func TestCache_Peek_DoesNotConsume(t *testing.T) {
	c := newTestCache(t)
	c.Set("t1", "v")

	assert.True(t, c.Peek("t1"))
	assert.True(t, c.Peek("t1"))
	v, ok := c.Get("t1")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestCache_Delete(t *testing.T) {
	c := newTestCache(t)
	c.Set("t1", "v")
	c.Delete("t1")

	_, ok := c.Get("t1")
	assert.False(t, ok)
	assert.False(t, c.Peek("t1"))
}

func TestCache_NotSerializable_FallsBackToMemoryTier(t *testing.T) {
	c := newTestCache(t)
	fn := func() {}
	c.Set("t1", fn)

	v, ok := c.Get("t1")
	assert.True(t, ok)
	_, isFunc := v.(func())
	assert.True(t, isFunc)
}

func TestCache_GetMissing(t *testing.T) {
	c := newTestCache(t)
	_, ok := c.Get("missing")
	assert.False(t, ok)
}
