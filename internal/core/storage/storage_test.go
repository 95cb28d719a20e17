package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gear-market/internal/core/config"
)

func TestLocal_SaveDeleteURL(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocal(dir, "/media")
	require.NoError(t, err)
	ctx := context.Background()

	key := "products/2026/10/18/abc.jpg"
	require.NoError(t, s.Save(ctx, key, strings.NewReader("jpeg-bytes"), "image/jpeg"))

	b, err := os.ReadFile(filepath.Join(dir, "products", "2026", "10", "18", "abc.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(b))
	assert.Equal(t, "/media/products/2026/10/18/abc.jpg", s.URL(key))

	require.NoError(t, s.Delete(ctx, key))
	_, err = os.Stat(filepath.Join(dir, key))
	assert.True(t, os.IsNotExist(err))

	// deleting twice is fine
	assert.NoError(t, s.Delete(ctx, key))
}

func TestLocal_RejectsEscapingKeys(t *testing.T) {
	s, err := NewLocal(t.TempDir(), "")
	require.NoError(t, err)
	err = s.Save(context.Background(), "../../etc/passwd", strings.NewReader("x"), "")
	assert.Error(t, err)
}

func TestKeys(t *testing.T) {
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, "products/2026/10/18/id1.png", ProductImageKey(now, "id1", "Guitar.PNG"))
	assert.Equal(t, "products/2026/10/18/id2", ProductImageKey(now, "id2", "noext"))
	assert.Equal(t, "profile_images/u1.jpeg", AvatarKey("u1", "me.jpeg"))
	assert.Equal(t, "/x/y", joinURL("", "x/y"))
	assert.Equal(t, "https://cdn/x", joinURL("https://cdn/", "x"))
}

func TestNew(t *testing.T) {
	s, err := New(config.Storage{Type: "local", BasePath: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &Local{}, s)

	_, err = New(config.Storage{Type: "ftp"})
	assert.Error(t, err)

	_, err = New(config.Storage{Type: "s3"})
	assert.Error(t, err, "bucket is required")
}

func TestExecuteWithBreaker_Trips(t *testing.T) {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "test",
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 2
		},
	})
	boom := errors.New("boom")
	for i := 0; i < 2; i++ {
		_, err := executeWithBreaker(cb, func() (int, error) { return 0, boom })
		assert.ErrorIs(t, err, boom)
	}
	_, err := executeWithBreaker(cb, func() (int, error) { return 1, nil })
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}
