package jobs

import (
	"errors"
	"testing"
	"time"

	"loan-allocation-backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type purgerFunc func(cutoff time.Time) (int, error)

func (f purgerFunc) PurgeOlderThan(cutoff time.Time) (int, error) { return f(cutoff) }

func TestPurgeExpired(t *testing.T) {
	now := time.Date(2026, 3, 31, 3, 0, 0, 0, time.UTC)
	var got time.Time
	n, err := PurgeExpired(purgerFunc(func(cutoff time.Time) (int, error) {
		got = cutoff
		return 4, nil
	}), 30, now)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC), got)

	_, err = PurgeExpired(purgerFunc(func(time.Time) (int, error) {
		return 0, errors.New("db down")
	}), 30, now)
	assert.EqualError(t, err, "db down")
}

func TestStartRetention(t *testing.T) {
	noop := purgerFunc(func(time.Time) (int, error) { return 0, nil })

	c, err := StartRetention(config.RetentionConfig{Days: 0}, noop)
	require.NoError(t, err)
	assert.Nil(t, c)

	_, err = StartRetention(config.RetentionConfig{Days: 7, Schedule: "every tuesday"}, noop)
	assert.Error(t, err)

	c, err = StartRetention(config.RetentionConfig{Days: 7, TimeZone: "Africa/Johannesburg"}, noop)
	require.NoError(t, err)
	require.NotNil(t, c)
	defer c.Stop()
	assert.Len(t, c.Entries(), 1)
}
