package session

import (
	"context"
	"testing"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStaticAcquire(t *testing.T) {
	t.Parallel()

	s := NewStatic("sid=abc; csrf=xyz")
	token, err := s.Acquire(context.Background(), "https://example.com")
	require.NoError(t, err)
	require.Equal(t, "sid=abc; csrf=xyz", token)
}

func TestJoinCookies(t *testing.T) {
	t.Parallel()

	cookies := []*network.Cookie{
		{Name: "sid", Value: "abc"},
		nil,
		{Name: "", Value: "ignored"},
		{Name: "csrf", Value: "xyz"},
	}
	require.Equal(t, "sid=abc; csrf=xyz", joinCookies(cookies))
	require.Equal(t, "", joinCookies(nil))
}

func TestHostOnly(t *testing.T) {
	t.Parallel()

	require.Equal(t, "example.com", hostOnly("https://example.com/catalog?x=1"))
	require.Equal(t, "example.com", hostOnly("http://example.com"))
	require.Equal(t, "example.com", hostOnly("example.com/path"))
}

func TestNewChromedpDefaults(t *testing.T) {
	t.Parallel()

	p := NewChromedp(Config{}, nil)
	require.NotNil(t, p)
	require.Greater(t, p.cfg.NavigationTimeout.Seconds(), 0.0)
	require.Greater(t, p.cfg.ViewportWidth, int64(0))
	require.NotNil(t, p.logger)

	p2 := NewChromedp(Config{UserAgent: "test"}, zap.NewNop())
	require.Equal(t, "test", p2.cfg.UserAgent)
}
