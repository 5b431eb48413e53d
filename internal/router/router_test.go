package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoku-app/gateway/internal/config"
)

func TestTable_Match(t *testing.T) {
	table := NewTable([]config.Route{
		{Prefix: "/api/user", Service: "user"},
		{Prefix: "/api/user/settings", Service: "settings"},
		{Prefix: "/api/p/user", Service: "user"},
		{Prefix: "/api/survey", Service: "survey", StripPrefix: true},
	})

	t.Run("longest prefix wins", func(t *testing.T) {
		route, ok := table.Match("/api/user/settings/theme")
		require.True(t, ok)
		assert.Equal(t, "settings", route.Service)
	})

	t.Run("shorter prefix still matches outside the longer one", func(t *testing.T) {
		route, ok := table.Match("/api/user/123")
		require.True(t, ok)
		assert.Equal(t, "user", route.Service)
	})

	t.Run("exact prefix matches", func(t *testing.T) {
		route, ok := table.Match("/api/user")
		require.True(t, ok)
		assert.Equal(t, "user", route.Service)
	})

	t.Run("prefix matches only on a segment boundary", func(t *testing.T) {
		_, ok := table.Match("/api/username")
		assert.False(t, ok)
	})

	t.Run("unmatched path reports no route", func(t *testing.T) {
		_, ok := table.Match("/api/orders/1")
		assert.False(t, ok)
	})

	t.Run("strip flag is carried through", func(t *testing.T) {
		route, ok := table.Match("/api/survey/42")
		require.True(t, ok)
		assert.True(t, route.StripPrefix)
	})

	t.Run("trailing slash in config is normalized", func(t *testing.T) {
		tbl := NewTable([]config.Route{{Prefix: "/api/user/", Service: "user"}})
		route, ok := tbl.Match("/api/user/123")
		require.True(t, ok)
		assert.Equal(t, "user", route.Service)
	})
}

func TestTable_Swap(t *testing.T) {
	table := NewTable([]config.Route{{Prefix: "/api/user", Service: "user"}})

	_, ok := table.Match("/api/user/1")
	require.True(t, ok)

	table.Swap([]config.Route{{Prefix: "/api/orders", Service: "orders"}})

	_, ok = table.Match("/api/user/1")
	assert.False(t, ok)

	route, ok := table.Match("/api/orders/1")
	require.True(t, ok)
	assert.Equal(t, "orders", route.Service)
}
