package memory

import (
	"testing"
	"time"

	"github.com/alvmarrod/pagedepth/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlushWritesSnapshot(t *testing.T) {
	store, err := storage.NewStorage(":memory:")
	require.NoError(t, err)
	defer store.Close()

	g := buildGraph(t, ok("/", "/a", "/old"), ok("/a", "/"), redirect("/old", "/a"))
	g.Analyze(u("/"))

	require.NoError(t, store.BeginCrawl("run-1", u("/"), time.Now()))
	require.NoError(t, g.Flush(store, "run-1"))

	pages, err := store.LoadPages("run-1")
	require.NoError(t, err)
	require.Len(t, pages, 3)
	assert.Equal(t, u("/"), pages[0].URL)
	assert.Equal(t, u("/a"), pages[2].AliasOf)
	assert.Equal(t, 1, pages[1].Depth)

	links, err := store.LoadLinks("run-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []storage.Link{
		{From: u("/"), To: u("/a")},
		{From: u("/a"), To: u("/")},
	}, links)
}

func TestFlushReportsFailures(t *testing.T) {
	store, err := storage.NewStorage(":memory:")
	require.NoError(t, err)

	g := buildGraph(t, ok("/", "/a"), ok("/a"))
	store.Close()

	err = g.Flush(store, "run-1")
	assert.Error(t, err)
}

func TestVerifySnapshot(t *testing.T) {
	store, err := storage.NewStorage(":memory:")
	require.NoError(t, err)
	defer store.Close()

	g := buildGraph(t, ok("/", "/a", "/old"), ok("/a", "/"), redirect("/old", "/a"))
	g.Analyze(u("/"))

	require.NoError(t, store.BeginCrawl("run-1", u("/"), time.Now()))
	require.NoError(t, g.Flush(store, "run-1"))
	assert.NoError(t, g.VerifySnapshot(store, "run-1"))

	// A tampered row is reported
	require.NoError(t, store.UpsertPage("run-1", 1, &storage.Page{URL: u("/a"), StatusCode: 500, Depth: 1}))
	assert.ErrorIs(t, g.VerifySnapshot(store, "run-1"), ErrInconsistent)

	// So is a crawl that was never saved
	assert.ErrorIs(t, g.VerifySnapshot(store, "run-2"), ErrInconsistent)
}
