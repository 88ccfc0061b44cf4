package memory

import (
	"testing"

	"github.com/alvmarrod/pagedepth/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func depthOf(t *testing.T, g *Graph, path string) int {
	t.Helper()
	p, found := g.Get(u(path))
	require.True(t, found, path)
	return p.Depth
}

func TestClassifyBuckets(t *testing.T) {
	g := buildGraph(t,
		ok("/"),
		status("/missing", 404),
		redirect("/old", "/"),
		status("/boom", 503),
		status("/gone", 410),
		status("/down", 0),
		ok("/about"),
	)

	c := g.Classify()
	assert.Equal(t, []string{u("/"), u("/about")}, c.Success)
	assert.Equal(t, []string{u("/missing")}, c.NotFound)
	assert.Equal(t, []string{u("/old")}, c.Redirected)
	assert.Equal(t, []string{u("/boom")}, c.ServerErrors)
	assert.Equal(t, []string{u("/gone")}, c.ClientErrors)
	assert.Equal(t, []string{u("/down")}, c.Failed)
}

func TestClassifyEveryPageOnce(t *testing.T) {
	g := buildGraph(t, ok("/"), status("/a", 404), status("/b", 302), status("/c", 500), status("/d", 418), status("/e", 100))

	c := g.Classify()
	var all []string
	for _, bucket := range [][]string{c.Success, c.Redirected, c.NotFound, c.ClientErrors, c.ServerErrors, c.Failed} {
		all = append(all, bucket...)
	}
	assert.ElementsMatch(t, []string{u("/"), u("/a"), u("/b"), u("/c"), u("/d"), u("/e")}, all)
}

func TestBacklinksFirstSeenOrder(t *testing.T) {
	g := buildGraph(t, ok("/b", "/x"), ok("/a", "/x"), ok("/c", "/x"))

	result := g.BacklinksFor([]string{u("/x")})
	require.Len(t, result, 1)
	assert.Equal(t, u("/x"), result[0].Target)
	assert.Equal(t, []string{u("/b"), u("/a"), u("/c")}, result[0].Sources)
}

func TestBacklinksForUnlinkedAndDangling(t *testing.T) {
	g := buildGraph(t, ok("/", "/never-fetched"), ok("/lonely"))

	result := g.BacklinksFor([]string{u("/lonely"), u("/never-fetched")})
	require.Len(t, result, 2)
	assert.Empty(t, result[0].Sources)
	assert.NotNil(t, result[0].Sources)
	assert.Equal(t, []string{u("/")}, result[1].Sources)
}

func TestBacklinksAreCopies(t *testing.T) {
	g := buildGraph(t, ok("/", "/x"))
	result := g.BacklinksFor([]string{u("/x")})
	result[0].Sources[0] = "mutated"

	assert.Equal(t, []string{u("/")}, g.BacklinksFor([]string{u("/x")})[0].Sources)
}

func TestShortestPathsPrefersShorterRoute(t *testing.T) {
	// root -> A -> B and root -> B
	g := buildGraph(t, ok("/", "/a", "/b"), ok("/a", "/b"), ok("/b"))
	for _, p := range []string{"/a", "/b"} {
		require.NoError(t, g.AddPage(&storage.Page{URL: u(p), StatusCode: 200, Depth: 7}))
	}

	g.ShortestPaths(u("/"))

	assert.Equal(t, 0, depthOf(t, g, "/"))
	assert.Equal(t, 1, depthOf(t, g, "/a"))
	assert.Equal(t, 1, depthOf(t, g, "/b"))
}

func TestShortestPathsMinimumOverLinkers(t *testing.T) {
	g := buildGraph(t,
		ok("/", "/a", "/b"),
		ok("/a", "/c"),
		ok("/b", "/d"),
		ok("/c", "/e"),
		ok("/d", "/e", "/c"),
		ok("/e", "/"),
	)
	g.ShortestPaths(u("/"))

	pages := g.Pages()
	byURL := make(map[string]*storage.Page)
	for _, p := range pages {
		byURL[p.URL] = p
	}
	for _, p := range pages {
		if p.URL == u("/") {
			assert.Equal(t, 0, p.Depth)
			continue
		}
		best := -1
		for _, src := range g.BacklinksFor([]string{p.URL})[0].Sources {
			if d := byURL[src].Depth; best == -1 || d < best {
				best = d
			}
		}
		assert.Equal(t, best+1, p.Depth, p.URL)
	}
}

func TestShortestPathsUnreachable(t *testing.T) {
	g := buildGraph(t, ok("/", "/a"), ok("/a"), ok("/island", "/a"))
	g.ShortestPaths(u("/"))

	assert.Equal(t, storage.Unreachable, depthOf(t, g, "/island"))
	assert.Equal(t, 3, g.Len())
	assert.Equal(t, []string{u("/island")}, g.UnreachableURLs())
}

func TestShortestPathsSinglePage(t *testing.T) {
	g := buildGraph(t, ok("/"))
	g.ShortestPaths(u("/"))
	assert.Equal(t, 0, depthOf(t, g, "/"))
}

func TestShortestPathsMissingRoot(t *testing.T) {
	g := buildGraph(t, ok("/a"))
	g.ShortestPaths(u("/"))
	assert.Equal(t, storage.Unreachable, depthOf(t, g, "/a"))
}

func TestShortestPathsRedirectKeepsDepth(t *testing.T) {
	g := buildGraph(t, ok("/", "/old"), redirect("/old", "/new"), ok("/new", "/deep"), ok("/deep"))
	g.ShortestPaths(u("/"))

	assert.Equal(t, 1, depthOf(t, g, "/old"))
	assert.Equal(t, 1, depthOf(t, g, "/new"))
	assert.Equal(t, 2, depthOf(t, g, "/deep"))
}

func TestShortestPathsRedirectingRoot(t *testing.T) {
	g := buildGraph(t, redirect("/", "/home"), ok("/home", "/a"), ok("/a"))
	g.ShortestPaths(u("/"))

	assert.Equal(t, 0, depthOf(t, g, "/"))
	assert.Equal(t, 0, depthOf(t, g, "/home"))
	assert.Equal(t, 1, depthOf(t, g, "/a"))
}

func TestShortestPathsRedirectLoopTerminates(t *testing.T) {
	g := buildGraph(t, ok("/", "/a"), redirect("/a", "/b"), redirect("/b", "/a"))
	g.ShortestPaths(u("/"))

	assert.Equal(t, 1, depthOf(t, g, "/a"))
	assert.Equal(t, 1, depthOf(t, g, "/b"))
}

func TestShortestPathsIdempotent(t *testing.T) {
	g := buildGraph(t, ok("/", "/a", "/b"), ok("/a", "/c"), ok("/b", "/c"), ok("/c", "/d"), ok("/d"), ok("/x"))

	g.ShortestPaths(u("/"))
	first := g.Pages()
	g.ShortestPaths(u("/"))
	second := g.Pages()

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Depth, second[i].Depth, first[i].URL)
	}
}

func TestDepthHistogram(t *testing.T) {
	pages := []*storage.Page{
		{URL: u("/"), Depth: 0},
		{URL: u("/a"), Depth: 1},
		{URL: u("/b"), Depth: 2},
		{URL: u("/c"), Depth: 1},
		{URL: u("/d"), Depth: 2},
		{URL: u("/e"), Depth: 1},
	}

	assert.Equal(t, []DepthCount{{0, 1}, {1, 3}, {2, 2}}, Histogram(pages))
}

func TestDepthHistogramSkipsUnreachable(t *testing.T) {
	g := buildGraph(t, ok("/", "/a"), ok("/a"), ok("/island"))
	g.ShortestPaths(u("/"))

	assert.Equal(t, []DepthCount{{0, 1}, {1, 1}}, g.DepthHistogram())
}

func TestEmptyGraphAnalysis(t *testing.T) {
	g := New()

	assert.Equal(t, Classification{}, g.Classify())
	assert.Empty(t, g.BacklinksFor(nil))
	g.ShortestPaths(u("/"))
	assert.Empty(t, g.DepthHistogram())
	assert.Empty(t, g.CollapseRedirectAliases().Collapsed)

	r := g.Analyze(u("/"))
	assert.True(t, r.Empty())
	assert.Empty(t, r.Pages)
	assert.Empty(t, r.Histogram)
}

func TestAnalyze(t *testing.T) {
	g := buildGraph(t,
		ok("/", "/a", "/old", "/missing"),
		ok("/a", "/missing", "/boom"),
		redirect("/old", "/new"),
		ok("/new"),
		status("/missing", 404),
		status("/boom", 500),
		ok("/island"),
	)

	r := g.Analyze(u("/"))

	require.Len(t, r.NotFound, 1)
	assert.Equal(t, []string{u("/"), u("/a")}, r.NotFound[0].Sources)
	require.Len(t, r.Redirected, 1)
	assert.Equal(t, u("/old"), r.Redirected[0].Target)
	assert.Equal(t, []string{u("/")}, r.Redirected[0].Sources)
	require.Len(t, r.ServerErrors, 1)
	assert.Equal(t, []string{u("/a")}, r.ServerErrors[0].Sources)

	assert.Equal(t, map[string]string{u("/old"): u("/new")}, r.Collapse.Collapsed)
	assert.Equal(t, 6, r.TotalPages)
	assert.Equal(t, []DepthCount{{0, 1}, {1, 3}, {2, 1}}, r.Histogram)
	assert.Equal(t, []string{u("/island")}, r.Unreachable)
	assert.NoError(t, g.CheckConsistency())
}
