package discovery

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"UP", "DOWN", "STARTING", "OUT_OF_SERVICE", "UNKNOWN"} {
		st, ok := ParseStatus(s)
		assert.True(t, ok, s)
		assert.Equal(t, s, st.String())
	}

	for _, s := range []string{"", "up", "Up", "RUNNING", " UP"} {
		_, ok := ParseStatus(s)
		assert.False(t, ok, "%q should not parse", s)
	}
}

func TestApp_Immutable(t *testing.T) {
	src := []Instance{{Status: StatusUp, URL: "http://a/svc/"}}
	app := NewApp(src...)
	src[0].URL = "changed"

	got := app.Instances()
	assert.Equal(t, "http://a/svc/", got[0].URL)

	got[0].URL = "changed again"
	assert.Equal(t, "http://a/svc/", app.Instances()[0].URL)
}

func TestApp_NilAndEmpty(t *testing.T) {
	var nilApp *App
	assert.Nil(t, nilApp.GetNextAppInstance())
	assert.Equal(t, 0, nilApp.Len())
	assert.Nil(t, nilApp.Instances())

	empty := NewApp()
	assert.NotNil(t, empty)
	assert.Equal(t, 0, empty.Len())
	assert.Nil(t, empty.GetNextAppInstance())
}

func TestGetNextAppInstance_NoUpInstances(t *testing.T) {
	app := NewApp(
		Instance{Status: StatusDown, URL: "http://a/"},
		Instance{Status: StatusStarting, URL: "http://b/"},
		Instance{Status: StatusOutOfService, URL: "http://c/"},
		Instance{Status: StatusUnknown, URL: "http://d/"},
	)
	for i := 0; i < 200; i++ {
		assert.Nil(t, app.GetNextAppInstance())
	}
}

func TestGetNextAppInstance_SingleUp(t *testing.T) {
	app := NewApp(
		Instance{Status: StatusDown, URL: "http://a/"},
		Instance{Status: StatusUp, URL: "http://b/"},
		Instance{Status: StatusDown, URL: "http://c/"},
	)
	for i := 0; i < 200; i++ {
		inst := app.GetNextAppInstance()
		require.NotNil(t, inst)
		assert.Equal(t, "http://b/", inst.URL)
	}
}

func TestGetNextAppInstance_UniformAmongUp(t *testing.T) {
	restore := setRandSource(rand.NewPCG(1, 2))
	defer restore()

	app := NewApp(
		Instance{Status: StatusUp, URL: "http://a/"},
		Instance{Status: StatusDown, URL: "http://x/"},
		Instance{Status: StatusUp, URL: "http://b/"},
		Instance{Status: StatusUp, URL: "http://c/"},
		Instance{Status: StatusStarting, URL: "http://y/"},
	)

	const draws = 30000
	counts := make(map[string]int)
	for i := 0; i < draws; i++ {
		inst := app.GetNextAppInstance()
		require.NotNil(t, inst)
		counts[inst.URL]++
	}

	require.Len(t, counts, 3)
	expected := draws / 3
	for url, n := range counts {
		assert.InDelta(t, expected, n, float64(expected)*0.1, "url %s selected %d times", url, n)
	}
}

func TestGetNextAppInstance_DoesNotReorderApp(t *testing.T) {
	app := NewApp(
		Instance{Status: StatusUp, URL: "http://a/"},
		Instance{Status: StatusUp, URL: "http://b/"},
		Instance{Status: StatusUp, URL: "http://c/"},
	)
	for i := 0; i < 50; i++ {
		app.GetNextAppInstance()
	}
	urls := make([]string, 0, 3)
	for _, inst := range app.Instances() {
		urls = append(urls, inst.URL)
	}
	assert.Equal(t, []string{"http://a/", "http://b/", "http://c/"}, urls)
}

func TestShuffle_IsPermutation(t *testing.T) {
	restore := setRandSource(rand.NewPCG(7, 7))
	defer restore()

	in := []Instance{{URL: "1"}, {URL: "2"}, {URL: "3"}, {URL: "4"}, {URL: "5"}}
	shuffle(in)
	urls := make([]string, 0, len(in))
	for _, inst := range in {
		urls = append(urls, inst.URL)
	}
	assert.ElementsMatch(t, []string{"1", "2", "3", "4", "5"}, urls)
}
