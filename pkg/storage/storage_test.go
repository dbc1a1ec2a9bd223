package storage

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cfgd/cfgd-go/pkg/cfgerr"
)

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	p, err := OpenPebble(PebbleOptions{DataDir: filepath.Join(t.TempDir(), "db")})
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return map[string]Backend{
		"memory": NewMemory(false),
		"pebble": p,
	}
}

func TestBackendGetSetUnset(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			v, err := b.Get("/apps/editor/font")
			require.NoError(t, err)
			assert.Nil(t, v)

			require.NoError(t, b.Set("/apps/editor/font", StringValue("mono 10")))
			v, err = b.Get("/apps/editor/font")
			require.NoError(t, err)
			require.NotNil(t, v)
			assert.True(t, v.Equal(StringValue("mono 10")))

			require.NoError(t, b.Unset("/apps/editor/font"))
			v, err = b.Get("/apps/editor/font")
			require.NoError(t, err)
			assert.Nil(t, v)

			// Unsetting a missing key is fine.
			assert.NoError(t, b.Unset("/apps/editor/font"))
		})
	}
}

func TestBackendListing(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, b.Set("/apps/foo/a", IntValue(1)))
			require.NoError(t, b.Set("/apps/foo/b", BoolValue(true)))
			require.NoError(t, b.Set("/apps/foo/sub/c", FloatValue(1.5)))
			require.NoError(t, b.Set("/apps/foobar/d", StringValue("x")))

			entries, err := b.AllEntries("/apps/foo")
			require.NoError(t, err)
			require.Len(t, entries, 2)
			assert.Equal(t, "/apps/foo/a", entries[0].Key)
			assert.Equal(t, "/apps/foo/b", entries[1].Key)
			assert.True(t, entries[0].IsWritable)

			dirs, err := b.AllDirs("/apps")
			require.NoError(t, err)
			assert.Equal(t, []string{"/apps/foo", "/apps/foobar"}, dirs)

			dirs, err = b.AllDirs("/")
			require.NoError(t, err)
			assert.Equal(t, []string{"/apps"}, dirs)

			ok, err := b.DirExists("/apps/foo/sub")
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = b.DirExists("/apps/fo")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestBackendRejectsBadKeys(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, key := range []string{"", "relative", "/trailing/", "/double//slash", "/"} {
				err := b.Set(key, IntValue(1))
				assert.Equal(t, cfgerr.BadKey, cfgerr.CodeOf(err), "key %q", key)
			}
		})
	}
}

func TestReadOnlyMemory(t *testing.T) {
	m := NewMemory(true)
	require.NoError(t, m.Load(map[string]Value{"/a/b": IntValue(3)}))

	err := m.Set("/a/b", IntValue(4))
	assert.Equal(t, cfgerr.NoWritableDatabase, cfgerr.CodeOf(err))
	assert.False(t, m.Writable())

	v, err := m.Get("/a/b")
	require.NoError(t, err)
	assert.Equal(t, int64(3), v.Int)
}

func TestPebblePersists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")

	p, err := OpenPebble(PebbleOptions{DataDir: dir})
	require.NoError(t, err)
	require.NoError(t, p.Set("/desktop/bg", ListValue(StringValue("red"), StringValue("blue"))))
	require.NoError(t, p.Sync())
	require.NoError(t, p.Close())

	p, err = OpenPebble(PebbleOptions{DataDir: dir, ReadOnly: true})
	require.NoError(t, err)
	defer p.Close()

	v, err := p.Get("/desktop/bg")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "[red,blue]", v.String())

	err = p.Set("/desktop/bg", StringValue("x"))
	assert.Equal(t, cfgerr.NoWritableDatabase, cfgerr.CodeOf(err))
}

func TestPebbleMetricsDuringClose(t *testing.T) {
	p, err := OpenPebble(PebbleOptions{DataDir: filepath.Join(t.TempDir(), "db")})
	require.NoError(t, err)
	require.NotNil(t, p.Metrics())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				p.Metrics()
			}
		}()
	}
	require.NoError(t, p.Close())
	wg.Wait()

	assert.Nil(t, p.Metrics())
	assert.NoError(t, p.Close(), "second close")
}

func TestOpenAddress(t *testing.T) {
	tests := []struct {
		address string
		code    cfgerr.Code
	}{
		{"mem:", cfgerr.OK},
		{"mem:readonly", cfgerr.OK},
		{"mem:bogus", cfgerr.BadAddress},
		{"pebble:", cfgerr.BadAddress},
		{"xml:/etc/cfg", cfgerr.BadAddress},
		{"noscheme", cfgerr.BadAddress},
	}
	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			b, err := Open(tt.address)
			if got := cfgerr.CodeOf(err); got != tt.code {
				t.Fatalf("Open(%q) code = %v, want %v", tt.address, got, tt.code)
			}
			if b != nil {
				b.Close()
			}
		})
	}
}

func TestBelow(t *testing.T) {
	tests := []struct {
		dir, key string
		want     bool
	}{
		{"/apps/foo", "/apps/foo", true},
		{"/apps/foo", "/apps/foo/bar", true},
		{"/apps/foo", "/apps/foobar", false},
		{"/apps/foo", "/apps", false},
		{"/", "/anything/at/all", true},
	}
	for _, tt := range tests {
		if got := Below(tt.dir, tt.key); got != tt.want {
			t.Errorf("Below(%q, %q) = %v, want %v", tt.dir, tt.key, got, tt.want)
		}
	}
}

func TestParseValue(t *testing.T) {
	v, err := ParseValue(TypeInt, "42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.Int)

	_, err = ParseValue(TypeInt, "forty")
	assert.Equal(t, cfgerr.ParseError, cfgerr.CodeOf(err))

	v, err = ParseValue(TypeList, "[a,b]")
	require.NoError(t, err)
	assert.True(t, v.Equal(ListValue(StringValue("a"), StringValue("b"))))

	assert.Error(t, ListValue(IntValue(1), StringValue("a")).Validate())
}
