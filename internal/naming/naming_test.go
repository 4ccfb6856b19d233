package naming

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var fixed = time.Date(2024, time.March, 5, 7, 8, 9, 123456789, time.UTC)

func TestObjectKey(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		source string
		want   string
	}{
		{"no prefix", "", "/tmp/app", "app-20240305T070809Z.tar.gz"},
		{"single slash", "/", "/tmp/app", "app-20240305T070809Z.tar.gz"},
		{"only slashes", "///", "/tmp/app", "app-20240305T070809Z.tar.gz"},
		{"trailing slash", "releases/", "/tmp/app", "releases/app-20240305T070809Z.tar.gz"},
		{"leading slash", "/releases", "/tmp/app", "releases/app-20240305T070809Z.tar.gz"},
		{"padded", "//releases//", "/tmp/app", "releases/app-20240305T070809Z.tar.gz"},
		{"nested", "/builds/prod/", "/srv/service", "builds/prod/service-20240305T070809Z.tar.gz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ObjectKey(tt.prefix, tt.source, fixed)
			assert.Equal(t, tt.want, got)
			assert.False(t, strings.HasPrefix(got, "/"))
			assert.False(t, strings.HasSuffix(got, "/"))
			assert.NotContains(t, got, "//")
		})
	}
}

func TestObjectKey_ConvertsToUTC(t *testing.T) {
	local := fixed.In(time.FixedZone("UTC+5", 5*60*60))
	assert.Equal(t, "app-20240305T070809Z.tar.gz", ObjectKey("", "/tmp/app", local))
}

func TestObjectKey_Timestamps(t *testing.T) {
	a := ObjectKey("p", "/tmp/app", fixed)
	b := ObjectKey("p", "/tmp/app", fixed.Add(time.Second))
	assert.NotEqual(t, a, b, "keys produced at different seconds must differ")

	// Second precision: sub-second differences collide.
	c := ObjectKey("p", "/tmp/app", fixed.Truncate(time.Second))
	assert.Equal(t, a, c)
}

func TestObjectKey_FilesystemRoot(t *testing.T) {
	got := ObjectKey("releases", "/", fixed)
	assert.Equal(t, "releases/-20240305T070809Z.tar.gz", got)

	got = ObjectKey("", "/", fixed)
	assert.Equal(t, "-20240305T070809Z.tar.gz", got)
	assert.False(t, strings.HasPrefix(got, "/"))
}

func TestSourceName(t *testing.T) {
	assert.Equal(t, "app", SourceName("/tmp/app"))
	assert.Equal(t, "app", SourceName("/tmp/app/"))
	assert.Equal(t, "", SourceName("/"))
}
