package platform

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	rshttp "reelsync/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalOrder(t *testing.T) {
	assert.Equal(t, []Target{YouTube, Instagram, TikTok}, All)
	assert.Equal(t, 0, YouTube.Index())
	assert.Equal(t, 2, TikTok.Index())
	assert.Equal(t, -1, Target("vimeo").Index())
}

func TestParseTarget(t *testing.T) {
	got, err := ParseTarget(" YouTube ")
	require.NoError(t, err)
	assert.Equal(t, YouTube, got)

	_, err = ParseTarget("vimeo")
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"this is too long", 10, "this is..."},
		{"ñandú ñandú ñandú", 8, "ñandú..."},
		{"abc", 0, "abc"},
		{"abcdef", 2, "ab"},
	}
	for _, tt := range tests {
		got := Truncate(tt.in, tt.max)
		assert.Equal(t, tt.want, got, "Truncate(%q, %d)", tt.in, tt.max)
		if tt.max > 0 {
			assert.LessOrEqual(t, utf8.RuneCountInString(got), tt.max)
		}
	}

	long := strings.Repeat("a", MaxInstagramCaption+50)
	assert.Equal(t, MaxInstagramCaption, utf8.RuneCountInString(Truncate(long, Instagram.MaxText())))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"server error", &rshttp.HTTPError{StatusCode: 503}, KindTransient},
		{"rate limited", &rshttp.RateLimitError{StatusCode: 429}, KindTransient},
		{"bad request", &rshttp.HTTPError{StatusCode: 400}, KindPermanent},
		{"network", errors.New("connection reset by peer"), KindTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Classify(Instagram, "publish", tt.err)
			assert.Equal(t, tt.want, KindOf(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}

	existing := Errorf(TikTok, KindPrecondition, "init", ErrPublicURLRequired)
	assert.Same(t, existing, Classify(TikTok, "other", existing))
	assert.Nil(t, Classify(TikTok, "x", nil))
}

func TestErrorTransient(t *testing.T) {
	assert.True(t, Errorf(YouTube, KindTransient, "insert", errors.New("x")).Transient())
	assert.False(t, Errorf(YouTube, KindPermanent, "insert", ErrQuotaExceeded).Transient())
	assert.False(t, NotConfigured(TikTok, "").Transient())

	err := fmt.Errorf("wrapped: %w", NotConfigured(TikTok, "client key missing"))
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Equal(t, KindConfiguration, KindOf(err))
	assert.Contains(t, err.Error(), "tiktok")
}
