package whisper

import (
	"testing"

	"github.com/fmueller/speechbridge/internal/engine"
	"github.com/stretchr/testify/require"
)

func TestResolveLanguage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		locale string
		want   string
	}{
		{locale: "", want: "auto"},
		{locale: "  ", want: "auto"},
		{locale: "AUTO", want: "auto"},
		{locale: "en", want: "en"},
		{locale: "en-US", want: "en"},
		{locale: "en_GB", want: "en"},
		{locale: "zh-CN", want: "zh"},
		{locale: "zh-Hant-TW", want: "zh"},
		{locale: "pt-BR", want: "pt"},
		{locale: "nb-NO", want: "no"},
		{locale: "fil-PH", want: "tl"},
		{locale: "de-DE", want: "de"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.locale, func(t *testing.T) {
			t.Parallel()

			got, err := ResolveLanguage(tt.locale)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestResolveLanguageRejectsUnknownLocales(t *testing.T) {
	t.Parallel()

	for _, locale := range []string{"xx-XX", "not a locale", "tlh", "en-"} {
		_, err := ResolveLanguage(locale)
		require.ErrorIs(t, err, engine.ErrUnsupportedLocale, "locale %q", locale)
	}
}

func TestLanguagesSortedAndResolvable(t *testing.T) {
	t.Parallel()

	langs := Languages()
	require.NotEmpty(t, langs)
	for i, lang := range langs {
		if i > 0 {
			require.Less(t, langs[i-1].Code, lang.Code)
		}
		got, err := ResolveLanguage(lang.Code)
		require.NoError(t, err)
		require.Equal(t, lang.Code, got)
	}
}
