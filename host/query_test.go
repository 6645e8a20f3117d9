package host_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/reglet-dev/lv2host/host"
	"github.com/reglet-dev/lv2host/internal/testutil"
	"github.com/reglet-dev/lv2host/vocabulary"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindNodes(t *testing.T) {
	fx := newFixture(t)
	w := fx.world
	amp := w.NewURI(testutil.AmpURI)
	typ := w.NewURI(vocabulary.RDFType)
	plugin := w.NewURI(vocabulary.LV2Plugin)
	binary := w.NewURI(vocabulary.LV2Binary)

	t.Run("objects", func(t *testing.T) {
		types := w.FindNodes(&amp, &typ, nil)
		defer types.Free()
		assert.True(t, types.Owned())
		assert.True(t, types.Contains(plugin))
	})

	t.Run("subjects", func(t *testing.T) {
		plugins := w.FindNodes(nil, &typ, &plugin)
		defer plugins.Free()
		assert.True(t, plugins.Contains(amp))
		assert.True(t, plugins.Contains(w.NewURI(testutil.RecorderURI)))
	})

	t.Run("statement exists", func(t *testing.T) {
		found := w.FindNodes(&amp, &typ, &plugin)
		defer found.Free()
		require.Equal(t, 1, found.Size())
		got, _ := found.First()
		assert.True(t, got.Equals(plugin))
	})

	t.Run("statement missing", func(t *testing.T) {
		found := w.FindNodes(&amp, &binary, &plugin)
		defer found.Free()
		assert.Zero(t, found.Size())
	})

	t.Run("unknown subject", func(t *testing.T) {
		nobody := w.NewURI("http://example.org/nobody")
		found := w.FindNodes(&nobody, &typ, nil)
		defer found.Free()
		assert.Zero(t, found.Size())
	})
}

func TestFindNodes_MisuseIsLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	w := host.New(host.WithLogger(logger))
	defer w.Close()
	typ := w.NewURI(vocabulary.RDFType)
	amp := w.NewURI(testutil.AmpURI)

	none := w.FindNodes(nil, &typ, nil)
	assert.Zero(t, none.Size())
	assert.True(t, none.Owned())
	assert.Contains(t, buf.String(), "level=ERROR")

	buf.Reset()
	none = w.FindNodes(&amp, nil, nil)
	assert.Zero(t, none.Size())
	assert.Contains(t, buf.String(), "level=ERROR")
}

func TestGet(t *testing.T) {
	fx := newFixture(t)
	w := fx.world
	amp := w.NewURI(testutil.AmpURI)
	binary := w.NewURI(vocabulary.LV2Binary)
	typ := w.NewURI(vocabulary.RDFType)
	plugin := w.NewURI(vocabulary.LV2Plugin)

	bin, ok := w.Get(&amp, &binary, nil)
	require.True(t, ok)
	path, _, ok := bin.Path()
	require.True(t, ok)
	assert.Contains(t, path, testutil.AmpBinary)

	subject, ok := w.Get(nil, &typ, &plugin)
	require.True(t, ok)
	assert.True(t, subject.IsURI())

	pred, ok := w.Get(&amp, nil, &plugin)
	require.True(t, ok)
	assert.True(t, pred.Equals(typ))

	_, ok = w.Get(&amp, nil, nil)
	assert.False(t, ok, "two wildcards")
	_, ok = w.Get(&amp, &typ, &plugin)
	assert.False(t, ok, "no wildcard")
}

func TestAsk(t *testing.T) {
	fx := newFixture(t)
	w := fx.world
	amp := w.NewURI(testutil.AmpURI)
	typ := w.NewURI(vocabulary.RDFType)
	plugin := w.NewURI(vocabulary.LV2Plugin)
	reverb := w.NewURI(vocabulary.LV2 + "ReverbPlugin")

	assert.True(t, w.Ask(&amp, &typ, &plugin))
	assert.True(t, w.Ask(&amp, nil, nil))
	assert.True(t, w.Ask(nil, nil, &plugin))
	assert.False(t, w.Ask(&amp, &typ, &reverb))

	absent := host.Node{}
	assert.False(t, w.Ask(&absent, nil, nil))
}

func TestGetSymbol(t *testing.T) {
	fx := newFixture(t)
	w := fx.world
	amp := fx.plugin(t, testutil.AmpURI)

	gain, ok := amp.PortByIndex(0)
	require.True(t, ok)
	sym, ok := w.GetSymbol(gain.Node())
	require.True(t, ok)
	assert.Equal(t, "gain", sym.String())

	sym, ok = w.GetSymbol(w.NewURI("http://example.org/plugins/3-band-eq"))
	require.True(t, ok)
	assert.Equal(t, "_3_band_eq", sym.String())

	_, ok = w.GetSymbol(w.NewString("literal"))
	assert.False(t, ok)
}

func TestLanguageFiltering(t *testing.T) {
	tests := []struct {
		name string
		opts []host.Option
		want string
	}{
		{name: "untagged for english", opts: []host.Option{host.WithLang("en")}, want: "Simple Amp"},
		{name: "exact", opts: []host.Option{host.WithLang("de")}, want: "Einfacher Verstärker"},
		{name: "primary subtag", opts: []host.Option{host.WithLang("fr-ca")}, want: "Amplificateur"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t, tt.opts...)
			name, ok := fx.plugin(t, testutil.AmpURI).Name()
			require.True(t, ok)
			assert.Equal(t, tt.want, name.String())
		})
	}

	t.Run("disabled", func(t *testing.T) {
		fx := newFixture(t, host.WithFilterLang(false))
		names := fx.plugin(t, testutil.AmpURI).Value(fx.world.NewURI(vocabulary.DOAPName))
		defer names.Free()
		assert.Equal(t, 3, names.Size())
	})
}

func TestSetOption(t *testing.T) {
	fx := newFixture(t)
	w := fx.world
	amp := fx.plugin(t, testutil.AmpURI)

	require.NoError(t, w.SetOption(host.OptionLang, w.NewString("de_DE.UTF-8")))
	name, _ := amp.Name()
	assert.Equal(t, "Einfacher Verstärker", name.String())

	require.NoError(t, w.SetOption(host.OptionFilterLang, w.NewBool(false)))
	names := amp.Value(w.NewURI(vocabulary.DOAPName))
	assert.Equal(t, 3, names.Size())

	assert.Error(t, w.SetOption(host.OptionFilterLang, w.NewString("yes")))
	assert.Error(t, w.SetOption(host.OptionLang, w.NewInt(1)))
	assert.Error(t, w.SetOption("urn:unknown", w.NewBool(true)))
	assert.Error(t, w.SetOption(host.OptionLang, host.Node{}))

	require.NoError(t, w.SetOption(host.OptionLV2Path, w.NewString(t.TempDir())))
	require.NoError(t, w.LoadAll(t.Context()))
	assert.Equal(t, 2, w.AllPlugins().Size(), "already loaded plugins stay")
}
