package host_test

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/reglet-dev/lv2host/domain/ports"
	"github.com/reglet-dev/lv2host/host"
	"github.com/reglet-dev/lv2host/host/registry"
	"github.com/reglet-dev/lv2host/infrastructure/memstore"
	"github.com/reglet-dev/lv2host/internal/testutil"
	"github.com/stretchr/testify/require"
)

// StateExtension is the extension data URI the recorder unit answers.
const StateExtension = "http://example.org/ext#state"

// fixture is a World loaded from the amp, recorder and lv2core bundles.
type fixture struct {
	dir      string
	world    *host.World
	recorder *testutil.Recorder
	libs     *registry.Registry
	store    *closeTrackingStore
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newFixture writes the fixture bundles into a temporary directory and loads
// them. The amp binary resolves to the Go amp, the recorder binary to a
// RecordingDescriptor.
func newFixture(t *testing.T, opts ...host.Option) *fixture {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteAmpBundle(t, dir, testutil.AmpBinary)
	testutil.WriteRecorderBundle(t, dir)
	testutil.WriteCoreSpecBundle(t, dir)

	rec := testutil.NewRecorder()
	libs := registry.NewRegistry()
	require.NoError(t, libs.Register(testutil.AmpBinary, registry.Descriptors(testutil.AmpDescriptor(testutil.AmpURI))))
	require.NoError(t, libs.Register("recorder.so", registry.Descriptors(&testutil.RecordingDescriptor{
		URIValue:  testutil.RecorderURI,
		Recorder:  rec,
		Extension: map[string]any{StateExtension: "state-interface"},
	})))

	store := &closeTrackingStore{Store: memstore.New()}
	base := []host.Option{
		host.WithSearchPath(dir),
		host.WithLang("en"),
		host.WithLibraries(libs),
		host.WithLogger(quietLogger()),
		host.WithStore(store),
	}
	w := host.New(append(base, opts...)...)
	t.Cleanup(func() { _ = w.Close() })
	require.NoError(t, w.LoadAll(context.Background()))

	return &fixture{dir: dir, world: w, recorder: rec, libs: libs, store: store}
}

func (f *fixture) plugin(t *testing.T, uri string) host.Plugin {
	t.Helper()
	p, ok := f.world.AllPlugins().ByURI(f.world.NewURI(uri))
	require.True(t, ok, "plugin %s not loaded", uri)
	return p
}

// closeTrackingStore records whether the World closed its store.
type closeTrackingStore struct {
	ports.Store
	closed atomic.Int32
}

func (s *closeTrackingStore) Close() error {
	s.closed.Add(1)
	return s.Store.Close()
}

func (s *closeTrackingStore) Closed() bool { return s.closed.Load() > 0 }
