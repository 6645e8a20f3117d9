package host_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/reglet-dev/lv2host/config"
	"github.com/reglet-dev/lv2host/host"
	"github.com/reglet-dev/lv2host/infrastructure/memstore"
	"github.com/reglet-dev/lv2host/internal/testutil"
	hostlog "github.com/reglet-dev/lv2host/log"
	"github.com/reglet-dev/lv2host/vocabulary"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestWorld_SerialisesStoreAccess(t *testing.T) {
	store := testutil.NewCountingStore(memstore.New(), 0)
	fx := newFixture(t, host.WithStore(store))
	w := fx.world
	amp := fx.plugin(t, testutil.AmpURI)
	recorder := fx.plugin(t, testutil.RecorderURI)
	store.Delay = 200 * time.Microsecond

	typ := w.NewURI(vocabulary.RDFType)
	plugin := w.NewURI(vocabulary.LV2Plugin)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 5 {
				switch i % 4 {
				case 0:
					_, _ = amp.Name()
				case 1:
					_ = recorder.NumPorts()
					_, _ = recorder.LatencyPortIndex()
				case 2:
					nodes := w.FindNodes(nil, &typ, &plugin)
					for n := range nodes.All() {
						_ = n.String()
					}
					nodes.Free()
				default:
					for port := range amp.Ports() {
						_, _ = port.Name()
					}
				}
			}
		}()
	}
	wg.Wait()

	assert.Positive(t, store.Calls())
	assert.Equal(t, 1, store.MaxConcurrent(), "store calls overlapped")
}

func TestWorld_Tracing(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	fx := newFixture(t, host.WithTracerProvider(provider))
	_, err := fx.plugin(t, testutil.RecorderURI).Instantiate(context.Background(), 48000, nil)
	require.Error(t, err)

	spans := map[string]tracetest.SpanStub{}
	for _, span := range exporter.GetSpans() {
		spans[span.Name] = span
	}
	require.Contains(t, spans, "World.LoadAll")
	require.Contains(t, spans, "World.LoadBundle")
	require.Contains(t, spans, "Plugin.Instantiate")

	assert.Equal(t, codes.Unset, spans["World.LoadAll"].Status.Code)
	inst := spans["Plugin.Instantiate"]
	assert.Equal(t, codes.Error, inst.Status.Code)
	assert.Contains(t, inst.Status.Description, vocabulary.URIDMap)

	var plugins int64 = -1
	for _, attr := range spans["World.LoadAll"].Attributes {
		if attr.Key == "lv2.plugins" {
			plugins = attr.Value.AsInt64()
		}
	}
	assert.Equal(t, int64(2), plugins)
}

func TestNewFromConfig(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteAmpBundle(t, dir, testutil.AmpBinary)
	testutil.WriteRecorderBundle(t, dir)

	tests := []struct {
		name  string
		store string
	}{
		{name: "memory", store: config.StoreMemory},
		{name: "sqlite", store: config.StoreSQLite},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.SearchPath = []string{dir}
			cfg.Lang = "de"
			cfg.Store = tt.store
			if tt.store == config.StoreSQLite {
				cfg.SQLitePath = filepath.Join(t.TempDir(), "lv2.db")
			}
			ctx := hostlog.WithLogger(context.Background(), quietLogger())

			w, err := host.NewFromConfig(ctx, cfg)
			require.NoError(t, err)
			require.NoError(t, w.LoadAll(ctx))
			assert.Equal(t, 2, w.AllPlugins().Size())

			amp, ok := w.AllPlugins().ByURI(w.NewURI(testutil.AmpURI))
			require.True(t, ok)
			name, ok := amp.Name()
			require.True(t, ok)
			assert.Equal(t, "Einfacher Verstärker", name.String())

			require.NoError(t, w.Close())
			require.NoError(t, w.Close())
		})
	}

	t.Run("invalid", func(t *testing.T) {
		cfg := config.Default()
		cfg.Store = "postgres"
		_, err := host.NewFromConfig(context.Background(), cfg)
		assert.Error(t, err)
	})
}
