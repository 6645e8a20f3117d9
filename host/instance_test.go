package host_test

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/reglet-dev/lv2host/domain/entities"
	domainerrors "github.com/reglet-dev/lv2host/domain/errors"
	"github.com/reglet-dev/lv2host/feature"
	"github.com/reglet-dev/lv2host/host"
	"github.com/reglet-dev/lv2host/host/registry"
	"github.com/reglet-dev/lv2host/internal/testutil"
	"github.com/reglet-dev/lv2host/vocabulary"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// InstanceSuite tests the instance lifecycle against the Go test units.
type InstanceSuite struct {
	suite.Suite
	fx       *fixture
	ctx      context.Context
	features []entities.Feature
}

func (s *InstanceSuite) SetupTest() {
	s.fx = newFixture(s.T())
	s.ctx = context.Background()
	s.features = []entities.Feature{feature.NewURIDMap(quietLogger()).Feature()}
}

func (s *InstanceSuite) recorderInstance() *host.Instance {
	inst, err := s.fx.plugin(s.T(), testutil.RecorderURI).Instantiate(s.ctx, 48000, s.features)
	s.Require().NoError(err)
	return inst
}

func (s *InstanceSuite) TestAmpProcessesAudio() {
	inst, err := s.fx.plugin(s.T(), testutil.AmpURI).Instantiate(s.ctx, 48000, nil)
	s.Require().NoError(err)
	s.Equal(testutil.AmpURI, inst.URI())

	gain := []float32{0.5}
	in := []float32{2, 4, -1}
	out := make([]float32, 3)
	inst.ConnectPortFloat32(0, gain)
	inst.ConnectPortFloat32(1, in)
	inst.ConnectPortFloat32(2, out)

	active := inst.Activate()
	active.Run(1)
	s.Equal([]float32{1, 0, 0}, out)

	active.Run(3)
	s.Equal([]float32{1, 2, -0.5}, out)

	gain[0] = 2
	active.Run(3)
	s.Equal([]float32{4, 8, -2}, out)
	s.NoError(active.Close())
}

func (s *InstanceSuite) TestLifecycleOrder() {
	rec := s.fx.recorder
	inst := s.recorderInstance()
	inst.ConnectPort(0, nil)

	active := inst.Activate()
	active.Run(64)
	inst = active.Deactivate()
	active = inst.Activate()
	active.Run(32)
	s.Require().NoError(active.Close())

	s.Equal([]string{
		"instantiate", "connect:0",
		"activate", "run:64", "deactivate",
		"activate", "run:32", "deactivate", "cleanup",
	}, rec.Events())
}

func (s *InstanceSuite) TestCloseInactiveSkipsDeactivate() {
	inst := s.recorderInstance()
	s.Require().NoError(inst.Close())
	s.Require().NoError(inst.Close())

	s.Equal([]string{"instantiate", "cleanup"}, s.fx.recorder.Events())
}

func (s *InstanceSuite) TestFeaturesPassedToUnit() {
	inst := s.recorderInstance()
	defer inst.Close()
	s.Equal([]string{vocabulary.URIDMap, vocabulary.PortLayoutFeature}, s.fx.recorder.Features())
	s.Len(s.features, 1, "caller's slice is not modified")
}

func (s *InstanceSuite) TestRunSplitsLargeCounts() {
	active := s.recorderInstance().Activate()
	defer active.Close()

	active.Run(math.MaxUint32 + 10)
	active.Run(0)

	events := s.fx.recorder.Events()
	s.Equal([]string{"run:4294967295", "run:10", "run:0"}, events[len(events)-3:])
}

func (s *InstanceSuite) TestConsumedWrapperPanics() {
	inst := s.recorderInstance()
	active := inst.Activate()
	defer active.Close()

	s.Panics(func() { inst.URI() })
	s.Panics(func() { inst.Activate() })
	s.NoError(inst.Close(), "closing a consumed wrapper does nothing")

	again := active.Deactivate()
	s.Panics(func() { active.Run(1) })
	s.NoError(active.Close())
	s.NoError(again.Close())
	s.Equal(1, s.fx.recorder.Count("cleanup"))
}

func (s *InstanceSuite) TestExtensionData() {
	inst := s.recorderInstance()
	v, ok := inst.ExtensionData(StateExtension)
	s.Require().True(ok)
	s.Equal("state-interface", v)
	_, ok = inst.ExtensionData("http://example.org/ext#missing")
	s.False(ok)

	active := inst.Activate()
	defer active.Close()
	_, ok = active.ExtensionData(StateExtension)
	s.True(ok)

	amp, err := s.fx.plugin(s.T(), testutil.AmpURI).Instantiate(s.ctx, 44100, nil)
	s.Require().NoError(err)
	defer amp.Close()
	_, ok = amp.ExtensionData(StateExtension)
	s.False(ok, "the amp descriptor provides no extension data")
}

func (s *InstanceSuite) TestMissingFeatures() {
	_, err := s.fx.plugin(s.T(), testutil.RecorderURI).Instantiate(s.ctx, 48000, nil)

	var missing *domainerrors.MissingFeaturesError
	s.Require().ErrorAs(err, &missing)
	s.Equal([]string{vocabulary.URIDMap}, missing.Missing)
	s.Zero(s.fx.recorder.Count("instantiate"))
}

func (s *InstanceSuite) TestLibraryNotFound() {
	s.Require().True(s.fx.libs.Unregister(testutil.AmpBinary))
	_, err := s.fx.plugin(s.T(), testutil.AmpURI).Instantiate(s.ctx, 48000, nil)

	var instErr *domainerrors.InstantiateError
	s.Require().ErrorAs(err, &instErr)
	s.Equal(testutil.AmpURI, instErr.Plugin)
	s.ErrorIs(err, domainerrors.ErrLibraryNotFound)
	s.True(domainerrors.ToErrorDetail(err).IsNotFound)
}

func (s *InstanceSuite) TestDescriptorNotFound() {
	s.Require().True(s.fx.libs.Unregister(testutil.AmpBinary))
	s.Require().NoError(s.fx.libs.Register(testutil.AmpBinary, registry.Descriptors(testutil.AmpDescriptor("urn:other"))))

	_, err := s.fx.plugin(s.T(), testutil.AmpURI).Instantiate(s.ctx, 48000, nil)
	s.ErrorIs(err, domainerrors.ErrDescriptorNotFound)
}

func (s *InstanceSuite) TestUnitRefuses() {
	rec := testutil.NewRecorder()
	s.Require().True(s.fx.libs.Unregister("recorder.so"))
	s.Require().NoError(s.fx.libs.Register("recorder.so", registry.Descriptors(&testutil.RecordingDescriptor{
		URIValue: testutil.RecorderURI,
		Recorder: rec,
		Refuse:   true,
	})))

	_, err := s.fx.plugin(s.T(), testutil.RecorderURI).Instantiate(s.ctx, 48000, s.features)
	var instErr *domainerrors.InstantiateError
	s.Require().ErrorAs(err, &instErr)
	s.ErrorIs(err, testutil.ErrRefused)

	// A failed instantiation holds no World reference.
	s.Require().NoError(s.fx.world.Close())
	s.True(s.fx.store.Closed())
}

func (s *InstanceSuite) TestClosedWorldRefusesInstantiation() {
	amp := s.fx.plugin(s.T(), testutil.AmpURI)
	s.Require().NoError(s.fx.world.Close())

	_, err := amp.Instantiate(s.ctx, 48000, nil)
	s.Error(err)
}

func (s *InstanceSuite) TestInstanceKeepsWorldAlive() {
	active := s.recorderInstance().Activate()

	s.Require().NoError(s.fx.world.Close())
	s.False(s.fx.store.Closed(), "store released while an instance is live")

	active.Run(16)
	s.Require().NoError(active.Close())
	s.True(s.fx.store.Closed())
	s.Equal(1, s.fx.recorder.Count("cleanup"))
}

func (s *InstanceSuite) TestDroppedInstanceIsReleased() {
	func() {
		active := s.recorderInstance().Activate()
		active.Run(8)
	}()

	s.awaitCleanup(s.fx.recorder)
	s.Equal(1, s.fx.recorder.Count("deactivate"))
	s.Equal(1, s.fx.recorder.Count("cleanup"))
	events := s.fx.recorder.Events()
	s.Equal([]string{"deactivate", "cleanup"}, events[len(events)-2:])
}

func (s *InstanceSuite) TestDroppedDuringRunIsReleasedAfterRun() {
	rec := testutil.NewRecorder()
	var cleanedMidRun atomic.Bool
	s.Require().True(s.fx.libs.Unregister("recorder.so"))
	s.Require().NoError(s.fx.libs.Register("recorder.so", registry.Descriptors(&testutil.RecordingDescriptor{
		URIValue: testutil.RecorderURI,
		Recorder: rec,
		OnRun: func() {
			for range 5 {
				runtime.GC()
				time.Sleep(2 * time.Millisecond)
			}
			cleanedMidRun.Store(rec.Count("cleanup") > 0)
		},
	})))

	// The wrapper is unreachable once Run has loaded the handle.
	s.recorderInstance().Activate().Run(1)
	s.False(cleanedMidRun.Load(), "unit was cleaned up while processing")

	s.awaitCleanup(rec)
	s.Equal([]string{"instantiate", "activate", "run:1", "deactivate", "cleanup"}, rec.Events())
}

// awaitCleanup collects garbage until rec reports a cleanup.
func (s *InstanceSuite) awaitCleanup(rec *testutil.Recorder) {
	deadline := time.After(5 * time.Second)
	for {
		runtime.GC()
		select {
		case <-rec.CleanedUp():
			return
		case <-deadline:
			s.Require().FailNow("dropped instance was never cleaned up")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestInstanceSuite(t *testing.T) {
	suite.Run(t, new(InstanceSuite))
}

func TestInstance_WasmUnit(t *testing.T) {
	dir := t.TempDir()
	bundle := testutil.WriteAmpBundle(t, dir, "amp.wasm")
	wasm := testutil.WasmAmp(testutil.WithWasmURI(testutil.AmpURI))
	require.NoError(t, os.WriteFile(filepath.Join(bundle, "amp.wasm"), wasm, 0o644))

	w := host.New(
		host.WithSearchPath(dir),
		host.WithLogger(quietLogger()),
		host.WithLibraries(registry.NewRegistry()),
	)
	defer w.Close()
	ctx := context.Background()
	require.NoError(t, w.LoadAll(ctx))

	amp, ok := w.AllPlugins().ByURI(w.NewURI(testutil.AmpURI))
	require.True(t, ok)
	urids := feature.NewURIDMap(quietLogger())
	inst, err := amp.Instantiate(ctx, 48000, []entities.Feature{urids.Feature()})
	require.NoError(t, err)
	assert.NotZero(t, urids.Len(), "the unit maps its URI on construction")

	gain := []float32{0.5}
	in := []float32{1, 2, 3, 4}
	out := make([]float32, 4)
	inst.ConnectPortFloat32(0, gain)
	inst.ConnectPortFloat32(1, in)
	inst.ConnectPortFloat32(2, out)

	active := inst.Activate()
	active.Run(uint64(len(in)))
	assert.Equal(t, []float32{0.5, 1, 1.5, 2}, out)
	require.NoError(t, active.Close())

	// A second instance shares the opened module.
	inst, err = amp.Instantiate(ctx, 48000, nil)
	require.NoError(t, err)
	require.NoError(t, inst.Close())
}
