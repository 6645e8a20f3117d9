// Package testutil provides bundle fixtures, test units and store suites
// shared by the host tests.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// Plugin and preset URIs declared by the fixture bundles.
const (
	AmpURI       = "http://example.org/plugins/amp"
	RecorderURI  = "http://example.org/plugins/recorder"
	LoudPreset   = "http://example.org/presets#loud"
	QuietPreset  = "http://example.org/presets#quiet"
	AmpBinary    = "amp.so"
	CoreSpecURI  = "http://lv2plug.in/ns/lv2core"
	ClassAmp     = "http://lv2plug.in/ns/lv2core#AmplifierPlugin"
	ClassDynamic = "http://lv2plug.in/ns/lv2core#DynamicsPlugin"
)

const prefixes = `@prefix lv2:  <http://lv2plug.in/ns/lv2core#> .
@prefix rdf:  <http://www.w3.org/1999/02/22-rdf-syntax-ns#> .
@prefix rdfs: <http://www.w3.org/2000/01/rdf-schema#> .
@prefix doap: <http://usefulinc.com/ns/doap#> .
@prefix foaf: <http://xmlns.com/foaf/0.1/> .
@prefix pset: <http://lv2plug.in/ns/ext/presets#> .
@prefix urid: <http://lv2plug.in/ns/ext/urid#> .
@prefix dct:  <http://purl.org/dc/terms/> .
`

// WriteBundle writes files into the directory root/name and returns its
// path. Every file gets the common prefix declarations.
func WriteBundle(t testing.TB, root, name string, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for file, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(prefixes+body), 0o644))
	}
	return dir
}

// AmpManifest declares the amp plugin with the given binary and version,
// plus two presets applying to it.
func AmpManifest(binary string, minor, micro int) string {
	return fmt.Sprintf(`
<%[1]s>
	a lv2:Plugin ;
	lv2:binary <%[2]s> ;
	lv2:minorVersion %[3]d ;
	lv2:microVersion %[4]d ;
	rdfs:seeAlso <amp.ttl> .

<%[5]s>
	a pset:Preset ;
	lv2:appliesTo <%[1]s> ;
	rdfs:seeAlso <loud.ttl> .

<%[6]s>
	a pset:Preset ;
	lv2:appliesTo <%[1]s> ;
	rdfs:seeAlso <quiet.ttl> .
`, AmpURI, binary, minor, micro, LoudPreset, QuietPreset)
}

// AmpData describes the amp: a gain control input, an audio input and an
// audio output, no required features.
const AmpData = `
<http://example.org/plugins/amp>
	a lv2:Plugin, lv2:AmplifierPlugin ;
	doap:name "Simple Amp", "Einfacher Verstärker"@de, "Amplificateur"@fr ;
	lv2:project <http://example.org/project> ;
	lv2:optionalFeature lv2:hardRTCapable ;
	lv2:extensionData <http://example.org/ext#state> ;
	lv2:port [
		a lv2:InputPort, lv2:ControlPort ;
		lv2:index 0 ;
		lv2:symbol "gain" ;
		lv2:name "Gain", "Verstärkung"@de ;
		lv2:default 1.0 ;
		lv2:minimum 0.0 ;
		lv2:maximum 4 ;
		lv2:scalePoint [ rdfs:label "double" ; rdf:value 2.0 ] ,
			[ rdfs:label "unity" ; rdf:value 1.0 ]
	] , [
		a lv2:InputPort, lv2:AudioPort ;
		lv2:index 1 ;
		lv2:symbol "in" ;
		lv2:name "In"
	] , [
		a lv2:OutputPort, lv2:AudioPort ;
		lv2:index 2 ;
		lv2:symbol "out" ;
		lv2:name "Out"
	] .

<http://example.org/project>
	doap:name "Example Plugins" ;
	doap:maintainer [
		foaf:name "Jane Doe" ;
		foaf:mbox <mailto:jane@example.org> ;
		foaf:homepage <http://example.org/jane>
	] .
`

// LoudPresetData labels the loud preset.
const LoudPresetData = `
<http://example.org/presets#loud>
	rdfs:label "Loud" ;
	lv2:port [ lv2:symbol "gain" ; pset:value 4.0 ] .
`

// QuietPresetData describes the quiet preset without a label.
const QuietPresetData = `
<http://example.org/presets#quiet>
	lv2:port [ lv2:symbol "gain" ; pset:value 0.25 ] .
`

// WriteAmpBundle writes the amp bundle, declaring binary as its lv2:binary.
func WriteAmpBundle(t testing.TB, root, binary string) string {
	t.Helper()
	return WriteAmpBundleVersion(t, root, "amp.lv2", binary, 0, 1)
}

// WriteAmpBundleVersion writes the amp bundle as name with a version.
func WriteAmpBundleVersion(t testing.TB, root, name, binary string, minor, micro int) string {
	t.Helper()
	return WriteBundle(t, root, name, map[string]string{
		"manifest.ttl": AmpManifest(binary, minor, micro),
		"amp.ttl":      AmpData,
		"loud.ttl":     LoudPresetData,
		"quiet.ttl":    QuietPresetData,
	})
}

// RecorderManifest declares the recorder plugin, which requires the URID
// map feature.
const RecorderManifest = `
<http://example.org/plugins/recorder>
	a lv2:Plugin ;
	lv2:binary <recorder.so> ;
	rdfs:seeAlso <recorder.ttl> .
`

// RecorderData describes the recorder: one control input and a latency
// output.
const RecorderData = `
<http://example.org/plugins/recorder>
	a lv2:Plugin, lv2:UtilityPlugin ;
	doap:name "Recorder" ;
	doap:maintainer [ foaf:name "John Roe" ] ;
	lv2:requiredFeature urid:map ;
	lv2:port [
		a lv2:InputPort, lv2:ControlPort ;
		lv2:index 0 ;
		lv2:symbol "level"
	] , [
		a lv2:OutputPort, lv2:ControlPort ;
		lv2:index 1 ;
		lv2:symbol "latency" ;
		lv2:portProperty lv2:reportsLatency
	] .
`

// WriteRecorderBundle writes the recorder bundle.
func WriteRecorderBundle(t testing.TB, root string) string {
	t.Helper()
	return WriteBundle(t, root, "recorder.lv2", map[string]string{
		"manifest.ttl": RecorderManifest,
		"recorder.ttl": RecorderData,
	})
}

// CoreSpecManifest declares a reduced lv2core specification.
const CoreSpecManifest = `
<http://lv2plug.in/ns/lv2core>
	a lv2:Specification ;
	rdfs:seeAlso <lv2core.ttl> .
`

// CoreSpecData declares the plugin classes used by the fixtures.
const CoreSpecData = `
lv2:DynamicsPlugin
	a rdfs:Class ;
	rdfs:subClassOf lv2:Plugin ;
	rdfs:label "Dynamics" .

lv2:AmplifierPlugin
	a rdfs:Class ;
	rdfs:subClassOf lv2:DynamicsPlugin ;
	rdfs:label "Amplifier", "Verstärker"@de .

lv2:UtilityPlugin
	a rdfs:Class ;
	rdfs:subClassOf lv2:Plugin ;
	rdfs:label "Utility" .

lv2:Unlabelled
	a rdfs:Class ;
	rdfs:subClassOf lv2:Plugin .
`

// WriteCoreSpecBundle writes the specification bundle.
func WriteCoreSpecBundle(t testing.TB, root string) string {
	t.Helper()
	return WriteBundle(t, root, "lv2core.lv2", map[string]string{
		"manifest.ttl": CoreSpecManifest,
		"lv2core.ttl":  CoreSpecData,
	})
}
