// Package vocabulary defines the namespace IRIs the host reads from bundle
// metadata.
//
// Bundles describe units with terms from a handful of published vocabularies
// (LV2 core, RDF, RDFS, DOAP, FOAF and the LV2 extensions). The host only
// ever compares full IRIs, so every term used by the registry is spelled out
// here once instead of being assembled from prefixes at call sites.
package vocabulary

// Namespace prefixes.
const (
	RDF     = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	RDFS    = "http://www.w3.org/2000/01/rdf-schema#"
	XSD     = "http://www.w3.org/2001/XMLSchema#"
	DOAP    = "http://usefulinc.com/ns/doap#"
	FOAF    = "http://xmlns.com/foaf/0.1/"
	DCTerms = "http://purl.org/dc/terms/"
	LV2     = "http://lv2plug.in/ns/lv2core#"
	Atom    = "http://lv2plug.in/ns/ext/atom#"
	Event   = "http://lv2plug.in/ns/ext/event#"
	Preset  = "http://lv2plug.in/ns/ext/presets#"
	URID    = "http://lv2plug.in/ns/ext/urid#"
)

// RDF and RDFS terms.
const (
	RDFType       = RDF + "type"
	RDFValue      = RDF + "value"
	RDFLangString = RDF + "langString"
	RDFSClass     = RDFS + "Class"
	RDFSLabel     = RDFS + "label"
	RDFSComment   = RDFS + "comment"
	RDFSSeeAlso   = RDFS + "seeAlso"
	RDFSSubClass  = RDFS + "subClassOf"
)

// XML schema datatypes recognised for literal values.
const (
	XSDString             = XSD + "string"
	XSDBoolean            = XSD + "boolean"
	XSDDecimal            = XSD + "decimal"
	XSDDouble             = XSD + "double"
	XSDFloat              = XSD + "float"
	XSDInteger            = XSD + "integer"
	XSDInt                = XSD + "int"
	XSDLong               = XSD + "long"
	XSDShort              = XSD + "short"
	XSDByte               = XSD + "byte"
	XSDNonNegativeInteger = XSD + "nonNegativeInteger"
	XSDPositiveInteger    = XSD + "positiveInteger"
	XSDUnsignedInt        = XSD + "unsignedInt"
	XSDUnsignedShort      = XSD + "unsignedShort"
)

// Project and authorship terms.
const (
	DOAPName       = DOAP + "name"
	DOAPMaintainer = DOAP + "maintainer"
	FOAFName       = FOAF + "name"
	FOAFMbox       = FOAF + "mbox"
	FOAFHomepage   = FOAF + "homepage"
	DCTermsReplace = DCTerms + "replaces"
)

// LV2 core terms.
const (
	LV2Plugin             = LV2 + "Plugin"
	LV2Specification      = LV2 + "Specification"
	LV2Binary             = LV2 + "binary"
	LV2Project            = LV2 + "project"
	LV2Port               = LV2 + "port"
	LV2Index              = LV2 + "index"
	LV2Symbol             = LV2 + "symbol"
	LV2Name               = LV2 + "name"
	LV2Default            = LV2 + "default"
	LV2Minimum            = LV2 + "minimum"
	LV2Maximum            = LV2 + "maximum"
	LV2ScalePoint         = LV2 + "scalePoint"
	LV2PortProperty       = LV2 + "portProperty"
	LV2Designation        = LV2 + "designation"
	LV2Latency            = LV2 + "latency"
	LV2ReportsLatency     = LV2 + "reportsLatency"
	LV2RequiredFeature    = LV2 + "requiredFeature"
	LV2OptionalFeature    = LV2 + "optionalFeature"
	LV2ExtensionData      = LV2 + "extensionData"
	LV2AppliesTo          = LV2 + "appliesTo"
	LV2MinorVersion       = LV2 + "minorVersion"
	LV2MicroVersion       = LV2 + "microVersion"
	LV2InputPort          = LV2 + "InputPort"
	LV2OutputPort         = LV2 + "OutputPort"
	LV2AudioPort          = LV2 + "AudioPort"
	LV2ControlPort        = LV2 + "ControlPort"
	LV2CVPort             = LV2 + "CVPort"
	LV2ConnectionOptional = LV2 + "connectionOptional"
)

// Extension terms.
const (
	AtomAtomPort       = Atom + "AtomPort"
	AtomSupports       = Atom + "supports"
	EventSupportsEvent = Event + "supportsEvent"
	PresetPreset       = Preset + "Preset"
	URIDMap            = URID + "map"
	URIDUnmap          = URID + "unmap"
)

// PortLayoutFeature is the host-internal feature carrying the port layout of
// the unit being instantiated. Loaders that must copy port buffers (such as
// the WebAssembly loader) read it; in-process units ignore it.
const PortLayoutFeature = "urn:lv2host:port-layout"
