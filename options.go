package rmdiniz

import (
	"go.uber.org/zap"

	"github.com/jsibley/convert-rmd-to-iniz/pkg/metrics"
	"github.com/jsibley/convert-rmd-to-iniz/pkg/schema"
)

// Option configures a conversion run.
type Option func(*Options)

// Options holds all configuration for a conversion run.
type Options struct {
	// Schema
	Mode schema.Mode

	// Output layout
	Basename  string
	Version   string // overrides the version derived from member names
	Order     int
	SkipDrugs bool

	// FHIR export
	FHIR         bool
	FHIRURL      string
	FHIRLanguage string

	// Observability
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// DefaultOptions returns the default configuration.
func DefaultOptions() *Options {
	return &Options{
		Mode:         schema.ModeUUID,
		Basename:     DefaultBasename,
		FHIRURL:      DefaultFHIRURL,
		FHIRLanguage: "en",
		Logger:       zap.NewNop(),
	}
}

// Apply returns the defaults with opts applied in order.
func Apply(opts ...Option) *Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// --- Schema Options ---

// WithMode selects the dataset encoding.
func WithMode(mode schema.Mode) Option {
	return func(o *Options) {
		o.Mode = mode
	}
}

// WithLegacy selects the pre 2.x encoding when enable is true.
func WithLegacy(enable bool) Option {
	return func(o *Options) {
		if enable {
			o.Mode = schema.ModeLegacy
		} else {
			o.Mode = schema.ModeUUID
		}
	}
}

// --- Output Options ---

// WithBasename sets the file name, without extension, of every domain file.
func WithBasename(name string) Option {
	return func(o *Options) {
		o.Basename = name
	}
}

// WithVersion overrides the _version meta header.
func WithVersion(version string) Option {
	return func(o *Options) {
		o.Version = version
	}
}

// WithOrder sets the _order meta header.
func WithOrder(order int) Option {
	return func(o *Options) {
		o.Order = order
	}
}

// WithDrugs enables or disables the drugs domain.
func WithDrugs(enable bool) Option {
	return func(o *Options) {
		o.SkipDrugs = !enable
	}
}

// --- FHIR Options ---

// WithFHIR enables the CodeSystem export under the given canonical URL.
// An empty url keeps the current one.
func WithFHIR(enable bool, url string) Option {
	return func(o *Options) {
		o.FHIR = enable
		if url != "" {
			o.FHIRURL = url
		}
	}
}

// WithFHIRLanguage sets the locale used for CodeSystem displays.
func WithFHIRLanguage(locale string) Option {
	return func(o *Options) {
		o.FHIRLanguage = locale
	}
}

// --- Observability Options ---

// WithLogger sets the logger shared by every stage.
func WithLogger(l *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithMetrics records run metrics into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Options) {
		o.Metrics = m
	}
}
