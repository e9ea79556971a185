package rmdiniz

import (
	"testing"

	"go.uber.org/zap"

	"github.com/jsibley/convert-rmd-to-iniz/pkg/metrics"
	"github.com/jsibley/convert-rmd-to-iniz/pkg/schema"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	if opts.Mode != schema.ModeUUID {
		t.Errorf("Mode = %q; want %q", opts.Mode, schema.ModeUUID)
	}
	if opts.Basename != DefaultBasename {
		t.Errorf("Basename = %q; want %q", opts.Basename, DefaultBasename)
	}
	if opts.Version != "" {
		t.Error("Version should be derived from the archive by default")
	}
	if opts.Order != 0 {
		t.Errorf("Order = %d; want 0", opts.Order)
	}
	if opts.SkipDrugs {
		t.Error("drugs should be written by default")
	}
	if opts.FHIR {
		t.Error("FHIR export should be disabled by default")
	}
	if opts.FHIRURL != DefaultFHIRURL {
		t.Errorf("FHIRURL = %q; want %q", opts.FHIRURL, DefaultFHIRURL)
	}
	if opts.Logger == nil {
		t.Error("Logger should default to a no-op logger")
	}
	if opts.Metrics != nil {
		t.Error("Metrics should be nil by default")
	}
}

func TestOptions(t *testing.T) {
	log := zap.NewNop()
	m := metrics.New()

	tests := []struct {
		name  string
		opt   Option
		check func(*Options) bool
	}{
		{"WithMode", WithMode(schema.ModeLegacy), func(o *Options) bool { return o.Mode == schema.ModeLegacy }},
		{"WithLegacy true", WithLegacy(true), func(o *Options) bool { return o.Mode == schema.ModeLegacy }},
		{"WithLegacy false", WithLegacy(false), func(o *Options) bool { return o.Mode == schema.ModeUUID }},
		{"WithBasename", WithBasename("ciel"), func(o *Options) bool { return o.Basename == "ciel" }},
		{"WithVersion", WithVersion("42"), func(o *Options) bool { return o.Version == "42" }},
		{"WithOrder", WithOrder(7), func(o *Options) bool { return o.Order == 7 }},
		{"WithDrugs false", WithDrugs(false), func(o *Options) bool { return o.SkipDrugs }},
		{"WithDrugs true", WithDrugs(true), func(o *Options) bool { return !o.SkipDrugs }},
		{"WithFHIR", WithFHIR(true, "http://example.org/cs"), func(o *Options) bool {
			return o.FHIR && o.FHIRURL == "http://example.org/cs"
		}},
		{"WithFHIR keeps url", WithFHIR(true, ""), func(o *Options) bool {
			return o.FHIR && o.FHIRURL == DefaultFHIRURL
		}},
		{"WithFHIRLanguage", WithFHIRLanguage("fr"), func(o *Options) bool { return o.FHIRLanguage == "fr" }},
		{"WithLogger", WithLogger(log), func(o *Options) bool { return o.Logger == log }},
		{"WithMetrics", WithMetrics(m), func(o *Options) bool { return o.Metrics == m }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if o := Apply(tt.opt); !tt.check(o) {
				t.Errorf("%s not applied: %+v", tt.name, o)
			}
		})
	}
}

func TestApplyNilLogger(t *testing.T) {
	o := Apply(WithLogger(nil))
	if o.Logger == nil {
		t.Error("Apply should replace a nil logger")
	}
}

func TestApplyOrder(t *testing.T) {
	o := Apply(WithBasename("first"), WithBasename("second"))
	if o.Basename != "second" {
		t.Errorf("Basename = %q; want the last option to win", o.Basename)
	}
}
