package gc

import (
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/joshuapare/gcext/internal/extmem"
)

// Environment variables read by OptionsFromEnv.
const (
	EnvWorkers             = "GCEXT_WORKERS"
	EnvDisableGenerational = "GCEXT_DISABLE_GENERATIONAL"
	EnvConservative        = "GCEXT_CONSERVATIVE"
)

// Options configures a Collector. The zero value of a field means its default.
type Options struct {
	// Workers is the number of parallel mark workers. Default: GOMAXPROCS.
	Workers int

	// SizeClasses describes the pool size classes. Default: DefaultSizeClasses.
	SizeClasses *SizeClassConfig

	// PageSize is the size of one pool page. It must hold at least one cell of
	// the largest class. Default: 64 KiB.
	PageSize uintptr

	// PromoteAge is the number of collections an object must survive before
	// it becomes old. Default: 2.
	PromoteAge int

	// DisableGenerational turns every collection into a full collection.
	DisableGenerational bool

	// ConservativeScanning lets EnqueueAddr resolve interior pointers to the
	// enclosing object. Without it only exact base addresses are recognised.
	ConservativeScanning bool

	// CollectInterval is the number of bytes allocated between automatic
	// collections. 0 disables automatic collection.
	CollectInterval uintptr

	// FullEvery makes every Nth automatic collection a full one. Default: 8.
	FullEvery int

	// ExternalMemory backs objects allocated outside the pools. Default: extmem.System.
	ExternalMemory extmem.Allocator

	// PageMemory backs pool pages. Default: extmem.System.
	PageMemory extmem.Allocator

	// Seed fixes the external tracker's priority sequence. 0 picks a random seed.
	Seed uint64

	// Logger receives cycle and contract-violation logs. Default: logger.FromEnv().
	Logger *slog.Logger
}

// DefaultOptions returns the options used when nil is passed to New.
func DefaultOptions() *Options {
	return &Options{
		Workers:     runtime.GOMAXPROCS(0),
		SizeClasses: &DefaultSizeClasses,
		PageSize:    64 << 10,
		PromoteAge:  2,
		FullEvery:   8,
	}
}

// OptionsFromEnv returns DefaultOptions overlaid with GCEXT_WORKERS,
// GCEXT_DISABLE_GENERATIONAL and GCEXT_CONSERVATIVE.
func OptionsFromEnv() (*Options, error) {
	opts := DefaultOptions()
	if v, ok := os.LookupEnv(EnvWorkers); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 1 {
			return nil, errors.Wrapf(ErrInvalidOptions, "%s=%q", EnvWorkers, v)
		}
		opts.Workers = n
	}
	for name, dst := range map[string]*bool{
		EnvDisableGenerational: &opts.DisableGenerational,
		EnvConservative:        &opts.ConservativeScanning,
	} {
		v, ok := os.LookupEnv(name)
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidOptions, "%s=%q", name, v)
		}
		*dst = b
	}
	return opts, nil
}

// withDefaults returns a copy of o with zero fields filled in.
func (o *Options) withDefaults() (Options, error) {
	def := DefaultOptions()
	if o == nil {
		o = def
	}
	out := *o
	if out.Workers <= 0 {
		out.Workers = def.Workers
	}
	if out.SizeClasses == nil {
		out.SizeClasses = def.SizeClasses
	}
	if out.PageSize == 0 {
		out.PageSize = def.PageSize
	}
	if out.PromoteAge <= 0 {
		out.PromoteAge = def.PromoteAge
	}
	if out.FullEvery <= 0 {
		out.FullEvery = def.FullEvery
	}
	if out.ExternalMemory == nil {
		out.ExternalMemory = extmem.System
	}
	if out.PageMemory == nil {
		out.PageMemory = extmem.System
	}
	if err := out.SizeClasses.validate(); err != nil {
		return out, err
	}
	if largest := out.SizeClasses.maxSize(); out.PageSize < largest {
		return out, errors.Wrapf(ErrInvalidOptions, "page size %d below largest size class %d", out.PageSize, largest)
	}
	return out, nil
}
