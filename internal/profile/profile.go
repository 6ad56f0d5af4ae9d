package profile

import (
	"log/slog"

	"github.com/rpggio/activitylog/internal/sequence"
)

// OffTheRecordSuffix is appended to an original profile's id to form the id
// of its off-the-record child.
const OffTheRecordSuffix = ":otr"

// Options control how a profile is created.
type Options struct {
	// Testing marks a degenerate profile created by a test harness. Keyed
	// services that are null while testing are not built for it.
	Testing bool
}

// Profile is a browsing context. Every keyed service is scoped to one.
type Profile struct {
	id           string
	testing      bool
	offTheRecord bool
	original     *Profile
	seq          *sequence.Runner
}

// New creates a profile with its own task sequence.
func New(id string, opts Options, logger *slog.Logger) *Profile {
	return &Profile{
		id:      id,
		testing: opts.Testing,
		seq:     sequence.NewRunner("profile:"+id, logger),
	}
}

// NewOffTheRecord creates an off-the-record child of original. It shares the
// original's testing flag but has its own sequence.
func NewOffTheRecord(original *Profile, logger *slog.Logger) *Profile {
	id := original.id + OffTheRecordSuffix
	return &Profile{
		id:           id,
		testing:      original.testing,
		offTheRecord: true,
		original:     original,
		seq:          sequence.NewRunner("profile:"+id, logger),
	}
}

func (p *Profile) ID() string {
	return p.id
}

func (p *Profile) IsTesting() bool {
	return p.testing
}

func (p *Profile) IsOffTheRecord() bool {
	return p.offTheRecord
}

// Original returns the regular profile behind an off-the-record profile, or p
// itself.
func (p *Profile) Original() *Profile {
	if p.original != nil {
		return p.original
	}
	return p
}

// Sequence returns the profile's task runner.
func (p *Profile) Sequence() *sequence.Runner {
	return p.seq
}

// Close stops the profile's sequence. Pending tasks are dropped.
func (p *Profile) Close() {
	p.seq.Close()
}
