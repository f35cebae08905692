// Package release publishes the tagged release a successful push run
// produces: a version control tag v<run_number> plus a release record
// referencing it. The hosting API itself stays behind the Host interface.
package release

import (
	"context"
	"errors"
	"fmt"

	"go.trai.ch/zerr"
)

// ErrTagConflict indicates the computed tag already exists. Conflicts are
// surfaced to the operator, never retried: an automatic retry risks a
// duplicate release record.
var ErrTagConflict = errors.New("tag already exists")

// Release is the published version record.
type Release struct {
	Tag        string `json:"tag"`
	Title      string `json:"title"`
	Prerelease bool   `json:"prerelease"`
}

// Host creates tags and release records on the hosting side.
type Host interface {
	// CreateTag creates and pushes the tag, returning ErrTagConflict when
	// it already exists.
	CreateTag(ctx context.Context, tag string) error
	// CreateRelease records a release for an existing tag.
	CreateRelease(ctx context.Context, rel Release) error
}

// Publisher computes and publishes the release for a run.
type Publisher struct {
	host Host
}

// NewPublisher wires a Publisher to a host.
func NewPublisher(host Host) *Publisher {
	return &Publisher{host: host}
}

// Publish tags the run and creates its release record. The tag is
// v<runNumber>, the release is titled "Release v<runNumber>" and marked
// non-prerelease. Tag creation failure aborts before any release record is
// written.
func (p *Publisher) Publish(ctx context.Context, runNumber int) (Release, error) {
	tag := fmt.Sprintf("v%d", runNumber)
	rel := Release{Tag: tag, Title: "Release " + tag, Prerelease: false}

	if err := p.host.CreateTag(ctx, tag); err != nil {
		return Release{}, zerr.With(zerr.Wrap(err, "create tag"), "tag", tag)
	}
	if err := p.host.CreateRelease(ctx, rel); err != nil {
		return Release{}, zerr.With(zerr.Wrap(err, "create release"), "tag", tag)
	}
	return rel, nil
}
