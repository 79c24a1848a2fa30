// Package objectstorage mirrors raw provider JSON durably (§4.4, §6).
// Mirror is shaped after a bucket/object cloud client so a real SDK can
// be dropped in behind it without touching callers; LocalFallback
// satisfies the same interface against the filesystem and is what the
// sync engine falls back to when the cloud client is unreachable.
package objectstorage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Mirror writes a JSON payload under a fully-qualified object path and
// reports the location it actually landed at, so a fallback write is
// visible to the caller rather than silently swallowed (§4.4: "lossy
// but visible").
type Mirror interface {
	Write(ctx context.Context, path string, payload []byte) (location string, err error)
}

// LocalFallback writes objects under a root directory on the local
// filesystem, mirroring the object path layout exactly.
type LocalFallback struct {
	Root string
}

func NewLocalFallback(root string) *LocalFallback {
	if root == "" {
		root = "./data/mirror"
	}
	return &LocalFallback{Root: root}
}

func (l *LocalFallback) Write(_ context.Context, path string, payload []byte) (string, error) {
	full := filepath.Join(l.Root, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("objectstorage: create dir: %w", err)
	}
	if err := os.WriteFile(full, payload, 0o644); err != nil {
		return "", fmt.Errorf("objectstorage: write file: %w", err)
	}
	return "file://" + full, nil
}

// BucketClient is the narrow shape a cloud object-storage SDK client
// needs to satisfy to back Remote. No concrete cloud SDK is wired in
// this tree (see DESIGN.md); Remote exists so one can be dropped in
// later without touching the sync engine.
type BucketClient interface {
	PutObject(ctx context.Context, bucket, key string, payload []byte) error
}

// Remote mirrors to a cloud bucket via BucketClient, falling back to
// LocalFallback when the client errors or is unset.
type Remote struct {
	Client   BucketClient
	Bucket   string
	Fallback *LocalFallback
}

func NewRemote(client BucketClient, bucket string, fallback *LocalFallback) *Remote {
	return &Remote{Client: client, Bucket: bucket, Fallback: fallback}
}

func (r *Remote) Write(ctx context.Context, path string, payload []byte) (string, error) {
	if r.Client != nil && r.Bucket != "" {
		if err := r.Client.PutObject(ctx, r.Bucket, path, payload); err == nil {
			return fmt.Sprintf("gs://%s/%s", r.Bucket, path), nil
		}
	}
	return r.Fallback.Write(ctx, path, payload)
}

// TeamMatchPath builds the per-match mirror path:
// cricket/<team-slug>/<YYYY>/<MM>/<DD>/match_<id>.json (§4.4, §6).
func TeamMatchPath(teamSlug, fixtureID string, at time.Time) string {
	return fmt.Sprintf("cricket/%s/%04d/%02d/%02d/match_%s.json",
		teamSlug, at.Year(), at.Month(), at.Day(), fixtureID)
}

// LadderPath builds the per-ladder mirror path:
// cricket/ladders/<YYYY>/<MM>/<DD>/grade_<id>.json (§4.4, §6).
func LadderPath(gradeID string, at time.Time) string {
	return fmt.Sprintf("cricket/ladders/%04d/%02d/%02d/grade_%s.json",
		at.Year(), at.Month(), at.Day(), gradeID)
}
