// Package artifact persists trained models as versioned JSON envelopes.
// Writes go to temp files that are renamed into place, and a group of files
// is swapped together with rollback, so a failed write never leaves a
// half-written or mismatched set behind.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrModelNotLoaded is returned when an artifact is missing or unusable.
	ErrModelNotLoaded = errors.New("model not loaded")
	// ErrVersionMismatch is returned when coupled artifacts come from different training runs.
	ErrVersionMismatch = errors.New("artifact version mismatch")
)

// Envelope wraps a model payload with the metadata needed to load it safely.
type Envelope struct {
	Kind      string          `json:"kind"`
	Version   string          `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	Features  []string        `json:"features"`
	Payload   json.RawMessage `json:"payload"`
}

// File describes one artifact to write.
type File struct {
	Path     string
	Kind     string
	Features []string
	Payload  any
}

// NewVersion returns a fresh version id for a training run.
func NewVersion() string {
	return uuid.NewString()
}

// WriteAll writes files as one unit stamped with version. Every file is first
// staged next to its destination; only when all are staged are they renamed
// into place. If a rename fails, files already swapped are restored.
func WriteAll(version string, files ...File) error {
	if _, err := uuid.Parse(version); err != nil {
		return fmt.Errorf("invalid artifact version %q: %w", version, err)
	}

	now := time.Now().UTC()
	staged := make([]string, 0, len(files))
	cleanup := func() {
		for _, tmp := range staged {
			os.Remove(tmp)
		}
	}

	for _, f := range files {
		tmp, err := stage(f, version, now)
		if err != nil {
			cleanup()
			return fmt.Errorf("stage %s: %w", f.Path, err)
		}
		staged = append(staged, tmp)
	}

	type swapped struct {
		path   string
		backup string // empty when there was no previous file
	}
	var done []swapped

	rollback := func() {
		for i := len(done) - 1; i >= 0; i-- {
			s := done[i]
			if s.backup != "" {
				if err := os.Rename(s.backup, s.path); err != nil {
					log.Printf("ERROR: artifact rollback of %s failed: %v", s.path, err)
				}
			} else {
				os.Remove(s.path)
			}
		}
	}

	for i, f := range files {
		var backup string
		if _, err := os.Stat(f.Path); err == nil {
			backup = f.Path + ".prev"
			if err := os.Rename(f.Path, backup); err != nil {
				rollback()
				cleanup()
				return fmt.Errorf("back up %s: %w", f.Path, err)
			}
		}
		if err := os.Rename(staged[i], f.Path); err != nil {
			if backup != "" {
				os.Rename(backup, f.Path)
			}
			rollback()
			cleanup()
			return fmt.Errorf("swap in %s: %w", f.Path, err)
		}
		done = append(done, swapped{path: f.Path, backup: backup})
	}

	for _, s := range done {
		if s.backup != "" {
			os.Remove(s.backup)
		}
	}
	return nil
}

func stage(f File, version string, now time.Time) (string, error) {
	payload, err := json.Marshal(f.Payload)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(Envelope{
		Kind:      f.Kind,
		Version:   version,
		CreatedAt: now,
		Features:  f.Features,
		Payload:   payload,
	}, "", "  ")
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.Path)+".*.tmp")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

// Read loads the artifact at path into payload. The envelope's kind and
// feature names must match exactly; any problem is reported as ErrModelNotLoaded.
func Read(path, kind string, features []string, payload any) (Envelope, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrModelNotLoaded, err)
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %s: %v", ErrModelNotLoaded, path, err)
	}
	if env.Kind != kind {
		return Envelope{}, fmt.Errorf("%w: %s holds %q, expected %q", ErrModelNotLoaded, path, env.Kind, kind)
	}
	if !sameNames(env.Features, features) {
		return Envelope{}, fmt.Errorf("%w: %s was fit on features %v, expected %v", ErrModelNotLoaded, path, env.Features, features)
	}
	if err := json.Unmarshal(env.Payload, payload); err != nil {
		return Envelope{}, fmt.Errorf("%w: %s payload: %v", ErrModelNotLoaded, path, err)
	}
	return env, nil
}

// SameVersion fails with ErrVersionMismatch unless all envelopes share one version.
func SameVersion(envs ...Envelope) error {
	if len(envs) == 0 {
		return nil
	}
	for _, e := range envs[1:] {
		if e.Version != envs[0].Version {
			return fmt.Errorf("%w: %s is %s, %s is %s", ErrVersionMismatch, envs[0].Kind, envs[0].Version, e.Kind, e.Version)
		}
	}
	return nil
}

func sameNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
