// Package batch runs a list of crop-and-upload jobs read from a YAML
// manifest, each through its own uploader instance.
//
// A manifest looks like:
//
//	defaults:
//	  title: Product photo
//	  max_files: 5
//	  aspect_ratio: 1
//	  file_metadata:
//	    purpose: review_image
//	jobs:
//	  - in: photos/front.jpg
//	    parent_id: review-17
//	    crop:
//	      zoom: 1.5
//	  - in: photos/banner.png
//	    purpose: profile_banner
//	    aspect_ratio: 4
//	    crop:
//	      rect: {x: 0, y: 120, width: 1600, height: 400}
package batch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/fleveque/crop-uploader/internal/crop"
	"github.com/fleveque/crop-uploader/internal/model"
)

// Manifest is a parsed jobs file.
type Manifest struct {
	Defaults model.UploaderConfig `yaml:"defaults"`
	Jobs     []Job                `yaml:"jobs"`
}

// Job is one input file plus whatever it overrides from the defaults.
// Pointer fields distinguish "not set" from an explicit zero.
type Job struct {
	Name        string      `yaml:"name"`
	In          string      `yaml:"in"`
	Title       string      `yaml:"title"`
	Purpose     string      `yaml:"purpose"`
	ParentID    string      `yaml:"parent_id"`
	AspectRatio *float64    `yaml:"aspect_ratio"`
	MaxFiles    *int        `yaml:"max_files"`
	Crop        crop.Params `yaml:"crop"`
}

// Label names the job in logs and reports.
func (j Job) Label() string {
	if j.Name != "" {
		return j.Name
	}
	return filepath.Base(j.In)
}

// Config merges the job's overrides onto defaults.
func (j Job) Config(defaults model.UploaderConfig) model.UploaderConfig {
	cfg := defaults
	if j.Title != "" {
		cfg.Title = j.Title
	}
	if j.Purpose != "" {
		cfg.FileMetadata.Purpose = j.Purpose
	}
	if j.ParentID != "" {
		cfg.FileMetadata.ParentID = j.ParentID
	}
	if j.AspectRatio != nil {
		cfg.AspectRatio = *j.AspectRatio
	}
	if j.MaxFiles != nil {
		cfg.MaxFiles = *j.MaxFiles
	}
	return cfg
}

// LoadManifest reads and validates a manifest. Relative input paths are
// resolved against the manifest's directory. Unknown keys are an error,
// so a typo like "aspect_raito" doesn't silently fall back to defaults.
func LoadManifest(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening manifest: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}

	if len(m.Jobs) == 0 {
		return nil, errors.New("manifest has no jobs")
	}
	base := filepath.Dir(path)
	for i := range m.Jobs {
		job := &m.Jobs[i]
		if job.In == "" {
			return nil, fmt.Errorf("job %d: missing \"in\"", i+1)
		}
		if !filepath.IsAbs(job.In) {
			job.In = filepath.Join(base, job.In)
		}
		if job.Crop.Rect != nil {
			if err := job.Crop.Rect.Validate(); err != nil {
				return nil, fmt.Errorf("job %d (%s): %w", i+1, job.Label(), err)
			}
		}
	}
	return &m, nil
}
