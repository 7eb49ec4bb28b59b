// Package manifest loads batch fetch jobs from YAML/JSON files.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Job is a single URL to fetch and the file its body is written to.
type Job struct {
	ID  string `json:"id" yaml:"id"`
	URL string `json:"url" yaml:"url"`
	Out string `json:"out" yaml:"out"`
}

type file struct {
	Jobs []Job `json:"jobs" yaml:"jobs"`
}

// Load reads and validates the manifest at path.
func Load(path string) ([]Job, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("manifest file path is empty")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest file: %w", err)
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read manifest file: %w", err)
	}

	return Parse(raw, filepath.Ext(path))
}

// Parse decodes manifest content; ext selects the decoder (".yaml", ".yml",
// ".json"), an empty ext tries each in turn.
func Parse(data []byte, ext string) ([]Job, error) {
	m, err := decode(data, ext)
	if err != nil {
		return nil, err
	}
	if len(m.Jobs) == 0 {
		return nil, errors.New("manifest contains no jobs entries")
	}

	ids := make(map[string]struct{}, len(m.Jobs))
	outs := make(map[string]string, len(m.Jobs))
	for i := range m.Jobs {
		job := sanitizeJob(m.Jobs[i])
		if err := validateJob(job); err != nil {
			return nil, fmt.Errorf("jobs[%d]: %w", i, err)
		}
		if _, exists := ids[job.ID]; exists {
			return nil, fmt.Errorf("duplicate job id %q", job.ID)
		}
		if other, exists := outs[job.Out]; exists {
			return nil, fmt.Errorf("jobs %q and %q write the same out path %q", other, job.ID, job.Out)
		}
		ids[job.ID] = struct{}{}
		outs[job.Out] = job.ID
		m.Jobs[i] = job
	}
	return m.Jobs, nil
}

type unmarshalFn func([]byte, any) error

func decode(data []byte, ext string) (file, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))

	decoders := []struct {
		name string
		ext  string
		fn   unmarshalFn
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var m file
		if err := d.fn(data, &m); err == nil {
			return m, nil
		}
	}

	return file{}, errors.New("manifest format not recognized (expected YAML or JSON)")
}

func sanitizeJob(j Job) Job {
	j.ID = strings.TrimSpace(j.ID)
	j.URL = strings.TrimSpace(j.URL)
	j.Out = strings.TrimSpace(j.Out)
	if j.Out != "" {
		j.Out = filepath.Clean(j.Out)
	}
	if j.ID == "" {
		j.ID = j.URL
	}
	return j
}

func validateJob(j Job) error {
	if j.URL == "" {
		return errors.New("url is required")
	}
	if j.Out == "" {
		return fmt.Errorf("out is required for job %q", j.ID)
	}
	return nil
}
