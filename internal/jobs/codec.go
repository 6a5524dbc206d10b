package jobs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Codec converts job documents to and from their stored representation.
type Codec interface {
	// Name is the config value selecting the codec ("json" or "yaml").
	Name() string
	// Ext is the file extension used by the filesystem backend, dot included.
	Ext() string
	Encode(job *Job) ([]byte, error)
	Decode(data []byte) (*Job, error)
}

// CodecFor returns the codec registered under name. An empty name selects JSON.
func CodecFor(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return JSONCodec{}, nil
	case "yaml", "yml":
		return YAMLCodec{}, nil
	default:
		return nil, fmt.Errorf("unsupported document format %q", name)
	}
}

// JSONCodec stores documents as indented JSON.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Ext() string { return ".json" }

func (JSONCodec) Encode(job *Job) ([]byte, error) {
	data, err := json.MarshalIndent(normalizeForWrite(job), "", "    ")
	if err != nil {
		return nil, fmt.Errorf("encode job: %w", err)
	}
	return append(data, '\n'), nil
}

func (JSONCodec) Decode(data []byte) (*Job, error) {
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedDocument, err)
	}
	return validateDecoded(&job)
}

// YAMLCodec stores documents as YAML.
type YAMLCodec struct{}

func (YAMLCodec) Name() string { return "yaml" }

func (YAMLCodec) Ext() string { return ".yaml" }

func (YAMLCodec) Encode(job *Job) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(normalizeForWrite(job)); err != nil {
		return nil, fmt.Errorf("encode job: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode job: %w", err)
	}
	return buf.Bytes(), nil
}

func (YAMLCodec) Decode(data []byte) (*Job, error) {
	var job Job
	if err := yaml.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedDocument, err)
	}
	return validateDecoded(&job)
}

func normalizeForWrite(job *Job) *Job {
	if job.Steps != nil {
		return job
	}
	cp := *job
	cp.Steps = []Step{}
	return &cp
}

// validateDecoded rejects documents that parsed but cannot be a job: an empty
// file decodes to a zero value and must not be mistaken for a fresh job.
func validateDecoded(job *Job) (*Job, error) {
	if strings.TrimSpace(job.Version) == "" {
		return nil, fmt.Errorf("%w: missing version", ErrMalformedDocument)
	}
	if job.DateCreated.IsZero() {
		return nil, fmt.Errorf("%w: missing date_created", ErrMalformedDocument)
	}
	if job.Steps == nil {
		job.Steps = []Step{}
	}
	for i := range job.Steps {
		if job.Steps[i].Args == nil {
			job.Steps[i].Args = []string{}
		}
		if _, ok := ParseStepStatus(string(job.Steps[i].Status)); !ok {
			return nil, fmt.Errorf("%w: step %d has unknown status %q", ErrMalformedDocument, i, job.Steps[i].Status)
		}
	}
	return job, nil
}
