package store

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/treadpick/internal/domain"
	"github.com/ahrav/treadpick/internal/ports"
)

// FileCandidateSource reads the dataset from a YAML or JSON file on every
// call. The file holds either a list of candidates or a mapping with a
// "candidates" list.
type FileCandidateSource struct {
	path string
}

var _ ports.CandidateSource = (*FileCandidateSource)(nil)

// NewFileCandidateSource returns a source for path.
func NewFileCandidateSource(path string) *FileCandidateSource {
	return &FileCandidateSource{path: path}
}

// ListCandidates implements ports.CandidateSource.
func (s *FileCandidateSource) ListCandidates(ctx context.Context) ([]domain.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, ports.NewSourceError("file", err)
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, ports.NewSourceError("file", fmt.Errorf("reading dataset: %w", err))
	}
	candidates, err := ParseDataset(data)
	if err != nil {
		return nil, ports.NewSourceError("file", fmt.Errorf("%s: %w", s.path, err))
	}
	return candidates, nil
}

// ParseDataset decodes a YAML or JSON dataset document.
func ParseDataset(data []byte) ([]domain.Candidate, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parsing dataset: %w", err)
	}
	if len(root.Content) == 0 {
		return nil, nil
	}

	doc := root.Content[0]
	switch doc.Kind {
	case yaml.SequenceNode:
		var out []domain.Candidate
		if err := doc.Decode(&out); err != nil {
			return nil, fmt.Errorf("decoding candidates: %w", err)
		}
		return out, nil
	case yaml.MappingNode:
		var wrapper struct {
			Candidates []domain.Candidate `yaml:"candidates"`
		}
		if err := doc.Decode(&wrapper); err != nil {
			return nil, fmt.Errorf("decoding candidates: %w", err)
		}
		return wrapper.Candidates, nil
	default:
		return nil, fmt.Errorf("dataset must be a list or a mapping with a candidates key")
	}
}
