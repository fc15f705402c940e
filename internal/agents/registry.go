package agents

import (
	"errors"
	"fmt"
)

// ErrUnknownAgent is returned for a name with no agent implementation.
var ErrUnknownAgent = errors.New("unknown agent")

// Names lists every agent in default run order.
func Names() []string {
	return []string{NameTechnical, NameFormatting, NameBrand, NameDiagram, NameSummary}
}

// New creates the named agent.
func New(name string, opts Options) (Agent, error) {
	switch name {
	case NameTechnical:
		return NewTechnical(opts), nil
	case NameFormatting:
		return NewFormatting(opts), nil
	case NameBrand:
		return NewBrand(opts, nil), nil
	case NameDiagram:
		return NewDiagram(opts), nil
	case NameSummary:
		return NewSummary(opts), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAgent, name)
}

// Build creates the agents for names, keeping their order.
func Build(names []string, opts Options) ([]Agent, error) {
	out := make([]Agent, 0, len(names))
	for _, n := range names {
		a, err := New(n, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
