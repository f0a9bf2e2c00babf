// Package backend resolves named compute backends into the Ops
// implementation injected into the decoder stack.
package backend

import (
	"fmt"
	"strings"

	"github.com/samcharles93/strand/internal/model"
)

const (
	CPU  = "cpu"
	Auto = "auto"
)

// Normalize canonicalizes a backend name, defaulting empty to Auto.
func Normalize(name string) (string, error) {
	b := strings.ToLower(strings.TrimSpace(name))
	if b == "" {
		return Auto, nil
	}
	switch b {
	case CPU, Auto:
		return b, nil
	default:
		return "", fmt.Errorf("unknown backend %q (expected auto or cpu)", b)
	}
}

// New returns the Ops implementation for a normalized backend name.
func New(name string) (model.Ops, error) {
	name, err := Normalize(name)
	if err != nil {
		return nil, err
	}
	switch name {
	case CPU, Auto:
		return cpuOps{}, nil
	default:
		return nil, fmt.Errorf("backend %q not available in this build", name)
	}
}
