package tree

import (
	"fmt"
	"strconv"
	"strings"
)

// Path addresses a node as the sequence of sibling indices from the
// root. The empty path is the root itself. Promotion reorders
// siblings, so a path resolved before a promotion may point elsewhere
// afterwards.
type Path []int

func (p Path) String() string {
	if len(p) == 0 {
		return ""
	}
	parts := make([]string, len(p))
	for i, idx := range p {
		parts[i] = strconv.Itoa(idx)
	}
	return strings.Join(parts, ".")
}

func ParsePath(s string) (Path, error) {
	if s == "" {
		return Path{}, nil
	}
	parts := strings.Split(s, ".")
	p := make(Path, len(parts))
	for i, part := range parts {
		idx, err := strconv.Atoi(part)
		if err != nil || idx < 0 {
			return nil, fmt.Errorf("invalid path element %q", part)
		}
		p[i] = idx
	}
	return p, nil
}
