// Package ports parses port specifications such as "22,80-90,443" into the
// ordered, duplicate-free set of TCP ports a scan will probe.
package ports

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/anstrom/portsweep/internal/errors"
)

const (
	MinPort = 1
	MaxPort = 65535
)

// Preset names accepted in place of an explicit list.
const (
	PresetWellKnown = "well-known"
	PresetCommon    = "common"
	PresetFull      = "full"
	PresetAll       = "all"
)

// wellKnown is the default "common services" preset.
var wellKnown = []uint16{
	20, 21, 22, 23, 25, 53, 80, 110, 111, 135, 139, 143, 443, 445, 993, 995,
	1723, 3306, 3389, 5432, 5900, 8080, 8443, 8888, 9090,
}

// Spec is an ascending, duplicate-free list of ports in [1, 65535].
type Spec []uint16

// Len returns the number of ports in the spec.
func (s Spec) Len() int { return len(s) }

// Contains reports whether port is part of the spec.
func (s Spec) Contains(port uint16) bool {
	_, found := slices.BinarySearch(s, port)
	return found
}

// String renders the spec in its compact canonical form, collapsing
// consecutive ports into ranges. Parse(s.String()) yields s again.
func (s Spec) String() string {
	var b strings.Builder
	for i := 0; i < len(s); {
		j := i
		for j+1 < len(s) && s[j+1] == s[j]+1 {
			j++
		}
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(int(s[i])))
		if j > i {
			b.WriteByte('-')
			b.WriteString(strconv.Itoa(int(s[j])))
		}
		i = j + 1
	}
	return b.String()
}

// WellKnown returns the common services preset.
func WellKnown() Spec {
	return slices.Clone(wellKnown)
}

// Full returns every port from 1 to 65535.
func Full() Spec {
	s := make(Spec, 0, MaxPort)
	for p := MinPort; p <= MaxPort; p++ {
		s = append(s, uint16(p))
	}
	return s
}

// Parse converts a textual port specification into a Spec.
//
// Tokens are separated by commas and are either a single port or an
// inclusive "low-high" range. Whitespace around tokens is ignored. A preset
// name may be given as the whole specification. The first malformed token
// rejects the entire specification. An empty or all-blank specification is
// not an error: it yields an empty Spec, and a scan of it completes with no
// results. Callers that want a default port set substitute it before calling
// Parse.
func Parse(spec string) (Spec, error) {
	trimmed := strings.TrimSpace(spec)
	if trimmed == "" {
		return Spec{}, nil
	}

	switch strings.ToLower(trimmed) {
	case PresetWellKnown, PresetCommon:
		return WellKnown(), nil
	case PresetFull, PresetAll:
		return Full(), nil
	}

	var seen [MaxPort + 1]bool
	count := 0
	for _, raw := range strings.Split(trimmed, ",") {
		token := strings.TrimSpace(raw)
		low, high, err := parseToken(token)
		if err != nil {
			return nil, errors.ErrInvalidPortSpec(spec, err.Error())
		}
		for p := low; p <= high; p++ {
			if !seen[p] {
				seen[p] = true
				count++
			}
		}
	}

	out := make(Spec, 0, count)
	for p := MinPort; p <= MaxPort; p++ {
		if seen[p] {
			out = append(out, uint16(p))
		}
	}
	return out, nil
}

func parseToken(token string) (low, high int, err error) {
	if token == "" {
		return 0, 0, fmt.Errorf("empty entry")
	}

	lowText, highText, isRange := strings.Cut(token, "-")
	low, err = parsePort(strings.TrimSpace(lowText), token)
	if err != nil {
		return 0, 0, err
	}
	if !isRange {
		return low, low, nil
	}

	high, err = parsePort(strings.TrimSpace(highText), token)
	if err != nil {
		return 0, 0, err
	}
	if low > high {
		return 0, 0, fmt.Errorf("range %q is reversed", token)
	}
	return low, high, nil
}

func parsePort(text, token string) (int, error) {
	if text == "" {
		return 0, fmt.Errorf("incomplete entry %q", token)
	}
	for _, r := range text {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("non-numeric entry %q", token)
		}
	}
	n, err := strconv.Atoi(text)
	if err != nil || n < MinPort || n > MaxPort {
		return 0, fmt.Errorf("port %q out of range %d-%d", text, MinPort, MaxPort)
	}
	return n, nil
}
