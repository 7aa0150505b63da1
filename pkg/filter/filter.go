package filter

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kioskbus/kioskbus-go/pkg/canbus"
)

// ErrBadRule is wrapped by all rule compilation failures. Rule problems are
// configuration errors: they surface at startup and are not recoverable at
// runtime.
var ErrBadRule = errors.New("filter: bad rule")

// Wildcard is the payload condition that matches any byte.
const Wildcard = "*"

// ByteCondition constrains one payload byte position.
// The zero value matches any byte.
type ByteCondition struct {
	// Exact requires equality with Value when true.
	Exact bool

	// Value is the required byte when Exact is set.
	Value byte
}

// Rule maps an identifier range and payload pattern to a named handler.
// Rules are immutable after compilation.
type Rule struct {
	// Name identifies the handler this rule dispatches to.
	Name string

	// IDLow and IDHigh are inclusive bounds on the frame identifier.
	IDLow, IDHigh uint32

	// Conditions are per-position payload constraints, evaluated against
	// the first len(Conditions) payload bytes.
	Conditions []ByteCondition
}

// Matches reports whether the frame satisfies this rule: the identifier is
// within [IDLow, IDHigh] and every exact condition equals the corresponding
// payload byte. A payload shorter than an exact condition's position fails
// the rule; it never panics.
func (r Rule) Matches(frame canbus.Frame) bool {
	if frame.ID < r.IDLow || frame.ID > r.IDHigh {
		return false
	}
	for i, cond := range r.Conditions {
		if !cond.Exact {
			continue
		}
		if i >= int(frame.Len) {
			return false
		}
		if frame.Data[i] != cond.Value {
			return false
		}
	}
	return true
}

// Match returns the name of the first rule (in list order) the frame
// satisfies. ok is false when no rule matches - an unmatched frame is
// silently ignored by design, not an error.
func Match(frame canbus.Frame, rules []Rule) (name string, ok bool) {
	for _, r := range rules {
		if r.Matches(frame) {
			return r.Name, true
		}
	}
	return "", false
}

// RuleSpec is the configuration form of a rule, as it appears in the YAML
// config file.
type RuleSpec struct {
	Name              string   `yaml:"name"`
	IDRange           []string `yaml:"id_range"`
	PayloadConditions []string `yaml:"payload_conditions"`
}

// Compile translates a RuleSpec into a Rule, validating identifiers, range
// ordering, and payload condition syntax.
func Compile(spec RuleSpec) (Rule, error) {
	if spec.Name == "" {
		return Rule{}, fmt.Errorf("%w: missing name", ErrBadRule)
	}
	if len(spec.IDRange) != 2 {
		return Rule{}, fmt.Errorf("%w: rule %q: id_range needs [low, high]", ErrBadRule, spec.Name)
	}
	low, err := ParseID(spec.IDRange[0])
	if err != nil {
		return Rule{}, fmt.Errorf("%w: rule %q: id_range low: %w", ErrBadRule, spec.Name, err)
	}
	high, err := ParseID(spec.IDRange[1])
	if err != nil {
		return Rule{}, fmt.Errorf("%w: rule %q: id_range high: %w", ErrBadRule, spec.Name, err)
	}
	if low > high {
		return Rule{}, fmt.Errorf("%w: rule %q: id_range low 0x%X > high 0x%X", ErrBadRule, spec.Name, low, high)
	}
	if len(spec.PayloadConditions) > canbus.PayloadSize {
		return Rule{}, fmt.Errorf("%w: rule %q: more than %d payload conditions", ErrBadRule, spec.Name, canbus.PayloadSize)
	}

	conds := make([]ByteCondition, len(spec.PayloadConditions))
	for i, c := range spec.PayloadConditions {
		if c == Wildcard || c == "" {
			continue
		}
		v, err := ParseByte(c)
		if err != nil {
			return Rule{}, fmt.Errorf("%w: rule %q: payload_conditions[%d]: %w", ErrBadRule, spec.Name, i, err)
		}
		conds[i] = ByteCondition{Exact: true, Value: v}
	}
	return Rule{Name: spec.Name, IDLow: low, IDHigh: high, Conditions: conds}, nil
}

// CompileAll compiles every spec in order, preserving rule precedence.
func CompileAll(specs []RuleSpec) ([]Rule, error) {
	rules := make([]Rule, 0, len(specs))
	for _, spec := range specs {
		rule, err := Compile(spec)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// ParseID parses a standard-frame identifier like "0x0DA" or "0DA".
func ParseID(s string) (uint32, error) {
	v, err := parseHex(s, 32)
	if err != nil {
		return 0, err
	}
	if v > canbus.MaxStandardID {
		return 0, fmt.Errorf("identifier 0x%X exceeds 11 bits", v)
	}
	return uint32(v), nil
}

// ParseByte parses a hex byte like "0x02" or "02".
func ParseByte(s string) (byte, error) {
	v, err := parseHex(s, 8)
	if err != nil {
		return 0, err
	}
	return byte(v), nil
}

func parseHex(s string, bits int) (uint64, error) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(trimmed, 16, bits)
	if err != nil {
		return 0, fmt.Errorf("invalid hex value %q", s)
	}
	return v, nil
}
