package harness

import (
	"fmt"
	"strings"
)

// Strategy selects the backing store of a relation.
type Strategy string

const (
	StrategyVirtual Strategy = "virtual"
	StrategyMemory  Strategy = "memory"
)

func ParseStrategy(raw string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(raw))) {
	case StrategyVirtual, "v", "streaming":
		return StrategyVirtual, nil
	case StrategyMemory, "m", "materialized":
		return StrategyMemory, nil
	default:
		return "", fmt.Errorf("unknown strategy %q", raw)
	}
}

// Suffix is appended to a base name at the engine boundary so both versions of
// a relation can coexist.
func (s Strategy) Suffix() string {
	switch s {
	case StrategyVirtual:
		return "V"
	case StrategyMemory:
		return "M"
	default:
		return ""
	}
}

func (s Strategy) valid() bool {
	return s == StrategyVirtual || s == StrategyMemory
}

type RelationKind string

const (
	KindSource   RelationKind = "source"
	KindJoinView RelationKind = "join_view"
)

// Registration records one relation known to the session. Path and Header are
// set for streaming sources, From for materialized copies.
type Registration struct {
	Base     string
	Strategy Strategy
	Kind     RelationKind
	Path     string
	Header   bool
	From     string
}

func (r Registration) Name() string {
	return r.Base + r.Strategy.Suffix()
}

// SourceState is the lifecycle position of a base relation. Transitions only
// move forward.
type SourceState int

const (
	StateUnregistered SourceState = iota
	StateStreaming
	StateMaterialized
)

func (s SourceState) String() string {
	switch s {
	case StateStreaming:
		return "streaming-registered"
	case StateMaterialized:
		return "materialized-registered"
	default:
		return "unregistered"
	}
}

// Catalog tracks every relation registered in a session. Names are never
// reused or overwritten.
type Catalog struct {
	byName map[string]Registration
	order  []string
}

func NewCatalog() *Catalog {
	return &Catalog{byName: map[string]Registration{}}
}

func (c *Catalog) ensureFree(name string) error {
	if _, ok := c.byName[name]; ok {
		return fmt.Errorf("%q: %w", name, ErrRelationExists)
	}
	return nil
}

func (c *Catalog) add(reg Registration) error {
	name := reg.Name()
	if err := c.ensureFree(name); err != nil {
		return err
	}
	c.byName[name] = reg
	c.order = append(c.order, name)
	return nil
}

func (c *Catalog) Lookup(name string) (Registration, bool) {
	reg, ok := c.byName[name]
	return reg, ok
}

func (c *Catalog) State(base string) SourceState {
	if _, ok := c.byName[base+StrategyMemory.Suffix()]; ok {
		return StateMaterialized
	}
	if _, ok := c.byName[base+StrategyVirtual.Suffix()]; ok {
		return StateStreaming
	}
	return StateUnregistered
}

// Registrations returns relations in registration order.
func (c *Catalog) Registrations() []Registration {
	out := make([]Registration, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.byName[name])
	}
	return out
}
