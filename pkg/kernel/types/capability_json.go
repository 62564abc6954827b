package types

import (
	"encoding/json"
	"fmt"
)

// capabilityJSON is Capability's external wire shape: a snake_case tag
// discriminator plus whichever fields that tag's variant actually uses,
// the same shape every closed Go sum type in this tree takes when it
// crosses the external (non-protobuf) boundary.
type capabilityJSON struct {
	Tag  string       `json:"tag"`
	Path string       `json:"path,omitempty"`
	Rule *NetworkRule `json:"rule,omitempty"`
}

// MarshalJSON renders c with its tag spelled out instead of the bare
// numeric CapabilityTag, so an external consumer never has to know the
// enum's Go ordinal values.
func (c Capability) MarshalJSON() ([]byte, error) {
	out := capabilityJSON{Tag: c.Tag.String(), Path: c.Path}
	if c.Rule != (NetworkRule{}) {
		rule := c.Rule
		out.Rule = &rule
	}
	return json.Marshal(out)
}

// UnmarshalJSON parses c's external shape back into the closed
// CapabilityTag enum, rejecting any tag name this kernel doesn't
// recognize rather than silently defaulting to CapReadFile.
func (c *Capability) UnmarshalJSON(data []byte) error {
	var in capabilityJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	tag, ok := capabilityTagFromString(in.Tag)
	if !ok {
		return fmt.Errorf("types: unrecognized capability tag %q", in.Tag)
	}
	c.Tag = tag
	c.Path = in.Path
	if in.Rule != nil {
		c.Rule = *in.Rule
	}
	return nil
}

func capabilityTagFromString(s string) (CapabilityTag, bool) {
	for t := CapReadFile; t <= CapNetworkNamespace; t++ {
		if t.String() == s {
			return t, true
		}
	}
	return 0, false
}
