package propagation

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

type LuminescenceModel int

const (
	GARFIELD_GAS_GAP LuminescenceModel = iota
	DRIFT_FIELD
)

var luminescenceModelStrings = []string{
	"garfield_gas_gap",
	"drift_field",
}

func (m LuminescenceModel) String() string {
	if m < GARFIELD_GAS_GAP || m > DRIFT_FIELD {
		return "UNKNOWN"
	}
	return luminescenceModelStrings[m]
}

func ParseLuminescenceModel(s string) (LuminescenceModel, error) {
	for i, v := range luminescenceModelStrings {
		if v == s {
			return LuminescenceModel(i), nil
		}
	}
	return 0, fmt.Errorf("invalid LuminescenceModel: %s", s)
}

func (m LuminescenceModel) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *LuminescenceModel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseLuminescenceModel(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func (m LuminescenceModel) MarshalYAML() (interface{}, error) {
	return m.String(), nil
}

func (m *LuminescenceModel) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseLuminescenceModel(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Phase of the S2 producing region. It selects the singlet and triplet
// lifetimes used for the emission delay.
type Phase int

const (
	PHASE_GAS Phase = iota
	PHASE_LIQUID
	PHASE_NONE
)

var phaseStrings = []string{
	"gas",
	"liquid",
	"none",
}

func (p Phase) String() string {
	if p < PHASE_GAS || p > PHASE_NONE {
		return "UNKNOWN"
	}
	return phaseStrings[p]
}

func ParsePhase(s string) (Phase, error) {
	for i, v := range phaseStrings {
		if v == s {
			return Phase(i), nil
		}
	}
	return 0, fmt.Errorf("invalid Phase: %s", s)
}

func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Phase) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParsePhase(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func (p Phase) MarshalYAML() (interface{}, error) {
	return p.String(), nil
}

func (p *Phase) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParsePhase(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
