package workflow

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// LoadDescriptors reads workflow descriptors from a workflows.yaml file.
// Returns just the builtin descriptor if the file does not exist.
//
// Expected shape:
//
//	workflows:
//	  - id: default
//	    states: [planning, implementation, review, shipment]
//	    terminal_states: [shipped, abandoned]
//	    owners:
//	      shipment: human
//	    transitions:
//	      - {from: "*", to: abandoned}
func LoadDescriptors(configPath string) ([]*Descriptor, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return []*Descriptor{Builtin()}, nil
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read workflows config: %w", err)
	}

	var parsed struct {
		Workflows []*Descriptor `mapstructure:"workflows"`
	}
	if err := v.Unmarshal(&parsed); err != nil {
		return nil, fmt.Errorf("failed to parse workflows config: %w", err)
	}

	descriptors := []*Descriptor{Builtin()}
	for i, d := range parsed.Workflows {
		if d.ID == "" {
			return nil, fmt.Errorf("workflows[%d]: missing 'id' field", i)
		}
		if len(d.States) == 0 {
			return nil, fmt.Errorf("workflows[%d] (%s): missing 'states' field", i, d.ID)
		}
		if d.ID == "default" {
			// A configured default replaces the builtin one.
			descriptors[0] = d
			continue
		}
		descriptors = append(descriptors, d)
	}

	return descriptors, nil
}

// FindDescriptor returns the descriptor with the given id, or nil.
func FindDescriptor(descriptors []*Descriptor, id string) *Descriptor {
	for _, d := range descriptors {
		if d.ID == id {
			return d
		}
	}
	return nil
}
