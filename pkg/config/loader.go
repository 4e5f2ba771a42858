package config

import (
	"bytes"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfigFromFile overlays cfg with values from a YAML file. Unknown keys
// are rejected so a typo'd setting fails loudly instead of silently keeping
// its default.
func LoadConfigFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	return dec.Decode(cfg)
}
