package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// FileConfig is a set of PLC identities and the tags to browse/monitor
// for each, loaded from a YAML file. Grounded on teacher's config.Config
// (config/config.go): a top-level struct with a PLCs list, loaded with
// yaml.v3, narrowed from teacher's full namespace/MQTT/Valkey/Kafka/
// rules/tag-pack/web document down to just the PLC+tag identities this
// browser needs.
type FileConfig struct {
	PLCs []PLCSpec `yaml:"plcs"`
}

// PLCSpec is one PLC identity plus the tags to open against it.
type PLCSpec struct {
	Name    string    `yaml:"name"`
	Gateway string    `yaml:"gateway"`
	Path    string    `yaml:"path"`
	Family  string    `yaml:"family,omitempty"`
	Tags    []TagSpec `yaml:"tags"`
}

// TagSpec is one tag to open, in the same shape FromAttributes accepts.
type TagSpec struct {
	Name      string `yaml:"name"`
	ElemType  string `yaml:"elem_type,omitempty"`
	ElemCount int    `yaml:"elem_count,omitempty"`
	ElemSize  int    `yaml:"elem_size,omitempty"`
}

// DefaultPath returns ~/.plctagctl/config.yaml, falling back to a
// relative path if the home directory can't be resolved.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".plctagctl", "config.yaml")
}

// LoadFileConfig reads and parses path.
func LoadFileConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("plctagctl: parse %s: %w", path, err)
	}
	for i, plc := range cfg.PLCs {
		if plc.Name == "" {
			return nil, fmt.Errorf("plctagctl: plcs[%d]: name is required", i)
		}
		if plc.Gateway == "" {
			return nil, fmt.Errorf("plctagctl: plcs[%d] (%s): gateway is required", i, plc.Name)
		}
	}
	return &cfg, nil
}

// attributes turns spec (plus its owning PLC) into the attribute map
// config.FromAttributes expects.
func (s TagSpec) attributes(plc PLCSpec) map[string]string {
	attrs := map[string]string{
		"gateway": plc.Gateway,
		"path":    plc.Path,
		"name":    s.Name,
	}
	if plc.Family != "" {
		attrs["plc"] = plc.Family
	}
	if s.ElemType != "" {
		attrs["elem_type"] = s.ElemType
	}
	if s.ElemCount > 0 {
		attrs["elem_count"] = strconv.Itoa(s.ElemCount)
	}
	if s.ElemSize > 0 {
		attrs["elem_size"] = strconv.Itoa(s.ElemSize)
	}
	return attrs
}
