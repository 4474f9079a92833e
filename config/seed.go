package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Seed is the initial requirement set loaded when the requirements table is empty.
//
//	requirements:
//	  - type: channel
//	    id: "@my_channel"
//	    name: My Channel
//	    url: https://t.me/my_channel
type Seed struct {
	PromoCoins   *int              `yaml:"promo_coins"`
	Requirements []SeedRequirement `yaml:"requirements"`
}

type SeedRequirement struct {
	Type string `yaml:"type"`
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

func LoadSeed(path string) (*Seed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(raw)
}

func ParseSeed(raw []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	for i, r := range seed.Requirements {
		if r.Type == "" {
			seed.Requirements[i].Type = "channel"
		}
		if r.Name == "" || r.URL == "" {
			return nil, fmt.Errorf("seed requirement %d: name and url are required", i+1)
		}
	}
	return &seed, nil
}
