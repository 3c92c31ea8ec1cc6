package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Default returns the built-in agent catalog: two Gemini API agents and
// three web-embedded chat sites, kimi and grok off by default.
func Default() *Catalog {
	c, err := New(
		Descriptor{
			ID:                "gemini-flash",
			Name:              "Gemini Flash",
			Kind:              KindAPIBacked,
			Active:            true,
			Model:             "gemini-2.5-flash",
			SystemInstruction: "You are a helpful, fast, and concise assistant.",
			Color:             "#3b82f6",
		},
		Descriptor{
			ID:                "gemini-pro",
			Name:              "Gemini Pro",
			Kind:              KindAPIBacked,
			Active:            true,
			Model:             "gemini-3-pro-preview",
			SystemInstruction: "You are a detailed, reasoning-focused assistant.",
			Color:             "#a855f7",
		},
		Descriptor{
			ID:     "deepseek-web",
			Name:   "DeepSeek",
			Kind:   KindWebEmbedded,
			Active: true,
			URL:    "https://chat.deepseek.com/",
			Color:  "#06b6d4",
		},
		Descriptor{
			ID:     "kimi-web",
			Name:   "Kimi",
			Kind:   KindWebEmbedded,
			Active: false,
			URL:    "https://kimi.moonshot.cn/",
			Color:  "#10b981",
		},
		Descriptor{
			ID:     "grok-web",
			Name:   "Grok",
			Kind:   KindWebEmbedded,
			Active: false,
			URL:    "https://grok.x.ai/",
			Color:  "#f97316",
		},
	)
	if err != nil {
		// The built-in catalog is static and validated by tests.
		panic(err)
	}
	return c
}

type catalogFile struct {
	Agents []Descriptor `yaml:"agents"`
}

// Load reads a catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog file: %w", err)
	}
	if len(file.Agents) == 0 {
		return nil, fmt.Errorf("catalog file %s defines no agents", path)
	}

	return New(file.Agents...)
}
