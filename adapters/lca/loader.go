package lca

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Background and foreground database names used by Demo.
const (
	Background = "bg"
	Foreground = "fg"
)

// Demo builds the two-emission inventory: two background processes each
// emitting one gas, two foreground processes mixing them and a root
// consuming one unit of each foreground process.
func Demo() *Inventory {
	inv := New()
	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}
	must(inv.AddFlow(Background, "CO2", "kg"))
	must(inv.AddFlow(Background, "CH4", "kg"))
	must(inv.AddMethod("co2", "kg", map[string]float64{"CO2": 1}))
	must(inv.AddMethod("ch4", "kg", map[string]float64{"CH4": 1}))

	must(inv.AddActivity(Background, "bg1", "kg", Link{Input: "CO2", Amount: 1}))
	must(inv.AddActivity(Background, "bg2", "kg", Link{Input: "CH4", Amount: 1}))
	must(inv.AddActivity(Foreground, "fg1", "kg", Link{Input: "bg1", Amount: 2}, Link{Input: "bg2", Amount: 3}))
	must(inv.AddActivity(Foreground, "fg2", "kg", Link{Input: "bg1", Amount: 1}, Link{Input: "bg2", Amount: 1}))
	must(inv.AddActivity(Foreground, "root", "kg", Link{Input: "fg1", Amount: 1}, Link{Input: "fg2", Amount: 1}))
	must(inv.SetRoot("root"))
	return inv
}

// Document is the YAML form of an inventory. Activities are declared in
// dependency order: every input must appear before it is used.
type Document struct {
	Root  string `yaml:"root"`
	Flows []struct {
		Database string `yaml:"database"`
		Name     string `yaml:"name"`
		Unit     string `yaml:"unit"`
	} `yaml:"flows"`
	Activities []struct {
		Database  string `yaml:"database"`
		Name      string `yaml:"name"`
		Unit      string `yaml:"unit"`
		Exchanges []Link `yaml:"exchanges"`
	} `yaml:"activities"`
	Methods []struct {
		Name    string             `yaml:"name"`
		Unit    string             `yaml:"unit"`
		Factors map[string]float64 `yaml:"factors"`
	} `yaml:"methods"`
}

// Load decodes a YAML inventory document.
func Load(r io.Reader) (*Inventory, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode inventory: %w", err)
	}

	inv := New()
	for _, f := range doc.Flows {
		if err := inv.AddFlow(f.Database, f.Name, f.Unit); err != nil {
			return nil, err
		}
	}
	for _, a := range doc.Activities {
		if err := inv.AddActivity(a.Database, a.Name, a.Unit, a.Exchanges...); err != nil {
			return nil, err
		}
	}
	for _, m := range doc.Methods {
		if err := inv.AddMethod(m.Name, m.Unit, m.Factors); err != nil {
			return nil, err
		}
	}
	if err := inv.SetRoot(doc.Root); err != nil {
		return nil, err
	}
	return inv, nil
}

// LoadFile reads an inventory from a YAML file.
func LoadFile(path string) (*Inventory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}
