package loopinfo

import (
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/aladdin/dddg"
	"github.com/sarchlab/aladdin/source"
)

// yamlLoopIteration is the on-disk shape of a LoopIteration, following
// core/program.go's convention of a separate yaml-tagged struct rather
// than tagging the live type directly -- LoopIteration's Parent/Children
// pointers aren't something yaml.Marshal should walk on its own.
type yamlLoopIteration struct {
	Root     bool    `yaml:"root,omitempty"`
	Function int     `yaml:"function,omitempty"`
	Label    int     `yaml:"label,omitempty"`
	Factor   float64 `yaml:"factor"`

	StartNode int `yaml:"start_node"`
	EndNode   int `yaml:"end_node"`

	StartCycle   int `yaml:"start_cycle"`
	EndCycle     int `yaml:"end_cycle"`
	ElapsedCycle int `yaml:"elapsed_cycle"`

	Upsampled bool `yaml:"upsampled"`

	Children []yamlLoopIteration `yaml:"children,omitempty"`
}

func toYAML(n *LoopIteration) yamlLoopIteration {
	y := yamlLoopIteration{
		Root:         n.Root,
		Function:     int(n.Label.Function),
		Label:        int(n.Label.Label),
		Factor:       n.Factor,
		StartNode:    int(n.StartNode),
		EndNode:      int(n.EndNode),
		StartCycle:   n.StartCycle,
		EndCycle:     n.EndCycle,
		ElapsedCycle: n.ElapsedCycle,
		Upsampled:    n.Upsampled,
	}
	for _, c := range n.Children {
		y.Children = append(y.Children, toYAML(c))
	}
	return y
}

func fromYAML(y yamlLoopIteration, parent *LoopIteration) *LoopIteration {
	n := &LoopIteration{
		Root:         y.Root,
		Label:        source.UniqueLabel{Function: source.FunctionID(y.Function), Label: source.LabelID(y.Label)},
		Factor:       y.Factor,
		StartNode:    dddg.NodeID(y.StartNode),
		EndNode:      dddg.NodeID(y.EndNode),
		StartCycle:   y.StartCycle,
		EndCycle:     y.EndCycle,
		ElapsedCycle: y.ElapsedCycle,
		Upsampled:    y.Upsampled,
		Parent:       parent,
	}
	for _, c := range y.Children {
		n.Children = append(n.Children, fromYAML(c, n))
	}
	return n
}

// MarshalYAML renders the tree rooted at root as YAML, for the round-trip
// property test of spec.md §8 ("write to a canonical form, reparse, get
// an isomorphic graph") applied to the loop tree rather than the DDDG.
func MarshalYAML(root *LoopIteration) ([]byte, error) {
	return yaml.Marshal(toYAML(root))
}

// UnmarshalYAML parses data back into a LoopIteration tree with Parent
// pointers restored.
func UnmarshalYAML(data []byte) (*LoopIteration, error) {
	var y yamlLoopIteration
	if err := yaml.Unmarshal(data, &y); err != nil {
		return nil, err
	}
	return fromYAML(y, nil), nil
}
