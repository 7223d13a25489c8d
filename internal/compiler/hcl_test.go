package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/desflat/internal/ir"
	"github.com/roach88/desflat/internal/syntax"
)

const sensorMotorHCL = `
template "Sensor" {
  uncontrollable = ["u_on", "u_off"]

  location "Off" {
    initial = true
    marked  = true
    edge {
      event  = "u_on"
      target = "On"
    }
  }
  location "On" {
    edge {
      event  = "u_off"
      target = "Off"
    }
  }
}

template "Motor" {
  param "u_trip" {
    kind = "uncontrollable"
  }
  controllable = ["c_on", "c_off"]

  location "Stopped" {
    initial = true
    marked  = true
    edge {
      event  = "c_on"
      target = "Running"
    }
  }
  location "Running" {
    edge {
      event  = "c_off"
      target = "Stopped"
    }
    edge {
      event  = "u_trip"
      target = "Stopped"
    }
  }
}

component "S1" {
  template = "Sensor"
}

component "M1" {
  template = "Motor"
  args     = ["S1.u_on"]
}

requirement {
  guard    = "M1.Stopped and not S1.On"
  disables = ["M1.c_on"]
}
`

func TestParseHCLBasic(t *testing.T) {
	m, err := ParseHCL([]byte(sensorMotorHCL), "model.hcl")
	require.NoError(t, err)

	require.Len(t, m.Templates, 2)
	motor := m.Templates[1]
	assert.Equal(t, "Motor", motor.Name)
	require.Len(t, motor.Params, 1)
	assert.Equal(t, ir.EventDecl{Name: "u_trip", Kind: ir.Uncontrollable, Pos: motor.Pos}, motor.Params[0])
	assert.Len(t, motor.Locations, 2)

	require.Len(t, m.Components, 2)
	m1 := m.Components[1]
	assert.Equal(t, "Motor", m1.Template)
	assert.Equal(t, []ir.EventRef{ir.Ref("S1", "u_on")}, m1.Args)
	assert.Equal(t, "model.hcl", m1.Pos.File)
	assert.Equal(t, 51, m1.Pos.Line)

	require.Len(t, m.Requirements, 1)
	assert.False(t, m.Requirements[0].Set)
	assert.Equal(t, []ir.EventRef{ir.Ref("M1", "c_on")}, m.Requirements[0].Disables)
}

func TestParseHCLMatchesTextFront(t *testing.T) {
	fromHCL, err := ParseHCL([]byte(sensorMotorHCL), "model.hcl")
	require.NoError(t, err)
	fromText, err := syntax.ParseString(sensorMotorSource)
	require.NoError(t, err)

	assert.Equal(t, flatten(t, fromText), flatten(t, fromHCL))
	assert.Empty(t, Validate(fromHCL))
}

func TestParseHCLAutomaton(t *testing.T) {
	m, err := ParseHCL([]byte(`
automaton "L1" {
  group        = "Signals"
  controllable = ["c_green", "c_red"]

  location "Red" {
    initial = true
    edge {
      event  = "c_green"
      target = "Green"
    }
  }
  location "Green" {
    edge {
      event = "c_red"
    }
  }
}

requirement {
  guard    = "L1.Green"
  disables = ["L1.c_green", "L1.c_red"]
}
`), "lamp.hcl")
	require.NoError(t, err)

	require.Len(t, m.Components, 1)
	c := m.Components[0]
	require.True(t, c.IsInline())
	assert.Equal(t, "Signals", c.Group)
	assert.Equal(t, "", c.Body.Location("Green").Edges[0].Target)
	assert.True(t, m.Requirements[0].Set, "more than one target is a set")
}

func TestParseHCLKeepsComponentOrder(t *testing.T) {
	m, err := ParseHCL([]byte(`
component "S1" {
  template = "Sensor"
}

automaton "Lamp" {
  controllable = ["c_on"]
  location "Off" {
    initial = true
    edge {
      event = "c_on"
    }
  }
}

component "M1" {
  template = "Motor"
  args     = ["S1.u_on"]
}

automaton "Horn" {
  uncontrollable = ["u_beep"]
  location "Quiet" {
    initial = true
  }
}
`), "order.hcl")
	require.NoError(t, err)

	var names []string
	for _, c := range m.Components {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"S1", "Lamp", "M1", "Horn"}, names)
	assert.False(t, m.Components[0].IsInline())
	assert.True(t, m.Components[1].IsInline())
	assert.Equal(t, []ir.EventRef{ir.Ref("S1", "u_on")}, m.Components[2].Args)
}

func TestParseHCLErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		msg  string
	}{
		{
			name: "syntax",
			src:  `component "M1" {`,
			msg:  "failed to parse HCL file",
		},
		{
			name: "unknown attribute",
			src: `component "M1" {
  template = "Motor"
  colour   = "red"
}`,
			msg: "Unsupported argument",
		},
		{
			name: "unknown block",
			src: `component "M1" {
  template = "Motor"
  wiring {}
}`,
			msg: "Unsupported block type",
		},
		{
			name: "missing template",
			src:  `component "M1" {}`,
			msg:  "Missing required argument",
		},
		{
			name: "bad param kind",
			src: `template "T" {
  param "p" {
    kind = "sometimes"
  }
  location "A" {
    initial = true
  }
}`,
			msg: "template T, param p",
		},
		{
			name: "bad guard",
			src: `requirement {
  guard    = "not"
  disables = ["M1.c_on"]
}`,
			msg: "requirement 0: guard",
		},
		{
			name: "bad argument",
			src: `component "M1" {
  template = "Motor"
  args     = ["a.b.c"]
}`,
			msg: "component M1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseHCL([]byte(tt.src), "bad.hcl")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestParseHCLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.hcl")
	require.NoError(t, os.WriteFile(path, []byte(sensorMotorHCL), 0o644))

	m, err := ParseHCLFile(path)
	require.NoError(t, err)
	assert.Len(t, m.Components, 2)
	assert.Equal(t, path, m.Components[0].Pos.File)

	_, err = ParseHCLFile(filepath.Join(t.TempDir(), "missing.hcl"))
	require.Error(t, err)
}
