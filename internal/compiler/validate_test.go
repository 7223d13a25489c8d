package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/desflat/internal/ir"
	"github.com/roach88/desflat/internal/syntax"
)

const sensorMotorSource = `
plant def Sensor():
  uncontrollable u_on, u_off;
  location Off: initial; marked;
    edge u_on goto On;
  location On:
    edge u_off goto Off;
end
plant def Motor(uncontrollable u_trip):
  controllable c_on, c_off;
  location Stopped: initial; marked;
    edge c_on goto Running;
  location Running:
    edge c_off goto Stopped;
    edge u_trip goto Stopped;
end
S1: Sensor();
M1: Motor(S1.u_on);
requirement M1.Stopped and not S1.On disables M1.c_on;
`

func sensorMotor(t *testing.T) *ir.Model {
	t.Helper()
	m, err := syntax.ParseString(sensorMotorSource)
	require.NoError(t, err)
	return m
}

func codes(errs []ValidationError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Code)
	}
	return out
}

// =============================================================================
// Model Validation Tests
// =============================================================================

func TestValidateModelValid(t *testing.T) {
	errs := Validate(sensorMotor(t))
	assert.Empty(t, errs, "valid model should have no errors")
}

func TestValidateModelValue(t *testing.T) {
	errs := Validate(*sensorMotor(t))
	assert.Empty(t, errs, "model value is accepted like a pointer")
}

func TestValidateModelErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m *ir.Model)
		want   []string
	}{
		{
			name: "duplicate template",
			mutate: func(m *ir.Model) {
				m.Templates = append(m.Templates, m.Templates[0])
			},
			want: []string{ErrDuplicateName},
		},
		{
			name: "reserved instance name",
			mutate: func(m *ir.Model) {
				m.Components = append(m.Components, ir.Component{Name: "end", Template: "Sensor"})
			},
			want: []string{ErrInvalidName},
		},
		{
			name: "no initial location",
			mutate: func(m *ir.Model) {
				m.Templates[0].Locations[0].Initial = false
			},
			want: []string{ErrInitialLocation},
		},
		{
			name: "unknown edge target",
			mutate: func(m *ir.Model) {
				m.Templates[0].Locations[0].Edges[0].Target = "Nowhere"
			},
			want: []string{ErrUnknownTarget},
		},
		{
			name: "undeclared event",
			mutate: func(m *ir.Model) {
				m.Templates[0].Locations[0].Edges[0].Event = ir.Bare("u_x")
			},
			want: []string{ErrUndeclaredEvent},
		},
		{
			name: "dotted event in template",
			mutate: func(m *ir.Model) {
				m.Templates[0].Locations[0].Edges[0].Event = ir.Ref("S1", "u_on")
			},
			want: []string{ErrForeignEventRef},
		},
		{
			name: "template without locations",
			mutate: func(m *ir.Model) {
				m.Templates[0].Locations = nil
			},
			want: []string{ErrEmptyTemplate},
		},
		{
			name: "inline parameters",
			mutate: func(m *ir.Model) {
				m.Components = append(m.Components, ir.Component{
					Name: "I",
					Body: &ir.Template{
						Name:      "I",
						Params:    []ir.EventDecl{{Name: "p", Kind: ir.Uncontrollable}},
						Locations: []ir.Location{{Name: "A", Initial: true}},
					},
				})
			},
			want: []string{ErrInlineParameters},
		},
		{
			name: "inline edge to unknown instance",
			mutate: func(m *ir.Model) {
				m.Components = append(m.Components, ir.Component{
					Name: "I",
					Body: &ir.Template{
						Name: "I",
						Locations: []ir.Location{{
							Name:    "A",
							Initial: true,
							Edges:   []ir.Edge{{Event: ir.Ref("Z", "u")}},
						}},
					},
				})
			},
			want: []string{ErrUnknownInstance},
		},
		{
			name: "unknown template",
			mutate: func(m *ir.Model) {
				m.Components[1].Template = "Pump"
			},
			want: []string{ErrUnknownTemplate},
		},
		{
			name: "arity mismatch",
			mutate: func(m *ir.Model) {
				m.Components[1].Args = nil
			},
			want: []string{ErrArity},
		},
		{
			name: "forward reference",
			mutate: func(m *ir.Model) {
				m.Components[0], m.Components[1] = m.Components[1], m.Components[0]
			},
			want: []string{ErrForwardReference},
		},
		{
			name: "controllable parameter bound to shared event",
			mutate: func(m *ir.Model) {
				m.Templates[1].Params[0].Kind = ir.Controllable
			},
			want: []string{ErrControllableBorrow},
		},
		{
			name: "component without template or body",
			mutate: func(m *ir.Model) {
				m.Components = append(m.Components, ir.Component{Name: "X"})
			},
			want: []string{ErrComponentShape},
		},
		{
			name: "instantiation cycle",
			mutate: func(m *ir.Model) {
				m.Components = append(m.Components,
					ir.Component{Name: "A", Template: "Motor", Args: []ir.EventRef{ir.Ref("B", "c_on")}},
					ir.Component{Name: "B", Template: "Motor", Args: []ir.EventRef{ir.Ref("A", "c_on")}},
				)
			},
			want: []string{ErrForwardReference, ErrDependencyCycle},
		},
		{
			name: "missing guard",
			mutate: func(m *ir.Model) {
				m.Requirements[0].Guard = nil
			},
			want: []string{ErrMissingGuard},
		},
		{
			name: "no targets",
			mutate: func(m *ir.Model) {
				m.Requirements[0].Disables = nil
			},
			want: []string{ErrNoTargets},
		},
		{
			name: "bare target",
			mutate: func(m *ir.Model) {
				m.Requirements[0].Disables = []ir.EventRef{ir.Bare("c_on")}
			},
			want: []string{ErrBareReference},
		},
		{
			name: "guard names unknown instance",
			mutate: func(m *ir.Model) {
				m.Requirements[0].Guard = ir.Atom("Q", "On")
			},
			want: []string{ErrUnknownInstance},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := sensorMotor(t)
			tt.mutate(m)
			assert.Equal(t, tt.want, codes(Validate(m)))
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	m := sensorMotor(t)
	m.Templates[0].Locations[0].Initial = false
	m.Components[1].Args = nil
	m.Requirements[0].Disables = nil

	errs := Validate(m)
	assert.Equal(t, []string{ErrInitialLocation, ErrArity, ErrNoTargets}, codes(errs))
}

func TestValidateErrorFields(t *testing.T) {
	m := sensorMotor(t)
	m.Components[0], m.Components[1] = m.Components[1], m.Components[0]

	errs := Validate(m)
	require.Len(t, errs, 1)
	assert.Equal(t, "components[0].args[0]", errs[0].Field)
	assert.Equal(t, 18, errs[0].Line, "line of the M1 instantiation")
	assert.Contains(t, errs[0].Message, "M1 references instance S1 before it is declared")
}

func TestValidateTemplate(t *testing.T) {
	m := sensorMotor(t)
	assert.Empty(t, Validate(&m.Templates[0]))

	tmpl := m.Templates[1]
	tmpl.Locations = append(tmpl.Locations, ir.Location{Name: "Stopped"})
	errs := Validate(tmpl)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrDuplicateName, errs[0].Code)
	assert.Equal(t, "template.Motor.locations[2].name", errs[0].Field)
}

func TestValidateUnsupportedType(t *testing.T) {
	errs := Validate("not a model")
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnsupportedIRType, errs[0].Code)
	assert.Contains(t, errs[0].Message, "string")
}

func TestValidationErrorString(t *testing.T) {
	withLine := ValidationError{Field: "components[1].name", Message: "bad", Code: ErrInvalidName, Line: 3}
	assert.Equal(t, "[E101] line 3: components[1].name: bad", withLine.Error())

	noLine := ValidationError{Field: "model", Message: "bad", Code: ErrUnsupportedIRType}
	assert.Equal(t, "[E100] model: bad", noLine.Error())
}
