package nodes

import (
	"fmt"
	"strconv"
	"strings"

	"comfynodes/helpers"
	"comfynodes/logger"
)

// VariableType selects how a variable's text value is converted.
type VariableType string

const (
	TypeString  VariableType = "STRING"
	TypeInteger VariableType = "INTEGER"
	TypeFloat   VariableType = "FLOAT"
)

// Variable is a named value passed between nodes.
type Variable struct {
	Name  string       `json:"name"`
	Value any          `json:"value"`
	Type  VariableType `json:"type"`
}

// NewVariable converts value according to typ. A value that does not parse
// is kept as its original string and a warning is logged.
func NewVariable(name, value string, typ VariableType) Variable {
	if typ == "" {
		typ = TypeString
	}

	v := Variable{Name: name, Value: value, Type: typ}
	log := logger.Node("variable")

	switch typ {
	case TypeInteger:
		if i, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			v.Value = i
		} else {
			log.Warn("Could not convert value to integer, using as string", "name", name, "value", value)
		}
	case TypeFloat:
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			v.Value = f
		} else {
			log.Warn("Could not convert value to float, using as string", "name", name, "value", value)
		}
	}

	log.Debug("Created variable", "name", name, "value", v.Text(), "type", typ)
	return v
}

// Placeholder is the token templates use for this variable, e.g. $PLANET$.
func (v Variable) Placeholder() string {
	return "$" + v.Name + "$"
}

// Text renders the value the way it is substituted into templates.
func (v Variable) Text() string {
	switch x := v.Value.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return helpers.FormatFloat(x)
	case float32:
		return helpers.FormatFloat(float64(x))
	case bool:
		if x {
			return "True"
		}
		return "False"
	default:
		return fmt.Sprint(x)
	}
}
