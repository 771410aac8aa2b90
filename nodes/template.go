package nodes

import (
	"strings"

	"comfynodes/logger"
)

// Interpolate replaces every occurrence of v's placeholder in template.
func Interpolate(v Variable, template string) string {
	value := v.Text()
	result := strings.ReplaceAll(template, v.Placeholder(), value)

	logger.Node("template_interpolation").Debug("Interpolated template",
		"template", template, "variable", v.Name, "value", value, "result", result)

	return result
}

// InterpolateAll applies each variable in order, as a chain of
// interpolation nodes would.
func InterpolateAll(vars []Variable, template string) string {
	for _, v := range vars {
		template = Interpolate(v, template)
	}
	return template
}
