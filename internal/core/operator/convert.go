package operator

// PluginDescriptor is the backend description of an operator plugin
type PluginDescriptor struct {
	PluginID    string                        `json:"pluginId" yaml:"pluginId" validate:"required"`
	PluginType  string                        `json:"pluginType" yaml:"pluginType"`
	Title       string                        `json:"title" yaml:"title" validate:"required"`
	Description string                        `json:"description,omitempty" yaml:"description,omitempty"`
	Categories  []string                      `json:"categories,omitempty" yaml:"categories,omitempty"`
	Properties  map[string]PropertyDescriptor `json:"properties" yaml:"properties" validate:"dive"`
	Required    []string                      `json:"required,omitempty" yaml:"required,omitempty"`
}

// PropertyDescriptor is the raw backend schema of a single plugin parameter
type PropertyDescriptor struct {
	Title          string          `json:"title" yaml:"title"`
	Description    string          `json:"description,omitempty" yaml:"description,omitempty"`
	ParameterType  string          `json:"parameterType" yaml:"parameterType" validate:"required"`
	Advanced       bool            `json:"advanced" yaml:"advanced"`
	Value          string          `json:"value,omitempty" yaml:"value,omitempty"`
	AutoCompletion *AutoCompletion `json:"autoCompletion,omitempty" yaml:"autoCompletion,omitempty"`
}

// ExtraParameterBuilder adds parameters to an operator that the descriptor
// does not declare. It may return nil.
type ExtraParameterBuilder func(d PluginDescriptor) map[string]ParameterSpecification

// ConvertRuleOperator converts a plugin descriptor into a rule operator.
// It never fails: missing properties yield an operator without parameters and
// unknown parameter types degrade to text fields.
func ConvertRuleOperator(d PluginDescriptor, extra ExtraParameterBuilder) RuleOperator {
	required := make(map[string]bool, len(d.Required))
	for _, id := range d.Required {
		required[id] = true
	}

	params := make(map[string]ParameterSpecification, len(d.Properties))
	for id, prop := range d.Properties {
		params[id] = ParameterSpecification{
			Label:          prop.Title,
			Description:    prop.Description,
			Type:           ConvertParameterType(prop.ParameterType),
			Required:       required[id],
			Advanced:       prop.Advanced,
			DefaultValue:   prop.Value,
			AutoCompletion: prop.AutoCompletion,
		}
	}
	if extra != nil {
		for id, spec := range extra(d) {
			params[id] = spec
		}
	}

	pluginType := PluginTypeUnknown
	if d.PluginType != "" {
		pluginType = ParsePluginType(d.PluginType)
	}

	return RuleOperator{
		PluginType:             pluginType,
		PluginID:               d.PluginID,
		Label:                  d.Title,
		Description:            d.Description,
		Categories:             append([]string(nil), d.Categories...),
		ParameterSpecification: params,
		PortSpecification:      PortSpecificationFor(pluginType),
		Tags:                   TagsFor(pluginType),
	}
}

// ConvertParameterType maps a backend parameter type onto a UI parameter kind.
func ConvertParameterType(parameterType string) ParameterType {
	switch parameterType {
	case "multiline string", "stringmap", "traversable[string]":
		return ParameterTypeTextArea
	case "int", "Long", "option[int]":
		return ParameterTypeInt
	case "boolean":
		return ParameterTypeBoolean
	case "double":
		return ParameterTypeFloat
	case "restriction":
		return ParameterTypeCode
	case "password":
		return ParameterTypePassword
	case "resource":
		return ParameterTypeResource
	default:
		// duration, char, uri, identifier, enumeration, project, task and
		// anything unknown are edited as plain text
		return ParameterTypeTextField
	}
}

// TagsFor returns the display tags of an operator type.
func TagsFor(t PluginType) []string {
	switch t {
	case PluginTypeTransform:
		return []string{"Transform"}
	case PluginTypeComparison:
		return []string{"Comparison"}
	case PluginTypeAggregation:
		return []string{"Aggregation"}
	default:
		return []string{}
	}
}

// PortSpecificationFor returns the input port cardinality of an operator type.
func PortSpecificationFor(t PluginType) PortSpecification {
	switch t {
	case PluginTypePathInput:
		return FixedPorts(0)
	case PluginTypeComparison:
		return FixedPorts(2)
	default:
		return AtLeastPorts(1)
	}
}

// InputPathOperator builds one of the path input operators used in linking
// and transform rules.
func InputPathOperator(pluginID, label, description string, validate ParameterValidator) RuleOperator {
	path := NewParameterSpecification("Path")
	path.Type = ParameterTypePathInput
	path.Description = "The source input path as Silk path expression."
	path.CustomValidation = validate
	return RuleOperator{
		PluginType:             PluginTypePathInput,
		PluginID:               pluginID,
		Label:                  label,
		Description:            description,
		Categories:             []string{"Input"},
		ParameterSpecification: map[string]ParameterSpecification{"path": path},
		PortSpecification:      FixedPorts(0),
		Tags:                   []string{},
	}
}

// SourcePathOperator returns the built-in source path input operator.
func SourcePathOperator() RuleOperator {
	return InputPathOperator(SourcePathInputID, "Source path", "Reads a value from the source entity.", nil)
}

// TargetPathOperator returns the built-in target path input operator.
func TargetPathOperator() RuleOperator {
	return InputPathOperator(TargetPathInputID, "Target path", "Reads a value from the target entity.", nil)
}
