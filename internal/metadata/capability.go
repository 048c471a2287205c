package metadata

// Operator is a comparison understood by the filter engine.
type Operator string

const (
	OpEqual          Operator = "="
	OpNotEqual       Operator = "!="
	OpLess           Operator = "<"
	OpLessOrEqual    Operator = "<="
	OpGreater        Operator = ">"
	OpGreaterOrEqual Operator = ">="
	OpContains       Operator = "~"
	OpNotContains    Operator = "!~"
	OpStartsWith     Operator = "startswith"
	OpNotStartsWith  Operator = "not startswith"
	OpEndsWith       Operator = "endswith"
	OpNotEndsWith    Operator = "not endswith"
	OpIn             Operator = "in"
	OpNotIn          Operator = "not in"
)

// Negated reports whether op is the negative form of another operator.
func (op Operator) Negated() bool {
	switch op {
	case OpNotEqual, OpNotContains, OpNotStartsWith, OpNotEndsWith, OpNotIn:
		return true
	}
	return false
}

// Positive returns the non-negated counterpart of op.
func (op Operator) Positive() Operator {
	switch op {
	case OpNotEqual:
		return OpEqual
	case OpNotContains:
		return OpContains
	case OpNotStartsWith:
		return OpStartsWith
	case OpNotEndsWith:
		return OpEndsWith
	case OpNotIn:
		return OpIn
	}
	return op
}

// Widget names the form input used for a field.
type Widget string

const (
	WidgetText     Widget = "text"
	WidgetTextarea Widget = "textarea"
	WidgetEmail    Widget = "email"
	WidgetURL      Widget = "url"
	WidgetNumber   Widget = "number"
	WidgetCheckbox Widget = "checkbox"
	WidgetDate     Widget = "date"
	WidgetDateTime Widget = "datetime-local"
	WidgetSelect   Widget = "select"
	WidgetFile     Widget = "file"
	WidgetNone     Widget = ""
)

// Capability lists what the engine can do with a field.
type Capability struct {
	Operators       []Operator
	DefaultOperator Operator
	Widget          Widget
	Sortable        bool
	Filterable      bool
	Searchable      bool
}

// Allows reports whether op is permitted.
func (c Capability) Allows(op Operator) bool {
	for _, o := range c.Operators {
		if o == op {
			return true
		}
	}
	return false
}

var (
	textOperators = []Operator{
		OpEqual, OpNotEqual, OpLess, OpLessOrEqual, OpGreater, OpGreaterOrEqual,
		OpContains, OpNotContains, OpStartsWith, OpNotStartsWith, OpEndsWith, OpNotEndsWith,
		OpIn, OpNotIn,
	}
	orderedOperators = []Operator{
		OpEqual, OpNotEqual, OpLess, OpLessOrEqual, OpGreater, OpGreaterOrEqual, OpIn, OpNotIn,
	}
	choiceOperators = []Operator{OpEqual, OpNotEqual, OpIn, OpNotIn}
	boolOperators   = []Operator{OpEqual, OpNotEqual}
)

var scalarCapabilities = map[ScalarType]Capability{
	TypeString:   {Operators: textOperators, DefaultOperator: OpContains, Widget: WidgetText, Sortable: true, Filterable: true, Searchable: true},
	TypeText:     {Operators: textOperators, DefaultOperator: OpContains, Widget: WidgetTextarea, Sortable: true, Filterable: true, Searchable: true},
	TypeEmail:    {Operators: textOperators, DefaultOperator: OpContains, Widget: WidgetEmail, Sortable: true, Filterable: true, Searchable: true},
	TypeURL:      {Operators: textOperators, DefaultOperator: OpContains, Widget: WidgetURL, Sortable: true, Filterable: true, Searchable: true},
	TypeEnum:     {Operators: choiceOperators, DefaultOperator: OpEqual, Widget: WidgetSelect, Sortable: true, Filterable: true},
	TypeInteger:  {Operators: orderedOperators, DefaultOperator: OpEqual, Widget: WidgetNumber, Sortable: true, Filterable: true},
	TypeDecimal:  {Operators: orderedOperators, DefaultOperator: OpEqual, Widget: WidgetNumber, Sortable: true, Filterable: true},
	TypeDate:     {Operators: orderedOperators, DefaultOperator: OpEqual, Widget: WidgetDate, Sortable: true, Filterable: true},
	TypeDateTime: {Operators: orderedOperators, DefaultOperator: OpEqual, Widget: WidgetDateTime, Sortable: true, Filterable: true},
	TypeBoolean:  {Operators: boolOperators, DefaultOperator: OpEqual, Widget: WidgetCheckbox, Sortable: true, Filterable: true},
}

// CapabilityOf returns the capability entry for f.
func CapabilityOf(f *Field) Capability {
	switch f.Kind {
	case KindScalar:
		if c, ok := scalarCapabilities[f.Type]; ok {
			return c
		}
		return scalarCapabilities[TypeString]
	case KindRelationToOne:
		return Capability{Operators: choiceOperators, DefaultOperator: OpEqual, Widget: WidgetSelect, Sortable: true, Filterable: true}
	case KindRelationToMany:
		// traversable in paths but never compared directly
		return Capability{Widget: WidgetNone}
	case KindFile:
		return Capability{Widget: WidgetFile}
	case KindComputed:
		return Capability{Widget: WidgetNone}
	}
	return Capability{}
}
