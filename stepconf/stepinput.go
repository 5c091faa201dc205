package stepconf

// InputParser fills an `env` tagged struct.
type InputParser interface {
	Parse(input interface{}) error
}

type envInputParser struct {
	envGetter EnvGetter
}

// NewInputParser returns an InputParser reading the values from envGetter.
func NewInputParser(envGetter EnvGetter) InputParser {
	return envInputParser{envGetter: envGetter}
}

// NewInputParserWithDefaults returns an InputParser that uses defaults for the
// inputs envGetter has no value for.
func NewInputParserWithDefaults(envGetter EnvGetter, defaults map[string]string) InputParser {
	return envInputParser{envGetter: WithDefaults(envGetter, defaults)}
}

// Parse ...
func (p envInputParser) Parse(input interface{}) error {
	return parse(input, p.envGetter)
}
