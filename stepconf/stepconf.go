// Package stepconf fills a configuration struct from environment variables
// named by `env` struct tags and validates the values.
//
// The tag format is `env:"KEY[,VALIDATION]"`, where VALIDATION is one of
// required, file, dir or opt[a,b,'c,d'].
package stepconf

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/bitrise-io/go-utils/colorstring"
	"github.com/bitrise-io/go-utils/v2/env"
)

// ErrNotStructPtr indicates a type is not a pointer to a struct.
var ErrNotStructPtr = errors.New("must be a pointer to a struct")

// EnvGetter looks up the value of an environment variable.
type EnvGetter interface {
	Get(key string) string
}

// Secret variables are not shown in the printed output.
type Secret string

const secret = "*****"

var optionsPattern = regexp.MustCompile(`^opt\[.*\]$`)

// String implements fmt.Stringer.String.
// When a Secret is printed, it's masking the underlying string with asterisks.
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return secret
}

// defaultsGetter falls back to a default value for unset or empty keys.
type defaultsGetter struct {
	envGetter EnvGetter
	defaults  map[string]string
}

// WithDefaults returns an EnvGetter that returns defaults[key] for the keys
// envGetter has no value for.
func WithDefaults(envGetter EnvGetter, defaults map[string]string) EnvGetter {
	return defaultsGetter{envGetter: envGetter, defaults: defaults}
}

func (g defaultsGetter) Get(key string) string {
	if value := g.envGetter.Get(key); value != "" {
		return value
	}
	return g.defaults[key]
}

// Parse populates a struct with the retrieved values from environment variables
// described by struct tags and applies the defined validations.
func Parse(conf interface{}) error {
	return parse(conf, env.NewRepository())
}

func parse(conf interface{}, envGetter EnvGetter) error {
	c := reflect.ValueOf(conf)
	if c.Kind() != reflect.Ptr {
		return ErrNotStructPtr
	}
	c = c.Elem()
	if c.Kind() != reflect.Struct {
		return ErrNotStructPtr
	}
	t := c.Type()

	var errs []string
	for i := 0; i < t.NumField(); i++ {
		tag, ok := t.Field(i).Tag.Lookup("env")
		if !ok {
			continue
		}
		key, constraint := parseTag(tag)
		value := envGetter.Get(key)

		if err := setField(c.Field(i), value, constraint); err != nil {
			errs = append(errs, fmt.Sprintf("- %s: %s", t.Field(i).Name, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to parse config:\n%s", strings.Join(errs, "\n"))
	}

	return nil
}

func parseTag(tag string) (string, string) {
	if strings.Contains(tag, ",") {
		parts := strings.SplitN(tag, ",", 2)
		return parts[0], parts[1]
	}
	return tag, ""
}

func setField(field reflect.Value, value, constraint string) error {
	if err := validate(value, constraint); err != nil {
		return err
	}

	if value == "" {
		return nil
	}

	if field.Kind() == reflect.Ptr {
		field.Set(reflect.New(field.Type().Elem()))
		field = field.Elem()
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(strings.ToLower(value))
		if err != nil {
			if !strings.EqualFold(value, "yes") && !strings.EqualFold(value, "no") {
				return errors.New("can't convert to bool")
			}
			b = strings.EqualFold(value, "yes")
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return errors.New("can't convert to int")
		}
		field.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return errors.New("can't convert to float")
		}
		field.SetFloat(f)
	case reflect.Slice:
		field.Set(reflect.ValueOf(splitList(value)))
	default:
		return fmt.Errorf("type is not supported (%s)", field.Kind())
	}
	return nil
}

// splitList splits a `|` or newline separated list, dropping empty items.
func splitList(value string) []string {
	var items []string
	for _, line := range strings.Split(value, "\n") {
		for _, item := range strings.Split(line, "|") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
	}
	return items
}

func validate(value, constraint string) error {
	switch {
	case constraint == "":
		return nil
	case constraint == "required":
		if value == "" {
			return errors.New("required variable is not present")
		}
	case constraint == "file" || constraint == "dir":
		return checkPath(value, constraint == "dir")
	case optionsPattern.MatchString(constraint):
		if !contains(value, constraint) {
			return fmt.Errorf("value is not in value options (%s)", constraint)
		}
	default:
		return fmt.Errorf("invalid constraint (%s)", constraint)
	}
	return nil
}

func checkPath(path string, dir bool) error {
	file, err := os.Stat(path)
	if err != nil {
		return os.ErrNotExist
	}
	if dir && !file.IsDir() {
		return errors.New("not a directory")
	}
	return nil
}

// contains reports whether s is one of the options of opt[item1,item2,...].
// Options containing a comma are single quoted: opt[item1,'item2,item3'].
func contains(s, opt string) bool {
	opt = strings.TrimSuffix(strings.TrimPrefix(opt, "opt["), "]")
	var valueOpts []string
	if strings.Contains(opt, "'") {
		// "a,b,'c,d',e" splits into "a,b,", "c,d" and ",e".
		for _, s := range strings.Split(opt, "'") {
			switch {
			case s == "," || s == "":
			case !strings.HasPrefix(s, ",") && !strings.HasSuffix(s, ","):
				// quoted option
				valueOpts = append(valueOpts, s)
			default:
				valueOpts = append(valueOpts, strings.Split(strings.Trim(s, ","), ",")...)
			}
		}
	} else {
		valueOpts = strings.Split(opt, ",")
	}
	for _, valOpt := range valueOpts {
		if valOpt == s {
			return true
		}
	}
	return false
}

// Print writes the struct name in blue, then one "- key: value" line per field.
// Secrets are masked, zero values are shown as <unset>.
func Print(config interface{}) {
	fmt.Print(toString(config))
}

func valueString(v reflect.Value) string {
	if v.Kind() != reflect.Ptr {
		return fmt.Sprintf("%v", v.Interface())
	}

	if !v.IsNil() {
		return fmt.Sprintf("%v", v.Elem().Interface())
	}

	return ""
}

func toString(config interface{}) string {
	v := reflect.ValueOf(config)
	t := reflect.TypeOf(config)

	if v.Kind() == reflect.Ptr {
		v = v.Elem()
		t = t.Elem()
	}

	name := t.Name()
	if name != "" {
		name = strings.ToUpper(name[:1]) + name[1:]
	}
	str := fmt.Sprint(colorstring.Bluef("%s:\n", name))
	for i := 0; i < t.NumField(); i++ {
		var key, _ = parseTag(t.Field(i).Tag.Get("env"))
		if key == "" {
			key = t.Field(i).Name
		}

		value := valueString(v.Field(i))
		if v.Field(i).IsZero() {
			value = "<unset>"
		}

		str += fmt.Sprintf("- %s: %s\n", key, value)
	}

	return str
}
