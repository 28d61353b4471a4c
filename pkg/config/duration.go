package config

import (
	"encoding/json"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// Duration wraps around time.Duration to allow parsing from and to JSON
type Duration time.Duration

// String implements fmt.Stringer
func (d Duration) String() string { return time.Duration(d).String() }

// MarshalJSON implements json marshaling
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements unmarshal from json
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(tmp)
		return nil
	default:
		return errors.New("invalid duration")
	}
}

var durationType = reflect.TypeOf(Duration(0))

// durationHook decodes strings such as "2s" and plain nanosecond numbers
// into a Duration.
func durationHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != durationType {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid duration %q", v)
			}
			return Duration(d), nil
		case float64:
			return Duration(time.Duration(v)), nil
		case int:
			return Duration(time.Duration(v)), nil
		case int64:
			return Duration(time.Duration(v)), nil
		case time.Duration:
			return Duration(v), nil
		}
		return data, nil
	}
}
