package config

import (
	"os"
	"sort"
	"strconv"
)

// EnvPrefix starts every environment variable read by ApplyEnv.
const EnvPrefix = "PROXYSTORE_"

// envSetters maps environment variables to the setting they override.
var envSetters = map[string]func(c *Config, v string) error{
	EnvPrefix + "LOG_LEVEL": func(c *Config, v string) error {
		c.Log.Level = v
		return nil
	},
	EnvPrefix + "MAX_CASCADE":   intSetter(func(c *Config) *int { return &c.Store.MaxCascade }),
	EnvPrefix + "ASYNC_WORKERS": intSetter(func(c *Config) *int { return &c.Bus.AsyncWorkers }),
	EnvPrefix + "QUEUE_SIZE":    intSetter(func(c *Config) *int { return &c.Bus.QueueSize }),
	EnvPrefix + "ASYNC_EVENTS": func(c *Config, v string) error {
		async, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		c.Bus.AsyncEvents = async
		return nil
	},
	EnvPrefix + "WATCH_DEBOUNCE": func(c *Config, v string) error {
		return c.Watch.Debounce.UnmarshalText([]byte(v))
	},
	EnvPrefix + "SCRIPT_TIMEOUT": func(c *Config, v string) error {
		return c.Script.Timeout.UnmarshalText([]byte(v))
	},
	EnvPrefix + "PRETTY": func(c *Config, v string) error {
		pretty, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		if pretty {
			c.Output.Format = "pretty"
		} else {
			c.Output.Format = "json"
		}
		return nil
	},
	EnvPrefix + "FORMAT": func(c *Config, v string) error {
		c.Output.Format = v
		return nil
	},
	EnvPrefix + "COLOR": func(c *Config, v string) error {
		c.Output.Color = v
		return nil
	},
}

func intSetter(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

// EnvVars lists the recognized environment variables.
func EnvVars() []string {
	names := make([]string, 0, len(envSetters))
	for name := range envSetters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyEnv overrides settings from the process environment.
func (c *Config) ApplyEnv() error {
	return c.ApplyEnvFunc(os.LookupEnv)
}

// ApplyEnvFunc overrides settings from lookup. Variables are applied in
// name order; the first unparsable one stops the pass.
func (c *Config) ApplyEnvFunc(lookup func(string) (string, bool)) error {
	for _, name := range EnvVars() {
		v, ok := lookup(name)
		if !ok {
			continue
		}
		if err := envSetters[name](c, v); err != nil {
			return &EnvError{Var: name, Value: v, Err: err}
		}
	}
	return nil
}
