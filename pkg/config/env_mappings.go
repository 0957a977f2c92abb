package config

import (
	"reflect"
	"sync"
)

// EnvMapping binds an environment variable to a koanf path.
type EnvMapping struct {
	EnvVar     string
	ConfigPath string
	Sensitive  bool
}

type envIndex struct {
	all    []EnvMapping
	byEnv  map[string]EnvMapping
	byPath map[string]EnvMapping
}

var loadEnvIndex = sync.OnceValue(func() *envIndex {
	idx := &envIndex{
		byEnv:  make(map[string]EnvMapping),
		byPath: make(map[string]EnvMapping),
	}
	walkEnvTags(reflect.TypeOf(Config{}), "", func(m EnvMapping) {
		idx.all = append(idx.all, m)
		idx.byEnv[m.EnvVar] = m
		idx.byPath[m.ConfigPath] = m
	})
	return idx
})

var sensitiveType = reflect.TypeOf(SensitiveString(""))

// walkEnvTags visits every field carrying both koanf and env tags.
func walkEnvTags(t reflect.Type, prefix string, visit func(EnvMapping)) {
	for i := range t.NumField() {
		field := t.Field(i)
		key := field.Tag.Get("koanf")
		if !field.IsExported() || key == "" || key == "-" {
			continue
		}
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if env := field.Tag.Get("env"); env != "" && env != "-" {
			visit(EnvMapping{
				EnvVar:     env,
				ConfigPath: path,
				Sensitive:  field.Type == sensitiveType || field.Tag.Get("sensitive") == "true",
			})
		}
		if field.Type.Kind() == reflect.Struct && field.Type.PkgPath() != "time" {
			walkEnvTags(field.Type, path, visit)
		}
	}
}

// GenerateEnvMappings lists every environment binding of Config.
func GenerateEnvMappings() []EnvMapping {
	return loadEnvIndex().all
}

// GenerateEnvToConfigMap maps environment variable names to koanf paths.
func GenerateEnvToConfigMap() map[string]string {
	out := make(map[string]string, len(loadEnvIndex().byEnv))
	for env, m := range loadEnvIndex().byEnv {
		out[env] = m.ConfigPath
	}
	return out
}

// GetEnvVarForConfigPath returns "" when the path has no env binding.
func GetEnvVarForConfigPath(configPath string) string {
	return loadEnvIndex().byPath[configPath].EnvVar
}

// IsSensitiveConfigPath reports whether the value at configPath is a secret.
func IsSensitiveConfigPath(configPath string) bool {
	return loadEnvIndex().byPath[configPath].Sensitive
}
