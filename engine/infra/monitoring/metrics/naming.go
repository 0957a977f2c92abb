package metrics

import "strings"

// Prefix is prepended to every metric exported by the service.
const Prefix = "docqa_"

// MetricName adds the service prefix when missing.
func MetricName(name string) string {
	if strings.HasPrefix(name, Prefix) {
		return name
	}
	return Prefix + name
}

// MetricNameWithSubsystem builds docqa_<subsystem>_<name>.
func MetricNameWithSubsystem(subsystem, name string) string {
	if strings.HasPrefix(name, Prefix) {
		return name
	}
	subsystem = strings.Trim(subsystem, "_")
	switch {
	case subsystem == "":
		return MetricName(name)
	case name == "":
		return Prefix + subsystem
	default:
		return Prefix + subsystem + "_" + name
	}
}
