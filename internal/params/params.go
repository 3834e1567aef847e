// Package params normalizes user-supplied scan parameters. Normalization is
// pure and total: unrecognized or invalid values fall back to documented
// defaults so downstream argument building never sees a missing field.
package params

// ScanType identifies one of the supported scan profiles.
type ScanType string

const (
	TypePortScan          ScanType = "port-scan"
	TypeOSDetection       ScanType = "os-detection"
	TypeVulnerabilityScan ScanType = "vulnerability-scan"
)

// Speed values for port scans.
const (
	SpeedSlow   = "slow"
	SpeedNormal = "normal"
	SpeedFast   = "fast"
)

// Intensity values for vulnerability scans.
const (
	IntensityLight      = "light"
	IntensityMedium     = "medium"
	IntensityAggressive = "aggressive"
)

// Defaults and bounds.
const (
	DefaultPortRange    = "1-1000"
	DefaultOSPorts      = "22,80,443"
	DefaultTimeout      = 300
	MinTimeout          = 30
	MaxTimeout          = 3600
	DefaultSpeed        = SpeedNormal
	DefaultIntensity    = IntensityMedium
)

// ValidType reports whether t is a supported scan type.
func ValidType(t ScanType) bool {
	switch t {
	case TypePortScan, TypeOSDetection, TypeVulnerabilityScan:
		return true
	default:
		return false
	}
}

// Normalized is the complete, defaulted parameter set for one scan. It is
// persisted verbatim on the scan record so every run carries an auditable
// copy of what it actually executed with.
type Normalized struct {
	Ports       string `json:"ports,omitempty"`
	Speed       string `json:"speed,omitempty"`
	Intensity   string `json:"intensity,omitempty"`
	OSDetection bool   `json:"os_detection,omitempty"`
	VulnScan    bool   `json:"vuln_scan,omitempty"`
	Timeout     int    `json:"timeout"`
}

// Normalize validates raw parameters for the given scan type and fills in
// defaults. It never fails: bad values are replaced, not rejected.
func Normalize(scanType ScanType, raw map[string]interface{}) Normalized {
	var n Normalized

	switch scanType {
	case TypePortScan:
		n.Ports = stringOr(raw, "ports", DefaultPortRange)
		n.Speed = enumOr(raw, "speed", DefaultSpeed, SpeedSlow, SpeedNormal, SpeedFast)

	case TypeOSDetection:
		n.OSDetection = true
		n.Ports = stringOr(raw, "ports", DefaultOSPorts)

	case TypeVulnerabilityScan:
		n.VulnScan = true
		n.Intensity = enumOr(raw, "intensity", DefaultIntensity,
			IntensityLight, IntensityMedium, IntensityAggressive)
	}

	n.Timeout = clampTimeout(raw)

	return n
}

// clampTimeout returns the timeout bounded to [MinTimeout, MaxTimeout].
// Missing or non-integer input falls back to the default.
func clampTimeout(raw map[string]interface{}) int {
	v, ok := raw["timeout"]
	if !ok {
		return DefaultTimeout
	}

	var t int
	switch n := v.(type) {
	case int:
		t = n
	case int64:
		t = int(n)
	case float64:
		// JSON numbers decode as float64; accept whole values only.
		if n != float64(int(n)) {
			return DefaultTimeout
		}
		t = int(n)
	default:
		return DefaultTimeout
	}

	if t < MinTimeout {
		return MinTimeout
	}
	if t > MaxTimeout {
		return MaxTimeout
	}
	return t
}

func stringOr(raw map[string]interface{}, key, fallback string) string {
	if v, ok := raw[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return fallback
}

func enumOr(raw map[string]interface{}, key, fallback string, allowed ...string) string {
	v, ok := raw[key]
	if !ok {
		return fallback
	}
	s, ok := v.(string)
	if !ok {
		return fallback
	}
	for _, a := range allowed {
		if s == a {
			return s
		}
	}
	return fallback
}
