package params

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePortScanDefaults(t *testing.T) {
	n := Normalize(TypePortScan, map[string]interface{}{})

	assert.Equal(t, "1-1000", n.Ports)
	assert.Equal(t, "normal", n.Speed)
	assert.Equal(t, 300, n.Timeout)
	assert.False(t, n.OSDetection)
	assert.False(t, n.VulnScan)
}

func TestNormalizePortScanPassthrough(t *testing.T) {
	n := Normalize(TypePortScan, map[string]interface{}{
		"ports": "80,443,8080",
		"speed": "fast",
	})

	assert.Equal(t, "80,443,8080", n.Ports)
	assert.Equal(t, "fast", n.Speed)
}

func TestNormalizeOSDetectionDefaults(t *testing.T) {
	n := Normalize(TypeOSDetection, map[string]interface{}{})

	assert.True(t, n.OSDetection)
	assert.Equal(t, "22,80,443", n.Ports)
	assert.Empty(t, n.Speed)
}

func TestNormalizeVulnScanDefaults(t *testing.T) {
	n := Normalize(TypeVulnerabilityScan, map[string]interface{}{})

	assert.True(t, n.VulnScan)
	assert.Equal(t, "medium", n.Intensity)
}

func TestNormalizeRejectsInvalidEnums(t *testing.T) {
	n := Normalize(TypePortScan, map[string]interface{}{"speed": "ludicrous"})
	assert.Equal(t, "normal", n.Speed)

	n = Normalize(TypeVulnerabilityScan, map[string]interface{}{"intensity": "insane"})
	assert.Equal(t, "medium", n.Intensity)
}

func TestTimeoutClamping(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want int
	}{
		{"below minimum", 5, 30},
		{"above maximum", 10000, 3600},
		{"in range", 300, 300},
		{"at minimum", 30, 30},
		{"at maximum", 3600, 3600},
		{"json float", float64(120), 120},
		{"fractional float", 90.5, 300},
		{"non numeric", "fast", 300},
		{"missing", nil, 300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := map[string]interface{}{}
			if tt.in != nil {
				raw["timeout"] = tt.in
			}
			n := Normalize(TypePortScan, raw)
			assert.Equal(t, tt.want, n.Timeout)
		})
	}
}

func TestNormalizeNeverPanicsOnGarbage(t *testing.T) {
	garbage := []map[string]interface{}{
		nil,
		{},
		{"ports": 42, "speed": []string{"fast"}, "timeout": "soon"},
		{"intensity": map[string]string{"level": "high"}},
		{"unknown_key": struct{}{}},
	}

	for _, raw := range garbage {
		for _, st := range []ScanType{TypePortScan, TypeOSDetection, TypeVulnerabilityScan} {
			n := Normalize(st, raw)
			assert.GreaterOrEqual(t, n.Timeout, 30)
			assert.LessOrEqual(t, n.Timeout, 3600)
		}
	}
}

func TestValidType(t *testing.T) {
	assert.True(t, ValidType(TypePortScan))
	assert.True(t, ValidType(TypeOSDetection))
	assert.True(t, ValidType(TypeVulnerabilityScan))
	assert.False(t, ValidType(ScanType("ping-sweep")))
}
