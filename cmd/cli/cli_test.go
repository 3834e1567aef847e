package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/scanhub/scanhub/internal/compare"
	"github.com/scanhub/scanhub/internal/normalize"
	"github.com/scanhub/scanhub/internal/store"
)

func TestSplitTargets(t *testing.T) {
	assert.Equal(t, []string{"192.168.1.1", "web01"}, splitTargets("192.168.1.1, web01"))
	assert.Equal(t, []string{"a"}, splitTargets(",a,,"))
	assert.Nil(t, splitTargets(""))
	assert.Nil(t, splitTargets(" , "))
}

func TestEndpointType(t *testing.T) {
	assert.Equal(t, store.EndpointTypeIP, endpointType("192.0.2.1"))
	assert.Equal(t, store.EndpointTypeIP, endpointType("2001:db8::1"))
	assert.Equal(t, store.EndpointTypeHostname, endpointType("web01.example.com"))
}

func TestFormatPorts(t *testing.T) {
	assert.Equal(t, "-", formatPorts(nil))
	assert.Equal(t, "22,80,443", formatPorts([]int{22, 80, 443}))
}

func TestFormatServices(t *testing.T) {
	assert.Equal(t, "-", formatServices(nil))
	got := formatServices([]normalize.Service{
		{Port: 22, Name: "ssh", Product: "OpenSSH", Version: "9.6"},
		{Port: 80, Name: "http", Product: "nginx", Version: "1.24.0"},
	})
	assert.Equal(t, "22/ssh OpenSSH 9.6; 80/http nginx 1.24.0", got)
}

func TestFormatServiceChanges(t *testing.T) {
	assert.Equal(t, "-", formatServiceChanges(nil))
	got := formatServiceChanges([]compare.ServiceChange{
		{Service: "80/http nginx 1.22.0", Change: compare.ChangeRemoved},
		{Service: "80/http nginx 1.24.0", Change: compare.ChangeAdded},
	})
	assert.Equal(t, "-80/http nginx 1.22.0; +80/http nginx 1.24.0", got)
}

func TestScanParametersIncludesOnlySetFlags(t *testing.T) {
	scanPorts, scanSpeed, scanIntensity, scanTimeout = "", "", "", 0
	assert.Empty(t, scanParameters())

	scanPorts = "80,443"
	scanTimeout = 120
	p := scanParameters()
	assert.Equal(t, map[string]interface{}{"ports": "80,443", "timeout": 120}, p)

	scanPorts, scanTimeout = "", 0
}
