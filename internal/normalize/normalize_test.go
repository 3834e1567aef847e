package normalize

import (
	"testing"

	"github.com/Ullaakut/nmap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanhub/scanhub/internal/params"
)

func fixtureRun() *nmap.Run {
	return &nmap.Run{
		Hosts: []nmap.Host{
			{
				Addresses: []nmap.Address{{Addr: "192.0.2.10"}},
				Ports: []nmap.Port{
					{
						ID:       22,
						Protocol: "tcp",
						State:    nmap.State{State: "open"},
						Service:  nmap.Service{Name: "ssh", Product: "OpenSSH", Version: "9.6"},
					},
					{
						ID:       80,
						Protocol: "tcp",
						State:    nmap.State{State: "open"},
						Service:  nmap.Service{Name: "http", Product: "nginx", Version: "1.24.0"},
					},
					{
						ID:       443,
						Protocol: "tcp",
						State:    nmap.State{State: "closed"},
					},
				},
				OS: nmap.OS{
					Matches: []nmap.OSMatch{
						{
							Name:     "Linux 5.15 - 6.1",
							Accuracy: 96,
							Classes:  []nmap.OSClass{{Type: "general purpose"}},
						},
						{Name: "Linux 4.15", Accuracy: 90},
					},
				},
			},
		},
	}
}

func TestNormalizeOpenPortsAndServices(t *testing.T) {
	result := Normalize(fixtureRun(), params.TypePortScan)

	assert.Equal(t, []int{22, 80}, result.Summary.OpenPorts)
	assert.Equal(t, 2, result.OpenPortCount())

	require.Len(t, result.Summary.Services, 2)
	assert.Equal(t, Service{Port: 22, Name: "ssh", Product: "OpenSSH", Version: "9.6"}, result.Summary.Services[0])
	assert.Equal(t, Service{Port: 80, Name: "http", Product: "nginx", Version: "1.24.0"}, result.Summary.Services[1])

	// OS is only surfaced for os-detection scans.
	assert.Nil(t, result.Summary.DetectedOS)
	assert.Empty(t, result.Summary.Vulnerabilities)

	assert.Contains(t, result.Details, "192.0.2.10")
}

func TestNormalizeTopOSMatch(t *testing.T) {
	result := Normalize(fixtureRun(), params.TypeOSDetection)

	require.NotNil(t, result.Summary.DetectedOS)
	assert.Equal(t, "Linux 5.15 - 6.1", result.Summary.DetectedOS.Name)
	assert.Equal(t, 96, result.Summary.DetectedOS.Accuracy)
	assert.Equal(t, "general purpose", result.Summary.DetectedOS.Type)
}

func TestNormalizeNoOSMatches(t *testing.T) {
	run := fixtureRun()
	run.Hosts[0].OS.Matches = nil

	result := Normalize(run, params.TypeOSDetection)
	assert.Nil(t, result.Summary.DetectedOS)
}

func TestNormalizeServiceRequiresProductAndVersion(t *testing.T) {
	run := &nmap.Run{
		Hosts: []nmap.Host{
			{
				Addresses: []nmap.Address{{Addr: "192.0.2.20"}},
				Ports: []nmap.Port{
					{
						ID:      8080,
						State:   nmap.State{State: "open"},
						Service: nmap.Service{Name: "http-proxy", Product: "Squid"},
					},
				},
			},
		},
	}

	result := Normalize(run, params.TypePortScan)
	assert.Equal(t, []int{8080}, result.Summary.OpenPorts)
	assert.Empty(t, result.Summary.Services)
}

func TestNormalizeVulnerabilityFindings(t *testing.T) {
	run := &nmap.Run{
		Hosts: []nmap.Host{
			{
				Addresses: []nmap.Address{{Addr: "192.0.2.30"}},
				Ports: []nmap.Port{
					{
						ID:    443,
						State: nmap.State{State: "open"},
						Scripts: []nmap.Script{
							{ID: "ssl-heartbleed", Output: "VULNERABLE:\n  Heartbleed"},
						},
					},
				},
				HostScripts: []nmap.Script{
					{ID: "smb-vuln-ms17-010", Output: "NOT VULNERABLE"},
				},
			},
		},
	}

	result := Normalize(run, params.TypeVulnerabilityScan)

	require.Len(t, result.Summary.Vulnerabilities, 2)
	assert.Equal(t, "ssl-heartbleed", result.Summary.Vulnerabilities[0].Name)
	assert.Contains(t, result.Summary.Vulnerabilities[0].Output, "Heartbleed")
	assert.Equal(t, 2, result.VulnerabilityCount())
}

func TestNormalizeNilRun(t *testing.T) {
	result := Normalize(nil, params.TypePortScan)
	assert.Empty(t, result.Summary.OpenPorts)
	assert.NotNil(t, result.Details)
}
