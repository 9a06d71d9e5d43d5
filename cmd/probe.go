package cmd

import (
	"context"
	"encoding/json"
	"os"

	"github.com/dkeye/Consult/internal/adapters/devices"
	"github.com/dkeye/Consult/internal/app/probe"
	"github.com/dkeye/Consult/internal/domain"
	"github.com/spf13/cobra"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check camera, microphone, speaker and network, print JSON",
	RunE:  runProbe,
}

type probeReport struct {
	Devices probe.DeviceTestResult `json:"devices"`
	Network domain.NetworkQuality  `json:"network"`
}

func newProbe() *probe.Probe {
	return probe.New(devices.New(devices.Config{}), probe.Config{
		Endpoints: cfg.Probe.Endpoints,
		Ceiling:   cfg.Probe.Ceiling,
		Timeout:   cfg.Probe.Timeout,
	})
}

func runPreflight(ctx context.Context) probeReport {
	p := newProbe()
	defer p.Cleanup()
	return probeReport{
		Devices: p.RunDeviceTests(ctx),
		Network: p.TestNetwork(ctx),
	}
}

func runProbe(cmd *cobra.Command, args []string) error {
	report := runPreflight(cmd.Context())
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
