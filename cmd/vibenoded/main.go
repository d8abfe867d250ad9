package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"

	"github.com/Skamba/VibeSensor-sub002/pkg/adxl345"
	"github.com/Skamba/VibeSensor-sub002/pkg/bus"
	"github.com/Skamba/VibeSensor-sub002/pkg/node"
	"github.com/Skamba/VibeSensor-sub002/pkg/run"
)

var (
	configPath = ""
	simulate   = false
)

func init() {
	if val := os.Getenv("VIBE_CONFIG"); val != "" {
		configPath = val
	}
	flag.StringVar(&configPath, "config", configPath, "Node config file (YAML).")
	flag.BoolVar(&simulate, "sim", simulate, "Use the simulated sensor regardless of config.")
}

func main() {
	flag.Parse()
	defer glog.Flush()

	cfg, err := node.Load(configPath)
	if err != nil {
		glog.Exitf("config: %v", err)
	}
	if simulate {
		cfg.Sensor.Bus = "sim"
	}

	transport, closeBus, err := openTransport(cfg.Sensor)
	if err != nil {
		glog.Exitf("sensor bus: %v", err)
	}

	driver := adxl345.New(transport, cfg.Sensor.FIFOWatermark)
	if !driver.Begin() {
		// Not fatal: the sampler keeps retrying bring-up so the node
		// recovers when the sensor appears.
		glog.Warning("sensor bring-up failed, will retry while running")
	}

	clientID, err := node.DeriveClientID()
	if err != nil {
		glog.Exitf("client id: %v", err)
	}
	glog.Infof("node %s -> %s:%d (%s bus, %dHz, %d samples/frame)",
		clientID.Hex(), cfg.Server.Host, cfg.Server.DataPort,
		cfg.Sensor.Bus, cfg.Node.SampleRateHz, cfg.Node.FrameSamples)

	n, err := node.New(cfg, clientID, driver, closeBus, nil)
	if err != nil {
		glog.Exitf("node: %v", err)
	}
	defer n.Close()

	if err := run.NewRunner().HandleSignals().Go(n.Runnables()...).Wait(); err != nil {
		glog.Exit(err)
	}
}

func openTransport(cfg node.SensorConfig) (bus.Transport, func() error, error) {
	switch cfg.Bus {
	case "sim":
		return bus.NewSim(), nil, nil
	case "spi":
		t, closer, err := bus.OpenSPI(cfg.SPIPort, cfg.SPISelectPin)
		if err != nil {
			return nil, nil, err
		}
		return t, closer, nil
	case "i2c":
		t, closer, err := bus.OpenI2C(cfg.I2CBus, cfg.I2CAddr)
		if err != nil {
			return nil, nil, err
		}
		return t, closer, nil
	}
	return nil, nil, fmt.Errorf("unknown sensor bus %q", cfg.Bus)
}
