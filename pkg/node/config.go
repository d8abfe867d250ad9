// Package node assembles a telemetry node: paced accelerometer sampling,
// frame queueing, the UDP uplink toward the collector, the control channel,
// and status reporting.
package node

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Skamba/VibeSensor-sub002/pkg/contracts"
	"github.com/Skamba/VibeSensor-sub002/pkg/reliability"
	"github.com/Skamba/VibeSensor-sub002/pkg/wire"
)

// Loop tunables, fixed in this prototype.
const (
	// Conservative UDP payload cap that avoids IP fragmentation on
	// MTU-1500 paths: 1500 - 20 (IP header) - 8 (UDP header).
	maxUDPPayloadBytes = 1472

	sampleRateMinHz = 25
	sampleRateMaxHz = 3200

	queueLenMin = 16

	helloInterval            = 2 * time.Second
	dataTxInterval           = 10 * time.Millisecond
	dataRetransmitIntervalMS = 120
	maxTxFramesPerPass       = 2

	retryBackoffBaseMS = 100
	retryBackoffMaxMS  = 6400

	maxCatchUpSamplesPerTick = 8
	sensorReadBatchSamples   = 8

	sensorReinitErrorThreshold = 3
	sensorReinitCooldownMS     = 5000

	maxIdentifyDurationMS = 10000

	statusReportInterval = 10 * time.Second

	controlPortScanRange = 16
)

// Config is the injected node configuration. Network endpoints and
// credentials come from here, never from compile-time constants.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Node   NodeConfig   `yaml:"node"`
	Sensor SensorConfig `yaml:"sensor"`
	Status StatusConfig `yaml:"status"`
}

// ServerConfig locates the collector.
type ServerConfig struct {
	Host        string `yaml:"host"`
	DataPort    int    `yaml:"data_port"`
	ControlPort int    `yaml:"control_port"`
}

// NodeConfig describes this node.
type NodeConfig struct {
	Name            string `yaml:"name"`
	FirmwareVersion string `yaml:"firmware_version"`
	SampleRateHz    uint16 `yaml:"sample_rate_hz"`
	FrameSamples    uint16 `yaml:"frame_samples"`
	ControlPort     int    `yaml:"control_port"`
	QueueLen        int    `yaml:"queue_len"`
}

// SensorConfig selects and locates the sensor bus.
type SensorConfig struct {
	Bus           string `yaml:"bus"` // "spi", "i2c" or "sim"
	SPIPort       string `yaml:"spi_port"`
	SPISelectPin  string `yaml:"spi_select_pin"`
	I2CBus        string `yaml:"i2c_bus"`
	I2CAddr       uint16 `yaml:"i2c_addr"`
	FIFOWatermark uint8  `yaml:"fifo_watermark"`
}

// StatusConfig enables status publishing when MQTTURL is set.
type StatusConfig struct {
	MQTTURL string `yaml:"mqtt_url"`
	Topic   string `yaml:"topic"`
}

// Default returns the configuration for a node attached to the collector
// hotspot with the sensor on the first I2C bus.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:        "192.168.4.1",
			DataPort:    contracts.ServerUDPDataPort,
			ControlPort: contracts.ServerUDPControlPort,
		},
		Node: NodeConfig{
			Name:            "vibe-node",
			FirmwareVersion: "go-node-0.1",
			SampleRateHz:    800,
			FrameSamples:    200,
			ControlPort:     contracts.NodeControlPortBase,
			QueueLen:        128,
		},
		Sensor: SensorConfig{
			Bus:           "i2c",
			SPIPort:       "SPI0.0",
			SPISelectPin:  "GPIO8",
			I2CBus:        "1",
			I2CAddr:       0x53,
			FIFOWatermark: 16,
		},
		Status: StatusConfig{
			Topic: "vibesensor/status",
		},
	}
}

// Load reads a YAML config over the defaults and normalizes it. An empty
// path yields the normalized defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	cfg.Normalize()
	return cfg, cfg.Validate()
}

// Normalize clamps configured values into the ranges the hardware and the
// datagram contract allow. It is idempotent.
func (c *Config) Normalize() {
	c.Node.SampleRateHz = reliability.ClampSampleRate(c.Node.SampleRateHz, sampleRateMinHz, sampleRateMaxHz)
	c.Node.FrameSamples = reliability.ClampFrameSamples(c.Node.FrameSamples, maxUDPPayloadBytes, wire.DataHeaderBytes)
	if c.Node.QueueLen < queueLenMin {
		c.Node.QueueLen = queueLenMin
	}
	if c.Node.ControlPort == 0 {
		c.Node.ControlPort = contracts.NodeControlPortBase
	}
	// Clamp ahead of the driver's 5-bit wire mask so the mask never
	// changes an in-range value.
	if c.Sensor.FIFOWatermark > 31 {
		c.Sensor.FIFOWatermark = 31
	}
}

// Validate rejects configurations Normalize cannot repair.
func (c *Config) Validate() error {
	switch c.Sensor.Bus {
	case "spi", "i2c", "sim":
	default:
		return fmt.Errorf("node: unknown sensor bus %q", c.Sensor.Bus)
	}
	if c.Server.Host == "" {
		return fmt.Errorf("node: server host required")
	}
	if c.Server.DataPort <= 0 || c.Server.ControlPort <= 0 {
		return fmt.Errorf("node: server ports required")
	}
	return nil
}
