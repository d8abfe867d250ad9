package adxl345

// Register map, the subset this driver touches.
const (
	regDevID      = 0x00
	regBWRate     = 0x2C
	regPowerCtl   = 0x2D
	regIntEnable  = 0x2E
	regDataFormat = 0x31
	regDataX0     = 0x32
	regFIFOCtl    = 0x38
	regFIFOStatus = 0x39
)

// DeviceID is the fixed content of the identity register; bring-up aborts
// when the part does not answer with it.
const DeviceID = 0xE5

const (
	valPowerStandby = 0x00 // POWER_CTL: standby while configuring
	valPowerMeasure = 0x08 // POWER_CTL: measurement mode
	valFullRes16g   = 0x0B // DATA_FORMAT: full resolution, +/-16g
	valODR800Hz     = 0x0D // BW_RATE: 800 Hz output data rate
	valFIFOStream   = 0x80 // FIFO_CTL: stream mode, watermark in low bits
	valIntWatermark = 0x02 // INT_ENABLE: watermark bit (polled, not wired)
	watermarkMask   = 0x1F // FIFO_CTL watermark is a 5-bit field
	fifoEntriesMask = 0x3F // FIFO_STATUS entry count is a 6-bit field
)
