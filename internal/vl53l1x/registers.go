package vl53l1x

// Register addresses (16-bit) used by this adapter.
const (
	regI2CSlaveDeviceAddress = 0x0001
	regVHVTimeoutLoopBound   = 0x0008
	regVHVInit               = 0x000B
	regDefaultConfig         = 0x002D
	regGPIOHVMuxCtrl         = 0x0030
	regGPIOTioHVStatus       = 0x0031
	regPhasecalTimeout       = 0x004B
	regRangeTimeoutAHi       = 0x005E
	regRangeVCSELPeriodA     = 0x0060
	regRangeTimeoutBHi       = 0x0061
	regRangeVCSELPeriodB     = 0x0063
	regRangeValidPhaseHigh   = 0x0069
	regSDWOISD0              = 0x0078
	regSDInitialPhaseSD0     = 0x007A
	regSystemInterruptClear  = 0x0086
	regSystemModeStart       = 0x0087
	regResultRangeStatus     = 0x0089
	regResultRangeMM         = 0x0096
	regFirmwareSystemStatus  = 0x00E5
	regIdentificationModelID = 0x010F
)

const (
	// DefaultAddress is the factory 7-bit address every device boots on.
	DefaultAddress = 0x29

	modelID = 0xEACC

	modeStartContinuous = 0x40
	modeStop            = 0x00

	// Range status after masking with 0x1F; 9 is a complete, valid range.
	rangeStatusMask  = 0x1F
	rangeStatusValid = 0x09
)

// defaultConfig is written from regDefaultConfig (0x2D) through 0x87 before
// the first measurement. It selects the interrupt polarity, the ranging
// sequence and the default timing the distance mode and budget then override.
var defaultConfig = [...]byte{
	0x00, 0x00, 0x00, 0x01, 0x02, 0x00, 0x02, 0x08, // 0x2D
	0x00, 0x08, 0x10, 0x01, 0x01, 0x00, 0x00, 0x00, // 0x35
	0x00, 0xFF, 0x00, 0x0F, 0x00, 0x00, 0x00, 0x00, // 0x3D
	0x00, 0x20, 0x0B, 0x00, 0x00, 0x02, 0x0A, 0x21, // 0x45
	0x00, 0x00, 0x05, 0x00, 0x00, 0x00, 0x00, 0xC8, // 0x4D
	0x00, 0x00, 0x38, 0xFF, 0x01, 0x00, 0x08, 0x00, // 0x55
	0x00, 0x01, 0xCC, 0x0F, 0x01, 0xF1, 0x0D, 0x01, // 0x5D
	0x68, 0x00, 0x80, 0x08, 0xB8, 0x00, 0x00, 0x00, // 0x65
	0x00, 0x0F, 0x89, 0x00, 0x00, 0x00, 0x00, 0x00, // 0x6D
	0x00, 0x00, 0x01, 0x0F, 0x0D, 0x0E, 0x0E, 0x00, // 0x75
	0x00, 0x02, 0xC7, 0xFF, 0x9B, 0x00, 0x00, 0x00, // 0x7D
	0x01, 0x00, 0x00, // 0x85
}

// modeSettings are the timing registers for one distance mode.
type modeSettings struct {
	phasecalTimeout byte
	vcselPeriodA    byte
	vcselPeriodB    byte
	validPhaseHigh  byte
	woiSD0          uint16
	initialPhaseSD0 uint16
}

var distanceModes = map[DistanceMode]modeSettings{
	Short: {0x14, 0x07, 0x05, 0x38, 0x0705, 0x0606},
	Long:  {0x0A, 0x0F, 0x0D, 0xB8, 0x0F0D, 0x0E0E},
}

// timingBudgets maps a budget in ms to the macro-period timeouts A and B.
var timingBudgets = map[DistanceMode]map[int][2]uint16{
	Short: {
		15:  {0x001D, 0x0027},
		20:  {0x0051, 0x006E},
		33:  {0x00D6, 0x006E},
		50:  {0x01AE, 0x01E8},
		100: {0x02E1, 0x0388},
		200: {0x03E1, 0x0496},
		500: {0x0591, 0x05C1},
	},
	Long: {
		20:  {0x001E, 0x0022},
		33:  {0x0060, 0x006E},
		50:  {0x00AD, 0x00C6},
		100: {0x01CC, 0x01EA},
		200: {0x02D9, 0x02F8},
		500: {0x048F, 0x04A4},
	},
}
