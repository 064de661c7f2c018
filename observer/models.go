package observer

// MotorType is a named motor with its model and default observer settings.
type MotorType struct {
	Name     string
	Model    Model
	Settings Settings
}

// The coefficients below are the zero-order-hold discretization of a DC
// motor at a 5 ms loop period. Torque columns are for external load torque.
var motorTypes = []MotorType{
	{
		// 12 V gearmotor, R=4 ohm, L=3 mH, Kt=0.3 Nm/A, J=2e-4 kgm^2.
		Name: "medium",
		Model: Model{
			DAngleDSpeed:         213999,
			DAngleDCurrent:       314878,
			DAngleDVoltage:       1001272,
			DAngleDTorque:        -683579,
			DSpeedDSpeed:         1471,
			DSpeedDCurrent:       1726,
			DSpeedDVoltage:       2362,
			DSpeedDTorque:        -1869,
			DCurrentDSpeed:       -1018829,
			DCurrentDCurrent:     -1239415,
			DCurrentDVoltage:     1082967,
			DCurrentDTorque:      1623356,
			DTorqueDSpeed:        2092,
			DTorqueDAcceleration: 24351,
			DTorqueDVoltage:      2386,
			DVoltageDTorque:      161025,
			TorqueFriction:       20000,
		},
		Settings: Settings{
			StallSpeedLimit:            20000,
			StallTime:                  200,
			FeedbackVoltageStallRatio:  75,
			FeedbackVoltageNegligible:  2500,
			CoulombFrictionSpeedCutoff: 500,
			FeedbackGainLow:            150,
			FeedbackGainHigh:           1500,
			FeedbackGainThreshold:      20000,
		},
	},
	{
		// Small hobby gearmotor, R=8 ohm, L=2 mH, Kt=0.15 Nm/A, J=3e-5 kgm^2.
		Name: "small",
		Model: Model{
			DAngleDSpeed:         216109,
			DAngleDCurrent:       261954,
			DAngleDVoltage:       508189,
			DAngleDTorque:        -104209,
			DSpeedDSpeed:         1424,
			DSpeedDCurrent:       1615,
			DSpeedDVoltage:       1310,
			DSpeedDTorque:        -283,
			DCurrentDSpeed:       -4235272,
			DCurrentDCurrent:     -4802493,
			DCurrentDVoltage:     2178383,
			DCurrentDTorque:      900340,
			DTorqueDSpeed:        15794,
			DTorqueDAcceleration: 162338,
			DTorqueDVoltage:      9544,
			DVoltageDTorque:      40256,
			TorqueFriction:       8000,
		},
		Settings: Settings{
			StallSpeedLimit:            20000,
			StallTime:                  200,
			FeedbackVoltageStallRatio:  75,
			FeedbackVoltageNegligible:  2500,
			CoulombFrictionSpeedCutoff: 500,
			FeedbackGainLow:            150,
			FeedbackGainHigh:           1500,
			FeedbackGainThreshold:      20000,
		},
	},
}

// LoopTimeMs is the loop period the catalog models were discretized for.
const LoopTimeMs = 5

// LookupType returns the catalog entry with the given name.
func LookupType(name string) (*MotorType, bool) {
	for i := range motorTypes {
		if motorTypes[i].Name == name {
			return &motorTypes[i], true
		}
	}
	return nil, false
}

// TypeByIndex returns the catalog entry at position i, as listed by TypeNames.
func TypeByIndex(i int) (*MotorType, bool) {
	if i < 0 || i >= len(motorTypes) {
		return nil, false
	}
	return &motorTypes[i], true
}

// TypeNames lists the catalog in index order.
func TypeNames() []string {
	names := make([]string, len(motorTypes))
	for i := range motorTypes {
		names[i] = motorTypes[i].Name
	}
	return names
}
