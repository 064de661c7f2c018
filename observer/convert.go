package observer

import "dcservo/intmath"

// MaxTorque returns the torque ceiling (uNm) outer controllers must respect.
func (o *Observer) MaxTorque() int32 {
	return MaxTorque
}

// FeedforwardTorque returns the open-loop torque (uNm) needed to follow a
// reference speed (mdeg/s) and acceleration (mdeg/s^2). It covers half the
// Coulomb friction in the direction of motion, back-EMF and inertia.
func (m *Model) FeedforwardTorque(rateRef, accelRef int32) int32 {
	friction := int64(m.TorqueFriction / 2 * intmath.Sign(rateRef))
	backEMF := int64(PrescaleSpeed * intmath.Clamp(rateRef, MaxSpeed) / m.DTorqueDSpeed)
	inertia := int64(PrescaleAcceleration * intmath.Clamp(accelRef, MaxAcceleration) / m.DTorqueDAcceleration)
	return intmath.Clamp(intmath.Saturate(friction+backEMF+inertia), MaxTorque)
}

// TorqueToVoltage returns the voltage (mV) that produces the given torque
// (uNm) at standstill. Torques beyond what the supply can drive saturate
// at MaxVoltage.
func (m *Model) TorqueToVoltage(torque int32) int32 {
	return intmath.Clamp(PrescaleTorque*intmath.Clamp(torque, MaxTorque)/m.DVoltageDTorque, MaxVoltage)
}

// VoltageToTorque returns the standstill torque (uNm) produced by a voltage
// (mV).
func (m *Model) VoltageToTorque(voltage int32) int32 {
	return intmath.Clamp(PrescaleVoltage*intmath.Clamp(voltage, MaxVoltage)/m.DTorqueDVoltage, MaxTorque)
}
