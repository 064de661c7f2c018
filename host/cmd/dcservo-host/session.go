package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"

	"dcservo/config"
	"dcservo/host/mcu"
	"dcservo/host/telemetry"
)

var errNoProfile = errors.New("no profile loaded, use -profile")

// session is the prompt's view of one board.
type session struct {
	mcu     *mcu.MCU
	profile *config.Profile
	motors  []*mcu.Motor
	out     io.Writer
}

func (s *session) configure() error {
	motors, err := s.mcu.ConfigureMotors(s.profile)
	if err != nil {
		return err
	}
	s.motors = motors
	for _, m := range motors {
		if err := m.Start(); err != nil {
			return fmt.Errorf("start %s: %w", m.Config.Name, err)
		}
	}
	return nil
}

// Motors implements telemetry.Source.
func (s *session) Motors() []telemetry.MotorInfo {
	infos := make([]telemetry.MotorInfo, len(s.motors))
	for i, m := range s.motors {
		infos[i] = telemetry.MotorInfo{OID: m.OID, Name: m.Config.Name, Model: m.Config.Model}
	}
	return infos
}

// State implements telemetry.Source.
func (s *session) State(oid uint8) (mcu.State, error) {
	if int(oid) >= len(s.motors) {
		return mcu.State{}, fmt.Errorf("no motor with oid %d", oid)
	}
	return s.motors[oid].State()
}

// motor finds a motor by name or OID.
func (s *session) motor(ref string) (*mcu.Motor, error) {
	if s.profile == nil {
		return nil, errNoProfile
	}
	for _, m := range s.motors {
		if m.Config.Name == ref {
			return m, nil
		}
	}
	if oid, err := strconv.Atoi(ref); err == nil && oid >= 0 && oid < len(s.motors) {
		return s.motors[oid], nil
	}
	return nil, fmt.Errorf("no motor %q", ref)
}

// runSequence applies every profile step and holds it for its duration.
func (s *session) runSequence() error {
	if s.profile == nil {
		return errNoProfile
	}
	for i, step := range s.profile.Sequence {
		m, err := s.motor(step.Motor)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "step %d: %s %s %d\n", i, step.Motor, step.Action, step.Value)
		if err := m.Apply(step); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		time.Sleep(time.Duration(step.HoldMs) * time.Millisecond)
	}
	return nil
}

func intArg(args []string, i int, name string) (int32, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("missing %s", name)
	}
	v, err := strconv.ParseInt(args[i], 0, 32)
	if err != nil {
		return 0, fmt.Errorf("bad %s %q", name, args[i])
	}
	return int32(v), nil
}

// exec runs one prompt line.
func (s *session) exec(line string) (quit bool, err error) {
	fields, err := shlex.Split(line)
	if err != nil {
		return false, err
	}
	if len(fields) == 0 {
		return false, nil
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "quit", "exit", "q":
		return true, nil
	case "help", "?":
		s.printHelp()
		return false, nil
	case "dict":
		d := s.mcu.GetDictionary()
		if d == nil {
			return false, mcu.ErrNoDictionary
		}
		d.Print(s.out)
		return false, nil
	case "send":
		return false, s.mcu.SendLine(args)
	case "clock":
		clock, err := s.mcu.Clock()
		if err != nil {
			return false, err
		}
		fmt.Fprintf(s.out, "clock=%d\n", clock)
		return false, nil
	case "estop":
		return false, s.mcu.Send("emergency_stop", nil)
	case "motors":
		if s.profile == nil {
			return false, errNoProfile
		}
		for _, m := range s.motors {
			fmt.Fprintf(s.out, "  [%d] %s (%s)\n", m.OID, m.Config.Name, m.Config.Model)
		}
		return false, nil
	case "run":
		return false, s.runSequence()
	}

	// The remaining commands take a motor as their first argument.
	if len(args) == 0 {
		return false, fmt.Errorf("unknown command %q, try help", cmd)
	}
	m, err := s.motor(args[0])
	if err != nil {
		return false, err
	}
	switch cmd {
	case "voltage":
		mv, err := intArg(args, 1, "millivolts")
		if err != nil {
			return false, err
		}
		return false, m.SetVoltage(mv)
	case "torque":
		torque, err := intArg(args, 1, "torque")
		if err != nil {
			return false, err
		}
		return false, m.SetTorque(torque)
	case "coast":
		return false, m.Coast()
	case "brake":
		return false, m.Brake()
	case "zero":
		var mdeg int32
		if len(args) > 1 {
			if mdeg, err = intArg(args, 1, "millidegrees"); err != nil {
				return false, err
			}
		}
		return false, m.ResetAngle(int64(mdeg))
	case "state":
		st, err := m.State()
		if err != nil {
			return false, err
		}
		fmt.Fprintf(s.out, "angle=%.3f deg speed=%.3f deg/s current=%d mA feedback=%d mV stalled=%v (%d ms)\n",
			float64(st.AngleMdeg)/1000, float64(st.Speed)/1000, st.Current, st.Feedback, st.Stalled, st.StallDuration)
		return false, nil
	case "ff":
		rate, err := intArg(args, 1, "rate")
		if err != nil {
			return false, err
		}
		accel, err := intArg(args, 2, "accel")
		if err != nil {
			return false, err
		}
		torque, voltage, err := m.Feedforward(rate, accel)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(s.out, "torque=%d uNm voltage=%d mV\n", torque, voltage)
		return false, nil
	}
	return false, fmt.Errorf("unknown command %q, try help", cmd)
}

func (s *session) printHelp() {
	fmt.Fprintln(s.out, strings.TrimSpace(`
Commands:
  help                      show this help
  dict                      print the MCU dictionary
  send <cmd> [key=value..]  send any dictionary command
  clock                     read the MCU clock
  estop                     emergency stop
  motors                    list configured motors
  voltage <motor> <mV>      drive at a voltage
  torque <motor> <uNm>      drive at a torque
  coast <motor>             release the motor
  brake <motor>             short the motor
  zero <motor> [mdeg]       set the current angle
  state <motor>             print the observer state
  ff <motor> <rate> <accel> feedforward torque and voltage
  run                       run the profile sequence
  quit                      exit`))
}
