package serial

import (
	"net"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("/dev/ttyACM0")
	if cfg.Baud != 250000 || cfg.ReadTimeout != 100 {
		t.Errorf("config = %+v", cfg)
	}
	if cfg.IsNetwork() {
		t.Error("device path treated as network address")
	}
}

func TestOpenRequiresDevice(t *testing.T) {
	if _, err := Open(nil); err != ErrNoDevice {
		t.Errorf("Open(nil) = %v", err)
	}
	if _, err := Open(&Config{}); err != ErrNoDevice {
		t.Errorf("Open(empty) = %v", err)
	}
}

func TestOpenTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("no loopback: %v", err)
	}
	defer ln.Close()

	accepted := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 5)
		n, _ := conn.Read(buf)
		accepted <- buf[:n]
	}()

	port, err := Open(DefaultConfig(TCPPrefix + ln.Addr().String()))
	if err != nil {
		t.Fatal(err)
	}
	defer port.Close()

	ack := []byte{0x05, 0x10, 0x9e, 0x81, 0x7e}
	if _, err := port.Write(ack); err != nil {
		t.Fatal(err)
	}
	if err := port.Flush(); err != nil {
		t.Errorf("Flush: %v", err)
	}
	if got := <-accepted; string(got) != string(ack) {
		t.Errorf("bridge got % x", got)
	}
}

func TestListPorts(t *testing.T) {
	ports, err := ListPorts()
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(ports); i++ {
		if ports[i-1] >= ports[i] {
			t.Errorf("ports not sorted and unique: %v", ports)
		}
	}
}
