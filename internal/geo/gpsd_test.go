package geo

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"
)

// fakeGPSD accepts one connection, checks the watch command and writes lines.
func fakeGPSD(t *testing.T, lines ...string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		cmd, _ := bufio.NewReader(conn).ReadString('\n')
		if !strings.HasPrefix(cmd, "?WATCH=") {
			t.Errorf("command = %q, want ?WATCH", cmd)
		}
		for _, l := range lines {
			conn.Write([]byte(l + "\n"))
		}
	}()
	return ln.Addr().String()
}

func TestGPSDSensorReadsFirstFix(t *testing.T) {
	addr := fakeGPSD(t,
		`{"class":"VERSION","release":"3.25"}`,
		`{"class":"TPV","mode":1}`,
		`{"class":"TPV","mode":3,"time":"2026-03-01T10:00:00Z","lat":51.5007,"lon":-0.1246,"eph":8.5}`,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	fix, err := GPSDSensor{Addr: addr}.Read(ctx, true)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if fix.Latitude != 51.5007 || fix.Longitude != -0.1246 {
		t.Errorf("fix = %v,%v, want 51.5007,-0.1246", fix.Latitude, fix.Longitude)
	}
	if fix.Accuracy != 8.5 {
		t.Errorf("Accuracy = %v, want 8.5", fix.Accuracy)
	}
	want := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if !fix.Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", fix.Timestamp, want)
	}
}

func TestGPSDSensorHighAccuracyNeeds3D(t *testing.T) {
	addr := fakeGPSD(t, `{"class":"TPV","mode":2,"lat":1,"lon":2,"epx":3,"epy":4}`)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := GPSDSensor{Addr: addr}.Read(ctx, true)
	if !errors.Is(err, ErrPositionUnavailable) {
		t.Fatalf("err = %v, want ErrPositionUnavailable", err)
	}
}

func TestGPSDSensorUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	_, err = GPSDSensor{Addr: addr}.Read(context.Background(), false)
	if !errors.Is(err, ErrPositionUnavailable) {
		t.Fatalf("err = %v, want ErrPositionUnavailable", err)
	}
}
