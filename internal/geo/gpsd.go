package geo

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"time"

	"github.com/dukerupert/safealert/internal/model"
)

const DefaultGPSDAddr = "localhost:2947"

const watchCommand = `?WATCH={"enable":true,"json":true};` + "\n"

// GPSDSensor reads fixes from a gpsd daemon over its JSON socket protocol.
// Each Read opens a connection, waits for the first usable TPV report and
// closes the connection.
type GPSDSensor struct {
	Addr string
}

type gpsdReport struct {
	Class string    `json:"class"`
	Mode  int       `json:"mode"`
	Time  time.Time `json:"time"`
	Lat   *float64  `json:"lat"`
	Lon   *float64  `json:"lon"`
	Eph   float64   `json:"eph"`
	Epx   float64   `json:"epx"`
	Epy   float64   `json:"epy"`
}

// gpsd TPV modes.
const (
	mode2D = 2
	mode3D = 3
)

// Read blocks until gpsd reports a fix or ctx expires. With highAccuracy set
// only 3D fixes are accepted.
func (g GPSDSensor) Read(ctx context.Context, highAccuracy bool) (model.LocationFix, error) {
	addr := g.Addr
	if addr == "" {
		addr = DefaultGPSDAddr
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return model.LocationFix{}, &LocationError{Kind: KindPositionUnavailable, Err: fmt.Errorf("connect gpsd: %w", err)}
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { conn.SetDeadline(time.Now()) })
	defer stop()

	if _, err := conn.Write([]byte(watchCommand)); err != nil {
		return model.LocationFix{}, fmt.Errorf("send watch: %w", err)
	}

	minMode := mode2D
	if highAccuracy {
		minMode = mode3D
	}

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		var r gpsdReport
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			continue
		}
		if r.Class != "TPV" || r.Mode < minMode || r.Lat == nil || r.Lon == nil {
			continue
		}
		fix := model.LocationFix{
			Latitude:  *r.Lat,
			Longitude: *r.Lon,
			Accuracy:  accuracy(r),
			Timestamp: r.Time.UTC(),
		}
		return fix, nil
	}

	if err := sc.Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return model.LocationFix{}, ctxErr
		}
		return model.LocationFix{}, fmt.Errorf("read gpsd: %w", err)
	}
	return model.LocationFix{}, &LocationError{Kind: KindPositionUnavailable, Err: errors.New("gpsd closed the connection")}
}

// accuracy is the horizontal error estimate in metres.
func accuracy(r gpsdReport) float64 {
	if r.Eph > 0 {
		return r.Eph
	}
	return math.Max(r.Epx, r.Epy)
}
