// Command headtrack-sim runs a head-tracking session against a simulated host
// camera, so a real sensor feed can be checked without the host application.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"math"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/headtrack/internal/config"
	"github.com/banshee-data/headtrack/internal/headtrack"
	"github.com/banshee-data/headtrack/internal/host"
	"github.com/banshee-data/headtrack/internal/monitoring"
	"github.com/banshee-data/headtrack/internal/timeutil"
	"github.com/banshee-data/headtrack/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to tuning JSON (defaults built in)")
	listen      = flag.String("listen", "127.0.0.1:8090", "Debug HTTP listen address")
	udpPort     = flag.Int("port", 0, "UDP port for the sensor feed (overrides config)")
	fps         = flag.Int("fps", 60, "Simulated host frame rate")
	panSpeed    = flag.Float64("pan", 0, "Host camera pan speed in degrees per second")
	debug       = flag.Bool("debug", false, "Enable debug logging")
	statusEvery = flag.Duration("status-every", 2*time.Second, "Interval between status log lines (0 disables)")
)

func main() {
	flag.Parse()
	log.Printf("%s", version.String())
	monitoring.SetDebug(*debug)

	cfg := config.DefaultTuningConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	if *udpPort > 0 {
		cfg.Port = udpPort
	}
	if *fps <= 0 {
		log.Fatal("fps must be positive")
	}

	clock := timeutil.RealClock{}
	cam := host.NewSimCamera("PlayerCamera")
	session, err := headtrack.New(headtrack.Options{Config: cfg, Camera: cam, Clock: clock})
	if err != nil {
		log.Fatalf("failed to start head tracking: %v", err)
	}
	defer session.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		mux := http.NewServeMux()
		session.AttachAdminRoutes(mux)
		server := &http.Server{Addr: *listen, Handler: mux}

		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatalf("failed to start server: %v", err)
			}
		}()
		log.Printf("debug server on http://%s/debug/", *listen)

		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("failed to shut down server: %v", err)
		}
	}()

	loop := &frameLoop{
		session:     session,
		cam:         cam,
		clock:       clock,
		interval:    time.Second / time.Duration(*fps),
		pan:         *panSpeed,
		statusEvery: *statusEvery,
	}
	ticker := clock.NewTicker(loop.interval)
	frames := loop.run(ctx, ticker)
	ticker.Stop()
	wg.Wait()
	log.Printf("headtrack-sim stopped after %d frames", frames)
}

// frameLoop is the simulated host frame loop.
type frameLoop struct {
	session     *headtrack.Session
	cam         *host.SimCamera
	clock       timeutil.Clock
	interval    time.Duration
	pan         float64 // degrees per second
	statusEvery time.Duration
}

// run ticks the session once per ticker tick until ctx is cancelled and
// returns the number of frames run.
func (l *frameLoop) run(ctx context.Context, ticker timeutil.Ticker) uint64 {
	var frame uint64
	lastStatus := l.clock.Now()
	for {
		select {
		case <-ctx.Done():
			return frame
		case <-ticker.C():
		}
		frame++

		yaw := math.Mod(l.cam.Yaw+l.pan*l.interval.Seconds(), 360)
		l.cam.Drive(yaw, l.cam.Pitch)
		l.session.Tick(frame)

		if l.statusEvery > 0 && l.clock.Since(lastStatus) >= l.statusEvery {
			lastStatus = l.clock.Now()
			st := l.session.Status()
			log.Printf("frame=%d state=%s offsets=(%.1f, %.1f, %.1f) influence=%.2f",
				st.Frame, st.State, st.Offsets.Yaw, st.Offsets.Pitch, st.Offsets.Roll, st.Influence)
		}
	}
}
