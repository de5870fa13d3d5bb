// Command pcap-replay feeds a captured sensor stream through the head tracker
// frame by frame and reports what the camera would have done.
//
// Replay runs on a mock clock, so a capture replays as fast as the CPU allows
// while keeping its original timing relative to the simulated frame rate.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/banshee-data/headtrack/internal/config"
	"github.com/banshee-data/headtrack/internal/host"
	"github.com/banshee-data/headtrack/internal/monitoring"
	"github.com/banshee-data/headtrack/internal/pose"
	"github.com/banshee-data/headtrack/internal/sensorlink"
	"github.com/banshee-data/headtrack/internal/timeutil"
)

func main() {
	pcapFile := flag.String("pcap", "", "Path to PCAP file (required)")
	port := flag.Int("port", config.DefaultPort, "UDP destination port to keep (0 keeps all)")
	configPath := flag.String("config", "", "Path to tuning JSON (defaults built in)")
	fps := flag.Int("fps", 60, "Simulated host frame rate")
	every := flag.Int("every", 30, "Print one line every N frames (0 prints none)")
	plotOut := flag.String("plot", "", "Write offset and influence plots to this PNG path")
	tail := flag.Duration("tail", 0, "Keep running this long after the last datagram (defaults to the stale timeout)")
	flag.Parse()

	if *pcapFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: pcap-replay -pcap <file> [-port 5252] [-plot out.png]")
		flag.PrintDefaults()
		os.Exit(1)
	}
	if *fps <= 0 {
		log.Fatal("fps must be positive")
	}

	cfg := config.DefaultTuningConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadTuningConfig(*configPath); err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	sock, err := sensorlink.OpenPcap(*pcapFile, *port)
	if err != nil {
		log.Fatalf("%v", err)
	}
	log.Printf("loaded %d datagrams spanning %v from %s", sock.Len(), sock.Duration(), *pcapFile)
	if sock.Len() == 0 {
		log.Fatal("no sensor datagrams in capture")
	}

	clock := timeutil.NewMockClock(time.Unix(0, 0).UTC())
	link := sensorlink.NewLink(sensorlink.LinkConfig{
		Address:        fmt.Sprintf("127.0.0.1:%d", *port),
		ReceiveTimeout: cfg.GetReceiveTimeout(),
		StaleTimeout:   cfg.GetStaleTimeout(),
		MaxDrain:       cfg.GetMaxDrainPackets(),
		Factory:        sensorlink.PcapSocketFactory{Socket: sock},
		Clock:          clock,
	})
	if err := link.Initialize(); err != nil {
		log.Fatalf("%v", err)
	}
	defer link.Shutdown()

	tracker := pose.NewTracker(pose.ConfigFromTuning(cfg), pose.NewTrackingSession(true), link)
	cam := host.NewSimCamera("PlayerCamera")

	var plotter *monitoring.TracePlotter
	if *plotOut != "" {
		plotter = monitoring.NewTracePlotter(fmt.Sprintf("Head offsets: %s", *pcapFile))
	}

	linger := *tail
	if linger <= 0 {
		linger = cfg.GetStaleTimeout()
	}
	interval := time.Second / time.Duration(*fps)
	end := sock.Duration() + linger

	var frame uint64
	var lost int
	for elapsed := time.Duration(0); elapsed <= end; elapsed += interval {
		frame++
		tracker.Update(frame, cam)
		clock.Advance(interval)

		s := link.PeekLatest()
		if !s.Valid {
			lost++
		}
		yaw, pitch, roll := tracker.Offsets()
		if plotter != nil {
			plotter.Add(monitoring.TraceSample{
				Frame: frame, Yaw: yaw, Pitch: pitch, Roll: roll,
				Influence: tracker.Influence(), Valid: s.Valid,
			})
		}
		if *every > 0 && frame%uint64(*every) == 0 {
			fmt.Printf("frame=%6d t=%8.3fs state=%-10s yaw=%7.2f pitch=%7.2f roll=%7.2f valid=%v\n",
				frame, elapsed.Seconds(), tracker.State(), yaw, pitch, roll, s.Valid)
		}
	}

	st := link.Stats()
	log.Printf("replayed %d frames: %d datagrams received, %d short, %d coalesced, %d frames without data, %d recomputes",
		frame, st.Received, st.Short, st.Coalesced, lost, tracker.Recomputes())
	if !sock.Exhausted() {
		log.Printf("Warning: capture not fully consumed")
	}

	if plotter != nil {
		if err := plotter.Save(*plotOut); err != nil {
			log.Fatalf("failed to write plot: %v", err)
		}
		log.Printf("✓ Wrote %s and %s", *plotOut, monitoring.InfluencePath(*plotOut))
	}
}
