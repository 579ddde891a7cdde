package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"terrasync/fakeserver"
	"terrasync/netlink"
	"terrasync/scenesync"
	"terrasync/wire"
	"terrasync/world"
)

var (
	host       string
	path       string
	secure     bool
	doDebug    bool
	fake       bool
	dumpSchema bool
	headless   bool
)

func main() {
	flag.StringVar(&host, "host", "", "server host[:port] (overrides settings)")
	flag.StringVar(&path, "path", "", "websocket path (overrides settings)")
	flag.BoolVar(&secure, "secure", false, "connect with wss://")
	flag.BoolVar(&doDebug, "debug", false, "verbose/debug logging")
	flag.BoolVar(&fake, "fake", false, "run against a local simulated server")
	flag.BoolVar(&dumpSchema, "dumpSchema", false, "print the JSON schema of server frames and exit")
	flag.BoolVar(&headless, "headless", false, "run without a window and log scene updates")
	flag.Parse()

	if dumpSchema {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(wire.Schema()); err != nil {
			fmt.Fprintf(os.Stderr, "dump schema: %v\n", err)
			os.Exit(1)
		}
		return
	}

	loadSettings()
	applyFlags()
	setupLogging(doDebug)
	if !settingsLoaded {
		logDebug("no settings file in %s, using defaults", dataDirPath)
	}

	if err := run(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// applyFlags copies explicitly set flags over the loaded settings.
func applyFlags() {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			gs.Host = host
		case "path":
			gs.Path = path
		case "secure":
			gs.Secure = secure
		}
	})
	clampSettings()
}

// reportServeError logs the result of a background server once it stops.
func reportServeError(name string, errc <-chan error) {
	if err := <-errc; err != nil {
		logError("%s: %v", name, err)
	}
}

func run() (err error) {
	defer func() {
		if r := recover(); r != nil {
			logPanic(r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	url := serverURL()
	if fake {
		srv := fakeserver.New(fakeserver.Config{Logger: logger})
		addr, errc, err := srv.ListenAndServe(ctx, "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("start fake server: %w", err)
		}
		go reportServeError("fake server", errc)
		url = "ws://" + addr.String() + "/ws"
	}

	store := world.NewStore()
	idle := time.Duration(gs.IdleTimeoutMS) * time.Millisecond
	opts := netlink.Options{
		URL:            url,
		ReconnectDelay: time.Duration(gs.ReconnectDelayMS) * time.Millisecond,
		IdleTimeout:    idle,
		Dialer: netlink.WSDialer{
			ReadLimit:   int64(gs.MaxFrameMB) << 20,
			IdleTimeout: idle,
		},
		Logger: logger,
	}
	if doDebug {
		opts.Trace = func(frame []byte) { logDebugPacket("recv", frame) }
	}
	link := netlink.New(store, opts)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := link.Run(ctx); err != nil && ctx.Err() == nil {
			logError("link: %v", err)
		}
	}()
	defer wg.Wait()
	defer cancel()

	syncOpts := scenesync.Options{
		DefaultGridWidth:  gs.DefaultGridWidth,
		DefaultGridHeight: gs.DefaultGridHeight,
		Logger:            logger,
	}

	if headless {
		scene := &scenesync.LogScene{Log: logger.WithField("component", "scene")}
		s := scenesync.New(store, scene, syncOpts)
		defer s.Close()
		s.Resize(gs.WindowWidth, gs.WindowHeight)
		<-ctx.Done()
		logInfo("shutting down")
		return nil
	}

	if err := initFont(); err != nil {
		return err
	}
	cache, err := newLabelCache(gs.LabelCacheMB)
	if err != nil {
		return fmt.Errorf("label cache: %w", err)
	}
	defer cache.Close()

	scene := newMeshScene(gs.OwnershipOpacity, cache)
	defer scene.Dispose()
	s := scenesync.New(store, scene, syncOpts)
	defer s.Close()

	logInfo("connecting to %s", url)
	return runGame(newGame(ctx, scene, s, link))
}
