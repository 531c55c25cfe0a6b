// Command e16coredemo wires the window-manager core packages into a
// runnable process entry: open the display, probe extensions, build
// the registry/grab manager/event pump/animation engine/hints engine,
// load persisted groups, acquire the tray manager selection, and run
// the pump loop until the connection is lost or the process is asked
// to exit.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jezek/xgb/xproto"

	"github.com/burzumishi/e16go/internal/anim"
	"github.com/burzumishi/e16go/internal/clock"
	"github.com/burzumishi/e16go/internal/config"
	"github.com/burzumishi/e16go/internal/eventloop"
	"github.com/burzumishi/e16go/internal/grab"
	"github.com/burzumishi/e16go/internal/group"
	"github.com/burzumishi/e16go/internal/hints"
	"github.com/burzumishi/e16go/internal/screen"
	"github.com/burzumishi/e16go/internal/selection"
	"github.com/burzumishi/e16go/internal/sound"
	"github.com/burzumishi/e16go/internal/timerq"
	"github.com/burzumishi/e16go/internal/win"
	"github.com/burzumishi/e16go/internal/xconn"
	"github.com/burzumishi/e16go/internal/xext"
)

func main() {
	display := flag.String("display", "", "X display name, empty uses $DISPLAY")
	screenIdx := flag.Int("screen", -1, "screen index override, -1 keeps the server default")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	if !*verbose {
		log.SetFlags(0)
	}

	if err := config.EnsureInitialized(); err != nil {
		log.Fatalf("e16coredemo: config: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("e16coredemo: config: %v", err)
	}

	conn, err := xconn.Open(*display, *screenIdx,
		xconn.WithLogErrors(*verbose),
		xconn.WithNoSyncMask(cfg.NoSyncDebugMask),
		xconn.WithFatalHandler(func(cause error) {
			log.Printf("e16coredemo: fatal: connection lost: %v", cause)
			os.Exit(1)
		}),
	)
	if err != nil {
		log.Fatalf("e16coredemo: open display: %v", err)
	}
	defer conn.Close()

	probe := xext.Query(conn.X())

	reg := win.NewRegistry(conn)
	grabs := grab.New(conn, probe)
	log.Printf("e16coredemo: grab backend %v", grabs.Backend())

	heads := screen.New(conn, probe, 1, 1)
	log.Printf("e16coredemo: %d head(s) detected", heads.NumHeads())

	groups := group.New()
	groupFile := filepath.Join(config.Dir(), "e16go.groups")
	if f, err := os.Open(groupFile); err == nil {
		if err := groups.LoadFromStream(f); err != nil {
			log.Printf("e16coredemo: load groups: %v", err)
		}
		f.Close()
	}

	hintsEngine, err := hints.New(conn.X())
	if err != nil {
		log.Fatalf("e16coredemo: hints: %v", err)
	}

	rootID, err := reg.Register(conn.Root(), &xproto.GetGeometryReply{
		Width: conn.Screen().WidthInPixels, Height: conn.Screen().HeightInPixels,
	})
	if err != nil {
		log.Fatalf("e16coredemo: register root: %v", err)
	}
	_ = reg.CallbackRegister(rootID, func(_ *win.Win, ev any, _ any) {
		cm, ok := ev.(xproto.ClientMessageEvent)
		if !ok {
			return
		}
		if by, consumed := hintsEngine.Dispatch(cm.Window, cm); consumed {
			log.Printf("e16coredemo: client message on %v consumed by %s", cm.Window, by)
		}
	}, nil)

	soundTable := map[string]string{}
	player := sound.New(soundTable)
	defer player.Close()

	animEngine := anim.New(cfg.FrameRate, player)

	timers := timerq.New()
	var render eventloop.RenderHook
	pump := eventloop.New(conn, probe, reg, timers, render, clock.Millis)

	traySelName := fmt.Sprintf("_NET_SYSTEM_TRAY_S%d", cfg.SystrayScreen)
	trayOwner, err := selection.Acquire(conn, traySelName, func(name string) {
		log.Printf("e16coredemo: lost selection %s", name)
	})
	if err != nil {
		log.Printf("e16coredemo: could not acquire %s: %v", traySelName, err)
	} else {
		defer trayOwner.Release()
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	pump.Start()
	defer pump.Stop()

	for {
		select {
		case <-sigc:
			log.Println("e16coredemo: shutting down")
			if err := persistGroups(groupFile, groups); err != nil {
				log.Printf("e16coredemo: save groups: %v", err)
			}
			return
		default:
		}

		pump.RunOnce(true)
		animEngine.Tick()
	}
}

func persistGroups(path string, groups *group.Registry) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return group.SaveToStream(f, groups.ListAll())
}
