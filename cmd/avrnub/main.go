package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/rkjdid/util"

	"github.com/avrnub/go-avrnub/bridge"
	"github.com/avrnub/go-avrnub/clock"
	"github.com/avrnub/go-avrnub/counter"
	"github.com/avrnub/go-avrnub/debounce"
	"github.com/avrnub/go-avrnub/engine"
	"github.com/avrnub/go-avrnub/hal"
	"github.com/avrnub/go-avrnub/hal/halsim"
	"github.com/avrnub/go-avrnub/isp"
	"github.com/avrnub/go-avrnub/script"
	"github.com/avrnub/go-avrnub/script/scriptbin"
	"github.com/avrnub/go-avrnub/target"
)

const Version = "0.1.0"

var rootConfig *Config

var (
	device   = flag.String("dev", "", "path to the adapter serial port, overrides config")
	rootPath = flag.String("root", "", "path to avrnub's main directory (defaults to executable path)")
	cfgPath  = flag.String("config", "", "path to config (defaults to <root>/config.toml)")
	simMode  = flag.Bool("sim", false, "run against the simulated board, <Enter> presses the switch")
	verbose  = flag.Bool("v", false, "higher verbosity")
	version  = flag.Bool("version", false, "print version & exit")
)

func init() {
	flag.Parse()

	if *version {
		fmt.Printf("avrnub %s\n", Version)
		os.Exit(0)
	}

	if *rootPath == "" {
		exe, err := os.Executable()
		if err != nil {
			log.Fatalf("couldn't get path to executable: %s", err)
		}
		*rootPath = filepath.Dir(exe)
	}
	if err := os.MkdirAll(*rootPath, 0755); err != nil {
		log.Fatalf("couldn't mkdir \"%s\": %s", *rootPath, err)
	}

	if *cfgPath == "" {
		*cfgPath = filepath.Join(*rootPath, "config.toml")
	}

	err := util.ReadTomlFile(&rootConfig, *cfgPath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Fatalf("error reading config \"%s\": %s", *cfgPath, err)
		}
		rootConfig = &DefaultConfig
		err = util.WriteTomlFile(rootConfig, *cfgPath)
		if err != nil {
			log.Fatalf("error creating config \"%s\": %s", *cfgPath, err)
		}
		log.Printf("created new config file \"%s\"", *cfgPath)
	}

	if *device != "" {
		rootConfig.Device = *device
	}
	log.Printf("using config file: %s", *cfgPath)
}

func main() {
	dev, err := target.Default().Lookup(rootConfig.Target)
	if err != nil {
		log.Fatalf("unknown target \"%s\": %s", rootConfig.Target, err)
	}

	image := loadScript(resolve(rootConfig.Script))
	cycles := openCounter(resolve(rootConfig.Counter), rootConfig.Cycles)

	var (
		board hal.Hardware
		port  isp.Port
	)
	if *simMode {
		sim := halsim.New()
		board = sim
		port = &simPort{dev: dev}
		go pressOnEnter(sim)
		log.Println("simulated board, press <Enter> to trigger a session")
	} else {
		br, err := bridge.Open(rootConfig.Device, bridgeOptions()...)
		if err != nil {
			log.Fatal("error opening adapter: ", err)
		}
		defer br.Close()
		board = br
		port = br
		log.Printf("connected to \"%s\"", rootConfig.Device)
	}

	runner := engine.RunnerFunc(func() script.Result {
		drv := isp.New(port, dev, ispOptions()...)
		return script.NewInterpreter(drv).Run(scriptbin.NewDecoder(image))
	})

	ticks := clock.NewTimeSource()
	ticks.Start()
	defer ticks.Stop()

	e := engine.New(board, ticks, cycles, runner,
		engine.WithPollInterval(time.Duration(rootConfig.PollRate)),
		engine.WithCompatSignaling(rootConfig.Compat),
		engine.WithResultHook(func(res script.Result) {
			log.Printf("session finished: %s", res)
			if res == script.NoProgramAvailable {
				return
			}
			if err := cycles.Decrement(); err != nil {
				log.Println("error persisting cycle counter:", err)
			}
			if n := cycles.Remaining(); n != counter.Unlimited {
				log.Printf("cycles remaining: %d", n)
			}
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- e.Run(ctx) }()

	log.Printf("target %s, %d cycles budgeted", dev.Name, cycles.Remaining())
	log.Println("Press <Ctrl-C> to quit")

	trap := make(chan os.Signal, 1)
	signal.Notify(trap, os.Interrupt)
	select {
	case <-trap:
		fmt.Println()
		log.Println("quit received...")
		cancel()
		// the loop may be blocked in Halt waiting for a wake line
		select {
		case <-errc:
		case <-time.After(3 * time.Second):
		}
	case err := <-errc:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Fatal(err)
		}
	}
}

// resolve anchors a relative path at the -root directory.
func resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(*rootPath, path)
}

// loadScript reads the script image. A missing file is not fatal: the
// interpreter reports it as no-program, same as an unflashed device.
func loadScript(path string) []byte {
	image, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Fatalf("error reading script \"%s\": %s", path, err)
		}
		log.Printf("no script image at \"%s\"", path)
		return nil
	}
	log.Printf("loaded script \"%s\" (%d bytes)", path, len(image))
	return image
}

// openCounter reads the cycle counter file, creating it with the
// configured budget on first run.
func openCounter(path string, initial int) *counter.Counter {
	c, err := counter.Open(path)
	if err == nil {
		return c
	}
	if !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("error reading counter \"%s\": %s", path, err)
	}
	c, err = counter.Create(path, uint16(initial))
	if err != nil {
		log.Fatalf("error creating counter \"%s\": %s", path, err)
	}
	log.Printf("created counter file \"%s\" (budget %d)", path, initial)
	return c
}

// pressOnEnter turns every line on stdin into a short press of the
// simulated on-board switch.
func pressOnEnter(board *halsim.Board) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		board.SetSwitches(debounce.SwitchOnboard)
		time.Sleep(100 * time.Millisecond)
		board.SetSwitches(0)
	}
}

func ispOptions() []isp.Option {
	if *verbose {
		return []isp.Option{isp.WithLogger(stdLogger{})}
	}
	return nil
}

func bridgeOptions() []bridge.Option {
	if *verbose {
		return []bridge.Option{bridge.WithLogger(stdLogger{})}
	}
	return nil
}

// stdLogger adapts the standard logger to the driver's interface.
type stdLogger struct{}

func (stdLogger) Debug(msg string, keysAndValues ...interface{}) {
	log.Println(append([]interface{}{"debug:", msg}, keysAndValues...)...)
}

func (stdLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Println(append([]interface{}{msg}, keysAndValues...)...)
}

func (stdLogger) Error(msg string, keysAndValues ...interface{}) {
	log.Println(append([]interface{}{"error:", msg}, keysAndValues...)...)
}
