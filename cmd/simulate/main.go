// Command simulate is the CLI driver for one simulation run (spec.md
// §6). Grounded on the teacher's own main.go: stdlib flag for argument
// parsing, logrus + logrus-easy-formatter for structured output, yaml.v2
// for the config file, replacing its gRPC-server bootstrap with a single
// load-run-write sequence since this engine is a library plus a CLI, not
// a network service (see DESIGN.md, "Dropped teacher code").
package main

import (
	"flag"
	"os"

	easy "git.fiblab.net/utils/logrus-easy-formatter"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/roadsim-go/config"
	"github.com/tsinghua-fib-lab/roadsim-go/engine"
)

var (
	configPath = flag.String("config", "", "config file path (YAML, overrides defaults)")
	networkArg = flag.String("network", "", "prepared road-network JSON file (overrides config's network_file)")
	outPath    = flag.String("out", "out.bin", "output path for the binary event blob")

	logLevels = map[string]logrus.Level{
		"trace": logrus.TraceLevel,
		"debug": logrus.DebugLevel,
		"info":  logrus.InfoLevel,
		"warn":  logrus.WarnLevel,
		"error": logrus.ErrorLevel,
		"off":   logrus.PanicLevel,
	}
	logLevel = flag.String("log.level", "info", "log level (trace debug info warn error off)")

	log = logrus.WithField("module", "simulate")
)

func main() {
	flag.Parse()
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	if level, ok := logLevels[*logLevel]; ok {
		logrus.SetLevel(level)
	} else {
		log.Panicf("log.level must be one of %v", logLevels)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Panicf("config load: %v", err)
	}
	if *networkArg != "" {
		cfg.NetworkFile = *networkArg
	}
	if cfg.NetworkFile == "" {
		log.Panic("network file must be set via -network or config's network_file")
	}

	net, err := engine.LoadNetwork(cfg.NetworkFile)
	if err != nil {
		log.Panicf("network load: %v", err)
	}
	log.WithField("nodes", len(net.Nodes)).
		WithField("ways", len(net.Ways)).
		WithField("crossroads", len(net.Crossroads)).
		Info("network assembled")

	result, err := engine.Simulate(net, cfg)
	if err != nil {
		log.Panicf("simulate: %v", err)
	}

	if err := os.WriteFile(*outPath, result.Blob, 0o644); err != nil {
		log.Panicf("writing output: %v", err)
	}
	log.WithField("bytes", len(result.Blob)).WithField("path", *outPath).Info("wrote output blob")
}
