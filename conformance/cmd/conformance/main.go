package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jessevdk/go-flags"
	jsoniter "github.com/json-iterator/go"
	"github.com/plgd-dev/websub-hub/conformance"
	"github.com/plgd-dev/websub-hub/pkg/config"
	"github.com/plgd-dev/websub-hub/pkg/log"
	"go.uber.org/zap/zapcore"
)

type options struct {
	Config         string        `long:"config" description:"yaml config file path, overrides the other options"`
	Hub            string        `long:"hub" env:"HUB_URL" description:"URL of the tested hub" required:"true"`
	Host           string        `long:"host" env:"HOSTNAME" default:"localhost" description:"host name under which the hub reaches the harness"`
	PublisherPort  int           `long:"publisher-port" default:"3001" description:"port of the publisher"`
	SubscriberPort int           `long:"subscriber-port" default:"3002" description:"port of the subscriber"`
	Timeout        time.Duration `long:"timeout" default:"10s" description:"wait for an expected request of the hub"`
	Parallel       int           `long:"parallel" default:"4" description:"number of concurrently running scenarios"`
	Verbose        bool          `short:"v" long:"verbose" description:"log requests to stderr"`
}

type summary struct {
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

func loadConfig(opts options) (conformance.Config, error) {
	cfg := conformance.MakeDefaultConfig(opts.Hub, opts.Host)
	if opts.Config != "" {
		if err := config.Read(opts.Config, &cfg); err != nil {
			return cfg, err
		}
		return cfg, cfg.Validate()
	}
	cfg.Publisher.Connection.Addr = ":" + strconv.Itoa(opts.PublisherPort)
	cfg.Publisher.ExternalURL = "http://" + opts.Host + ":" + strconv.Itoa(opts.PublisherPort)
	cfg.Subscriber.Connection.Addr = ":" + strconv.Itoa(opts.SubscriberPort)
	cfg.Subscriber.ExternalURL = "http://" + opts.Host + ":" + strconv.Itoa(opts.SubscriberPort)
	cfg.Timeout = opts.Timeout
	cfg.Parallel = opts.Parallel
	cfg.Log.Level = zapcore.WarnLevel
	if opts.Verbose {
		cfg.Log.Level = zapcore.DebugLevel
	}
	return cfg, cfg.Validate()
}

func run() (bool, error) {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		return false, err
	}
	cfg, err := loadConfig(opts)
	if err != nil {
		return false, fmt.Errorf("invalid config: %w", err)
	}
	logger := log.NewLogger(cfg.Log)
	log.Set(logger)

	h, err := conformance.New(cfg, logger)
	if err != nil {
		return false, err
	}
	defer func() {
		if errC := h.Close(); errC != nil {
			logger.Errorf("cannot close harness: %w", errC)
		}
	}()

	enc := jsoniter.NewEncoder(os.Stdout)
	results := h.Run(context.Background(), conformance.Scenarios(), func(r conformance.Result) {
		_ = enc.Encode(r)
	})
	var s summary
	for _, r := range results {
		if r.Passed {
			s.Passed++
		} else {
			s.Failed++
		}
	}
	_ = enc.Encode(s)
	return results.Passed(), nil
}

func main() {
	passed, err := run()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if !passed {
		os.Exit(1)
	}
}
