package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"
	"net/url"
	"os"
	"reflect"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/aukilabs/jaws/featureflag"
	"github.com/aukilabs/jaws/generator"
	jawshttp "github.com/aukilabs/jaws/http"
	"github.com/aukilabs/jaws/models"
	"github.com/aukilabs/jaws/quadtree"
	"github.com/aukilabs/jaws/smoketest"
	jawswebsocket "github.com/aukilabs/jaws/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

var (
	// The jaws version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "jaws_info",
		Help:        "Jaws information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr               string        `cli:""        env:"JAWS_ADDR"                 help:"Listening address for client connections."`
	AdminAddr          string        `cli:""        env:"JAWS_ADMIN_ADDR"           help:"Admin listening address."`
	PublicEndpoint     string        `cli:""        env:"JAWS_PUBLIC_ENDPOINT"      help:"The public endpoint where this server is reachable."`
	AuthToken          string        `cli:""        env:"JAWS_AUTH_TOKEN"           help:"Bearer token required by the API and realtime endpoints. Empty disables authentication."`
	LogLevel           string        `cli:""        env:"JAWS_LOG_LEVEL"            help:"Log level (debug|info|warning|error)."`
	LogIndent          bool          `cli:""        env:"JAWS_LOG_INDENT"           help:"Indent logs."`
	SyncClockInterval  time.Duration `cli:",hidden" env:"JAWS_SYNC_CLOCK_INTERVAL"  help:"Client sync clock (heartbeat) message interval."`
	ClientIdleTimeout  time.Duration `cli:",hidden" env:"JAWS_CLIENT_IDLE_TIMEOUT"  help:"Time until an idle client will be disconnected"`
	LogSummaryInterval time.Duration `cli:",hidden" env:"JAWS_LOG_SUMMARY_INTERVAL" help:"The duration between each log summary by connection."`
	World              worldConfig   `cli:""        env:"-"                         help:"Default world configuration."`
	Events             eventsConfig  `cli:",hidden" env:"-"                         help:"Event pusher configuration."`
	FeatureFlags       []string      `cli:",hidden" env:"JAWS_FEATURE_FLAGS"        help:"Comma separated feature flags"`
	Version            bool          `cli:""        env:"-"                         help:"Show version."`
	Help               bool          `cli:""        env:"-"                         help:"Show help."`
}

type worldConfig struct {
	Seed              bool    `cli:""        env:"JAWS_WORLD_SEED"               help:"Create a world at startup."`
	Topology          string  `cli:""        env:"JAWS_WORLD_TOPOLOGY"           help:"Face arrangement of new worlds (cube|double|single)."`
	FaceArea          float64 `cli:""        env:"JAWS_WORLD_FACE_AREA"          help:"Area of a root face in square kilometers."`
	Layers            int     `cli:""        env:"JAWS_WORLD_LAYERS"             help:"Number of atmospheric layers per cell."`
	Temperature       float64 `cli:""        env:"JAWS_WORLD_TEMPERATURE"        help:"Initial temperature in Kelvin."`
	Humidity          float64 `cli:""        env:"JAWS_WORLD_HUMIDITY"           help:"Initial humidity in saturation percentage."`
	Pressure          float64 `cli:""        env:"JAWS_WORLD_PRESSURE"           help:"Initial air pressure in hectopascal."`
	ParallelThreshold int     `cli:",hidden" env:"JAWS_WORLD_PARALLEL_THRESHOLD" help:"Minimum number of neighbor fix-ups processed in parallel. 0 disables parallelism."`
	Workers           int     `cli:",hidden" env:"JAWS_WORLD_WORKERS"            help:"Number of goroutines used for parallel neighbor fix-ups."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"JAWS_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed."`
	FlushInterval time.Duration `cli:",hidden" env:"JAWS_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"JAWS_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"JAWS_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	conf := config{
		Addr:               ":4000",
		AdminAddr:          ":18190",
		PublicEndpoint:     "http://localhost:4000",
		LogLevel:           logs.InfoLevel.String(),
		SyncClockInterval:  time.Second * 5,
		ClientIdleTimeout:  time.Minute * 5,
		LogSummaryInterval: time.Minute,
		World: worldConfig{
			Seed:              true,
			Topology:          string(generator.TopologyCube),
			FaceArea:          generator.DefaultFaceArea,
			Layers:            generator.DefaultLayers,
			Temperature:       generator.DefaultTemperature,
			Humidity:          generator.DefaultHumidity,
			Pressure:          generator.DefaultPressure,
			ParallelThreshold: 256,
		},
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts the jaws world server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	transport := metrics.HTTPTransport(http.DefaultTransport)

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     transport,
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "jaws",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	featureFlags := featureflag.New(conf.FeatureFlags)
	worldOptions := newWorldOptions(conf.World, featureFlags)

	var worlds models.WorldStore
	if conf.World.Seed {
		world, err := seedWorld(ctx, &worlds, worldOptions)
		if err != nil {
			logs.Fatal(errors.New("seeding world failed").Wrap(err))
		}

		logs.WithTag("world_id", world.WorldUUID).
			WithTag("topology", worldOptions.Topology).
			WithTag("cells", world.CellCount()).
			Info("world seeded")
	}

	var service http.ServeMux

	api := jawshttp.API{
		Worlds:       &worlds,
		Defaults:     worldOptions,
		FeatureFlags: featureFlags,
	}
	var apiMux http.ServeMux
	api.Routes(&apiMux)
	service.Handle("/worlds", jawshttp.HandleWithCORS(http.HandlerFunc(jawshttp.VerifyAuthTokenHandler(conf.AuthToken, apiMux.ServeHTTP))))
	service.Handle("/worlds/", jawshttp.HandleWithCORS(http.HandlerFunc(jawshttp.VerifyAuthTokenHandler(conf.AuthToken, apiMux.ServeHTTP))))

	service.Handle("/health", jawshttp.HandleWithCORS(http.HandlerFunc(jawshttp.HandleHealthCheck)))
	service.Handle("/version", jawshttp.HandleWithCORS(http.HandlerFunc(jawshttp.HandleVersion(version))))

	smokeTestOptions := smoketest.Options{
		Topology:    worldOptions.Topology,
		TreeOptions: worldOptions.TreeOptions,
	}
	service.HandleFunc("/smoke-test", jawshttp.VerifyAuthTokenHandler(conf.AuthToken, smoketest.HandleSmokeTest(ctx, smokeTestOptions)))

	readinessCheck := func() bool {
		return ctx.Err() == nil
	}
	service.Handle("/ready", jawshttp.HandleWithCORS(http.HandlerFunc(jawshttp.HandleReadyCheck(readinessCheck))))

	service.Handle("/", jawshttp.HandleWithCORS(websocket.Server{
		Handshake: jawshttp.VerifyAuthToken(conf.AuthToken),
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			var rh jawswebsocket.Handler = &jawswebsocket.RealtimeHandler{
				ClientSyncClockInterval: conf.SyncClockInterval,
				ClientIdleTimeout:       conf.ClientIdleTimeout,
				Worlds:                  &worlds,
				FeatureFlags:            featureFlags,
			}
			h := jawswebsocket.HandlerWithLogs(rh, conf.LogSummaryInterval)
			h = jawswebsocket.HandlerWithMetrics(h, conf.PublicEndpoint)
			defer h.Close()

			jawswebsocket.Handle(ctx, conn, h)
		},
	}))

	service.Handle("/ping", websocket.Server{
		Handler: func(ws *websocket.Conn) {
			defer ws.Close()
			io.Copy(ws, ws)
		},
	})

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", jawshttp.HandleHealthCheck)
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))
	admin.HandleFunc("/ready", jawshttp.HandleReadyCheck(readinessCheck))
	admin.HandleFunc("/smoke-test", smoketest.HandleSmokeTest(ctx, smokeTestOptions))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("endpoint", conf.PublicEndpoint).
		WithTag("feature_flags", conf.FeatureFlags).
		Info("starting jaws server")

	jawshttp.ListenAndServe(ctx,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(jawshttp.LogRequests(&service),
			jawshttp.MetricsPathFormatter)},
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	)

	for _, w := range worlds.List() {
		worlds.Remove(context.Background(), w)
	}
}

func newWorldOptions(conf worldConfig, featureFlags featureflag.FeatureFlag) generator.Options {
	threshold := conf.ParallelThreshold
	featureFlags.IfSet(featureflag.FlagDisableParallelFixups, func() {
		threshold = 0
	})

	treeOptions := []quadtree.Option{
		quadtree.WithParallelFixups(threshold),
	}
	if conf.Workers > 0 {
		treeOptions = append(treeOptions, quadtree.WithWorkers(conf.Workers))
	}

	// Already checked by validateConfig.
	topology, _ := generator.ParseTopology(conf.Topology)

	return generator.Options{
		Topology:    topology,
		FaceArea:    conf.FaceArea,
		Layers:      conf.Layers,
		Temperature: generator.Float(float32(conf.Temperature)),
		Humidity:    generator.Float(float32(conf.Humidity)),
		Pressure:    generator.Float(float32(conf.Pressure)),
		TreeOptions: treeOptions,
	}
}

func seedWorld(ctx context.Context, worlds *models.WorldStore, opts generator.Options) (*models.World, error) {
	tree, err := generator.Generate(opts)
	if err != nil {
		return nil, err
	}

	world := models.NewWorld(worlds.NewID(), tree)
	if err := worlds.Add(ctx, world); err != nil {
		return nil, err
	}
	return world, nil
}

func validateConfig(conf config) error {
	if _, err := url.ParseRequestURI(conf.PublicEndpoint); err != nil {
		return errors.New("invalid public endpoint").Wrap(err)
	}

	if _, err := generator.ParseTopology(conf.World.Topology); err != nil {
		return err
	}

	if conf.World.FaceArea <= 0 {
		return errors.New("world face area must be positive").
			WithTag("face_area", conf.World.FaceArea)
	}

	if conf.World.Layers <= 0 {
		return errors.New("world layer count must be positive").
			WithTag("layers", conf.World.Layers)
	}

	if conf.World.ParallelThreshold < 0 {
		return errors.New("parallel threshold must not be negative").
			WithTag("parallel_threshold", conf.World.ParallelThreshold)
	}
	return nil
}
