package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	scryfall "github.com/BlueMonday/go-scryfall"
	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"setbuilder/builder"
	"setbuilder/config"
	"setbuilder/fetch"
	"setbuilder/log"
	"setbuilder/output"
	"setbuilder/sources"
	"setbuilder/sources/gatherer"
	"setbuilder/sources/mtgwtf"
)

type appConfig struct {
	sets       setCodes
	all        bool
	configPath string
	outputDir  string
	cacheDir   string
	parallel   int
	fullOut    bool
	debug      bool
}

func parseFlags() appConfig {
	var (
		conf        appConfig
		showVersion bool
	)

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags]\n\nFlags:\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}

	flag.Var(&conf.sets, "set", "set code to build (can have multiple)")
	flag.BoolVar(&conf.all, "all", false, "build every set in the config")
	flag.StringVar(&conf.configPath, "config", "sets.json", "set config file")
	flag.StringVar(&conf.outputDir, "output", "", "destination folder (defaults to the current folder)")
	flag.StringVar(&conf.cacheDir, "cache", "", "cache fetched pages in this folder")
	flag.IntVar(&conf.parallel, "parallel", 4, "number of sets built concurrently")
	flag.BoolVar(&conf.fullOut, "full-out", false, "also write AllSets.json, AllSetsArray.json and AllCards.json")
	if len(version) > 0 {
		flag.BoolVar(&showVersion, "version", false, "display the version information")
	}
	flag.BoolVar(&conf.debug, "debug", false, "enable debug logging")

	flag.Parse()

	if showVersion {
		displayBuildInformation()
		os.Exit(0)
	}

	if conf.all && len(conf.sets) > 0 {
		fmt.Fprint(os.Stderr, "\"-set\" and \"-all\" cannot be used at the same time\n\n")
		flag.Usage()
		os.Exit(1)
	}

	if !conf.all && len(conf.sets) == 0 {
		fmt.Fprint(os.Stderr, "Either \"-set\" or \"-all\" is required\n\n")
		flag.Usage()
		os.Exit(1)
	}

	if conf.parallel < 1 {
		fmt.Fprint(os.Stderr, "\"-parallel\" must be at least 1\n\n")
		flag.Usage()
		os.Exit(1)
	}

	return conf
}

func checkCreateDir(path string) error {
	if stat, err := os.Stat(path); os.IsNotExist(err) {
		log.Infof("Output folder %s doesn't exist, creating it", path)
		if err = os.MkdirAll(path, 0o755); err != nil {
			return err
		}
	} else if err != nil {
		return fmt.Errorf("invalid path %s: %w", path, err)
	} else if !stat.IsDir() {
		return fmt.Errorf("output folder %s is not a directory", path)
	}

	return nil
}

// selectSets resolves the -set flags against the config, or returns every
// configured set with -all. An unknown code is a configuration error.
func selectSets(conf appConfig, configured []sources.SetInfo) []sources.SetInfo {
	if conf.all {
		return configured
	}

	byCode := make(map[string]sources.SetInfo, len(configured))
	for _, set := range configured {
		byCode[strings.ToUpper(set.Code)] = set
	}

	selected := make([]sources.SetInfo, 0, len(conf.sets))
	for _, code := range conf.sets {
		set, found := byCode[strings.ToUpper(code)]
		if !found {
			log.Fatalf("Set %s is not in %s", code, conf.configPath)
		}
		selected = append(selected, set)
	}

	return selected
}

func main() {
	conf := parseFlags()

	var zapConf zap.Config

	if conf.debug {
		zapConf = zap.NewDevelopmentConfig()
		zapConf.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	} else {
		zapConf = zap.NewProductionConfig()
		zapConf.Encoding = "console"
		zapConf.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
		zapConf.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
		zapConf.EncoderConfig.EncodeCaller = nil
	}

	// Skip 1 caller, since all log calls will be done from setbuilder/log
	logger, err := zapConf.Build(zap.AddCallerSkip(1))
	if err != nil {
		fmt.Fprint(os.Stderr, err.Error())
		os.Exit(1)
	}
	defer func() {
		// Don't check for errors since logger.Sync() can sometimes fail
		// even if the logs were properly displayed
		// See https://github.com/uber-go/zap/issues/328
		_ = logger.Sync()
	}()

	log.SetLogger(logger.Sugar())

	if len(conf.outputDir) == 0 {
		conf.outputDir, err = os.Getwd()
		if err != nil {
			log.Fatal(err)
		}
	}

	if err = checkCreateDir(conf.outputDir); err != nil {
		log.Fatal(err)
	}

	configured, err := config.Load(conf.configPath)
	if err != nil {
		log.Fatal(err)
	}

	selected := selectSets(conf, configured)

	ctx := context.Background()

	catalog, err := scryfall.NewClient()
	if err != nil {
		log.Fatal(err)
	}

	selected, err = config.Resolve(ctx, catalog, selected)
	if err != nil {
		log.Fatal(err)
	}

	if len(selected) == 0 {
		log.Info("Nothing to build")
		return
	}

	var cacheOptions []fetch.ClientOption
	if len(conf.cacheDir) > 0 {
		// Badger logs to stderr through its own logger unless silenced
		cacheDB, err := badger.Open(badger.DefaultOptions(conf.cacheDir).WithLogger(nil))
		if err != nil {
			log.Fatalf("Couldn't open the page cache in %s: %v", conf.cacheDir, err)
		}
		defer func() {
			_ = cacheDB.Close()
		}()

		// Both providers share the database; the keys carry the host
		cacheOptions = append(cacheOptions, fetch.WithCacheDB(cacheDB))
	}

	primary := gatherer.NewProvider(cacheOptions...)
	// The reference site sits behind Cloudflare, so its client gets the
	// bypass transport on top of the shared cache options.
	secondary := mtgwtf.NewProvider(append([]fetch.ClientOption{fetch.WithCloudflareBypass()}, cacheOptions...)...)

	build := builder.New(primary, builder.WithSecondary(secondary))

	log.Infof("Generated files will go in %s", conf.outputDir)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(conf.parallel)

	for _, set := range selected {
		group.Go(func() error {
			log.Infof("Building %s (%s)", set.Code, set.Name)

			cards, err := build.BuildSet(groupCtx, set)
			if err != nil {
				return fmt.Errorf("couldn't build %s: %w", set.Code, err)
			}

			return output.WriteSet(conf.outputDir, set, cards)
		})
	}

	if err := group.Wait(); err != nil {
		log.Fatal(err)
	}

	if conf.fullOut {
		if err := output.WriteAggregates(conf.outputDir); err != nil {
			log.Fatal(err)
		}
	}
}
