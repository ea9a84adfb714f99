package cli

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"etfhistory/internal/config"
	"etfhistory/internal/history"
	"etfhistory/internal/httpx"
	"etfhistory/internal/pipeline"
	"etfhistory/internal/provider"
	"etfhistory/internal/provider/borsaitaliana"
	"etfhistory/internal/provider/cache"
	"etfhistory/internal/provider/investing"
	"etfhistory/internal/provider/justetf"
	"etfhistory/internal/provider/mapping"
	"etfhistory/internal/provider/ratelimit"
	"etfhistory/internal/provider/xetra"
	"etfhistory/internal/provider/yahoo"
	"etfhistory/internal/record"
	"etfhistory/internal/resolve"
	"etfhistory/internal/store"
)

// Stack is the wired object graph of one process: a single session shared
// by every adapter and fetcher.
type Stack struct {
	Config  config.Config
	Log     zerolog.Logger
	Client  *httpx.Client
	Pacer   *ratelimit.Jitter
	Picker  provider.Picker
	Guesser *yahoo.Guesser
	// Lib is go-yfinance, nil when a test transport replaces the network.
	Lib       *yahoo.Lib
	Mappings  mapping.Source
	Waterfall *resolve.Waterfall
	Router    *history.Router
	DB        *store.DB
}

// NewStack builds the stack. doer replaces the network transport when set.
func NewStack(cfg config.Config, log zerolog.Logger, doer httpx.HTTPClient) (*Stack, error) {
	s := &Stack{Config: cfg, Log: log}

	s.Client = httpx.New(cfg.RequestTimeout())
	if doer != nil {
		s.Client = httpx.NewWithDoer(doer)
	} else {
		s.Lib = &yahoo.Lib{}
	}
	if cfg.HTTP.UserAgent != "" {
		s.Client.UserAgent = cfg.HTTP.UserAgent
	}
	if cfg.HTTP.AcceptLanguage != "" {
		s.Client.Headers["Accept-Language"] = cfg.HTTP.AcceptLanguage
	}
	if cfg.Pacing.HostMaxMs > 0 || cfg.Pacing.MaxRequestsPerMinute > 0 {
		s.Client.Gate = ratelimit.NewHostGate(
			ratelimit.NewJitter(ms(cfg.Pacing.HostMinMs), ms(cfg.Pacing.HostMaxMs)),
			cfg.Pacing.MaxRequestsPerMinute, cfg.Pacing.Burst)
	}

	s.Pacer = ratelimit.NewJitter(ms(cfg.Pacing.MinMs), ms(cfg.Pacing.MaxMs))
	s.Picker = provider.HomeMarket{Suffixes: cfg.Resolve.HomeSuffixes, Venues: cfg.Resolve.HomeVenues}
	s.Guesser = yahoo.NewGuesser(s.Client, yahoo.ParseSuffixes(cfg.Resolve.YahooSuffixOrder), s.Pacer, log)

	table, err := s.loadMappings()
	if err != nil {
		return nil, err
	}
	sources := mapping.Sources{table}
	if cfg.Output.SQLitePath != "" {
		if s.DB, err = store.Open(cfg.Output.SQLitePath); err != nil {
			return nil, err
		}
		sources = append(sources, s.DB)
	}
	s.Mappings = sources

	adapters, err := s.Adapters(cfg.Resolve.Providers)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Waterfall = resolve.New(adapters, s.Pacer, log)
	s.Router = &history.Router{
		Investing: history.NewInvesting(s.Client, log),
		Yahoo:     history.NewYahoo(s.Client, s.Profiler(), log),
		Guess:     s.Guesser,
		Log:       log.With().Str("component", "router").Logger(),
	}
	ready := log.Debug().Strs("providers", s.Waterfall.Names()).Bool("yfinance", s.Lib != nil)
	if s.DB != nil {
		ready = ready.Str("sqlite", s.DB.Path())
	}
	ready.Msg("stack ready")
	return s, nil
}

// loadMappings reads the Yahoo mapping file with the Investing one laid
// over it.
func (s *Stack) loadMappings() (mapping.Table, error) {
	base, err := mapping.LoadCSV(s.Config.Input.MapCSV)
	if err != nil {
		return nil, err
	}
	if s.Config.Input.InvestingMapCSV == "" {
		return base, nil
	}
	over, err := mapping.LoadCSV(s.Config.Input.InvestingMapCSV)
	if err != nil {
		return nil, err
	}
	return base.Merge(over), nil
}

// Profiler is the quote summary over the shared session, then go-yfinance
// when it is wired.
func (s *Stack) Profiler() yahoo.Profiler {
	ps := yahoo.Profilers{yahoo.NewSummary(s.Client)}
	if s.Lib != nil {
		ps = append(ps, s.Lib)
	}
	return ps
}

// Adapters builds the named adapters in order, each behind the resolution
// cache when a TTL is configured.
func (s *Stack) Adapters(names []string) ([]provider.Adapter, error) {
	out := make([]provider.Adapter, 0, len(names))
	for _, name := range names {
		a, err := s.adapter(name)
		if err != nil {
			return nil, err
		}
		if ttl := s.Config.CacheTTL(); ttl > 0 {
			a = &cache.Adapter{A: a, TTL: ttl, MaxItems: s.Config.Resolve.CacheMaxItems}
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *Stack) adapter(name string) (provider.Adapter, error) {
	switch name {
	case mapping.Name:
		return mapping.New(s.Mappings, s.Log), nil
	case borsaitaliana.Name:
		return borsaitaliana.New(s.Client, s.Log, borsaitaliana.WithPicker(s.Picker)), nil
	case justetf.Name:
		return justetf.NewProfile(s.Client, s.Log, s.Picker), nil
	case justetf.APIName:
		return justetf.NewAPI(s.Client, s.Log, s.Picker), nil
	case justetf.SearchName:
		return justetf.NewNameSearch(s.Client, s.Log), nil
	case xetra.Name:
		return xetra.New(s.Client, s.Log, xetra.WithPicker(s.Picker)), nil
	case yahoo.Name:
		a := yahoo.New(s.Client, s.Log, s.Picker, s.Guesser)
		if s.Lib != nil {
			a.Lookup = s.Lib
		}
		return a, nil
	case investing.Name:
		return investing.New(s.Client, s.Log), nil
	}
	return nil, fmt.Errorf("unknown provider %q", name)
}

// Sink is the CSV output, plus the SQLite store when one is open.
func (s *Stack) Sink() record.Sink {
	csv := record.NewCSVSink(s.Config.Output.OutCSV, record.Mode(s.Config.Output.SinkMode))
	if s.DB == nil {
		return csv
	}
	return record.MultiSink{csv, s.DB}
}

// Runner returns the batch runner over this stack.
func (s *Stack) Runner() *pipeline.Runner {
	r := &pipeline.Runner{
		Resolver: s.Waterfall,
		Fetcher:  s.Router,
		Sink:     s.Sink(),
		Pacer:    s.Pacer,
		Workers:  s.Config.Workers,
		Log:      s.Log,
	}
	if s.DB != nil && s.Config.Output.SaveMappings {
		r.Mappings = s.DB
	}
	return r
}

// ServerRunner is Runner for request handlers: no jitter between adapters
// or instruments. The host gate and the suffix guesser still pace requests.
func (s *Stack) ServerRunner() *pipeline.Runner {
	r := s.Runner()
	r.Pacer = nil
	r.Resolver = resolve.New(s.Waterfall.Adapters, nil, s.Log)
	return r
}

func (s *Stack) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }
