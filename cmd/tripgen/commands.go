package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/c360studio/tripgen/api"
	"github.com/c360studio/tripgen/config"
	"github.com/c360studio/tripgen/engine"
	"github.com/c360studio/tripgen/export"
	"github.com/c360studio/tripgen/itinerary"
	"github.com/c360studio/tripgen/model"
	"github.com/c360studio/tripgen/strategy"
)

// outputOptions select how an itinerary is written.
type outputOptions struct {
	format string
	output string
}

func (o *outputOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.format, "format", "f", "", "Output format (markdown, json, html); inferred from --output when unset")
	cmd.Flags().StringVarP(&o.output, "output", "o", "", "Output file (default stdout)")
}

// resolve picks the export format: explicit flag, then output extension,
// then markdown.
func (o *outputOptions) resolve() (export.Format, error) {
	if o.format != "" {
		return export.ParseFormat(o.format)
	}
	if ext := filepath.Ext(o.output); ext != "" {
		return export.ParseFormat(ext)
	}
	return export.FormatMarkdown, nil
}

func (o *outputOptions) write(stdout io.Writer, it *itinerary.Itinerary) error {
	format, err := o.resolve()
	if err != nil {
		return err
	}
	if o.output == "" {
		return export.Write(stdout, it, format)
	}

	f, err := os.Create(o.output)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := export.Write(f, it, format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// generateOptions are the request flags of the generate command.
type generateOptions struct {
	requestFile  string
	destinations []string
	days         int
	companion    string
	themes       []string
	budget       string
	pace         string
	notes        string
	strategy     string
	provider     string
	premium      bool
	topK         int
	heroImage    bool
	verbose      bool
	out          outputOptions
}

func generateCmd(g *globalOptions) *cobra.Command {
	opts := &generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate an itinerary",
		Example: `  tripgen generate -d Tokyo -d Kyoto --days 5 --theme food
  tripgen generate --request trip.yaml -o trip.html`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := opts.request(cmd)
			if err != nil {
				return err
			}
			return g.withApp(func(ctx context.Context, app *App, _ *config.Loader) error {
				res := app.engine.GenerateItinerary(ctx, req, engine.GenerateOptions{
					TopK:           opts.topK,
					FetchHeroImage: opts.heroImage,
					Verbose:        opts.verbose,
				})
				if !res.Success {
					return fmt.Errorf("generation failed: %w", res.Err())
				}
				return opts.out.write(cmd.OutOrStdout(), res.Itinerary)
			})
		},
	}

	opts.register(cmd)
	return cmd
}

func (o *generateOptions) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&o.requestFile, "request", "r", "", "Request file (YAML or JSON); flags override its fields")
	f.StringSliceVarP(&o.destinations, "destination", "d", nil, "Destination, in visiting order (repeatable)")
	f.IntVar(&o.days, "days", 0, "Trip length in days")
	f.StringVar(&o.companion, "companion", "", "Who is travelling (solo, couple, family, friends)")
	f.StringSliceVar(&o.themes, "theme", nil, "Trip theme (repeatable)")
	f.StringVar(&o.budget, "budget", "", "Budget (low, medium, high, luxury)")
	f.StringVar(&o.pace, "pace", "", "Pace (relaxed, balanced, packed)")
	f.StringVar(&o.notes, "notes", "", "Free-text requirements")
	f.StringVar(&o.strategy, "strategy", "", "Coordination strategy (single, race, pipeline, cross-review, full)")
	f.StringVar(&o.provider, "provider", "", "Pin generation to one endpoint")
	f.BoolVar(&o.premium, "premium", false, "Prefer the premium model tier when entitled")
	f.IntVar(&o.topK, "top-k", 0, "Retrieval articles to request (0 uses the configured default)")
	f.BoolVar(&o.heroImage, "hero-image", false, "Look up a hero image")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "Log progress at info level")
	o.out.register(cmd)
}

// request builds the itinerary request from the request file and flags.
func (o *generateOptions) request(cmd *cobra.Command) (*itinerary.Request, error) {
	req := &itinerary.Request{}
	if o.requestFile != "" {
		if err := readDocument(o.requestFile, req); err != nil {
			return nil, fmt.Errorf("read request: %w", err)
		}
	}

	f := cmd.Flags()
	if f.Changed("destination") {
		req.Destinations = o.destinations
	}
	if f.Changed("days") {
		req.Days = o.days
	}
	if f.Changed("companion") {
		req.Companion = o.companion
	}
	if f.Changed("theme") {
		req.Themes = o.themes
	}
	if f.Changed("budget") {
		req.Budget = o.budget
	}
	if f.Changed("pace") {
		req.Pace = o.pace
	}
	if f.Changed("notes") {
		req.Notes = o.notes
	}
	if f.Changed("strategy") {
		req.Strategy = o.strategy
	}
	if f.Changed("provider") {
		req.Provider = o.provider
	}
	if f.Changed("premium") {
		req.PrefersPremium = o.premium
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

// regenerateOptions are the flags of the regenerate command.
type regenerateOptions struct {
	itineraryFile string
	historyFile   string
	messages      []string
	out           outputOptions
}

func regenerateCmd(g *globalOptions) *cobra.Command {
	opts := &regenerateOptions{}

	cmd := &cobra.Command{
		Use:   "regenerate",
		Short: "Refine an itinerary from a conversation",
		Example: `  tripgen generate -d Kyoto --days 3 -f json -o kyoto.json
  tripgen regenerate -i kyoto.json -m "Start every day after 10:00" -o kyoto.md`,
		RunE: func(cmd *cobra.Command, args []string) error {
			current, history, err := opts.inputs()
			if err != nil {
				return err
			}
			return g.withApp(func(ctx context.Context, app *App, _ *config.Loader) error {
				res := app.engine.RegenerateItinerary(ctx, current, history)
				if !res.Success {
					return fmt.Errorf("regeneration failed: %w", res.Err())
				}
				return opts.out.write(cmd.OutOrStdout(), res.Itinerary)
			})
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.itineraryFile, "itinerary", "i", "", "Itinerary JSON to refine")
	f.StringVar(&opts.historyFile, "history", "", "Conversation JSON ([{\"role\", \"content\"}])")
	f.StringArrayVarP(&opts.messages, "message", "m", nil, "User message appended to the conversation (repeatable)")
	_ = cmd.MarkFlagRequired("itinerary")
	opts.out.register(cmd)

	return cmd
}

func (o *regenerateOptions) inputs() (*itinerary.Itinerary, []itinerary.ChatMessage, error) {
	var current itinerary.Itinerary
	if err := readDocument(o.itineraryFile, &current); err != nil {
		return nil, nil, fmt.Errorf("read itinerary: %w", err)
	}

	var history []itinerary.ChatMessage
	if o.historyFile != "" {
		if err := readDocument(o.historyFile, &history); err != nil {
			return nil, nil, fmt.Errorf("read history: %w", err)
		}
	}
	for _, m := range o.messages {
		history = append(history, itinerary.ChatMessage{Role: "user", Content: m})
	}
	if len(history) == 0 {
		return nil, nil, fmt.Errorf("%w: give --message or --history", itinerary.ErrInvalidRequest)
	}
	return &current, history, nil
}

// readDocument decodes a YAML file, or JSON for any other extension.
func readDocument(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, v)
	default:
		return json.Unmarshal(data, v)
	}
}

func serveCmd(g *globalOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve exposes POST /itineraries, POST /itineraries/regenerate,
GET /healthz and GET /metrics. Provider changes in the config files
are picked up without a restart.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(func(ctx context.Context, app *App, loader *config.Loader) error {
				if addr == "" {
					addr = app.cfg.Server.Addr
				}

				watcher, err := config.NewWatcher(loader, app.ApplyConfig, app.logger)
				if err != nil {
					app.logger.Info("Config hot reload disabled", "reason", err)
				} else {
					go func() {
						if err := watcher.Run(ctx); err != nil {
							app.logger.Error("Config watcher stopped", "error", err)
						}
					}()
				}

				handler := api.NewHandler(app.engine,
					api.WithLogger(app.logger),
					api.WithGatherer(app.promReg),
					api.WithGenerationTimeout(app.cfg.Server.GenerationTimeout))
				return api.Serve(ctx, addr, handler, app.logger)
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	return cmd
}

func providersCmd(g *globalOptions) *cobra.Command {
	var requested string

	cmd := &cobra.Command{
		Use:   "providers",
		Short: "Show configured providers and the strategy that would run",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := g.logger()
			cfg, _, err := g.load(logger)
			if err != nil {
				return err
			}
			health := model.NewHealth(cfg.Providers.Health)
			reg := cfg.Registry(health)
			orch := strategy.NewOrchestrator(nil, cfg.Generation.StrategyConfig(), strategy.WithLogger(logger))
			return printProviders(cmd.OutOrStdout(), reg, health, orch, requested)
		},
	}

	cmd.Flags().StringVar(&requested, "strategy", "", "Strategy a request would name")
	return cmd
}

func printProviders(w io.Writer, reg *model.Registry, health *model.Health, orch *strategy.Orchestrator, requested string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ENDPOINT\tPROVIDER\tSTANDARD\tPREMIUM\tCONFIGURED\tAVAILABLE")
	for _, name := range reg.EndpointNames() {
		h, _ := reg.Endpoint(name)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			name,
			h.Endpoint.Provider,
			h.Endpoint.Models.Standard,
			orDash(h.Endpoint.Models.Premium),
			yesNo(reg.IsConfigured(name)),
			yesNo(health.IsEndpointAvailable(name)))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	sample := &itinerary.Request{Destinations: []string{"sample"}, Days: 1, Strategy: requested}
	fmt.Fprintf(w, "\nprimary:  %s\n", orDash(reg.PrimaryName()))
	fmt.Fprintf(w, "strategy: %s\n", orch.Choose(reg, sample).Name())
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
