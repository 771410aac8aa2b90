package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"comfynodes/helpers"
	"comfynodes/logger"
	"comfynodes/lora"
	"comfynodes/nodes"
	"comfynodes/server"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"

	shutdownTimeout = 10 * time.Second
)

func (a *app) loader() *nodes.TriggerWordsLoader {
	return &nodes.TriggerWordsLoader{Dir: a.config.Loras.Path, Extractor: a.extractor}
}

func (a *app) lorasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "loras",
		Short: "List the LoRA files in the LoRA directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loras, err := a.loader().Available()
			if err != nil {
				return err
			}
			for _, name := range loras {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func (a *app) triggersCmd() *cobra.Command {
	var (
		percent int
		weight  float64
		output  string
	)

	cmd := &cobra.Command{
		Use:   "triggers <lora>",
		Short: "Print the most frequent trigger words of a LoRA",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("percent") {
				percent = a.config.Loras.DefaultPercent
			}

			res, err := a.loader().TriggerWords(args[0], percent, weight)
			if err != nil {
				return err
			}

			if output == formatText {
				fmt.Fprintln(cmd.OutOrStdout(), res.Text)
				return nil
			}
			return writeStructured(cmd.OutOrStdout(), output, res)
		},
	}

	cmd.Flags().IntVarP(&percent, "percent", "p", 20, "percentage of ranked tags to keep (1-100)")
	cmd.Flags().Float64VarP(&weight, "weight", "w", 1.0, "LoRA weight passed through to the result")
	cmd.Flags().StringVarP(&output, "output", "o", formatText, "output format: text, json or yaml")

	return cmd
}

func (a *app) metadataCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "metadata <lora>",
		Short: "Summarize the training metadata of a LoRA",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.loader().Resolve(args[0])
			if err != nil {
				return err
			}

			summary, err := a.extractor.Summarize(path)
			if err != nil {
				return err
			}
			return writeStructured(cmd.OutOrStdout(), output, summary)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", formatYAML, "output format: json or yaml")

	return cmd
}

func (a *app) scanCmd() *cobra.Command {
	var (
		concurrency int
		quiet       bool
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Extract every LoRA in the directory, warming the cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("concurrency") {
				concurrency = a.config.Loras.ScanConcurrency
			}

			files, err := a.loader().Available()
			if err != nil {
				return err
			}

			start := time.Now()
			results := make([]lora.Extraction, len(files))

			var bar *progressbar.ProgressBar
			if !quiet {
				bar = progressbar.Default(int64(len(files)), "scanning")
			}

			g := new(errgroup.Group)
			if concurrency > 0 {
				g.SetLimit(concurrency)
			}
			for i, name := range files {
				i, name := i, name
				g.Go(func() error {
					results[i] = a.extractor.ExtractFrequencyTable(filepath.Join(a.config.Loras.Path, name))
					if bar != nil {
						_ = bar.Add(1)
					}
					return nil
				})
			}
			_ = g.Wait()

			tbl := table.NewWriter()
			tbl.SetStyle(table.StyleLight)
			tbl.AppendHeader(table.Row{"LoRA", "Tags", "Status", "Top"})
			for i, res := range results {
				top := strings.Join(lora.RankByFrequency(res.Table)[:lora.TopCount(len(res.Table), a.config.Loras.DefaultPercent)], nodes.TriggerSeparator)
				tbl.AppendRow(table.Row{files[i], len(res.Table), res.Reason, top})
			}
			fmt.Fprintln(cmd.OutOrStdout(), tbl.Render())

			log := logger.With("loras", len(files), "took", helpers.HumanDuration(time.Since(start)))
			if a.store != nil {
				log = log.With("cached", a.store.Len())
			}
			log.Info("Scan complete")
			return nil
		},
	}

	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 4, "files extracted in parallel")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "no progress bar")

	return cmd
}

func (a *app) interpolateCmd() *cobra.Command {
	var (
		template string
		strs     []string
		ints     []string
		floats   []string
	)

	cmd := &cobra.Command{
		Use:   "interpolate",
		Short: "Replace $NAME$ placeholders in a template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var vars []nodes.Variable
			for _, group := range []struct {
				typ  nodes.VariableType
				defs []string
			}{
				{nodes.TypeString, strs},
				{nodes.TypeInteger, ints},
				{nodes.TypeFloat, floats},
			} {
				for _, def := range group.defs {
					name, value, ok := helpers.SplitKeyValue(def)
					if !ok {
						return fmt.Errorf("invalid variable %q, expected NAME=VALUE", def)
					}
					vars = append(vars, nodes.NewVariable(name, value, group.typ))
				}
			}

			fmt.Fprintln(cmd.OutOrStdout(), nodes.InterpolateAll(vars, template))
			return nil
		},
	}

	cmd.Flags().StringVarP(&template, "template", "t", "Hello from planet $PLANET$", "template text")
	cmd.Flags().StringArrayVar(&strs, "var", nil, "string variable NAME=VALUE (repeatable)")
	cmd.Flags().StringArrayVar(&ints, "int", nil, "integer variable NAME=VALUE (repeatable)")
	cmd.Flags().StringArrayVar(&floats, "float", nil, "float variable NAME=VALUE (repeatable)")

	return cmd
}

func (a *app) attributesCmd() *cobra.Command {
	var (
		defs []string
		opts nodes.FormatOptions
	)

	cmd := &cobra.Command{
		Use:   "attributes",
		Short: "Format key=value:weight attributes into a weighted prompt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			if !flags.Changed("low") {
				opts.LowWeightMax = a.config.Attributes.LowWeightMax
			}
			if !flags.Changed("medium") {
				opts.MediumWeightMax = a.config.Attributes.MediumWeightMax
			}
			if !flags.Changed("separator") {
				opts.Separator = a.config.Attributes.Separator
			}

			attrs := make([]nodes.Attribute, 0, len(defs))
			for _, def := range defs {
				attr, err := parseAttribute(def)
				if err != nil {
					return err
				}
				attrs = append(attrs, attr)
			}

			text, _, err := nodes.FormatAttributes(attrs, opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}

	defaults := nodes.DefaultFormatOptions()
	cmd.Flags().StringArrayVarP(&defs, "attr", "a", nil, "attribute KEY=VALUE:WEIGHT (repeatable, up to 5)")
	cmd.Flags().Float64Var(&opts.LowWeightMax, "low", defaults.LowWeightMax, "weights below this get one pair of parentheses")
	cmd.Flags().Float64Var(&opts.MediumWeightMax, "medium", defaults.MediumWeightMax, "weights below this get two pairs")
	cmd.Flags().StringVar(&opts.Separator, "separator", defaults.Separator, "separator between attributes")

	return cmd
}

// parseAttribute reads KEY=VALUE:WEIGHT; the weight defaults to 0.
func parseAttribute(def string) (nodes.Attribute, error) {
	key, rest, ok := helpers.SplitKeyValue(def)
	if !ok {
		return nodes.Attribute{}, fmt.Errorf("invalid attribute %q, expected KEY=VALUE:WEIGHT", def)
	}

	attr := nodes.Attribute{Key: key, Value: rest}
	if i := strings.LastIndex(rest, ":"); i >= 0 {
		weight, err := strconv.ParseFloat(rest[i+1:], 64)
		if err != nil {
			return nodes.Attribute{}, fmt.Errorf("invalid weight in %q: %w", def, err)
		}
		attr.Value = rest[:i]
		attr.Weight = weight
	}

	return attr, nil
}

func (a *app) combineCmd() *cobra.Command {
	var stored, inputs string

	cmd := &cobra.Command{
		Use:   "combine",
		Short: "Combine conditioning fragments in stored prompt order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var in map[string]nodes.Conditioning
			if err := json.Unmarshal([]byte(inputs), &in); err != nil {
				return fmt.Errorf("invalid --inputs: %w", err)
			}
			return writeStructured(cmd.OutOrStdout(), formatJSON, nodes.CombinePrompts(stored, in))
		},
	}

	cmd.Flags().StringVar(&stored, "stored", "[]", `stored prompt list, e.g. [{"id":3,"socket":"CONDITIONING"}]`)
	cmd.Flags().StringVar(&inputs, "inputs", "{}", `conditioning by input key, e.g. {"3_CONDITIONING":["..."]}`)

	return cmd
}

func (a *app) serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the nodes over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("addr") {
				addr = a.config.Server.Addr
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if a.store != nil && a.config.Cache.MergeHours > 0 {
				go a.store.MergeEvery(ctx, time.Duration(a.config.Cache.MergeHours)*time.Hour)
			}

			srv := server.NewServer(a.config, a.extractor)
			errc := make(chan error, 1)
			go func() { errc <- srv.Run(addr) }()

			log := logger.Service("http")
			log.Info("Listening", "addr", addr, "loras", a.config.Loras.Path)

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}

			log.Info("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server forced to shutdown: %w", err)
			}

			// in-flight requests finish before the cache is closed
			if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			log.Info("Server exiting")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8189", "listen address")

	return cmd
}

func writeStructured(w io.Writer, format string, v any) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		data, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal yaml: %w", err)
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
