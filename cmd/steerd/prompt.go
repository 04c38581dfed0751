package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"steerd/internal/engine"
	"steerd/internal/policy"
	"steerd/internal/session"
	"steerd/internal/steering"
)

func newPromptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompt [query]",
		Short: "Run one steered prompt against a model",
		Example: `  steerd prompt --model qwen2-1_5b-instruct-q4_k_m.gguf "How are you?" \
      --force-after "I'm doing=> poorly actually," --stop "."
  steerd prompt --backend toy --models-dir ./corpora --policy policy.yaml "Tell me about the dog."`,
		Args: cobra.MaximumNArgs(1),
		RunE: runPrompt,
	}
	f := cmd.Flags()
	f.String("model", "", "Model id under --models-dir or a path to a model file")
	f.String("query", "", "User query (or pass it as the argument)")
	f.String("priming", "", "Text primed and snapshotted before the query, then restored")
	f.String("policy", "", "Policy file (.yaml, .json or .toml)")
	f.String("prefix", "", "Text forced before the first sampled token")
	f.Int("max-tokens", 0, "Upper bound on accepted samples (0 for none)")
	f.StringArray("force-after", nil, "Force text after a match: match=>text (repeatable)")
	f.StringArray("replace", nil, "Replace a match once generated: match=>text (repeatable)")
	f.StringArray("avoid", nil, "Steer away after a match: match=>a|b (repeatable)")
	f.StringArray("stop", nil, "Complete before the response ends with this text (repeatable)")
	f.Uint32("seed", 0, "Sampler seed (0 draws a random one)")
	f.Int("context-size", 0, "Context window in tokens")
	f.String("template", "", "Chat template family override")
	f.String("system-prompt", "", "System message prepended to the query")
	f.Bool("trace", false, "Print every sample and the directive applied to it")
	return cmd
}

// buildPolicy merges --policy with the inline rule flags. Inline rules are
// appended after file rules; inline prefix and max-tokens win when set.
func buildPolicy(cmd *cobra.Command) (policy.Policy, error) {
	f := cmd.Flags()
	var p policy.Policy
	if path, _ := f.GetString("policy"); path != "" {
		lp, err := policy.LoadFile(path)
		if err != nil {
			return p, fmt.Errorf("load policy: %w", err)
		}
		p = lp
	}
	if f.Changed("prefix") {
		p.Prefix, _ = f.GetString("prefix")
	}
	if f.Changed("max-tokens") {
		p.MaxTokens, _ = f.GetInt("max-tokens")
	}
	for _, kind := range []string{policy.KindForceAfter, policy.KindReplace, policy.KindAvoid, policy.KindStop} {
		specs, _ := f.GetStringArray(strings.ReplaceAll(kind, "_", "-"))
		for _, s := range specs {
			r, err := policy.ParseRule(kind, s)
			if err != nil {
				return p, err
			}
			p.Rules = append(p.Rules, r)
		}
	}
	return p, p.Validate()
}

func runPrompt(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	f := cmd.Flags()
	query, _ := f.GetString("query")
	if len(args) == 1 {
		query = args[0]
	}
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("a query is required")
	}
	pol, err := buildPolicy(cmd)
	if err != nil {
		return err
	}

	log := newLogger(cfg)
	loader, scanner := backend(cfg)
	reg, err := scanner.Scan(cfg.ModelsDir)
	if err != nil {
		return err
	}
	ref, _ := f.GetString("model")
	if ref == "" {
		ref = cfg.DefaultModel
	}
	mdl, err := resolveModel(reg, ref)
	if err != nil {
		return err
	}

	params := cfg.Params()
	if f.Changed("seed") {
		params.Seed, _ = f.GetUint32("seed")
	}
	if f.Changed("context-size") {
		params.ContextSize, _ = f.GetInt("context-size")
	}
	params.Template = mdl.Template
	if t, _ := f.GetString("template"); t != "" {
		params.Template = t
	} else if cfg.Template != "" {
		params.Template = cfg.Template
	}
	sys := cfg.SystemPrompt
	if f.Changed("system-prompt") {
		sys, _ = f.GetString("system-prompt")
	}

	laps := newLapTimer()
	sess, err := session.Create(loader, mdl.Path, params,
		session.WithLogger(log),
		session.WithSystemPrompt(sys),
		session.WithUserSuffix(cfg.UserSuffix),
	)
	if err != nil {
		return err
	}
	defer sess.Close()
	laps.lap("load")

	ctx := cmd.Context()
	if priming, _ := f.GetString("priming"); priming != "" {
		st, err := sess.CapturePromptState(ctx, priming, false)
		if err != nil {
			return err
		}
		laps.lap("prime")
		if err := sess.Clear(ctx); err != nil {
			return err
		}
		if err := sess.RestorePromptState(ctx, st); err != nil {
			return err
		}
		laps.lap("restore")
	}

	out := cmd.OutOrStdout()
	var observe func(steering.TokenSample, steering.Directive)
	if trace, _ := f.GetBool("trace"); trace {
		observe = func(s steering.TokenSample, d steering.Directive) {
			fmt.Fprintf(cmd.ErrOrStderr(), "%-18s %q eos=%v\n", d.Kind(), s.Text, s.EOS)
		}
	}
	res, err := sess.Generate(ctx, query, pol.Decider(), observe)
	if err != nil {
		return err
	}
	laps.lap("generate")

	fmt.Fprintln(out, res.Response)
	printSummary(cmd.ErrOrStderr(), mdl.ID, sess.Params(), res, laps)
	return nil
}

func printSummary(w io.Writer, model string, p engine.Params, res steering.Result, laps *lapTimer) {
	fmt.Fprintf(w, "\nmodel=%s seed=%d ctx=%d steps=%d\n", model, p.Seed, p.ContextSize, res.Steps)
	laps.write(w)
}

// lapTimer records named intervals since the previous lap.
type lapTimer struct {
	last  time.Time
	names []string
	durs  []time.Duration
}

func newLapTimer() *lapTimer { return &lapTimer{last: time.Now()} }

func (t *lapTimer) lap(name string) {
	now := time.Now()
	t.names = append(t.names, name)
	t.durs = append(t.durs, now.Sub(t.last))
	t.last = now
}

func (t *lapTimer) total() time.Duration {
	var sum time.Duration
	for _, d := range t.durs {
		sum += d
	}
	return sum
}

func (t *lapTimer) write(w io.Writer) {
	for i, n := range t.names {
		fmt.Fprintf(w, "  %-10s %v\n", n, t.durs[i].Round(time.Microsecond))
	}
	fmt.Fprintf(w, "  %-10s %v\n", "total", t.total().Round(time.Microsecond))
}
