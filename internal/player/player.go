// Package player reads a document aloud unit by unit under line-based
// interactive control.
package player

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/book-expert/logger"
	"github.com/book-expert/read-aloud/internal/core"
	"github.com/book-expert/read-aloud/internal/subst"
	"github.com/book-expert/read-aloud/internal/tracking"
	"github.com/book-expert/read-aloud/internal/units"
	"golang.org/x/sync/errgroup"
)

const (
	msgUnit          = "[%d/%d] %s\n"
	msgEnd           = "End of text.\n"
	msgEmpty         = "The text has no units to read.\n"
	msgStopped       = "Stopped at unit %d.\n"
	msgPaused        = "Paused.\n"
	msgFound         = "Found %q at unit %d.\n"
	msgError         = "Error: %v\n"
	msgNoSearch      = "No previous search.\n"
	msgNoHistory     = "No substitution changed unit %d.\n"
	msgHistoryHeader = "Substitutions for unit %d:\n"
	msgHistoryStep   = "  %s:%d\n    -> %s\n"
	msgSubstOn       = "Substitutions enabled.\n"
	msgSubstOff      = "Substitutions disabled.\n"
	msgSubstMissing  = "No substitution rules are loaded.\n"
	msgHelp          = "Commands: %s\n"
	msgSpeed         = "Speed: %d words per minute.\n"
	msgSpeedMax      = "Cannot set a speed higher than the maximum (%d).\n"
	msgSpeedMin      = "Cannot set a speed lower than the minimum (%d).\n"
	msgReloaded      = "Reloaded: %d unit(s) modified, now at unit %d.\n"
	msgNowEmpty      = "The text is now empty.\n"

	speedStep = 10
)

// Options controls playback.
type Options struct {
	// StartAt is the 1-based unit to start from; out-of-range values are clamped.
	StartAt int
	// AutoAdvance continues with the next unit when one finishes.
	AutoAdvance bool
	// OnPosition, when set, is called with each unit index as it starts playing
	// and when an update moves the position.
	OnPosition func(index int)
	// Tracking decides where reading continues after an update. Empty means
	// tracking.DefaultMode.
	Tracking tracking.Mode
	// Updates delivers reloaded documents while playing. It may be nil.
	Updates <-chan Update
}

// Update replaces the document, and the substitution rules when Subst is set.
type Update struct {
	Doc   *units.Document
	Subst *subst.Engine
}

type speechRequest struct {
	ctx        context.Context
	generation int
	text       string
}

type speechDone struct {
	generation int
	err        error
}

// Player owns the playback state. It is driven by Run and must not be shared.
type Player struct {
	doc     *units.Document
	subst   *subst.Engine
	speaker core.Speaker
	log     *logger.Logger
	out     io.Writer
	opts    Options

	current    int
	playing    bool
	paused     bool
	applySubst bool
	search     *units.Query
	generation int
	cancel     context.CancelFunc

	mu       sync.Mutex
	pending  *speechRequest
	wake     chan struct{}
	finished chan speechDone
}

// New creates a Player. A nil substitution engine means pass-through.
func New(doc *units.Document, engine *subst.Engine, speaker core.Speaker, log *logger.Logger, out io.Writer, opts Options) *Player {
	if engine == nil {
		engine = subst.PassThrough()
	}

	if opts.Tracking == "" {
		opts.Tracking = tracking.DefaultMode
	}

	return &Player{
		doc:        doc,
		subst:      engine,
		speaker:    speaker,
		log:        log,
		out:        out,
		opts:       opts,
		current:    doc.Clamp(opts.StartAt),
		playing:    false,
		paused:     false,
		applySubst: engine.Enabled(),
		search:     nil,
		generation: 0,
		cancel:     nil,
		mu:         sync.Mutex{},
		pending:    nil,
		wake:       make(chan struct{}, 1),
		finished:   make(chan speechDone),
	}
}

// Current returns the index of the current unit.
func (p *Player) Current() int {
	return p.current
}

// Run plays from the start unit and executes commands read from in until
// "quit", ctx is cancelled, or in is exhausted and playback has ended.
func (p *Player) Run(ctx context.Context, in io.Reader) error {
	if p.doc.Len() == 0 {
		p.printf(msgEmpty)

		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Reads from in cannot be interrupted, so the reader stays outside the group.
	commands := make(chan string)
	go readLines(runCtx, in, commands)

	group, groupCtx := errgroup.WithContext(runCtx)

	group.Go(func() error {
		return p.speechWorker(groupCtx)
	})

	group.Go(func() error {
		defer cancel()

		return p.loop(groupCtx, commands)
	})

	err := group.Wait()
	if err != nil && ctx.Err() == nil {
		return err
	}

	return ctx.Err()
}

func readLines(ctx context.Context, in io.Reader, lines chan<- string) {
	defer close(lines)

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}
}

func (p *Player) loop(ctx context.Context, commands <-chan string) error {
	defer p.stopSpeech()

	p.play(ctx)

	updates := p.opts.Updates

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				updates = nil

				continue
			}

			p.reload(ctx, update)

			if commands == nil && !p.playing {
				return nil
			}
		case line, ok := <-commands:
			if !ok {
				if !p.playing {
					return nil
				}

				commands = nil

				continue
			}

			if p.handleLine(ctx, line) {
				return nil
			}
		case done := <-p.finished:
			if p.onFinished(ctx, done) && commands == nil {
				return nil
			}
		}
	}
}

// onFinished handles the end of an utterance and reports whether playback ended.
func (p *Player) onFinished(ctx context.Context, done speechDone) bool {
	if done.generation != p.generation || !p.playing {
		return false
	}

	if done.err != nil {
		p.log.Error("Speech failed at unit %d: %v", p.current, done.err)
		p.printf(msgError, done.err)
		p.playing = false

		return true
	}

	if !p.opts.AutoAdvance {
		p.playing = false

		return true
	}

	if p.current >= p.doc.Len() {
		p.printf(msgEnd)
		p.playing = false

		return true
	}

	p.current++
	p.play(ctx)

	return false
}

// handleLine runs one command line and reports whether the player should quit.
func (p *Player) handleLine(ctx context.Context, line string) bool {
	if strings.TrimSpace(line) == "" {
		return false
	}

	command, err := ParseCommand(line)
	if err != nil {
		p.printf(msgError, err)

		return false
	}

	p.log.Info("Command %s at unit %d", command.Action, p.current)

	switch command.Action {
	case ActionQuit:
		return true
	case ActionNext:
		p.goTo(ctx, p.current+1)
	case ActionPrevious:
		p.goTo(ctx, p.current-1)
	case ActionFirst:
		p.goTo(ctx, 1)
	case ActionLast:
		p.goTo(ctx, p.doc.Len())
	case ActionGo:
		p.goTo(ctx, command.Unit)
	case ActionRestart:
		p.goTo(ctx, p.current)
	case ActionStop:
		p.stopSpeech()
		p.printf(msgStopped, p.current)
	case ActionToggle:
		p.toggle(ctx)
	case ActionFind, ActionFindCase, ActionRegex, ActionRegexCase:
		query := units.Query{
			Expression:    command.Arg,
			Regex:         command.Action == ActionRegex || command.Action == ActionRegexCase,
			CaseSensitive: command.Action == ActionFindCase || command.Action == ActionRegexCase,
		}
		p.find(ctx, query, p.current, units.Forward)
	case ActionFindNext, ActionFindPrev:
		if p.search == nil {
			p.printf(msgNoSearch)

			break
		}

		if command.Action == ActionFindNext {
			p.find(ctx, *p.search, p.current+1, units.Forward)
		} else {
			p.find(ctx, *p.search, p.current-1, units.Backward)
		}
	case ActionLogSubst:
		p.showHistory()
	case ActionShow:
		p.announce(p.spoken())
	case ActionToggleSubs:
		p.toggleSubst()
	case ActionFaster:
		p.changeSpeed(ctx, speedStep)
	case ActionSlower:
		p.changeSpeed(ctx, -speedStep)
	case ActionHelp:
		p.printf(msgHelp, strings.Join(actionNames(), ", "))
	}

	return false
}

func actionNames() []string {
	names := make([]string, 0, len(allActions))
	for _, action := range allActions {
		names = append(names, string(action))
	}

	return names
}

func (p *Player) goTo(ctx context.Context, index int) {
	p.current = p.doc.Clamp(index)
	p.play(ctx)
}

func (p *Player) toggle(ctx context.Context) {
	switch {
	case !p.playing:
		p.play(ctx)
	case p.paused:
		err := p.speaker.Resume()
		if err != nil {
			p.printf(msgError, err)

			return
		}

		p.paused = false
	default:
		err := p.speaker.Pause()
		if err != nil {
			p.printf(msgError, err)

			return
		}

		p.paused = true
		p.printf(msgPaused)
	}
}

func (p *Player) find(ctx context.Context, query units.Query, from int, dir units.Direction) {
	index, err := p.doc.Find(query, from, dir)
	if err != nil {
		p.printf(msgError, err)

		return
	}

	p.search = &query
	p.printf(msgFound, query.Expression, index)
	p.goTo(ctx, index)
}

func (p *Player) showHistory() {
	result := p.spoken()
	if len(result.History) == 0 {
		p.printf(msgNoHistory, p.current)

		return
	}

	p.printf(msgHistoryHeader, p.current)

	for _, step := range result.History {
		p.printf(msgHistoryStep, step.Rule.Source.File, step.Rule.Source.Line, step.Text)
	}
}

func (p *Player) toggleSubst() {
	if !p.subst.Enabled() {
		p.printf(msgSubstMissing)

		return
	}

	p.applySubst = !p.applySubst

	if p.applySubst {
		p.printf(msgSubstOn)
	} else {
		p.printf(msgSubstOff)
	}
}

// changeSpeed sets the speech rate and restarts the current unit if it is playing.
func (p *Player) changeSpeed(ctx context.Context, delta int) {
	speed := p.speaker.Speed() + delta

	switch {
	case speed > core.MaxSpeed:
		p.printf(msgSpeedMax, core.MaxSpeed)

		return
	case speed < core.MinSpeed:
		p.printf(msgSpeedMin, core.MinSpeed)

		return
	}

	p.speaker.SetSpeed(speed)
	p.log.Info("Speed set to %d words per minute", speed)
	p.printf(msgSpeed, speed)

	if p.playing {
		p.play(ctx)
	}
}

// reload swaps in an updated document and moves to where tracking says
// reading should continue.
func (p *Player) reload(ctx context.Context, update Update) {
	previous := p.current
	decision := tracking.Track(p.opts.Tracking, p.doc.Texts(), update.Doc.Texts(), p.current, p.playing && !p.paused)

	p.doc = update.Doc

	if update.Subst != nil {
		p.setSubst(update.Subst)

		// New substitutions change what the current unit sounds like.
		if decision.Action == tracking.NoAction && p.playing && !p.paused {
			decision.Action = tracking.Restart
		}
	}

	p.log.Info("Reloaded %d unit(s), %d modified, tracking %s: %s at unit %d",
		p.doc.Len(), len(decision.Modified), p.opts.Tracking, decision.Action, decision.Position)

	if p.doc.Len() == 0 {
		p.stopSpeech()
		p.current = 0
		p.printf(msgNowEmpty)

		return
	}

	p.current = p.doc.Clamp(decision.Position)
	p.printf(msgReloaded, len(decision.Modified), p.current)

	switch decision.Action {
	case tracking.Stop:
		p.stopSpeech()
		p.printf(msgStopped, p.current)
	case tracking.Restart:
		p.play(ctx)
	case tracking.NoAction:
		if p.paused && p.current != previous {
			p.stopSpeech()
		}

		if p.opts.OnPosition != nil {
			p.opts.OnPosition(p.current)
		}
	}
}

// setSubst replaces the substitution engine. Substitution stays off if the
// user turned it off, unless the old engine had no rules.
func (p *Player) setSubst(engine *subst.Engine) {
	wasEnabled := p.subst.Enabled()

	p.subst = engine
	p.applySubst = engine.Enabled() && (p.applySubst || !wasEnabled)
}

// spoken returns the transient spoken form of the current unit.
func (p *Player) spoken() subst.Result {
	unit, err := p.doc.Unit(p.current)
	if err != nil {
		return subst.Result{Unit: unit, Text: "", History: nil}
	}

	if !p.applySubst {
		return subst.Result{Unit: unit, Text: unit.Text, History: nil}
	}

	return p.subst.Apply(unit)
}

func (p *Player) announce(result subst.Result) {
	p.printf(msgUnit, result.Unit.Index, p.doc.Len(), result.Unit.Text)
}

// play stops any utterance in flight and queues the current unit.
func (p *Player) play(ctx context.Context) {
	p.stopSpeech()

	if p.doc.Len() == 0 {
		p.printf(msgEmpty)

		return
	}

	result := p.spoken()
	p.announce(result)

	if p.opts.OnPosition != nil {
		p.opts.OnPosition(p.current)
	}

	speechCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.playing = true

	p.mu.Lock()
	p.pending = &speechRequest{ctx: speechCtx, generation: p.generation, text: result.Text}
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// stopSpeech interrupts the current utterance and invalidates its completion.
func (p *Player) stopSpeech() {
	p.generation++
	p.playing = false
	p.paused = false

	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}

	err := p.speaker.Stop()
	if err != nil {
		p.log.Warn("Failed to stop speech: %v", err)
	}
}

// speechWorker speaks queued requests one at a time, always taking the latest.
func (p *Player) speechWorker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.wake:
		}

		p.mu.Lock()
		request := p.pending
		p.pending = nil
		p.mu.Unlock()

		if request == nil {
			continue
		}

		err := p.speaker.Speak(request.ctx, request.text)

		select {
		case p.finished <- speechDone{generation: request.generation, err: err}:
		case <-ctx.Done():
			return nil
		}
	}
}

func (p *Player) printf(format string, args ...any) {
	_, err := fmt.Fprintf(p.out, format, args...)
	if err != nil {
		p.log.Warn("Failed to write player output: %v", err)
	}
}
