// Package ceremony runs the sorting ceremony: a fixed sequence of spoken
// questions whose answers are scored into a [house.Tally], ending with the
// announcement of the winning house and a [ledger.Record] of the result.
//
// The ceremony is strictly sequential. It talks through a [speech.Output],
// listens through a [speech.Input] and mirrors everything on a
// [present.Surface]. A returning student, recognised by name, may hear their
// earlier result again instead of being sorted anew.
//
// Usage:
//
//	c := ceremony.New(ceremony.DefaultConfig(), out, in, surface, ledger.NewOpener(opts))
//	res, err := c.Run(ctx)
package ceremony

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/MrWong99/sortinghat/internal/classify"
	"github.com/MrWong99/sortinghat/internal/house"
	"github.com/MrWong99/sortinghat/internal/ledger"
	"github.com/MrWong99/sortinghat/internal/observe"
	"github.com/MrWong99/sortinghat/internal/present"
	"github.com/MrWong99/sortinghat/internal/speech"
	"github.com/MrWong99/sortinghat/internal/transcript/phonetic"
)

// Outcome is how a ceremony ended.
type Outcome string

const (
	// OutcomeSorted means the student was sorted and the result announced.
	OutcomeSorted Outcome = "sorted"

	// OutcomeReplayed means a returning student heard their stored house
	// again. Nothing was written.
	OutcomeReplayed Outcome = "replayed"

	// OutcomeDeclined means a returning student wanted neither a replay nor
	// a new ceremony.
	OutcomeDeclined Outcome = "declined"

	// OutcomeNoName means the student's name could not be understood.
	OutcomeNoName Outcome = "no_name"

	// OutcomeNoColor means no valid favourite colour could be understood.
	OutcomeNoColor Outcome = "no_color"

	// OutcomeCancelled means the context ended mid-ceremony.
	OutcomeCancelled Outcome = "cancelled"
)

// Result describes a finished ceremony.
type Result struct {
	Outcome Outcome

	// Name is the title-cased name, empty for OutcomeNoName.
	Name string

	// House is the announced house. Only meaningful for OutcomeSorted and
	// OutcomeReplayed.
	House house.House

	// Scores is the final tally of a sorted student.
	Scores [house.Count]int

	// Record is what was written to the ledger, nil unless sorted.
	Record *ledger.Record

	// Saved reports whether Record reached the ledger.
	Saved bool
}

// Questions holds the settings of every question.
type Questions struct {
	Name       Settings
	Color      Settings
	Pet        Settings
	Adjectives Settings
	YesNo      Settings
	Final      Settings
}

// Config parameterises a ceremony.
type Config struct {
	// Occasion completes the welcome line, e.g. "Aaliyah's birthday party".
	Occasion string

	// AssetDir holds <Pet>.png, <House>.png and <House>.wav files.
	AssetDir string

	// Calibration is how long ambient noise is sampled before the welcome.
	// Zero skips calibration.
	Calibration time.Duration

	// Negation decides how "not <house>" is scored in the final utterance.
	Negation classify.NegationMode

	// PhoneticRepair snaps misheard house and pet names in free-form
	// answers to the known words before they are scored.
	PhoneticRepair bool

	Questions Questions
}

// MaxPetRetries bounds the pet question, which would otherwise repeat until a
// pet is heard.
const MaxPetRetries = 5

// DefaultConfig returns the standard ceremony settings.
func DefaultConfig() Config {
	return Config{
		Occasion:       DefaultOccasion,
		AssetDir:       "assets",
		Calibration:    time.Second,
		Negation:       classify.NegationExclusive,
		PhoneticRepair: true,
		Questions: Questions{
			Name:       Settings{Window: 3 * time.Second, MaxRetries: 3},
			Color:      Settings{Window: 3 * time.Second, MaxRetries: 3},
			Pet:        Settings{Window: 30 * time.Second, MaxRetries: MaxPetRetries},
			Adjectives: Settings{Window: 5 * time.Second, MaxRetries: 1},
			YesNo:      Settings{Window: 3 * time.Second},
			Final:      Settings{Window: 5 * time.Second},
		},
	}
}

// FilePlayer plays an audio file to completion.
type FilePlayer interface {
	PlayFile(ctx context.Context, path string) error
}

// Option configures a Ceremony.
type Option func(*Ceremony)

// WithFilePlayer plays the house theme through p when a house is announced.
// Without it the announcement is spoken only.
func WithFilePlayer(p FilePlayer) Option {
	return func(c *Ceremony) { c.files = p }
}

// WithMetrics records ceremony metrics on m instead of the default instance.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Ceremony) { c.metrics = m }
}

// Ceremony runs sorting ceremonies. It holds no per-run state, so Run may be
// called again after it returns, but never concurrently.
type Ceremony struct {
	cfg     Config
	out     speech.Output
	in      speech.Input
	surface present.Surface
	open    ledger.Opener
	files   FilePlayer
	metrics *observe.Metrics
	repair  *phonetic.Matcher
}

// New returns a Ceremony speaking through out, listening through in,
// presenting on surface and storing results in the ledger opened by open.
func New(cfg Config, out speech.Output, in speech.Input, surface present.Surface, open ledger.Opener, opts ...Option) *Ceremony {
	c := &Ceremony{
		cfg:     cfg,
		out:     out,
		in:      in,
		surface: surface,
		open:    open,
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	if cfg.PhoneticRepair {
		c.repair = phonetic.New(classify.Vocabulary())
	}
	return c
}

// Run performs one ceremony. The ledger is opened first and closed before Run
// returns, whatever the outcome. A cancelled ctx ends the ceremony at the
// next spoken line or capture with OutcomeCancelled and a nil error; an error
// is returned only when the ledger cannot be opened.
func (c *Ceremony) Run(ctx context.Context) (res Result, err error) {
	ctx, span := observe.StartSpan(ctx, "ceremony.run")
	defer func() {
		if err == nil {
			span.SetAttributes(attribute.String("ceremony.outcome", string(res.Outcome)))
			c.metrics.RecordCeremony(ctx, string(res.Outcome))
		}
		observe.EndSpan(span, err)
	}()
	c.metrics.ActiveCeremonies.Add(ctx, 1)
	defer c.metrics.ActiveCeremonies.Add(context.WithoutCancel(ctx), -1)

	l, err := c.open(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("ceremony: open ledger: %w", err)
	}
	r := &run{c: c, ledger: l, log: observe.Logger(ctx)}
	defer func() {
		if cerr := l.Close(); cerr != nil {
			r.log.Warn("closing ledger failed", "err", cerr)
		}
	}()

	if err := r.execute(ctx); err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return Result{}, err
		}
		r.log.Info("ceremony cancelled", "err", err)
		r.outcome = OutcomeCancelled
	}
	return r.result(), nil
}

// state is a step of the ceremony.
type state int

const (
	stateSetup state = iota
	stateName
	statePrior
	stateColor
	statePet
	stateAdjectives
	stateFinal
	stateResolve
	stateDone
)

var stateNames = [...]string{"setup", "name", "prior", "color", "pet", "adjectives", "final", "resolve", "done"}

func (s state) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// run is the state of one ceremony.
type run struct {
	c      *Ceremony
	ledger ledger.Ledger
	log    *slog.Logger

	tally   house.Tally
	rec     ledger.Record
	outcome Outcome
	saved   bool
}

type stepFunc func(*run, context.Context) (state, error)

var steps = map[state]stepFunc{
	stateSetup:      (*run).setup,
	stateName:       (*run).name,
	statePrior:      (*run).prior,
	stateColor:      (*run).color,
	statePet:        (*run).pet,
	stateAdjectives: (*run).adjectives,
	stateFinal:      (*run).final,
	stateResolve:    (*run).resolve,
}

// execute walks the states until one of them ends the ceremony. Every state
// runs in its own span.
func (r *run) execute(ctx context.Context) error {
	for st := stateSetup; st != stateDone; {
		sctx, span := observe.StartSpan(ctx, "ceremony."+st.String())
		r.log.Debug("ceremony state", "state", st)
		next, err := steps[st](r, sctx)
		observe.EndSpan(span, err)
		if err != nil {
			return err
		}
		st = next
	}
	return nil
}

func (r *run) result() Result {
	res := Result{
		Outcome: r.outcome,
		Name:    r.rec.Name,
		House:   r.rec.House,
		Saved:   r.saved,
	}
	if r.outcome == OutcomeSorted {
		res.Scores = r.tally.Scores()
		rec := r.rec
		res.Record = &rec
	}
	return res
}

func (r *run) cfg() *Config { return &r.c.cfg }

func (r *run) setup(ctx context.Context) (state, error) {
	if d := r.cfg().Calibration; d > 0 {
		if err := r.c.in.Calibrate(ctx, d); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return stateDone, ctxErr
			}
			r.log.Warn("calibrating for ambient noise failed", "err", err)
		}
	}
	r.c.surface.SetBackground(present.SpeakingBackground)
	for _, line := range []string{
		lineWelcome(r.cfg().Occasion),
		lineShortly,
		lineHistory,
		lineOneWord,
		lineGreenListens,
	} {
		if err := r.say(ctx, line, cue{}); err != nil {
			return stateDone, err
		}
	}
	return stateName, nil
}

func (r *run) name(ctx context.Context) (state, error) {
	answer, ok, err := r.ask(ctx, question{
		name:     "name",
		prompt:   lineAskName,
		reprompt: func(string) string { return lineRetryName },
		giveUp:   lineGiveUpName,
		settings: r.cfg().Questions.Name,
		reduce:   KeepLastWord,
	})
	if err != nil {
		return stateDone, err
	}
	if !ok {
		r.outcome = OutcomeNoName
		return stateDone, nil
	}
	r.rec.Name = title(answer)
	r.log = r.log.With("student", r.rec.Name)
	return statePrior, nil
}

func (r *run) prior(ctx context.Context) (state, error) {
	prev, err := r.ledger.Lookup(ctx, r.rec.Name)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return stateDone, ctxErr
		}
		r.log.Warn("ledger lookup failed, treating student as new", "err", err)
		prev = nil
	}
	if prev == nil {
		return stateColor, r.say(ctx, lineGreetNew(r.rec.Name), cue{})
	}

	r.log.Info("returning student", "house", prev.House)
	if err := r.say(ctx, lineAskReplay(r.rec.Name, prev.House.String()), cue{}); err != nil {
		return stateDone, err
	}
	replay, err := r.yesNo(ctx)
	if err != nil {
		return stateDone, err
	}
	if replay {
		r.rec.House = prev.House
		r.outcome = OutcomeReplayed
		return stateDone, r.announce(ctx, prev.House)
	}

	if err := r.say(ctx, lineAskRedo, cue{}); err != nil {
		return stateDone, err
	}
	redo, err := r.yesNo(ctx)
	if err != nil {
		return stateDone, err
	}
	if !redo {
		r.outcome = OutcomeDeclined
		return stateDone, r.say(ctx, lineFarewell(r.rec.Name), cue{})
	}
	r.tally.Reset()
	return stateColor, nil
}

func (r *run) yesNo(ctx context.Context) (bool, error) {
	answer, err := r.capture(ctx, "yes_no", r.cfg().Questions.YesNo.Window, KeepFirstWord)
	if err != nil {
		return false, err
	}
	return classify.IsYes(answer), nil
}

func (r *run) color(ctx context.Context) (state, error) {
	if err := r.say(ctx, lineBegin, cue{}); err != nil {
		return stateDone, err
	}
	answer, ok, err := r.ask(ctx, question{
		name:     "color",
		prompt:   lineAskColor,
		reprompt: lineRetryColor,
		giveUp:   lineGiveUpColor,
		settings: r.cfg().Questions.Color,
		reduce:   KeepLastWord,
		validate: func(heard string) (string, bool) {
			return heard, classify.IsColor(heard)
		},
	})
	if err != nil {
		return stateDone, err
	}
	if !ok {
		r.outcome = OutcomeNoColor
		return stateDone, r.say(ctx, lineAbort, cue{})
	}

	r.rec.FavoriteColor = answer
	r.score("color", answer, classify.Color(answer))
	bg := strings.ReplaceAll(answer, " ", "")
	if err := r.say(ctx, lineColorChosen(answer), cue{background: bg}); err != nil {
		return stateDone, err
	}
	return statePet, r.say(ctx, lineMoveAlong, cue{})
}

func (r *run) pet(ctx context.Context) (state, error) {
	images := make([]string, len(classify.Pets))
	for i, p := range classify.Pets {
		images[i] = r.petImage(p)
	}
	answer, ok, err := r.ask(ctx, question{
		name:     "pet",
		prompt:   lineAskPet,
		reprompt: func(string) string { return lineRetryPet },
		giveUp:   lineGiveUpPet,
		settings: r.cfg().Questions.Pet,
		reduce:   KeepAll,
		validate: func(heard string) (string, bool) {
			if pet, ok := classify.FindPet(heard); ok {
				return pet, true
			}
			return classify.FindPet(r.repair(heard))
		},
		images: images,
	})
	if err != nil {
		return stateDone, err
	}
	r.c.surface.HideImages()

	if ok {
		r.rec.PetType = answer
		r.score("pet", answer, classify.Pet(answer))
		r.c.surface.ShowImage(r.petImage(answer))
		err := r.say(ctx, linePetChosen(answer), cue{})
		r.c.surface.HideImages()
		if err != nil {
			return stateDone, err
		}
	}
	return stateAdjectives, r.say(ctx, lineFinalQ, cue{})
}

func (r *run) adjectives(ctx context.Context) (state, error) {
	answer, _, err := r.ask(ctx, question{
		name:     "adjectives",
		prompt:   lineAskAdjectives,
		reprompt: func(string) string { return lineRetryAdjectives },
		settings: r.cfg().Questions.Adjectives,
		reduce:   KeepAll,
	})
	if err != nil {
		return stateDone, err
	}

	words := classify.Words(answer)
	r.rec.Adjectives = words
	r.score("adjectives", answer, classify.Adjectives(answer))
	if len(words) > 0 {
		if err := r.say(ctx, lineAdjectivesEcho(words), cue{}); err != nil {
			return stateDone, err
		}
	}
	return stateFinal, nil
}

func (r *run) final(ctx context.Context) (state, error) {
	for _, line := range []string{lineMoments, lineWhisper} {
		if err := r.say(ctx, line, cue{}); err != nil {
			return stateDone, err
		}
	}
	heard, err := r.capture(ctx, "final", r.cfg().Questions.Final.Window, KeepAll)
	if err != nil {
		return stateDone, err
	}
	adjs := classify.Utterance(heard, r.cfg().Negation)
	if len(adjs) == 0 {
		heard = r.repair(heard)
		adjs = classify.Utterance(heard, r.cfg().Negation)
	}
	r.score("final", heard, adjs)
	return stateResolve, nil
}

func (r *run) resolve(ctx context.Context) (state, error) {
	winner := r.tally.Winner()
	r.rec.House = winner
	r.outcome = OutcomeSorted
	r.c.metrics.RecordHouse(ctx, winner.String())
	r.log.Info("student sorted", "house", winner, "scores", r.tally.Scores())

	rec := r.rec
	if err := r.ledger.Upsert(ctx, &rec); err != nil {
		r.log.Error("saving ceremony result failed", "err", err)
	} else {
		r.saved = true
	}
	return stateDone, r.announce(ctx, winner)
}

// announce shouts the house while its image is shown, then plays its theme.
func (r *run) announce(ctx context.Context, h house.House) error {
	s := r.c.surface
	s.StopIdle()
	s.ShowImage(filepath.Join(r.cfg().AssetDir, h.String()+".png"))
	defer s.HideImages()

	r.c.surface.ShowText(lineHouse(h.String()))
	if err := r.c.out.Speak(ctx, lineHouse(h.String())); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		r.log.Warn("speaking failed", "err", err)
	}
	if r.c.files == nil {
		return nil
	}
	theme := filepath.Join(r.cfg().AssetDir, h.String()+".wav")
	if err := r.c.files.PlayFile(ctx, theme); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		r.log.Warn("playing house theme failed", "path", theme, "err", err)
	}
	return nil
}

func (r *run) score(question, answer string, adjs []house.Adjustment) {
	r.tally.Apply(adjs...)
	r.log.Debug("scored answer", "question", question, "answer", answer, "adjustments", len(adjs), "scores", r.tally.Scores())
}

// repair snaps misheard keywords in text when phonetic repair is on. Callers
// only repair an answer that holds no exact keyword.
func (r *run) repair(text string) string {
	if r.c.repair == nil || text == "" {
		return text
	}
	fixed := r.c.repair.Repair(text)
	if fixed != text {
		r.log.Debug("repaired transcript", "heard", text, "repaired", fixed)
	}
	return fixed
}

func (r *run) petImage(pet string) string {
	return filepath.Join(r.cfg().AssetDir, title(pet)+".png")
}

// title upper-cases the first letter of every word. A Caser keeps state, so
// each call gets its own.
func title(s string) string {
	return cases.Title(language.English).String(s)
}
