package ceremony

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrWong99/sortinghat/internal/classify"
	"github.com/MrWong99/sortinghat/internal/present"
	"github.com/MrWong99/sortinghat/internal/speech"
)

// Reduce selects the part of a captured answer a question keeps.
type Reduce int

const (
	// KeepAll keeps the whole trimmed transcript.
	KeepAll Reduce = iota

	// KeepLastWord keeps the final word, so "my name is harry" yields "harry".
	KeepLastWord

	// KeepFirstWord keeps the first word, so "yes please" yields "yes".
	KeepFirstWord
)

// Settings tune one question.
type Settings struct {
	// Window is how long a single capture listens.
	Window time.Duration

	// MaxRetries is how often the question is asked again after the first
	// capture was rejected. Capture runs at most MaxRetries+1 times.
	MaxRetries int
}

// question is a prompt that is re-asked until its answer validates or the
// retries run out.
type question struct {
	// name labels logs and the retry metric.
	name string

	prompt   string
	reprompt func(heard string) string
	giveUp   string

	settings Settings
	reduce   Reduce

	// validate normalises a captured answer and reports whether it is
	// acceptable. A nil validate accepts any non-empty answer.
	validate func(heard string) (string, bool)

	// images are shown with the prompt and with every re-prompt.
	images []string
}

func (q *question) accept(heard string) (string, bool) {
	if q.validate == nil {
		return heard, heard != ""
	}
	return q.validate(heard)
}

// ask runs q. It reports ok == false once every capture was rejected, after
// speaking the give-up line. The error is non-nil only when ctx ends.
func (r *run) ask(ctx context.Context, q question) (answer string, ok bool, err error) {
	if err := r.say(ctx, q.prompt, cue{images: q.images}); err != nil {
		return "", false, err
	}
	for attempt := 0; ; attempt++ {
		heard, err := r.capture(ctx, q.name, q.settings.Window, q.reduce)
		if err != nil {
			return "", false, err
		}
		if answer, ok := q.accept(heard); ok {
			return answer, true, nil
		}
		if attempt >= q.settings.MaxRetries {
			break
		}
		r.c.metrics.RecordRetry(ctx, q.name)
		r.log.Info("answer not accepted, asking again", "question", q.name, "heard", heard, "attempt", attempt+1)
		if err := r.say(ctx, q.reprompt(heard), cue{images: q.images}); err != nil {
			return "", false, err
		}
	}

	r.log.Warn("question not answered", "question", q.name, "captures", q.settings.MaxRetries+1)
	if q.giveUp != "" {
		if err := r.say(ctx, q.giveUp, cue{}); err != nil {
			return "", false, err
		}
	}
	return "", false, nil
}

// capture listens once. A failed or silent capture yields "" and no error;
// only the end of ctx is returned as an error.
func (r *run) capture(ctx context.Context, name string, window time.Duration, reduce Reduce) (string, error) {
	s := r.c.surface
	s.StopIdle()
	s.SetBackground(present.ListeningBackground)
	s.SetHighlight(true)
	text, err := r.c.in.Listen(ctx, window)
	s.SetHighlight(false)
	s.SetBackground(present.SpeakingBackground)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if errors.Is(err, speech.ErrNoSpeech) {
			r.log.Debug("nothing heard", "question", name)
		} else {
			r.log.Warn("listening failed", "question", name, "err", err)
		}
		return "", nil
	}

	text = strings.TrimSpace(text)
	r.log.Debug("heard", "question", name, "text", text)
	switch reduce {
	case KeepLastWord:
		return classify.LastWord(text), nil
	case KeepFirstWord:
		return classify.FirstWord(text), nil
	default:
		return text, nil
	}
}

// cue is what the surface shows besides the spoken text.
type cue struct {
	background string
	images     []string
}

// say shows and speaks text. Speech failures are logged; the error is
// non-nil only when ctx ends.
func (r *run) say(ctx context.Context, text string, c cue) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := r.c.surface
	s.ShowText(text)
	if len(c.images) > 0 {
		s.ShowImages(c.images)
	} else {
		s.PlayIdle()
	}
	if c.background != "" {
		s.SetBackground(c.background)
	}

	if err := r.c.out.Speak(ctx, text); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		r.log.Warn("speaking failed", "err", err, "text", text)
	}

	if c.background != "" {
		s.SetBackground(present.SpeakingBackground)
	}
	return nil
}
