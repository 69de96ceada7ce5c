package chat

import (
	"context"
	"errors"
	"fmt"
)

// Translator maps one user message to a Translation. Implementations must
// not touch the task store.
type Translator interface {
	Translate(ctx context.Context, message string) (Translation, error)
}

// TranslatorFunc adapts a function to Translator.
type TranslatorFunc func(ctx context.Context, message string) (Translation, error)

func (f TranslatorFunc) Translate(ctx context.Context, message string) (Translation, error) {
	return f(ctx, message)
}

// Chain tries each translator in order. A translator returning ErrDeclined
// passes the message on; any other result ends the chain.
type Chain []Translator

func (c Chain) Translate(ctx context.Context, message string) (Translation, error) {
	for _, t := range c {
		if t == nil {
			continue
		}
		tr, err := t.Translate(ctx, message)
		if errors.Is(err, ErrDeclined) {
			continue
		}
		return tr, err
	}
	return Translation{}, fmt.Errorf("%w: no translator is configured for this message", ErrTranslatorUnavailable)
}
