package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorMatchesKindAndCause(t *testing.T) {
	t.Parallel()

	err := NewError("idealista", "fallback", ErrTransport, context.Canceled)
	wrapped := fmt.Errorf("scrape: %w", err)

	require.ErrorIs(t, wrapped, ErrTransport)
	require.ErrorIs(t, wrapped, context.Canceled)
	require.NotErrorIs(t, wrapped, ErrUpstream)

	var perr *Error
	require.ErrorAs(t, wrapped, &perr)
	require.Equal(t, "idealista", perr.Provider)
	require.Equal(t, ErrTransport, KindOf(wrapped))
}

func TestErrorMessage(t *testing.T) {
	t.Parallel()

	err := &Error{Provider: "james_edition", Op: "poll", Kind: ErrUpstream, Status: "FAILED"}
	require.Equal(t, "james_edition poll: upstream failure (status FAILED)", err.Error())

	err = &Error{Provider: "immobiliare", Op: "run", Kind: ErrTransport, StatusCode: 503, Err: errors.New("busy")}
	require.Equal(t, "immobiliare run: transport failure (http 503): busy", err.Error())
}

func TestKindOfUnknown(t *testing.T) {
	t.Parallel()

	require.Nil(t, KindOf(errors.New("plain")))
	require.Nil(t, KindOf(nil))
}
