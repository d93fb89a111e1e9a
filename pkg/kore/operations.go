package kore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
)

// OperationInput carries the arguments of a catalogue operation. Params fill
// path placeholders first; the rest become query parameters.
type OperationInput struct {
	Params map[string]string
	Body   interface{}
}

// RawOperation performs one remote call and returns the full transport
// response. Non-2xx responses come back as a *TransportError.
type RawOperation func(ctx context.Context, in *OperationInput) (*Response, error)

// Operation is a decorated RawOperation: it resolves to the response body
// only, and to nil when the resource does not exist.
type Operation func(ctx context.Context, in *OperationInput) (json.RawMessage, error)

// OperationSet is a bag of decorated operations keyed by operation ID.
type OperationSet map[string]Operation

// Call invokes the operation with the given ID.
func (s OperationSet) Call(ctx context.Context, id string, in *OperationInput) (json.RawMessage, error) {
	op, ok := s[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, id)
	}

	return op(ctx, in)
}

// IDs returns the sorted operation IDs.
func (s OperationSet) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

// DecoratorHooks holds the collaborators of the decorator.
type DecoratorHooks struct {
	// Reauthenticate is called on a 401 before the error is returned.
	Reauthenticate func(ctx context.Context)
	Logger         Logger
}

// Translate maps a transport failure onto the caller-facing contract:
//   - 404 becomes nil (absence is not an error)
//   - 401 triggers Reauthenticate, then the original error is returned
//   - 400 with a JSON object body becomes a *ValidationError
//   - anything else is returned unchanged
func (h DecoratorHooks) Translate(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	transportErr := &TransportError{}
	if !errors.As(err, &transportErr) {
		return err
	}

	switch transportErr.StatusCode {
	case http.StatusNotFound:
		return nil

	case http.StatusUnauthorized:
		if h.Logger != nil {
			h.Logger.Warn("API session is no longer authorised", nil)
		}

		if h.Reauthenticate != nil {
			h.Reauthenticate(ctx)
		}

		return err

	case http.StatusBadRequest:
		validationErr, parseErr := ParseValidationError(transportErr.Body)
		if parseErr != nil {
			return err
		}

		return validationErr

	default:
		return err
	}
}

// Decorate wraps a single raw operation.
func Decorate(raw RawOperation, hooks DecoratorHooks) Operation {
	return func(ctx context.Context, in *OperationInput) (json.RawMessage, error) {
		resp, err := raw(ctx, in)
		if err != nil {
			return nil, hooks.Translate(ctx, err)
		}

		if resp == nil {
			return nil, nil
		}

		return json.RawMessage(resp.Body), nil
	}
}

// WrapOperations decorates every operation eagerly.
func WrapOperations(raw map[string]RawOperation, hooks DecoratorHooks) OperationSet {
	set := make(OperationSet, len(raw))
	for id, op := range raw {
		set[id] = Decorate(op, hooks)
	}

	return set
}
