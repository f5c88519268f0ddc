package llm

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/ppiankov/claimcheck/internal/logging"
)

// CompleteInto sends req (which must carry a Shape), validates the reply and
// decodes it into out.
//
// A reply that fails validation, or a gateway failure, is retried once. The
// retry after a malformed reply appends a stricter instruction quoting the
// validation error. The final error is a *MalformedResponseError or a
// *GatewayError.
func CompleteInto(ctx context.Context, g Gateway, req Request, out any) error {
	if req.Shape == nil {
		return goerr.New("CompleteInto requires a response shape")
	}

	log := logging.From(ctx).With("req_id", uuid.NewString(), "provider", g.Name(), "shape", req.Shape.Name())

	const attempts = 2
	current := req
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		start := time.Now()
		raw, err := g.Complete(ctx, current)
		if err != nil {
			lastErr = err
			log.Warn("llm.complete.gateway_error",
				"attempt", attempt, "error", err,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			if ctx.Err() != nil {
				break
			}
			current = req
			continue
		}

		v, err := req.Shape.Validate(raw)
		if err != nil {
			lastErr = err
			log.Warn("llm.complete.malformed",
				"attempt", attempt, "error", err, "raw_len", len(raw),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			current = stricter(req, err)
			continue
		}

		if len(v.Adjusted) > 0 {
			log.Warn("llm.complete.lenient_applied", "adjusted", v.Adjusted)
		}

		if err := json.Unmarshal(v.JSON, out); err != nil {
			return &MalformedResponseError{Shape: req.Shape.Name(), Raw: raw, Err: err}
		}

		log.Debug("llm.complete.ok", "attempt", attempt, "elapsed_ms", time.Since(start).Milliseconds())
		return nil
	}

	return lastErr
}

// stricter rewrites the prompt for a second attempt after a malformed reply
func stricter(req Request, cause error) Request {
	msg := cause.Error()
	var mre *MalformedResponseError
	if errors.As(cause, &mre) && mre.Err != nil {
		msg = mre.Err.Error()
	}

	req.Prompt = req.Prompt +
		"\n\nYour previous reply was rejected: " + msg +
		"\nReply again with ONLY a JSON object that validates against the schema. No prose, no markdown fences."
	return req
}
