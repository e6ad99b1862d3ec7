package consultnode

import (
	"context"
	"fmt"

	contractx "github.com/medconsult/medconsult/agent/contract"
	statex "github.com/medconsult/medconsult/agent/state"
)

// LoadSession fetches the session snapshot and rejects turns addressed to a
// finished or failed consultation.
func LoadSession(ctx context.Context, in *GraphState, store statex.Store) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	sess, err := store.Get(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}
	if sess.Stage.Terminal() {
		return nil, fmt.Errorf("%w: stage=%s", contractx.ErrSessionTerminal, sess.Stage)
	}

	in.Session = sess
	return in, nil
}
