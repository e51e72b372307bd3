package runtime

import (
	"jailrun/internal/statestore"
	"jailrun/pkg/ocistate"
)

// State implements the `state` verb: refresh liveness, persist the
// refreshed status if it changed, and return the OCI state document.
func (rt *Runtime) State(id string) (doc *ocistate.OCIState, err error) {
	defer func() { rt.audit("state", id, err) }()

	h := statestore.New(rt.Root, id, rt.Logger)
	lk, err := h.Lock()
	if err != nil {
		return nil, err
	}
	defer lk.Unlock()

	p, err := h.Load()
	if err != nil {
		return nil, err
	}
	before := p.Status
	statestore.CheckStatus(p)
	if p.Status != before {
		if err := h.Save(p); err != nil {
			return nil, err
		}
	}
	return statestore.Report(p, p.Config.Version), nil
}
