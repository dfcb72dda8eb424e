package install

import (
	"context"
	"errors"

	"github.com/a-lang/a/internal/types"
)

// Request is one first-time install.
type Request struct {
	Scope  types.Scope
	Dest   string
	Source string
	// SkipPath leaves PATH alone.
	SkipPath bool
}

// Report collects the outcome of every step of Run.
type Report struct {
	Location *Location
	Install  *InstallResult
	Path     *PathResult
	// PathErr is a non-fatal PATH persistence failure.
	PathErr error
}

// Run authorizes the scope, copies the binary and puts its directory on
// PATH, stopping at the first fatal error. A PATH persistence failure is
// recorded in the report and does not fail the install.
func Run(ctx context.Context, g *Guard, inst *Installer, pm *PathManager, req Request) (*Report, error) {
	loc, err := g.Authorize(req.Scope, req.Dest)
	if err != nil {
		return nil, err
	}
	rep := &Report{Location: loc}

	rep.Install, err = inst.Install(ctx, loc, req.Source)
	if err != nil {
		return rep, err
	}

	if req.SkipPath || pm == nil {
		return rep, nil
	}
	rep.Path, err = pm.EnsureOnPath(loc)
	if err != nil {
		if !errors.Is(err, types.ErrPathPersistence) {
			return rep, err
		}
		rep.PathErr = err
	}
	return rep, nil
}
